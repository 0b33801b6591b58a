// Package pace spaces consecutive requests by a randomized politeness delay.
package pace

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// Pacer sleeps a uniformly random duration in [min, max] before every call but the first.
type Pacer struct {
	min time.Duration
	max time.Duration

	mu      sync.Mutex
	started bool
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a Pacer. max below min is raised to min.
func New(minDelay, maxDelay time.Duration) *Pacer {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{min: minDelay, max: maxDelay, sleep: sleepCtx}
}

// Wait returns immediately on the first call; later calls sleep for Delay() or until ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()
	if first {
		return ctx.Err()
	}
	return p.sleep(ctx, p.Delay())
}

// Delay draws one delay from [min, max].
func (p *Pacer) Delay() time.Duration {
	span := p.max - p.min
	if span <= 0 {
		return p.min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)+1))
	if err != nil {
		return p.min + span/2
	}
	return p.min + time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
