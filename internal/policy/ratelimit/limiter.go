// Package ratelimit implements a per-host token bucket shared by concurrent callers.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter. A non-positive rate disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// MeanRPS is the steady-state rate of a randomized delay uniformly drawn from [minDelay, maxDelay].
func MeanRPS(minDelay, maxDelay time.Duration) float64 {
	mean := (minDelay + maxDelay) / 2
	if mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(mean)
}

// Wait blocks until a token is available for the host of rawURL, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// For binds the limiter to one endpoint so it satisfies ingest.Throttle.
func (l *Limiter) For(rawURL string) *Bound {
	return &Bound{limiter: l, url: rawURL}
}

// Bound is a Limiter fixed to one endpoint.
type Bound struct {
	limiter *Limiter
	url     string
}

// Wait blocks until the endpoint's bucket has a token.
func (b *Bound) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx, b.url)
}
