package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

var _ ingest.Throttle = (*Bound)(nil)

func TestLimiterWaitBlocksAfterBurst(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://api.example.com/v1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://api.example.com/v1"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterRespectsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	bound := l.For("https://api.example.com")
	require.NoError(t, bound.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, bound.Wait(ctx))
}

func TestLimiterUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://x"))
	}
}

func TestMeanRPS(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0.4, MeanRPS(time.Second, 4*time.Second), 1e-9)
	require.Zero(t, MeanRPS(0, 0))
}
