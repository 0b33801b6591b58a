package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

var (
	_ ingest.Clock = Clock{}
	_ ingest.Clock = Fixed{}
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "expected %v between %v and %v", got, before, after)
}

func TestFixed(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC)
	clk := Fixed{At: at}
	require.Equal(t, at, clk.Now())
	require.Equal(t, at, clk.Now())
}
