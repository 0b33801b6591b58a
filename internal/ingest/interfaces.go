package ingest

import (
	"context"
	"time"
)

// Source fetches raw items from one upstream. Implementations return whatever they gathered
// alongside any error so that a broken source only degrades the run.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]RawItem, error)
}

// Summarizer produces an AI summary for a piece of content.
type Summarizer interface {
	Summarize(ctx context.Context, content string, hint ContentHint) (string, error)
}

// Enricher attaches AI summaries to a batch of articles in place.
type Enricher interface {
	Enrich(ctx context.Context, articles []Article, hint ContentHint) int
}

// UpsertResult aggregates per-item outcomes of a sink write.
type UpsertResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Sink idempotently persists articles keyed by source URL.
type Sink interface {
	Upsert(ctx context.Context, collection string, articles []Article) (UpsertResult, error)
	Close() error
}

// Notifier announces newly inserted articles.
type Notifier interface {
	Notify(ctx context.Context, collection string, article Article) error
}

// Throttle paces outbound calls.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
