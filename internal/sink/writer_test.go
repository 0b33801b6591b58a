package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/sink/memory"
)

var _ ingest.Sink = (*Writer)(nil)

type recordingNotifier struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, _ string, a ingest.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, a.SourceURL)
	return r.err
}

func articles(urls ...string) []ingest.Article {
	out := make([]ingest.Article, 0, len(urls))
	for _, u := range urls {
		out = append(out, ingest.Article{Title: u, SourceURL: u, Priority: ingest.PriorityLow})
	}
	return out
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.New()
	notifier := &recordingNotifier{}
	w := NewWriter(store, notifier, nil)
	batch := articles("https://a/1", "https://a/2", "https://a/3")

	first, err := w.Upsert(context.Background(), "news", batch)
	require.NoError(t, err)
	require.Equal(t, ingest.UpsertResult{Inserted: 3}, first)

	second, err := w.Upsert(context.Background(), "news", batch)
	require.NoError(t, err)
	require.Equal(t, ingest.UpsertResult{Skipped: 3}, second)

	require.Len(t, store.List("news"), 3)
	require.Equal(t, []string{"https://a/1", "https://a/2", "https://a/3"}, notifier.urls)
}

func TestUpsertCountsFailuresAndContinues(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.FailInsert = func(url string) error {
		if url == "https://a/2" {
			return errors.New("constraint violation")
		}
		return nil
	}
	notifier := &recordingNotifier{err: errors.New("topic missing")}
	w := NewWriter(store, notifier, nil)

	res, err := w.Upsert(context.Background(), "news", articles("https://a/1", "https://a/2", "https://a/3"))
	require.NoError(t, err)
	require.Equal(t, ingest.UpsertResult{Inserted: 2, Failed: 1}, res)
	require.Len(t, store.List("news"), 2)
}

func TestUpsertCollectionsAreIndependent(t *testing.T) {
	t.Parallel()

	w := NewWriter(memory.New(), nil, nil)
	_, err := w.Upsert(context.Background(), "news", articles("https://a/1"))
	require.NoError(t, err)
	res, err := w.Upsert(context.Background(), "articles", articles("https://a/1"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
}

func TestUpsertRejectsBadCollection(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(memory.New(), nil, nil).Upsert(context.Background(), "news; drop table x", articles("u"))
	require.Error(t, err)
}

func TestUpsertStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewWriter(memory.New(), nil, nil).Upsert(ctx, "news", articles("u"))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, res.Inserted)
}
