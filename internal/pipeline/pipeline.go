// Package pipeline drives source adapters and pushes their merged output through normalization,
// deduplication, enrichment and the sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/StanHuanng/anthropo-reader/internal/dedup"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/metrics"
)

// ErrNoItems is returned by Collect when no source produced a single article.
var ErrNoItems = errors.New("no items collected")

// Normalizer turns one source's raw items into articles.
type Normalizer interface {
	Normalize(items []ingest.RawItem, limit int) []ingest.Article
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Unit is one configured source ready to run.
type Unit struct {
	Config     ingest.SourceConfig
	Source     ingest.Source
	Normalizer Normalizer
	Hint       ingest.ContentHint
}

// Options tunes a run.
type Options struct {
	// Limit caps the articles taken from each source.
	Limit int
	// Parallel runs the adapters concurrently; output order still follows the unit order.
	Parallel bool
}

// SourceResult summarizes one adapter's contribution.
type SourceResult struct {
	Key        string
	Collection string
	Fetched    int
	Articles   int
	Err        error
}

// Entry is an article together with where it goes and how it is summarized.
type Entry struct {
	Collection string
	Hint       ingest.ContentHint
	Article    ingest.Article
}

// Batch is the merged result of one run.
type Batch struct {
	RunID   string
	Entries []Entry
	Sources []SourceResult
	Counts  ingest.StageCounts
}

// Articles returns the merged articles in output order.
func (b *Batch) Articles() []ingest.Article {
	out := make([]ingest.Article, 0, len(b.Entries))
	for _, e := range b.Entries {
		out = append(out, e.Article)
	}
	return out
}

// Runner executes the stages over a fixed set of units.
type Runner struct {
	units    []Unit
	enricher ingest.Enricher
	recorder *metrics.Recorder
	ids      IDGenerator
	opts     Options
	logger   *zap.Logger
}

// New builds a Runner. A nil enricher skips enrichment; a nil recorder disables metrics.
func New(units []Unit, enricher ingest.Enricher, recorder *metrics.Recorder, ids IDGenerator, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		units:    units,
		enricher: enricher,
		recorder: recorder,
		ids:      ids,
		opts:     opts,
		logger:   logger.Named("pipeline"),
	}
}

type unitOutput struct {
	result  SourceResult
	entries []Entry
}

// Collect fetches every unit, merges the articles in unit order, collapses duplicates and
// enriches the survivors. Source failures are recorded per source and never abort the run.
func (r *Runner) Collect(ctx context.Context) (*Batch, error) {
	runID := ""
	if r.ids != nil {
		id, err := r.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		runID = id
	}
	b := &Batch{RunID: runID}
	logger := r.logger.With(zap.String("run_id", runID))

	outputs := make([]unitOutput, len(r.units))
	if r.opts.Parallel && len(r.units) > 1 {
		var mu sync.Mutex
		var g errgroup.Group
		for i, u := range r.units {
			g.Go(func() error {
				out := r.fetch(ctx, u, logger)
				mu.Lock()
				outputs[i] = out
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, u := range r.units {
			outputs[i] = r.fetch(ctx, u, logger)
		}
	}

	var entries []Entry
	for _, out := range outputs {
		b.Sources = append(b.Sources, out.result)
		b.Counts.Fetched += out.result.Fetched
		if dropped := out.result.Fetched - out.result.Articles; dropped > 0 {
			b.Counts.Filtered += dropped
		}
		entries = append(entries, out.entries...)
	}
	b.Entries = dedup.By(entries, entryKey)
	b.Counts.Articles = len(b.Entries)
	if merged := len(entries) - len(b.Entries); merged > 0 {
		logger.Info("collapsed duplicate articles", zap.Int("count", merged))
	}
	if len(b.Entries) == 0 {
		return b, ErrNoItems
	}
	if err := ctx.Err(); err != nil {
		return b, fmt.Errorf("collect: %w", err)
	}

	if r.enricher != nil {
		b.Counts.Enriched = r.enrich(ctx, b.Entries)
	}
	logger.Info("collect finished",
		zap.Int("fetched", b.Counts.Fetched),
		zap.Int("articles", b.Counts.Articles),
		zap.Int("enriched", b.Counts.Enriched))
	return b, nil
}

func entryKey(e Entry) string {
	if e.Article.SourceURL == "" {
		return ""
	}
	return e.Collection + "\x00" + e.Article.SourceURL
}

func (r *Runner) fetch(ctx context.Context, u Unit, logger *zap.Logger) unitOutput {
	logger = logger.With(zap.String("source", u.Config.Key))
	start := time.Now()
	items, err := u.Source.Fetch(ctx, r.opts.Limit)
	if err != nil {
		logger.Warn("source failed", zap.Int("items", len(items)), zap.Error(err))
	}
	articles := u.Normalizer.Normalize(items, r.opts.Limit)
	r.recorder.ObserveSource(u.Config.Key, u.Config.URL, len(items), err, time.Since(start))
	r.recorder.ObserveNormalized(u.Config.Key, len(articles))
	logger.Info("source done", zap.Int("fetched", len(items)), zap.Int("articles", len(articles)))

	out := unitOutput{
		result: SourceResult{
			Key:        u.Config.Key,
			Collection: u.Config.Collection,
			Fetched:    len(items),
			Articles:   len(articles),
			Err:        err,
		},
		entries: make([]Entry, 0, len(articles)),
	}
	for _, a := range articles {
		out.entries = append(out.entries, Entry{Collection: u.Config.Collection, Hint: u.Hint, Article: a})
	}
	return out
}

// enrich runs the enricher once per hint, in first-seen order, writing results back in place.
func (r *Runner) enrich(ctx context.Context, entries []Entry) int {
	var hints []ingest.ContentHint
	groups := make(map[ingest.ContentHint][]int)
	for i, e := range entries {
		if _, ok := groups[e.Hint]; !ok {
			hints = append(hints, e.Hint)
		}
		groups[e.Hint] = append(groups[e.Hint], i)
	}
	total := 0
	for _, hint := range hints {
		idx := groups[hint]
		batch := make([]ingest.Article, len(idx))
		for j, i := range idx {
			batch[j] = entries[i].Article
		}
		n := r.enricher.Enrich(ctx, batch, hint)
		for j, i := range idx {
			entries[i].Article = batch[j]
		}
		r.recorder.ObserveEnrich(hint, n)
		total += n
	}
	return total
}

// Store upserts the batch one collection at a time and folds the outcomes into b.Counts.
// A collection-level error is logged and joined into the returned error; remaining collections
// are still attempted unless the context is done.
func (r *Runner) Store(ctx context.Context, sink ingest.Sink, b *Batch) error {
	var order []string
	groups := make(map[string][]ingest.Article)
	for _, e := range b.Entries {
		if _, ok := groups[e.Collection]; !ok {
			order = append(order, e.Collection)
		}
		groups[e.Collection] = append(groups[e.Collection], e.Article)
	}

	var errs []error
	for _, collection := range order {
		res, err := sink.Upsert(ctx, collection, groups[collection])
		b.Counts.Inserted += res.Inserted
		b.Counts.Skipped += res.Skipped
		b.Counts.Failed += res.Failed
		r.recorder.ObserveUpsert(collection, res)
		if err != nil {
			r.logger.Error("upsert failed", zap.String("collection", collection), zap.Error(err))
			errs = append(errs, fmt.Errorf("upsert %s: %w", collection, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}
