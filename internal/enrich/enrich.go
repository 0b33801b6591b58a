// Package enrich attaches AI summaries to articles without ever failing the batch.
package enrich

import (
	"context"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// DefaultFailureMarker is stored as ai_summary when marking failures is enabled.
const DefaultFailureMarker = "**AI 摘要生成失败**"

// Options tunes the orchestrator.
type Options struct {
	// MinContentLength skips articles whose content has this many characters or fewer.
	MinContentLength int
	// FailureMarker, when non-empty, is stored as the summary of articles whose call failed.
	FailureMarker string
	// Splice re-renders Content with the summary embedded when the article carries a Layout.
	Splice bool
}

// Orchestrator calls the summarizer for eligible articles under a throttle.
type Orchestrator struct {
	summarizer  ingest.Summarizer
	throttle    ingest.Throttle
	concurrency int
	opts        Options
	logger      *zap.Logger
}

// New builds an Orchestrator. With concurrency 1 calls are sequential and throttle is expected
// to be a politeness pacer; above 1 it should be a shared token bucket.
func New(summarizer ingest.Summarizer, throttle ingest.Throttle, concurrency int, opts Options, logger *zap.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		summarizer:  summarizer,
		throttle:    throttle,
		concurrency: concurrency,
		opts:        opts,
		logger:      logger,
	}
}

// Enrich summarizes articles in place and returns how many received a real summary. Failures
// only affect the article concerned.
func (o *Orchestrator) Enrich(ctx context.Context, articles []ingest.Article, hint ingest.ContentHint) int {
	var enriched atomic.Int64
	if o.concurrency == 1 {
		for i := range articles {
			if !o.eligible(articles[i]) {
				continue
			}
			if err := o.wait(ctx); err != nil {
				o.logger.Warn("enrichment stopped", zap.Error(err))
				break
			}
			if o.enrichOne(ctx, &articles[i], hint) {
				enriched.Add(1)
			}
		}
		return int(enriched.Load())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range articles {
		if !o.eligible(articles[i]) {
			continue
		}
		article := &articles[i]
		g.Go(func() error {
			if err := o.wait(gctx); err != nil {
				return nil
			}
			if o.enrichOne(gctx, article, hint) {
				enriched.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(enriched.Load())
}

func (o *Orchestrator) eligible(a ingest.Article) bool {
	return utf8.RuneCountInString(a.Content) > o.opts.MinContentLength
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.throttle == nil {
		return ctx.Err()
	}
	return o.throttle.Wait(ctx)
}

func (o *Orchestrator) enrichOne(ctx context.Context, a *ingest.Article, hint ingest.ContentHint) bool {
	summary, err := o.summarizer.Summarize(ctx, a.Content, hint)
	if err != nil || summary == "" {
		o.logger.Warn("ai summary failed",
			zap.String("url", a.SourceURL),
			zap.String("hint", string(hint)),
			zap.Error(err))
		if o.opts.FailureMarker != "" {
			marker := o.opts.FailureMarker
			a.AISummary = &marker
		}
		return false
	}
	a.AISummary = &summary
	if o.opts.Splice && a.Layout != nil {
		a.Content = a.Layout.Render(summary)
	}
	o.logger.Debug("ai summary attached", zap.String("url", a.SourceURL), zap.Int("chars", utf8.RuneCountInString(summary)))
	return true
}

// Disabled is the enricher used when AI summaries are switched off.
type Disabled struct{}

// Enrich leaves articles untouched.
func (Disabled) Enrich(context.Context, []ingest.Article, ingest.ContentHint) int { return 0 }
