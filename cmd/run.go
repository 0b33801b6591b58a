package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/app"
	"github.com/StanHuanng/anthropo-reader/internal/config"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/output"
	"github.com/StanHuanng/anthropo-reader/internal/pipeline"
	"github.com/StanHuanng/anthropo-reader/internal/report"
)

var runBindings = bindings{
	"run.sources":          "sources",
	"run.pages":            "pages",
	"run.limit":            "limit",
	"run.category":         "category",
	"run.collection":       "collection",
	"run.output":           "output",
	"run.format":           "format",
	"run.upload":           "upload",
	"run.ai":               "ai",
	"run.parallel_sources": "parallel",
	"run.lock_file":        "lock-file",
	"llm.api_key":          "llm-api-key",
	"sink.kind":            "sink",
	"sink.url":             "sink-url",
	"sink.key":             "sink-key",
	"sink.dsn":             "sink-dsn",
	"metrics.push_url":     "push-url",
}

// newRunCmd creates the 'run' subcommand: one batch crawl from fetch to upsert.
func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl the selected sources once",
		Long: `Fetches every selected source, normalizes and deduplicates the records,
optionally enriches them with AI summaries, then writes them to --output
(or stdout when not uploading) and upserts them when --upload is set.

Exits non-zero when nothing was crawled or the upload credentials are missing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags(), runBindings)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runOnce(cmd.Context(), opts, cfg, logger)
		},
	}
	f := cmd.Flags()
	f.StringSlice("sources", nil, "source keys to crawl (default: all configured)")
	f.Int("pages", 3, "maximum listing pages per session source")
	f.Int("limit", 20, "maximum articles per source")
	f.Int("category", -1, "listing category code for session sources (-1 keeps each source's own)")
	f.String("collection", "", "override the target collection of every source")
	f.String("output", "", "write records to a file or gs://bucket/object")
	f.String("format", "json", "record format: json or yaml")
	f.Bool("upload", false, "upsert records into the configured sink")
	f.Bool("ai", false, "add AI summaries")
	f.Bool("parallel", false, "run sources concurrently")
	f.String("lock-file", "", "refuse to start while another run holds this lock")
	f.String("llm-api-key", "", "API key of the summary endpoint (env SILICONFLOW_API_KEY)")
	f.String("sink", config.SinkSupabase, "sink kind: supabase, postgres, sqlite or memory")
	f.String("sink-url", "", "Supabase project URL (env SUPABASE_URL)")
	f.String("sink-key", "", "Supabase API key (env SUPABASE_KEY)")
	f.String("sink-dsn", "", "Postgres DSN for the postgres sink")
	f.String("push-url", "", "Prometheus pushgateway URL")
	return cmd
}

func runOnce(ctx context.Context, opts *rootOptions, cfg config.Config, logger *zap.Logger) error {
	start := time.Now()
	if cfg.Run.LockFile != "" {
		lock := flock.New(cfg.Run.LockFile)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another run holds %s", cfg.Run.LockFile)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("failed to release run lock", zap.Error(err))
			}
		}()
	}

	sources, err := cfg.Selected()
	if err != nil {
		return err
	}
	a := app.New(cfg, nil, logger)
	defer a.Close()

	units, err := a.Units(sources)
	if err != nil {
		return err
	}
	runner := a.Runner(units)

	batch, err := runner.Collect(ctx)
	if errors.Is(err, pipeline.ErrNoItems) {
		printReport(opts, batch, start, logger)
		return fmt.Errorf("crawl yielded no items")
	}
	if err != nil {
		return err
	}
	articles := batch.Articles()

	if err := writeOutput(ctx, opts, cfg, articles, logger); err != nil {
		return err
	}

	var uploadErr error
	if cfg.Run.Upload {
		uploadErr = upload(ctx, a, runner, batch)
	}
	printReport(opts, batch, start, logger)

	if err := a.Recorder().Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}
	return uploadErr
}

// writeOutput sends records to --output when given, else to stdout unless uploading.
func writeOutput(ctx context.Context, opts *rootOptions, cfg config.Config, articles []ingest.Article, logger *zap.Logger) error {
	target := cfg.Run.Output
	if target == "" && cfg.Run.Upload {
		return nil
	}
	dest, closeDest, err := output.Resolve(ctx, target, opts.stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDest(); err != nil {
			logger.Warn("close output failed", zap.Error(err))
		}
	}()
	loc, err := output.Write(ctx, dest, cfg.Run.Format, articles)
	if err != nil {
		return err
	}
	if target != "" {
		logger.Info("records written", zap.String("location", loc), zap.Int("count", len(articles)))
	}
	return nil
}

func upload(ctx context.Context, a *app.App, runner *pipeline.Runner, batch *pipeline.Batch) error {
	s, err := a.Sink(ctx)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingCredentials) {
			return fmt.Errorf("upload skipped: %w", err)
		}
		return err
	}
	defer func() { _ = s.Close() }()
	return runner.Store(ctx, s, batch)
}

func printReport(opts *rootOptions, batch *pipeline.Batch, start time.Time, logger *zap.Logger) {
	if batch == nil {
		return
	}
	rows := make([]report.Row, 0, len(batch.Sources))
	for _, src := range batch.Sources {
		row := report.Row{Source: src.Key, Collection: src.Collection, Fetched: src.Fetched, Articles: src.Articles}
		if src.Err != nil {
			row.Error = src.Err.Error()
		}
		rows = append(rows, row)
	}
	err := report.Print(opts.stderr, report.Summary{
		RunID:    batch.RunID,
		Rows:     rows,
		Counts:   batch.Counts,
		Duration: time.Since(start),
	})
	if err != nil {
		logger.Warn("report failed", zap.Error(err))
	}
}
