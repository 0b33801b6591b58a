// Package app builds the long-lived services of one invocation from configuration and hands
// them to the pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/classify"
	"github.com/StanHuanng/anthropo-reader/internal/clock/system"
	"github.com/StanHuanng/anthropo-reader/internal/config"
	"github.com/StanHuanng/anthropo-reader/internal/enrich"
	collyfetcher "github.com/StanHuanng/anthropo-reader/internal/fetcher/colly"
	"github.com/StanHuanng/anthropo-reader/internal/id/uuid"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/llm"
	"github.com/StanHuanng/anthropo-reader/internal/metrics"
	"github.com/StanHuanng/anthropo-reader/internal/normalize"
	"github.com/StanHuanng/anthropo-reader/internal/pipeline"
	"github.com/StanHuanng/anthropo-reader/internal/policy/pace"
	"github.com/StanHuanng/anthropo-reader/internal/policy/ratelimit"
	"github.com/StanHuanng/anthropo-reader/internal/publisher"
	pubmemory "github.com/StanHuanng/anthropo-reader/internal/publisher/memory"
	gcppublisher "github.com/StanHuanng/anthropo-reader/internal/publisher/pubsub"
	"github.com/StanHuanng/anthropo-reader/internal/sink"
	sinkmemory "github.com/StanHuanng/anthropo-reader/internal/sink/memory"
	"github.com/StanHuanng/anthropo-reader/internal/sink/postgres"
	"github.com/StanHuanng/anthropo-reader/internal/sink/sqlite"
	"github.com/StanHuanng/anthropo-reader/internal/sink/supabase"
	"github.com/StanHuanng/anthropo-reader/internal/source/feed"
	"github.com/StanHuanng/anthropo-reader/internal/source/search"
	"github.com/StanHuanng/anthropo-reader/internal/source/session"
)

// App holds the shared services of one invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    ingest.Clock
	fetcher  *collyfetcher.Fetcher
	recorder *metrics.Recorder

	converter normalize.Converter
	closers   []func() error
}

// New wires the services that need no network access.
func New(cfg config.Config, clock ingest.Clock, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.Clock{}
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		clock:  clock,
		fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgents: cfg.UserAgents,
			Timeout:    cfg.HTTPTimeout(),
		}),
		recorder: metrics.New(),
	}
}

// Recorder returns the run's metrics recorder.
func (a *App) Recorder() *metrics.Recorder {
	return a.recorder
}

// HintFor resolves the summary template of a source, defaulting by kind.
func HintFor(src ingest.SourceConfig) ingest.ContentHint {
	if h := strings.TrimSpace(src.Hint); h != "" {
		return ingest.ContentHint(h)
	}
	switch src.Kind {
	case ingest.KindSession:
		return ingest.HintNotice
	case ingest.KindSearch:
		return ingest.HintGitHubProject
	default:
		return ingest.HintNews
	}
}

func (a *App) lexicon(name string) *classify.Lexicon {
	l := a.cfg.Lexicons[name]
	return classify.New(classify.Terms{
		High:                  l.High,
		Low:                   l.Low,
		DefaultHighCategories: l.DefaultHighCategories,
		Frontier:              l.Frontier,
		Exclude:               l.Exclude,
	})
}

// scriptConverter loads the OpenCC tables once; a load failure falls back to Identity.
func (a *App) scriptConverter() normalize.Converter {
	if a.converter != nil {
		return a.converter
	}
	cc, err := normalize.NewOpenCC()
	if err != nil {
		a.logger.Warn("script conversion unavailable", zap.Error(err))
		a.converter = normalize.Identity{}
		return a.converter
	}
	a.converter = cc
	return a.converter
}

// Units builds one pipeline unit per selected source. The run-level collection, when set,
// replaces every source's collection.
func (a *App) Units(sources []ingest.SourceConfig) ([]pipeline.Unit, error) {
	units := make([]pipeline.Unit, 0, len(sources))
	for _, src := range sources {
		if a.cfg.Run.Collection != "" {
			src.Collection = a.cfg.Run.Collection
		}
		var source ingest.Source
		switch src.Kind {
		case ingest.KindSession:
			source = session.New(src, a.fetcher, session.Options{
				MaxPages:      a.cfg.Run.Pages,
				Category:      a.cfg.Run.Category,
				MinDelay:      a.cfg.Politeness.MinDelay,
				MaxDelay:      a.cfg.Politeness.MaxDelay,
				DetailTimeout: a.cfg.DetailTimeout(),
				Clock:         a.clock,
			}, a.logger)
		case ingest.KindSearch:
			source = search.New(src, a.fetcher, a.clock, a.logger)
		case ingest.KindFeed:
			source = feed.New(src, a.cfg.HTTPTimeout(), a.logger)
		default:
			return nil, fmt.Errorf("source %s: unsupported kind %q", src.Key, src.Kind)
		}
		var conv normalize.Converter = normalize.Identity{}
		if src.ConvertScript {
			conv = a.scriptConverter()
		}
		units = append(units, pipeline.Unit{
			Config:     src,
			Source:     source,
			Normalizer: normalize.New(src, a.lexicon(src.Lexicon), conv, a.clock, a.logger),
			Hint:       HintFor(src),
		})
	}
	return units, nil
}

// Summarizer builds the LLM client from configuration.
func (a *App) Summarizer() (*llm.Client, error) {
	c := a.cfg.LLM
	client, err := llm.NewClient(llm.Config{
		Endpoint:      c.Endpoint,
		Model:         c.Model,
		APIKey:        c.APIKey,
		Temperature:   c.Temperature,
		MaxTokens:     c.MaxTokens,
		Timeout:       c.Timeout(),
		MaxInputChars: c.MaxInputChars,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	return client, nil
}

// Enricher returns the enrichment stage, or nil when AI is off. A missing API key disables
// enrichment with a warning instead of failing the run.
func (a *App) Enricher() ingest.Enricher {
	if !a.cfg.Run.AI {
		return nil
	}
	client, err := a.Summarizer()
	if err != nil {
		if errors.Is(err, ingest.ErrMissingCredentials) {
			a.logger.Warn("AI summaries disabled: no API key configured")
			return nil
		}
		a.logger.Warn("AI summaries disabled", zap.Error(err))
		return nil
	}
	e := a.cfg.Enrich
	var throttle ingest.Throttle
	if e.Concurrency > 1 {
		throttle = ratelimit.New(ratelimit.Config{
			DefaultRPS:   ratelimit.MeanRPS(e.MinDelay, e.MaxDelay),
			DefaultBurst: 1,
		}).For(client.Endpoint())
	} else {
		throttle = pace.New(e.MinDelay, e.MaxDelay)
	}
	marker := ""
	if e.FailureMarker {
		marker = enrich.DefaultFailureMarker
	}
	return enrich.New(client, throttle, e.Concurrency, enrich.Options{
		MinContentLength: e.MinContentLength,
		FailureMarker:    marker,
		Splice:           e.Splice,
	}, a.logger.Named("enrich"))
}

// Runner assembles the pipeline for the given units.
func (a *App) Runner(units []pipeline.Unit) *pipeline.Runner {
	return pipeline.New(units, a.Enricher(), a.recorder, uuid.NewUUIDGenerator(), pipeline.Options{
		Limit:    a.cfg.Run.Limit,
		Parallel: a.cfg.Run.ParallelSources,
	}, a.logger)
}

// Notifier builds the configured insert notifier; nil means notifications are off.
func (a *App) Notifier(ctx context.Context) (ingest.Notifier, error) {
	n := a.cfg.Notify
	switch n.Kind {
	case "", "none":
		return nil, nil
	case "memory":
		return publisher.NewNotifier(pubmemory.New(), n.Topic), nil
	case "pubsub":
		pub, err := gcppublisher.Dial(ctx, n.ProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		return publisher.NewNotifier(pub, n.Topic), nil
	default:
		return nil, fmt.Errorf("notify.kind %q is not supported", n.Kind)
	}
}

// Store opens the configured backing store. Missing credentials surface as
// ingest.ErrMissingCredentials.
func (a *App) Store(ctx context.Context) (sink.Store, error) {
	s := a.cfg.Sink
	switch s.Kind {
	case config.SinkSupabase:
		store, err := supabase.New(supabase.Config{URL: s.URL, Key: s.Key, Timeout: a.cfg.HTTPTimeout()}, nil)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.SinkPostgres:
		store, err := postgres.New(ctx, postgres.Config{DSN: s.DSN})
		if err != nil {
			return nil, err
		}
		return &ensuringStore{Store: store, ensured: map[string]bool{}}, nil
	case config.SinkSQLite:
		store, err := sqlite.Open(s.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.SinkMemory:
		return sinkmemory.New(), nil
	default:
		return nil, fmt.Errorf("sink.kind %q is not supported", s.Kind)
	}
}

// Sink opens the store and wraps it with the notifier.
func (a *App) Sink(ctx context.Context) (ingest.Sink, error) {
	store, err := a.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	notifier, err := a.Notifier(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open notifier: %w", err)
	}
	return sink.NewWriter(store, notifier, a.logger), nil
}

// Close releases services opened on demand.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// ensuringStore creates each Postgres collection table before its first use.
type ensuringStore struct {
	*postgres.Store
	ensured map[string]bool
}

func (e *ensuringStore) ensure(ctx context.Context, collection string) error {
	if e.ensured[collection] {
		return nil
	}
	if err := e.EnsureTable(ctx, collection); err != nil {
		return err
	}
	e.ensured[collection] = true
	return nil
}

func (e *ensuringStore) Exists(ctx context.Context, collection, sourceURL string) (bool, error) {
	if err := e.ensure(ctx, collection); err != nil {
		return false, err
	}
	return e.Store.Exists(ctx, collection, sourceURL)
}
