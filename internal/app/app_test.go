package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/clock/system"
	"github.com/StanHuanng/anthropo-reader/internal/config"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/source/feed"
	"github.com/StanHuanng/anthropo-reader/internal/source/search"
	"github.com/StanHuanng/anthropo-reader/internal/source/session"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Run:        config.RunConfig{Pages: 2, Limit: 5, Category: -1, Format: "json"},
		HTTP:       config.HTTPConfig{TimeoutSeconds: 5, DetailTimeoutSeconds: 5},
		Politeness: config.PolitenessConfig{MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Enrich:     config.EnrichConfig{Concurrency: 1, MinContentLength: 100, Splice: true},
		LLM:        config.LLMConfig{TimeoutSeconds: 5},
		Sink:       config.SinkConfig{Kind: config.SinkMemory},
		Notify:     config.NotifyConfig{Kind: "none"},
		Lexicons:   config.DefaultLexicons(),
		Sources:    config.DefaultSources(),
		UserAgents: config.DefaultUserAgents(),
	}
}

func TestHintFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, ingest.HintNotice, HintFor(ingest.SourceConfig{Kind: ingest.KindSession}))
	require.Equal(t, ingest.HintGitHubProject, HintFor(ingest.SourceConfig{Kind: ingest.KindSearch}))
	require.Equal(t, ingest.HintNews, HintFor(ingest.SourceConfig{Kind: ingest.KindFeed}))
	require.Equal(t, ingest.HintNewsForeign, HintFor(ingest.SourceConfig{Kind: ingest.KindFeed, Hint: "news-foreign"}))
}

func TestUnitsBuildsAdapterPerKind(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := New(cfg, system.Fixed{At: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}, nil)
	units, err := a.Units(cfg.Sources)
	require.NoError(t, err)
	require.Len(t, units, len(cfg.Sources))

	for _, u := range units {
		switch u.Config.Kind {
		case ingest.KindSession:
			require.IsType(t, &session.Adapter{}, u.Source)
		case ingest.KindSearch:
			require.IsType(t, &search.Adapter{}, u.Source)
		case ingest.KindFeed:
			require.IsType(t, &feed.Adapter{}, u.Source)
		}
		require.NotNil(t, u.Normalizer)
		require.NotEmpty(t, u.Hint)
	}
}

func TestUnitsAppliesCollectionOverride(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Run.Collection = "staging_articles"
	units, err := New(cfg, nil, nil).Units(cfg.Sources[:2])
	require.NoError(t, err)
	for _, u := range units {
		require.Equal(t, "staging_articles", u.Config.Collection)
	}
}

func TestUnitsRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	_, err := New(cfg, nil, nil).Units([]ingest.SourceConfig{{Key: "x", Kind: "ftp", Collection: "c"}})
	require.Error(t, err)
}

func TestEnricherSelection(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.Nil(t, New(cfg, nil, nil).Enricher(), "AI off")

	cfg.Run.AI = true
	cfg.LLM.APIKey = ""
	require.Nil(t, New(cfg, nil, nil).Enricher(), "missing key disables enrichment")

	cfg.LLM.APIKey = "sk-test"
	require.NotNil(t, New(cfg, nil, nil).Enricher())

	cfg.Enrich.Concurrency = 4
	require.NotNil(t, New(cfg, nil, nil).Enricher())
}

func TestStoreSelection(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	store, err := New(cfg, nil, nil).Store(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfg.Sink = config.SinkConfig{Kind: config.SinkSupabase}
	_, err = New(cfg, nil, nil).Store(context.Background())
	require.ErrorIs(t, err, ingest.ErrMissingCredentials)

	cfg.Sink = config.SinkConfig{Kind: config.SinkPostgres}
	_, err = New(cfg, nil, nil).Store(context.Background())
	require.ErrorIs(t, err, ingest.ErrMissingCredentials)

	cfg.Sink = config.SinkConfig{Kind: config.SinkSQLite, Path: filepath.Join(t.TempDir(), "r.db")}
	store, err = New(cfg, nil, nil).Store(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestSinkWithMemoryNotifier(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Notify = config.NotifyConfig{Kind: "memory", Topic: "inserted"}
	a := New(cfg, nil, nil)
	defer a.Close()

	s, err := a.Sink(context.Background())
	require.NoError(t, err)
	res, err := s.Upsert(context.Background(), "news", []ingest.Article{{Title: "t", SourceURL: "https://n/1"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.NoError(t, s.Close())
}
