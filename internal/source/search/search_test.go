package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/StanHuanng/anthropo-reader/internal/fetcher/colly"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/normalize"
)

type fixedClock struct{ at time.Time }

func (f fixedClock) Now() time.Time { return f.at }

var now = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

func TestQuery(t *testing.T) {
	t.Parallel()

	q := Query(ingest.SearchOptions{MinStars: 100, CreatedWithinDays: 30, Language: "Go", Query: "topic:llm"}, now)
	require.Equal(t, "created:>2026-01-01 stars:>100 language:Go topic:llm", q)
	require.Equal(t, "stars:>0", Query(ingest.SearchOptions{}, now))
}

func TestPerPage(t *testing.T) {
	t.Parallel()

	require.Equal(t, 60, PerPage(20, 3))
	require.Equal(t, 30, PerPage(10, 0))
	require.Equal(t, 100, PerPage(50, 3))
}

func TestFetch(t *testing.T) {
	t.Parallel()

	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"items":[
			{"name":"kit","description":"LLM kit","html_url":"https://github.com/o/kit","stargazers_count":1500,
			 "forks_count":20,"open_issues_count":3,"language":"Go","created_at":"2026-01-20T00:00:00Z",
			 "updated_at":"2026-01-30T00:00:00Z","owner":{"login":"o","html_url":"https://github.com/o"}},
			{"name":"","html_url":"https://github.com/o/blank"}
		]}`))
	}))
	defer srv.Close()

	src := ingest.SourceConfig{Key: "gh", Kind: ingest.KindSearch, URL: srv.URL, Search: ingest.SearchOptions{MinStars: 100, CreatedWithinDays: 30}}
	a := New(src, collyfetcher.New(collyfetcher.Config{}), fixedClock{now}, nil)

	items, err := a.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "15", query.Get("per_page"))
	require.Equal(t, "stars", query.Get("sort"))
	require.Equal(t, "desc", query.Get("order"))
	require.Equal(t, "created:>2026-01-01 stars:>100", query.Get("q"))

	it := items[0]
	require.Equal(t, "kit", it.Title)
	require.Equal(t, "LLM kit", it.RawBody)
	require.Equal(t, "o", it.Author)
	require.Equal(t, "1500", it.Metadata[normalize.MetaStars])
	require.Equal(t, "https://github.com/o", it.Metadata[normalize.MetaOwnerURL])
}

func TestFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := ingest.SourceConfig{Key: "gh", URL: srv.URL}
	items, err := New(src, collyfetcher.New(collyfetcher.Config{}), fixedClock{now}, nil).Fetch(context.Background(), 5)
	require.Error(t, err)
	require.Empty(t, items)
}
