package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/StanHuanng/anthropo-reader/internal/fetcher/colly"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

type page struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	List    []map[string]any `json:"list"`
	Total   int              `json:"total"`
}

type fakeSite struct {
	mu          sync.Mutex
	pages       map[int]page
	searchCalls []int
	cookies     []string
	details     map[string]string
	srv         *httptest.Server
}

func newFakeSite(t *testing.T, pages map[int]page, details map[string]string) *fakeSite {
	t.Helper()
	site := &fakeSite{pages: pages, details: details}
	mux := http.NewServeMux()
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s1", Path: "/"})
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		n, _ := strconv.Atoi(r.PostForm.Get("pageNum"))
		cookie := ""
		if c, err := r.Cookie("JSESSIONID"); err == nil {
			cookie = c.Value
		}
		site.mu.Lock()
		site.searchCalls = append(site.searchCalls, n)
		site.cookies = append(site.cookies, cookie)
		p, ok := site.pages[n]
		site.mu.Unlock()
		if !ok {
			p = page{Success: true}
		}
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		body, ok := site.details[r.URL.Query().Get("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	site.srv = httptest.NewServer(mux)
	t.Cleanup(site.srv.Close)
	return site
}

func (s *fakeSite) calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.searchCalls...)
}

func (s *fakeSite) source(maxPages int) ingest.SourceConfig {
	return ingest.SourceConfig{
		Key:    "scut_jw",
		Kind:   ingest.KindSession,
		Author: "教务处",
		Session: ingest.SessionOptions{
			LandingURL:        s.srv.URL + "/landing",
			SearchURL:         s.srv.URL + "/search",
			DetailURLTemplate: s.srv.URL + "/detail?id={id}",
			Origin:            s.srv.URL,
			PageSize:          15,
			MaxPages:          maxPages,
		},
	}
}

func listOf(from, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, map[string]any{
			"id":         i,
			"title":      fmt.Sprintf("notice %d", i),
			"createTime": "26.01.16",
			"tag":        1,
		})
	}
	return out
}

func newAdapter(site *fakeSite, maxPages int) *Adapter {
	fetcher := collyfetcher.New(collyfetcher.Config{UserAgents: []string{"test-agent"}, Timeout: 5 * time.Second})
	return New(site.source(maxPages), fetcher, Options{Category: -1}, nil)
}

func TestFetchStopsWhenTotalReached(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t, map[int]page{
		1: {Success: true, List: listOf(1, 15), Total: 23},
		2: {Success: true, List: listOf(16, 8), Total: 23},
		3: {Success: true, List: listOf(100, 15), Total: 23},
	}, nil)
	items, err := newAdapter(site, 5).Fetch(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, site.calls())
	require.Len(t, items, 23)
}

func TestFetchStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t, map[int]page{
		1: {Success: true, List: listOf(1, 15), Total: 100},
		2: {Success: true, List: nil, Total: 100},
	}, nil)
	items, err := newAdapter(site, 5).Fetch(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, site.calls())
	require.Len(t, items, 15)
}

func TestFetchStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t, map[int]page{
		1: {Success: true, List: listOf(1, 15), Total: 100},
		2: {Success: true, List: listOf(16, 15), Total: 100},
	}, nil)
	_, err := newAdapter(site, 1).Fetch(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, []int{1}, site.calls())
}

func TestFetchKeepsItemsWhenUpstreamRejects(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t, map[int]page{
		1: {Success: true, List: listOf(1, 15), Total: 100},
		2: {Success: false, Message: "session expired"},
	}, nil)
	items, err := newAdapter(site, 5).Fetch(context.Background(), 50)
	require.ErrorIs(t, err, ErrUpstreamRejected)
	require.Len(t, items, 15)
	require.Equal(t, []int{1, 2}, site.calls())
}

func TestFetchSendsSessionCookie(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t, map[int]page{1: {Success: true, List: listOf(1, 2), Total: 2}}, nil)
	_, err := newAdapter(site, 3).Fetch(context.Background(), 10)
	require.NoError(t, err)
	site.mu.Lock()
	defer site.mu.Unlock()
	require.Equal(t, []string{"s1"}, site.cookies)
}

func TestFetchDedupsAndReadsDetails(t *testing.T) {
	t.Parallel()

	dup := listOf(1, 2)
	dup[1]["id"] = "1"
	dup[1]["title"] = "notice 1 revised"
	dup = append(dup, map[string]any{"id": 3, "title": "", "createTime": "26.01.10"})
	dup = append(dup, map[string]any{"id": 4, "title": "fourth", "createTime": "2026.01.09", "tag": "2"})

	site := newFakeSite(t,
		map[int]page{1: {Success: true, List: dup, Total: 4}},
		map[string]string{
			"1": `<html><body><span class="publish-date">2026-01-17</span><div class="article-content"><p>body one</p></div></body></html>`,
		})
	items, err := newAdapter(site, 3).Fetch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "1", items[0].ExternalID)
	require.Equal(t, "notice 1 revised", items[0].Title)
	require.Equal(t, "2026-01-17", items[0].PublishedAt)
	require.Contains(t, items[0].RawBody, "body one")
	require.Equal(t, "1", items[0].SourceCategoryCode)
	require.Equal(t, site.srv.URL+"/detail?id=1", items[0].Link)

	require.Equal(t, "fourth", items[1].Title)
	require.Empty(t, items[1].RawBody)
	require.Equal(t, "2026-01-09", items[1].PublishedAt)
	require.Equal(t, "2", items[1].SourceCategoryCode)
}

func TestFetchLimitsDetailRequests(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t, map[int]page{1: {Success: true, List: listOf(1, 10), Total: 10}}, nil)
	items, err := newAdapter(site, 1).Fetch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "1", items[0].ExternalID)
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2026-01-16", NormalizeDate("26.01.16"))
	require.Equal(t, "2026-01-16", NormalizeDate("2026.01.16"))
	require.Equal(t, "2026-01-16", NormalizeDate(" 2026-01-16 "))
	require.Empty(t, NormalizeDate(""))
}
