package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Test Feed</title>
  <item>
    <title>First</title>
    <link>https://news.example.com/1</link>
    <guid>g1</guid>
    <description>short description</description>
    <content:encoded><![CDATA[<p>full body</p>]]></content:encoded>
    <pubDate>Mon, 19 Jan 2026 08:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second</title>
    <link>https://news.example.com/2</link>
    <description>only description</description>
  </item>
  <item>
    <title>Third</title>
    <link>https://news.example.com/3</link>
  </item>
</channel>
</rss>`

func TestFetch(t *testing.T) {
	t.Parallel()

	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer srv.Close()

	src := ingest.SourceConfig{Key: "bbc", Name: "BBC中文", URL: srv.URL, UserAgent: "reader-test"}
	items, err := New(src, 5*time.Second, nil).Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "reader-test", ua)

	require.Equal(t, "First", items[0].Title)
	require.Equal(t, "<p>full body</p>", items[0].RawBody)
	require.Equal(t, "2026-01-19T08:00:00Z", items[0].PublishedAt)
	require.Equal(t, "g1", items[0].ExternalID)
	require.Equal(t, "BBC中文", items[0].Author)

	require.Equal(t, "only description", items[1].RawBody)
	require.Empty(t, items[1].PublishedAt)
}

func TestFetchSkipsUntitledEntries(t *testing.T) {
	t.Parallel()

	const body = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Wire</title>
<item><title>  </title><link>https://news.example.com/untitled</link></item>
<item><link>https://news.example.com/bare</link><description>no title</description></item>
<item><title>Kept</title><link>https://news.example.com/kept</link></item>
<item><title>Also kept</title><link>https://news.example.com/also</link></item>
</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	items, err := New(ingest.SourceConfig{Key: "wire", URL: srv.URL}, 5*time.Second, nil).Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "https://news.example.com/kept", items[0].Link)
	require.Equal(t, "https://news.example.com/also", items[1].Link)
}

func TestFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	items, err := New(ingest.SourceConfig{Key: "x", URL: srv.URL}, time.Second, nil).Fetch(context.Background(), 5)
	require.Error(t, err)
	require.Empty(t, items)
}
