package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/StanHuanng/anthropo-reader/internal/clock/system"
	"github.com/StanHuanng/anthropo-reader/internal/metrics"
)

type captured struct {
	mu      sync.Mutex
	path    string
	method  string
	body    string
	headers http.Header
}

func newUpstream(t *testing.T, c *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path, c.method, c.body, c.headers = r.URL.Path, r.Method, string(raw), r.Header.Clone()
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		_, _ = io.WriteString(w, `{"success":true,"list":[],"total":0}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRelayForwardsNoticeSearch(t *testing.T) {
	t.Parallel()

	var c captured
	up := newUpstream(t, &c)
	srv := httptest.NewServer(NewServer(Config{Upstream: up.URL}, nil, metrics.New(), nil).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/findInformNotice.do", "application/x-www-form-urlencoded",
		strings.NewReader("category=0&pageNum=1&pageSize=15"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "application/json;charset=UTF-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true,"list":[],"total":0}`, string(body))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, noticePath, c.path)
	require.Equal(t, http.MethodPost, c.method)
	require.Equal(t, "category=0&pageNum=1&pageSize=15", c.body)
	require.Equal(t, "XMLHttpRequest", c.headers.Get("X-Requested-With"))
	require.Equal(t, up.URL+landingPath, c.headers.Get("Referer"))
	require.Contains(t, c.headers.Get("User-Agent"), "Chrome/120")
}

func TestRelayForwardsLandingPage(t *testing.T) {
	t.Parallel()

	var c captured
	up := newUpstream(t, &c)
	srv := httptest.NewServer(NewServer(Config{Upstream: up.URL}, nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/toPosts.do")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, landingPath, c.path)
	require.Empty(t, c.body)
}

func TestRelayPreflightAndUnknownPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(Config{Upstream: "http://127.0.0.1:1"}, nil, nil, nil).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/findInformNotice.do", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	require.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))

	resp, err = http.Get(srv.URL + "/elsewhere")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRelayReportsUpstreamFailure(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.NotFoundHandler())
	upURL := up.URL
	up.Close()

	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(NewServer(Config{Upstream: upURL, Timeout: time.Second}, system.Fixed{At: at}, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/findInformNotice.do", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "Proxy failed", payload["error"])
	require.NotEmpty(t, payload["message"])
	require.Equal(t, "2025-03-01T08:00:00Z", payload["timestamp"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(Config{}, nil, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
