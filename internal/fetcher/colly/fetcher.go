// Package collyfetcher issues HTTP requests through gocolly collectors, one cookie jar per session.
package collyfetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	// UserAgents is the rotation pool; one entry is picked per request.
	UserAgents []string
	Timeout    time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Response is the captured result of one request.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Fetcher hands out sessions sharing one transport.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	return &Fetcher{cfg: cfg, transport: transport}
}

// Session is a collector with its own cookie jar. Cookies set by one response are sent on the
// following requests of the same session only.
type Session struct {
	fetcher *Fetcher
	base    *colly.Collector
}

// NewSession starts a session with an empty cookie jar.
func (f *Fetcher) NewSession() *Session {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.Timeout)
	return &Session{fetcher: f, base: c}
}

// UserAgent picks one entry from the pool, or "" when the pool is empty.
func (f *Fetcher) UserAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return ""
	}
	return f.cfg.UserAgents[rand.IntN(len(f.cfg.UserAgents))]
}

// Get performs a GET request.
func (s *Session) Get(ctx context.Context, rawURL string, headers http.Header) (Response, error) {
	return s.do(ctx, http.MethodGet, rawURL, nil, headers)
}

// PostForm performs a form-encoded POST request.
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values, headers http.Header) (Response, error) {
	hdr := headers.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	return s.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), hdr)
}

func (s *Session) do(ctx context.Context, method, rawURL string, body io.Reader, headers http.Header) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	collector := s.base.Clone()
	configureCollectorHooks(collector, &result, &fetchErr)

	hdr := headers.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if hdr.Get("User-Agent") == "" {
		if ua := s.fetcher.UserAgent(); ua != "" {
			hdr.Set("User-Agent", ua)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, rawURL, body, nil, hdr)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("colly %s canceled: %w", method, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return result, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		if err != nil {
			return Response{}, fmt.Errorf("colly %s failed: %w", method, err)
		}
		return result, nil
	}
}

func configureCollectorHooks(hooks collectorHooks, result *Response, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			*result = Response{StatusCode: r.StatusCode, Body: append([]byte(nil), r.Body...)}
			if r.Request != nil && r.Request.URL != nil {
				result.URL = r.Request.URL.String()
			}
		}
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
