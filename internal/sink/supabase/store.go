// Package supabase stores articles through the PostgREST interface of a Supabase project.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/sink"
)

const defaultTimeout = 15 * time.Second

// Config holds the project URL and API key.
type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// Store implements sink.Store against /rest/v1.
type Store struct {
	base       string
	key        string
	httpClient *http.Client
}

// New validates credentials and builds a store. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Store, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	key := strings.TrimSpace(cfg.Key)
	if base == "" || key == "" {
		return nil, fmt.Errorf("supabase url and key: %w", ingest.ErrMissingCredentials)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Store{base: base, key: key, httpClient: httpClient}, nil
}

type statusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s: http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

func (s *Store) endpoint(collection string) string {
	return s.base + "/rest/v1/" + collection
}

func (s *Store) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build supabase request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Exists selects at most one id with a matching source_url.
func (s *Store) Exists(ctx context.Context, collection, sourceURL string) (bool, error) {
	if err := sink.ValidateCollection(collection); err != nil {
		return false, err
	}
	q := url.Values{}
	q.Set("select", "id")
	q.Set("source_url", "eq."+sourceURL)
	q.Set("limit", "1")
	req, err := s.newRequest(ctx, http.MethodGet, s.endpoint(collection)+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("supabase select: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("read supabase select: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, &statusError{Op: "select", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return false, fmt.Errorf("decode supabase select: %w", err)
	}
	return len(rows) > 0, nil
}

// Insert posts one row.
func (s *Store) Insert(ctx context.Context, collection string, a ingest.Article) error {
	if err := sink.ValidateCollection(collection); err != nil {
		return err
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode article: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPost, s.endpoint(collection), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase insert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &statusError{Op: "insert", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
