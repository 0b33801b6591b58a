// Package search adapts single-shot repository search APIs.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/StanHuanng/anthropo-reader/internal/fetcher/colly"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/normalize"
)

const (
	maxPerPage       = 100
	defaultOverFetch = 3
)

// Adapter implements ingest.Source with one search request per run.
type Adapter struct {
	src     ingest.SourceConfig
	fetcher *collyfetcher.Fetcher
	clock   ingest.Clock
	logger  *zap.Logger
}

// New builds an Adapter for src.
func New(src ingest.SourceConfig, fetcher *collyfetcher.Fetcher, clock ingest.Clock, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{src: src, fetcher: fetcher, clock: clock, logger: logger.Named("search").With(zap.String("source", src.Key))}
}

type searchResponse struct {
	Items []repository `json:"items"`
}

type repository struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	OpenIssuesCount int    `json:"open_issues_count"`
	Language        string `json:"language"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	Owner           struct {
		Login   string `json:"login"`
		HTMLURL string `json:"html_url"`
	} `json:"owner"`
}

// Query builds the search expression for the source at now.
func Query(opts ingest.SearchOptions, now time.Time) string {
	parts := make([]string, 0, 4)
	if opts.CreatedWithinDays > 0 {
		since := now.AddDate(0, 0, -opts.CreatedWithinDays).Format(time.DateOnly)
		parts = append(parts, "created:>"+since)
	}
	parts = append(parts, "stars:>"+strconv.Itoa(opts.MinStars))
	if opts.Language != "" {
		parts = append(parts, "language:"+opts.Language)
	}
	if extra := strings.TrimSpace(opts.Query); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " ")
}

// PerPage over-fetches so that exclusion filtering still leaves limit results.
func PerPage(limit, overFetch int) int {
	if overFetch <= 0 {
		overFetch = defaultOverFetch
	}
	if limit <= 0 {
		limit = 1
	}
	return min(maxPerPage, limit*overFetch)
}

// Fetch issues the search and returns every result unfiltered.
func (a *Adapter) Fetch(ctx context.Context, limit int) ([]ingest.RawItem, error) {
	params := url.Values{
		"q":        {Query(a.src.Search, a.clock.Now())},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {strconv.Itoa(PerPage(limit, a.src.Search.OverFetchFactor))},
	}
	endpoint := a.src.URL + "?" + params.Encode()
	hdr := http.Header{"Accept": {"application/vnd.github+json"}}
	if a.src.UserAgent != "" {
		hdr.Set("User-Agent", a.src.UserAgent)
	}

	resp, err := a.fetcher.NewSession().Get(ctx, endpoint, hdr)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", a.src.Key, err)
	}
	var decoded searchResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]ingest.RawItem, 0, len(decoded.Items))
	for _, repo := range decoded.Items {
		if repo.HTMLURL == "" || repo.Name == "" {
			continue
		}
		items = append(items, ingest.RawItem{
			Title:       repo.Name,
			Link:        repo.HTMLURL,
			RawBody:     repo.Description,
			PublishedAt: repo.CreatedAt,
			Author:      repo.Owner.Login,
			Metadata: map[string]string{
				normalize.MetaStars:      strconv.Itoa(repo.StargazersCount),
				normalize.MetaForks:      strconv.Itoa(repo.ForksCount),
				normalize.MetaOpenIssues: strconv.Itoa(repo.OpenIssuesCount),
				normalize.MetaLanguage:   repo.Language,
				normalize.MetaUpdatedAt:  repo.UpdatedAt,
				normalize.MetaOwnerURL:   repo.Owner.HTMLURL,
			},
		})
	}
	a.logger.Info("search finished", zap.Int("items", len(items)))
	return items, nil
}
