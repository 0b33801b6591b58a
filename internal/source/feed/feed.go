// Package feed adapts RSS and Atom feeds.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Adapter implements ingest.Source for one feed URL.
type Adapter struct {
	src     ingest.SourceConfig
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

// New builds an Adapter. timeout bounds the whole feed download.
func New(src ingest.SourceConfig, timeout time.Duration, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		src:     src,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("feed").With(zap.String("source", src.Key)),
	}
}

// Fetch parses the feed and returns at most limit entries.
func (a *Adapter) Fetch(ctx context.Context, limit int) ([]ingest.RawItem, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	parser := gofeed.NewParser()
	parser.Client = a.client
	if a.src.UserAgent != "" {
		parser.UserAgent = a.src.UserAgent
	}
	parsed, err := parser.ParseURLWithContext(a.src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.src.Key, err)
	}

	items := make([]ingest.RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if limit > 0 && len(items) == limit {
			break
		}
		if entry == nil || entry.Link == "" || strings.TrimSpace(entry.Title) == "" {
			continue
		}
		body := entry.Content
		if body == "" {
			body = entry.Description
		}
		published := ""
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC().Format(time.RFC3339)
		}
		items = append(items, ingest.RawItem{
			Title:       entry.Title,
			Link:        entry.Link,
			RawBody:     body,
			PublishedAt: published,
			ExternalID:  entry.GUID,
			Author:      a.src.Name,
		})
	}
	a.logger.Info("feed parsed", zap.String("title", parsed.Title), zap.Int("items", len(items)))
	return items, nil
}
