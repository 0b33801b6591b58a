// Package sink persists articles idempotently, keyed by source URL within a collection.
package sink

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

var validCollection = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateCollection rejects names that cannot be used as a table identifier.
func ValidateCollection(name string) error {
	if !validCollection.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// Store is the per-row contract each backend provides.
type Store interface {
	Exists(ctx context.Context, collection, sourceURL string) (bool, error)
	Insert(ctx context.Context, collection string, article ingest.Article) error
	Close() error
}

// Writer turns a Store into an ingest.Sink: check, insert, then notify.
type Writer struct {
	store    Store
	notifier ingest.Notifier
	logger   *zap.Logger
}

// NewWriter wraps store. A nil notifier disables notifications.
func NewWriter(store Store, notifier ingest.Notifier, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, notifier: notifier, logger: logger.Named("sink")}
}

// Upsert inserts every article whose source URL is not yet stored. Per-article failures are
// counted and logged; only context cancellation stops the batch early.
func (w *Writer) Upsert(ctx context.Context, collection string, articles []ingest.Article) (ingest.UpsertResult, error) {
	var res ingest.UpsertResult
	if err := ValidateCollection(collection); err != nil {
		return res, err
	}
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("upsert %s: %w", collection, err)
		}
		exists, err := w.store.Exists(ctx, collection, a.SourceURL)
		if err != nil {
			res.Failed++
			w.logger.Warn("existence check failed", zap.String("collection", collection), zap.String("url", a.SourceURL), zap.Error(err))
			continue
		}
		if exists {
			res.Skipped++
			w.logger.Debug("already stored", zap.String("url", a.SourceURL))
			continue
		}
		if err := w.store.Insert(ctx, collection, a); err != nil {
			res.Failed++
			w.logger.Warn("insert failed", zap.String("collection", collection), zap.String("url", a.SourceURL), zap.Error(err))
			continue
		}
		res.Inserted++
		if w.notifier != nil {
			if err := w.notifier.Notify(ctx, collection, a); err != nil {
				w.logger.Warn("notify failed", zap.String("url", a.SourceURL), zap.Error(err))
			}
		}
	}
	w.logger.Info("upsert finished",
		zap.String("collection", collection),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

// Close releases the underlying store.
func (w *Writer) Close() error {
	return w.store.Close()
}
