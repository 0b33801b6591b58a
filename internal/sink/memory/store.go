// Package memory provides an in-memory article store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Store keeps articles per collection, keyed by source URL.
type Store struct {
	mu    sync.RWMutex
	rows  map[string]map[string]ingest.Article
	order map[string][]string
	// FailInsert, when set, makes Insert fail for matching URLs.
	FailInsert func(sourceURL string) error
}

// New constructs a Store.
func New() *Store {
	return &Store{
		rows:  make(map[string]map[string]ingest.Article),
		order: make(map[string][]string),
	}
}

// Exists reports whether the collection already holds sourceURL.
func (s *Store) Exists(_ context.Context, collection, sourceURL string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[collection][sourceURL]
	return ok, nil
}

// Insert stores the article. Inserting an existing URL overwrites it.
func (s *Store) Insert(_ context.Context, collection string, article ingest.Article) error {
	if s.FailInsert != nil {
		if err := s.FailInsert(article.SourceURL); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.rows[collection]
	if !ok {
		table = make(map[string]ingest.Article)
		s.rows[collection] = table
	}
	if _, exists := table[article.SourceURL]; !exists {
		s.order[collection] = append(s.order[collection], article.SourceURL)
	}
	article.Layout = nil
	table[article.SourceURL] = article
	return nil
}

// List returns the collection in insertion order.
func (s *Store) List(collection string) []ingest.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ingest.Article, 0, len(s.order[collection]))
	for _, url := range s.order[collection] {
		out = append(out, s.rows[collection][url])
	}
	return out
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
