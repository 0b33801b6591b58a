// Package sqlite stores articles in a local SQLite file through gorm.
package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/sink"
)

type row struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Summary     string
	Content     string
	Source      string
	SourceURL   string `gorm:"column:source_url;not null"`
	Author      string
	Category    string
	Priority    string
	Tags        []string `gorm:"serializer:json"`
	PublishedAt string
	FetchedAt   time.Time
	AISummary   *string `gorm:"column:ai_summary"`
	IsFavorited bool
}

func fromArticle(a ingest.Article) row {
	return row{
		Title:       a.Title,
		Summary:     a.Summary,
		Content:     a.Content,
		Source:      a.Source,
		SourceURL:   a.SourceURL,
		Author:      a.Author,
		Category:    a.Category,
		Priority:    string(a.Priority),
		Tags:        a.Tags,
		PublishedAt: a.PublishedAt,
		FetchedAt:   a.FetchedAt,
		AISummary:   a.AISummary,
		IsFavorited: a.IsFavorited,
	}
}

func (r row) article() ingest.Article {
	return ingest.Article{
		Title:       r.Title,
		Summary:     r.Summary,
		Content:     r.Content,
		Source:      r.Source,
		SourceURL:   r.SourceURL,
		Author:      r.Author,
		Category:    r.Category,
		Priority:    ingest.Priority(r.Priority),
		Tags:        r.Tags,
		PublishedAt: r.PublishedAt,
		FetchedAt:   r.FetchedAt,
		AISummary:   r.AISummary,
		IsFavorited: r.IsFavorited,
	}
}

// Store implements sink.Store on a SQLite database.
type Store struct {
	db       *gorm.DB
	mu       sync.Mutex
	migrated map[string]bool
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &Store{db: db, migrated: make(map[string]bool)}, nil
}

func (s *Store) table(ctx context.Context, collection string) (*gorm.DB, error) {
	if err := sink.ValidateCollection(collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.migrated[collection] {
		if err := s.db.WithContext(ctx).Table(collection).AutoMigrate(&row{}); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", collection, err)
		}
		// Index names are database-wide in SQLite, so each collection gets its own.
		ddl := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_source_url ON %s (source_url)", collection, collection)
		if err := s.db.WithContext(ctx).Exec(ddl).Error; err != nil {
			return nil, fmt.Errorf("index %s: %w", collection, err)
		}
		s.migrated[collection] = true
	}
	return s.db.WithContext(ctx).Table(collection), nil
}

// Exists reports whether sourceURL is stored in collection.
func (s *Store) Exists(ctx context.Context, collection, sourceURL string) (bool, error) {
	tx, err := s.table(ctx, collection)
	if err != nil {
		return false, err
	}
	var n int64
	if err := tx.Where("source_url = ?", sourceURL).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count %s: %w", collection, err)
	}
	return n > 0, nil
}

// Insert writes one row.
func (s *Store) Insert(ctx context.Context, collection string, a ingest.Article) error {
	tx, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	r := fromArticle(a)
	if err := tx.Create(&r).Error; err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

// List returns the collection ordered by insertion.
func (s *Store) List(ctx context.Context, collection string) ([]ingest.Article, error) {
	tx, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}
	var rows []row
	if err := tx.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]ingest.Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.article())
	}
	return out, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	return sqlDB.Close()
}
