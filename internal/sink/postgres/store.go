// Package postgres stores articles in Postgres tables, one table per collection.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/sink"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"title", "summary", "content", "source", "source_url", "author", "category", "priority",
	"tags", "published_at", "fetched_at", "ai_summary", "is_favorited",
}

// Store implements sink.Store on a pgx pool.
type Store struct {
	pool queryExecCloser
}

// New connects to Postgres.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn: %w", ingest.ErrMissingCredentials)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool queryExecCloser) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// EnsureTable creates the collection table when missing.
func (s *Store) EnsureTable(ctx context.Context, collection string) error {
	if err := sink.ValidateCollection(collection); err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	summary TEXT,
	content TEXT,
	source TEXT,
	source_url TEXT NOT NULL UNIQUE,
	author TEXT,
	category TEXT,
	priority TEXT,
	tags TEXT[],
	published_at TEXT,
	fetched_at TIMESTAMPTZ,
	ai_summary TEXT,
	is_favorited BOOLEAN NOT NULL DEFAULT FALSE
)`, collection)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", collection, err)
	}
	return nil
}

// Exists looks the source URL up in the collection table.
func (s *Store) Exists(ctx context.Context, collection, sourceURL string) (bool, error) {
	query, args, err := psql.Select("id").From(collection).Where(sq.Eq{"source_url": sourceURL}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("select %s: %w", collection, err)
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("select %s: %w", collection, err)
	}
	return found, nil
}

// Insert writes one row.
func (s *Store) Insert(ctx context.Context, collection string, a ingest.Article) error {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	query, args, err := psql.Insert(collection).Columns(columns...).Values(
		a.Title, a.Summary, a.Content, a.Source, a.SourceURL, a.Author, a.Category, string(a.Priority),
		tags, a.PublishedAt, a.FetchedAt, a.AISummary, a.IsFavorited,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
