// Package ingest defines the core types shared across the ingestion pipeline.
package ingest

import (
	"errors"
	"time"
)

// Priority labels how urgently a reader should look at an article.
type Priority string

// Priority values persisted in the store.
const (
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// SourceKind selects the adapter used to fetch a source.
type SourceKind string

// Supported adapter kinds.
const (
	KindSession SourceKind = "session"
	KindSearch  SourceKind = "search"
	KindFeed    SourceKind = "feed"
)

// ContentHint selects the instruction template used for AI summaries.
type ContentHint string

// Supported content hints.
const (
	HintNotice        ContentHint = "notice"
	HintGitHubProject ContentHint = "github-project"
	HintNews          ContentHint = "news"
	HintNewsForeign   ContentHint = "news-foreign"
)

// ErrMissingCredentials is returned when a capability is selected without the secrets it needs.
var ErrMissingCredentials = errors.New("missing credentials")

// RawItem is one source-specific unit before normalization.
type RawItem struct {
	Title              string
	Link               string
	RawBody            string
	PublishedAt        string
	SourceCategoryCode string
	ExternalID         string
	Author             string
	// Metadata carries source-specific facts (stars, forks, language, owner_url, ...).
	Metadata map[string]string
}

// Article is the canonical, storage-ready record.
type Article struct {
	Title       string    `json:"title" yaml:"title"`
	Summary     string    `json:"summary" yaml:"summary"`
	Content     string    `json:"content" yaml:"content"`
	Source      string    `json:"source" yaml:"source"`
	SourceURL   string    `json:"source_url" yaml:"source_url"`
	Author      string    `json:"author" yaml:"author"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Priority    Priority  `json:"priority" yaml:"priority"`
	Tags        []string  `json:"tags" yaml:"tags"`
	PublishedAt string    `json:"published_at" yaml:"published_at"`
	FetchedAt   time.Time `json:"fetched_at" yaml:"fetched_at"`
	AISummary   *string   `json:"ai_summary" yaml:"ai_summary"`
	IsFavorited bool      `json:"is_favorited" yaml:"is_favorited"`

	// Layout re-renders Content with an AI section spliced in. Nil when the source has no template.
	Layout Layout `json:"-" yaml:"-"`
}

// Layout renders an article body from its structured parts.
type Layout interface {
	Render(aiSummary string) string
}

// SourceConfig is the static descriptor of one upstream source.
type SourceConfig struct {
	Key        string     `mapstructure:"key"`
	Name       string     `mapstructure:"name"`
	Category   string     `mapstructure:"category"`
	Kind       SourceKind `mapstructure:"kind"`
	URL        string     `mapstructure:"url"`
	Collection string     `mapstructure:"collection"`
	SourceID   string     `mapstructure:"source_id"`
	Author     string     `mapstructure:"author"`
	Hint       string     `mapstructure:"hint"`
	Lexicon    string     `mapstructure:"lexicon"`
	// ConvertScript enables traditional-to-simplified conversion of title and body.
	ConvertScript bool   `mapstructure:"convert_script"`
	UserAgent     string `mapstructure:"user_agent"`

	Session SessionOptions `mapstructure:"session"`
	Search  SearchOptions  `mapstructure:"search"`
}

// SessionOptions configures the session-paginated adapter.
type SessionOptions struct {
	LandingURL        string            `mapstructure:"landing_url"`
	SearchURL         string            `mapstructure:"search_url"`
	DetailURLTemplate string            `mapstructure:"detail_url_template"`
	Origin            string            `mapstructure:"origin"`
	CategoryCode      int               `mapstructure:"category_code"`
	PageSize          int               `mapstructure:"page_size"`
	MaxPages          int               `mapstructure:"max_pages"`
	CategoryNames     map[string]string `mapstructure:"category_names"`
	DefaultCategory   string            `mapstructure:"default_category"`
}

// SearchOptions configures the single-shot search adapter.
type SearchOptions struct {
	// Query holds extra qualifiers appended to the generated search query.
	Query             string `mapstructure:"query"`
	Language          string `mapstructure:"language"`
	MinStars          int    `mapstructure:"min_stars"`
	CreatedWithinDays int    `mapstructure:"created_within_days"`
	OverFetchFactor   int    `mapstructure:"over_fetch_factor"`
}

// PaginationCursor is the crawl state of one session-paginated crawl.
type PaginationCursor struct {
	Page     int
	PageSize int
	Fetched  int
	Total    int
}

// StageCounts reports how many records each stage produced.
type StageCounts struct {
	Fetched  int
	Filtered int
	Articles int
	Enriched int
	Inserted int
	Skipped  int
	Failed   int
}
