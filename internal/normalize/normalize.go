package normalize

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/classify"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Summary lengths, in runes.
const (
	SummaryRunes        = 200
	ProjectSummaryRunes = 300
)

// Metadata keys set by the search adapter.
const (
	MetaStars      = "stars"
	MetaForks      = "forks"
	MetaOpenIssues = "open_issues"
	MetaLanguage   = "language"
	MetaUpdatedAt  = "updated_at"
	MetaOwnerURL   = "owner_url"
)

// Normalizer canonicalizes the raw items of one source, classifying and tagging them on the way.
type Normalizer struct {
	src    ingest.SourceConfig
	lex    *classify.Lexicon
	conv   Converter
	clock  ingest.Clock
	logger *zap.Logger
}

// New wires a Normalizer for src. A nil conv means Identity.
func New(src ingest.SourceConfig, lex *classify.Lexicon, conv Converter, clock ingest.Clock, logger *zap.Logger) *Normalizer {
	if conv == nil {
		conv = Identity{}
	}
	if lex == nil {
		lex = classify.New(classify.Terms{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{src: src, lex: lex, conv: conv, clock: clock, logger: logger}
}

// Normalize converts items into articles. limit only applies to search sources, where ranking
// happens after exclusion filtering.
func (n *Normalizer) Normalize(items []ingest.RawItem, limit int) []ingest.Article {
	switch n.src.Kind {
	case ingest.KindSession:
		return n.notices(items)
	case ingest.KindSearch:
		return n.projects(items, limit)
	case ingest.KindFeed:
		return n.news(items)
	default:
		n.logger.Warn("unknown source kind", zap.String("source", n.src.Key), zap.String("kind", string(n.src.Kind)))
		return nil
	}
}

func (n *Normalizer) author(item ingest.RawItem) string {
	if item.Author != "" {
		return item.Author
	}
	if n.src.Author != "" {
		return n.src.Author
	}
	return n.src.Name
}

func (n *Normalizer) notices(items []ingest.RawItem) []ingest.Article {
	now := n.clock.Now()
	out := make([]ingest.Article, 0, len(items))
	for _, item := range items {
		title := n.conv.Convert(item.Title)
		category := n.categoryName(item.SourceCategoryCode)
		body := DetailFailedBody
		if item.RawBody != "" {
			converted, err := ToMarkdown(item.RawBody)
			if err != nil {
				n.logger.Warn("markdown conversion failed", zap.String("url", item.Link), zap.Error(err))
			} else if converted != "" {
				body = n.conv.Convert(converted)
			}
		}
		priority := n.lex.Classify(title, body, category)
		doc := NoticeDocument{
			Title:       title,
			Date:        item.PublishedAt,
			Category:    category,
			Priority:    priority,
			Link:        item.Link,
			Body:        body,
			Attribution: n.src.Name,
		}
		out = append(out, ingest.Article{
			Title:       title,
			Summary:     Summarize(body, SummaryRunes),
			Content:     doc.Render(""),
			Source:      n.src.SourceID,
			SourceURL:   item.Link,
			Author:      n.author(item),
			Category:    category,
			Priority:    priority,
			Tags:        n.lex.Tags(title, body, category),
			PublishedAt: item.PublishedAt,
			FetchedAt:   now,
			Layout:      doc,
		})
	}
	return out
}

func (n *Normalizer) categoryName(code string) string {
	if name, ok := n.src.Session.CategoryNames[code]; ok && name != "" {
		return name
	}
	if n.src.Session.DefaultCategory != "" {
		return n.src.Session.DefaultCategory
	}
	return n.src.Category
}

func (n *Normalizer) news(items []ingest.RawItem) []ingest.Article {
	now := n.clock.Now()
	out := make([]ingest.Article, 0, len(items))
	for _, item := range items {
		title := n.conv.Convert(item.Title)
		body := StripHTML(item.RawBody)
		if body == "" {
			body = item.Title
		}
		body = n.conv.Convert(body)
		published := item.PublishedAt
		if published == "" {
			published = now.Format(time.RFC3339)
		}
		category := n.src.Category
		doc := NewsDocument{
			Title:      title,
			SourceName: n.src.Name,
			Date:       dateOnly(published),
			Body:       body,
			Link:       item.Link,
		}
		out = append(out, ingest.Article{
			Title:       title,
			Summary:     Summarize(body, SummaryRunes),
			Content:     doc.Render(""),
			Source:      n.src.SourceID,
			SourceURL:   item.Link,
			Author:      n.src.Name,
			Category:    category,
			Priority:    n.lex.Classify(title, body, category),
			Tags:        classify.Prepend(n.lex.Tags(title, body, category), n.src.Name),
			PublishedAt: published,
			FetchedAt:   now,
			Layout:      doc,
		})
	}
	return out
}

func (n *Normalizer) projects(items []ingest.RawItem, limit int) []ingest.Article {
	now := n.clock.Now()
	candidates := make([]classify.Candidate, 0, len(items))
	for _, item := range items {
		// Unparseable timestamps stay zero and earn no recency bonus.
		created, _ := time.Parse(time.RFC3339, item.PublishedAt)
		candidates = append(candidates, classify.Candidate{
			Item:      item,
			Name:      item.Title,
			Summary:   item.RawBody,
			Stars:     atoi(item.Metadata[MetaStars]),
			CreatedAt: created,
		})
	}
	ranked := n.lex.Rank(candidates, now, limit)
	n.logger.Debug("ranked search results",
		zap.String("source", n.src.Key),
		zap.Int("candidates", len(candidates)),
		zap.Int("kept", len(ranked)))

	out := make([]ingest.Article, 0, len(ranked))
	for _, c := range ranked {
		item := c.Item
		name := n.conv.Convert(item.Title)
		desc := n.conv.Convert(item.RawBody)
		lang := item.Metadata[MetaLanguage]
		doc := ProjectDocument{
			Name:        name,
			Description: desc,
			Stars:       c.Stars,
			Language:    lang,
			Forks:       atoi(item.Metadata[MetaForks]),
			OpenIssues:  atoi(item.Metadata[MetaOpenIssues]),
			Created:     item.PublishedAt,
			Updated:     item.Metadata[MetaUpdatedAt],
			Link:        item.Link,
			Owner:       item.Author,
			OwnerURL:    item.Metadata[MetaOwnerURL],
		}
		out = append(out, ingest.Article{
			Title:       name,
			Summary:     Summarize(desc, ProjectSummaryRunes),
			Content:     doc.Render(""),
			Source:      n.src.SourceID,
			SourceURL:   item.Link,
			Author:      n.author(item),
			Category:    n.src.Category,
			Priority:    n.lex.Classify(name, desc, n.src.Category),
			Tags:        n.lex.Tags(name, desc, lang),
			PublishedAt: item.PublishedAt,
			FetchedAt:   now,
			Layout:      doc,
		})
	}
	return out
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
