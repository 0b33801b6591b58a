// Package classify derives priority labels, tag sets and trending scores from keyword lexicons.
//
// Matching is a case-folded substring search with no word boundaries, so short keywords such as
// "AI" also match inside longer words.
package classify

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// MaxTags caps the tag set of an article.
const MaxTags = 5

type keyword struct {
	raw    string
	folded string
}

// Lexicon is an immutable keyword profile. Build it once with New and share it freely.
type Lexicon struct {
	high         []keyword
	low          []keyword
	frontier     []keyword
	exclude      []keyword
	highCategory map[string]struct{}
}

// Terms groups the keyword lists that make up a Lexicon.
type Terms struct {
	High                  []string
	Low                   []string
	DefaultHighCategories []string
	Frontier              []string
	Exclude               []string
}

// New folds the given terms into a Lexicon.
func New(t Terms) *Lexicon {
	l := &Lexicon{
		high:         fold(t.High),
		low:          fold(t.Low),
		frontier:     fold(t.Frontier),
		exclude:      fold(t.Exclude),
		highCategory: make(map[string]struct{}, len(t.DefaultHighCategories)),
	}
	for _, c := range t.DefaultHighCategories {
		l.highCategory[c] = struct{}{}
	}
	return l
}

func fold(terms []string) []keyword {
	out := make([]keyword, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		out = append(out, keyword{raw: term, folded: foldString(term)})
	}
	return out
}

// foldString builds a fresh Caser per call; cases.Caser is not safe for concurrent use.
func foldString(s string) string {
	return cases.Fold().String(s)
}

func firstMatch(text string, kws []keyword) bool {
	for _, kw := range kws {
		if strings.Contains(text, kw.folded) {
			return true
		}
	}
	return false
}

// Classify labels an article. High keywords win, then default-high categories. Low keyword
// matches and unmatched text both end up low.
func (l *Lexicon) Classify(title, content, category string) ingest.Priority {
	text := foldString(title + " " + content)
	if firstMatch(text, l.high) {
		return ingest.PriorityHigh
	}
	if _, ok := l.highCategory[category]; ok {
		return ingest.PriorityHigh
	}
	return ingest.PriorityLow
}

// Tags returns the matched keywords, high lexicon first, in first-seen order. The category is
// prepended when present and not already matched. The result never exceeds MaxTags.
func (l *Lexicon) Tags(title, content, category string) []string {
	text := foldString(title + " " + content)
	tags := make([]string, 0, MaxTags)
	seen := make(map[string]struct{}, MaxTags)
	if category != "" {
		tags = append(tags, category)
		seen[category] = struct{}{}
	}
	for _, list := range [][]keyword{l.high, l.low} {
		for _, kw := range list {
			if len(tags) == MaxTags {
				return tags
			}
			if _, dup := seen[kw.raw]; dup {
				continue
			}
			if strings.Contains(text, kw.folded) {
				tags = append(tags, kw.raw)
				seen[kw.raw] = struct{}{}
			}
		}
	}
	return tags
}

// Excluded reports whether any exclusion term occurs in name or description.
func (l *Lexicon) Excluded(name, description string) bool {
	return firstMatch(foldString(name+" "+description), l.exclude)
}

// Candidate is a search result considered for trending ranking.
type Candidate struct {
	Item      ingest.RawItem
	Name      string
	Summary   string
	Stars     int
	CreatedAt time.Time
}

// TrendingScore adds 100 per frontier keyword in name or description, plus 50 when created within
// 7 days or 30 when within 14.
func (l *Lexicon) TrendingScore(c Candidate, now time.Time) int {
	text := foldString(c.Name + " " + c.Summary)
	score := 0
	for _, kw := range l.frontier {
		if strings.Contains(text, kw.folded) {
			score += 100
		}
	}
	if !c.CreatedAt.IsZero() {
		age := now.Sub(c.CreatedAt)
		switch {
		case age <= 7*24*time.Hour:
			score += 50
		case age <= 14*24*time.Hour:
			score += 30
		}
	}
	return score
}

// Rank drops excluded candidates, orders the rest by (score, stars) descending and keeps at most
// limit of them.
func (l *Lexicon) Rank(candidates []Candidate, now time.Time, limit int) []Candidate {
	type scored struct {
		Candidate
		score int
	}
	kept := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if l.Excluded(c.Name, c.Summary) {
			continue
		}
		kept = append(kept, scored{Candidate: c, score: l.TrendingScore(c, now)})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].Stars > kept[j].Stars
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	out := make([]Candidate, len(kept))
	for i, s := range kept {
		out[i] = s.Candidate
	}
	return out
}

// Prepend puts tag in front of tags unless it is empty or already present, keeping the cap.
func Prepend(tags []string, tag string) []string {
	if tag == "" {
		return tags
	}
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	out := make([]string, 0, len(tags)+1)
	out = append(out, tag)
	out = append(out, tags...)
	if len(out) > MaxTags {
		out = out[:MaxTags]
	}
	return out
}
