// Package session crawls listings that require a warm-up request for cookies and then paginate
// through an AJAX form endpoint.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/StanHuanng/anthropo-reader/internal/dedup"
	collyfetcher "github.com/StanHuanng/anthropo-reader/internal/fetcher/colly"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
	"github.com/StanHuanng/anthropo-reader/internal/policy/pace"
)

const defaultPageSize = 15

// ErrUpstreamRejected is returned when the listing endpoint answers success=false.
var ErrUpstreamRejected = errors.New("listing rejected by upstream")

// Options tunes one crawl.
type Options struct {
	// MaxPages overrides the source's page cap when positive.
	MaxPages int
	// Category is the listing category code; a negative value uses the source's own.
	Category      int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	DetailTimeout time.Duration
	Clock         ingest.Clock
}

// Adapter implements ingest.Source for session-paginated listings.
type Adapter struct {
	src     ingest.SourceConfig
	fetcher *collyfetcher.Fetcher
	opts    Options
	logger  *zap.Logger
}

// New builds an Adapter for src.
func New(src ingest.SourceConfig, fetcher *collyfetcher.Fetcher, opts Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = src.Session.MaxPages
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if opts.Category < 0 {
		opts.Category = src.Session.CategoryCode
	}
	return &Adapter{src: src, fetcher: fetcher, opts: opts, logger: logger.Named("session").With(zap.String("source", src.Key))}
}

type listResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	List    []listItem `json:"list"`
	Total   int        `json:"total"`
}

type listItem struct {
	ID         flexString `json:"id"`
	Title      string     `json:"title"`
	CreateTime string     `json:"createTime"`
	Tag        flexString `json:"tag"`
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// Fetch lists up to MaxPages pages, collapses duplicate ids and fetches the detail page of the
// first limit items. On failure it returns what it gathered together with the error.
func (a *Adapter) Fetch(ctx context.Context, limit int) ([]ingest.RawItem, error) {
	sess := a.fetcher.NewSession()
	if _, err := sess.Get(ctx, a.src.Session.LandingURL, browserHeaders()); err != nil {
		a.logger.Warn("session warm-up failed", zap.Error(err))
	}

	items, cursor, listErr := a.list(ctx, sess)
	a.logger.Info("listing finished",
		zap.Int("pages", cursor.Page),
		zap.Int("fetched", cursor.Fetched),
		zap.Int("total", cursor.Total),
		zap.Int("items", len(items)))

	items = dedup.ByExternalID(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	a.details(ctx, sess, items)
	return items, listErr
}

func (a *Adapter) list(ctx context.Context, sess *collyfetcher.Session) ([]ingest.RawItem, ingest.PaginationCursor, error) {
	pageSize := a.src.Session.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	cursor := ingest.PaginationCursor{PageSize: pageSize}
	pacer := pace.New(a.opts.MinDelay, a.opts.MaxDelay)
	var items []ingest.RawItem

	for page := 1; page <= a.opts.MaxPages; page++ {
		if err := pacer.Wait(ctx); err != nil {
			return items, cursor, fmt.Errorf("wait before page %d: %w", page, err)
		}
		cursor.Page = page
		resp, err := a.fetchPage(ctx, sess, page, pageSize)
		if err != nil {
			return items, cursor, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if !resp.Success {
			return items, cursor, fmt.Errorf("fetch page %d: %w: %s", page, ErrUpstreamRejected, resp.Message)
		}
		if len(resp.List) == 0 {
			a.logger.Debug("empty page, stopping", zap.Int("page", page))
			break
		}
		items = append(items, a.toRawItems(resp.List)...)
		cursor.Fetched += len(resp.List)
		cursor.Total = resp.Total
		if cursor.Fetched >= cursor.Total {
			break
		}
	}
	return items, cursor, nil
}

func (a *Adapter) fetchPage(ctx context.Context, sess *collyfetcher.Session, page, pageSize int) (listResponse, error) {
	category := strconv.Itoa(a.opts.Category)
	form := url.Values{
		"category": {category},
		"tag":      {category},
		"pageNum":  {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
		"keyword":  {""},
	}
	hdr := browserHeaders()
	hdr.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	hdr.Set("X-Requested-With", "XMLHttpRequest")
	hdr.Set("Referer", a.src.Session.LandingURL)
	if a.src.Session.Origin != "" {
		hdr.Set("Origin", a.src.Session.Origin)
	}

	raw, err := sess.PostForm(ctx, a.src.Session.SearchURL, form, hdr)
	if err != nil {
		return listResponse{}, err
	}
	var resp listResponse
	if err := json.Unmarshal(raw.Body, &resp); err != nil {
		return listResponse{}, fmt.Errorf("decode listing: %w", err)
	}
	return resp, nil
}

func (a *Adapter) toRawItems(list []listItem) []ingest.RawItem {
	out := make([]ingest.RawItem, 0, len(list))
	for _, it := range list {
		id := strings.TrimSpace(string(it.ID))
		title := strings.TrimSpace(it.Title)
		if id == "" || title == "" {
			continue
		}
		out = append(out, ingest.RawItem{
			Title:              title,
			Link:               strings.ReplaceAll(a.src.Session.DetailURLTemplate, "{id}", url.QueryEscape(id)),
			PublishedAt:        a.listDate(it.CreateTime),
			SourceCategoryCode: strings.TrimSpace(string(it.Tag)),
			ExternalID:         id,
			Author:             a.src.Author,
		})
	}
	return out
}

func (a *Adapter) listDate(createTime string) string {
	if d := NormalizeDate(createTime); d != "" {
		return d
	}
	if a.opts.Clock != nil {
		return a.opts.Clock.Now().Format(time.DateOnly)
	}
	return time.Now().Format(time.DateOnly)
}

// NormalizeDate converts "YY.MM.DD" to "20YY-MM-DD" and "YYYY.MM.DD" to "YYYY-MM-DD". Other
// values are returned trimmed.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return s
	}
	year := parts[0]
	if len(year) == 2 {
		year = "20" + year
	}
	return year + "-" + parts[1] + "-" + parts[2]
}

func (a *Adapter) details(ctx context.Context, sess *collyfetcher.Session, items []ingest.RawItem) {
	pacer := pace.New(a.opts.MinDelay, a.opts.MaxDelay)
	for i := range items {
		if err := pacer.Wait(ctx); err != nil {
			a.logger.Warn("detail fetching stopped", zap.Error(err))
			return
		}
		body, date, err := a.detail(ctx, sess, items[i].Link)
		if err != nil {
			a.logger.Warn("detail fetch failed", zap.String("url", items[i].Link), zap.Error(err))
			continue
		}
		items[i].RawBody = body
		if date != "" {
			items[i].PublishedAt = date
		}
	}
}

func (a *Adapter) detail(ctx context.Context, sess *collyfetcher.Session, link string) (string, string, error) {
	if a.opts.DetailTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.DetailTimeout)
		defer cancel()
	}
	resp, err := sess.Get(ctx, link, browserHeaders())
	if err != nil {
		return "", "", err
	}
	return ExtractDetail(resp.Body)
}

func browserHeaders() http.Header {
	return http.Header{
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"zh-CN,zh;q=0.9,en;q=0.8"},
	}
}
