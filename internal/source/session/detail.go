package session

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	dateSelectors    = []string{"span.publish-date", "div.post-date", "time"}
	contentSelectors = []string{"div.article-content", "div.post-content", "div.content", "#content", "article"}
)

// ErrNoContent is returned when a detail page has no recognizable body.
var ErrNoContent = errors.New("detail page has no content")

// ExtractDetail pulls the body HTML and publish date out of a detail page. The body is the first
// matching content block, else main with navigation chrome removed, else every paragraph.
func ExtractDetail(page []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", "", fmt.Errorf("parse detail page: %w", err)
	}

	date := ""
	for _, sel := range dateSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			date = text
			break
		}
	}

	body, err := contentHTML(doc)
	if err != nil {
		return "", date, err
	}
	if strings.TrimSpace(body) == "" {
		return "", date, ErrNoContent
	}
	return body, date, nil
}

func contentHTML(doc *goquery.Document) (string, error) {
	for _, sel := range contentSelectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			return goquery.OuterHtml(node)
		}
	}
	main := doc.Find("main").First()
	if main.Length() == 0 {
		main = doc.Find("div.main").First()
	}
	if main.Length() > 0 {
		main.Find("nav, aside, header, footer").Remove()
		return goquery.OuterHtml(main)
	}
	var b strings.Builder
	var outErr error
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		html, err := goquery.OuterHtml(p)
		if err != nil {
			outErr = err
			return false
		}
		b.WriteString(html)
		return true
	})
	if outErr != nil {
		return "", fmt.Errorf("render paragraphs: %w", outErr)
	}
	return b.String(), nil
}
