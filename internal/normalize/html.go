// Package normalize turns raw source items into canonical articles.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var blankRuns = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+\n`)

// StripHTML drops script and style blocks, removes tags and collapses whitespace.
func StripHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// ToMarkdown converts an HTML fragment to Markdown, keeping links and images.
func ToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return CollapseBlankLines(out), nil
}

// CollapseBlankLines squeezes runs of blank lines into one and trims the result.
func CollapseBlankLines(s string) string {
	return strings.TrimSpace(blankRuns.ReplaceAllString(s, "\n\n"))
}

const ellipsis = "..."

// Summarize strips Markdown markers and truncates to at most n runes. A cut text ends in "...",
// which counts toward n.
func Summarize(text string, n int) string {
	text = strings.NewReplacer("#", "", "*", "", ">", "").Replace(text)
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	keep := n - len(ellipsis)
	if keep <= 0 {
		return string(runes[:n])
	}
	return string(runes[:keep]) + ellipsis
}
