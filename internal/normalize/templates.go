package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

const (
	// DetailFailedBody replaces a notice body whose detail page could not be fetched.
	DetailFailedBody = "**内容抓取失败，请访问原文链接查看详情。**"
	aiCredit         = " | AI 摘要由硅基流动提供支持"
	noDescription    = "No description provided."
)

// NoticeDocument is the Markdown layout of an announcement.
type NoticeDocument struct {
	Title       string
	Date        string
	Category    string
	Priority    ingest.Priority
	Link        string
	Body        string
	Attribution string
}

// Render lays out the notice. A non-empty aiSummary is placed between the header and the body.
func (d NoticeDocument) Render(aiSummary string) string {
	badge := "🔵"
	if d.Priority == ingest.PriorityHigh {
		badge = "🔴"
	}
	aiSection, credit := "", ""
	if aiSummary != "" {
		aiSection = "\n\n" + aiSummary + "\n\n---\n"
		credit = aiCredit
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "> 📅 发布日期: %s\n", d.Date)
	fmt.Fprintf(&b, "> 🏷️ 分类: %s\n", d.Category)
	fmt.Fprintf(&b, "> %s 优先级: **%s**\n", badge, strings.ToUpper(string(d.Priority)))
	fmt.Fprintf(&b, "> 🔗 原文链接: [%s](%s)\n\n", d.Link, d.Link)
	b.WriteString("---\n")
	b.WriteString(aiSection)
	fmt.Fprintf(&b, "\n%s\n\n---\n\n", d.Body)
	fmt.Fprintf(&b, "*本文由 Anthropo-Reader 自动抓取整理 | 数据来源: %s%s*\n", d.Attribution, credit)
	return b.String()
}

// NewsDocument is the Markdown layout of a feed entry.
type NewsDocument struct {
	Title      string
	SourceName string
	Date       string
	Body       string
	Link       string
}

// Render lays out the entry. News bodies keep the AI summary in its own field only.
func (d NewsDocument) Render(string) string {
	return fmt.Sprintf("# %s\n\n> 来源: %s | %s\n\n%s\n\n[查看原文](%s)", d.Title, d.SourceName, d.Date, d.Body, d.Link)
}

// ProjectDocument is the Markdown layout of a repository.
type ProjectDocument struct {
	Name        string
	Description string
	Stars       int
	Language    string
	Forks       int
	OpenIssues  int
	Created     string
	Updated     string
	Link        string
	Owner       string
	OwnerURL    string
}

// Render lays out the project. A non-empty aiSummary replaces the description and the metadata
// block is kept as is.
func (d ProjectDocument) Render(aiSummary string) string {
	p := message.NewPrinter(language.English)
	lead := d.Description
	if aiSummary != "" {
		lead = aiSummary
	}
	if lead == "" {
		lead = noDescription
	}
	lang := d.Language
	if lang == "" {
		lang = "N/A"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", d.Name, lead)
	b.WriteString("## Project Info\n")
	b.WriteString(p.Sprintf("- **Stars**: %d\n", d.Stars))
	fmt.Fprintf(&b, "- **Language**: %s\n", lang)
	b.WriteString(p.Sprintf("- **Forks**: %d\n", d.Forks))
	fmt.Fprintf(&b, "- **Open Issues**: %d\n", d.OpenIssues)
	fmt.Fprintf(&b, "- **Created**: %s\n", dateOnly(d.Created))
	fmt.Fprintf(&b, "- **Last Updated**: %s\n\n", dateOnly(d.Updated))
	fmt.Fprintf(&b, "## Links\n[View Project](%s)\n\n", d.Link)
	fmt.Fprintf(&b, "## Author\n[%s](%s)\n", d.Owner, d.OwnerURL)
	return b.String()
}

func dateOnly(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}
