// Package report renders the end-of-run summary for the diagnostic stream.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Row is one source's contribution to a run.
type Row struct {
	Source     string
	Collection string
	Fetched    int
	Articles   int
	Error      string
}

// Summary is everything printed after a run.
type Summary struct {
	RunID    string
	Rows     []Row
	Counts   ingest.StageCounts
	Duration time.Duration
}

// Render formats the per-source table followed by the stage totals.
func Render(s Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("run " + s.RunID)
	tw.AppendHeader(table.Row{"source", "collection", "fetched", "articles", "error"})
	for _, r := range s.Rows {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		tw.AppendRow(table.Row{r.Source, r.Collection, strconv.Itoa(r.Fetched), strconv.Itoa(r.Articles), errText})
	}
	tw.AppendFooter(table.Row{"total", "", strconv.Itoa(s.Counts.Fetched), strconv.Itoa(s.Counts.Articles), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 48},
	})

	stages := table.NewWriter()
	stages.SetStyle(table.StyleRounded)
	stages.AppendHeader(table.Row{"stage", "count"})
	for _, st := range []struct {
		name string
		n    int
	}{
		{"fetched", s.Counts.Fetched},
		{"filtered", s.Counts.Filtered},
		{"articles", s.Counts.Articles},
		{"enriched", s.Counts.Enriched},
		{"inserted", s.Counts.Inserted},
		{"skipped", s.Counts.Skipped},
		{"failed", s.Counts.Failed},
	} {
		stages.AppendRow(table.Row{st.name, strconv.Itoa(st.n)})
	}
	stages.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	return fmt.Sprintf("%s\n%s\nelapsed %s\n", tw.Render(), stages.Render(), s.Duration.Round(time.Millisecond))
}

// Print writes the rendered summary to w.
func Print(w io.Writer, s Summary) error {
	if _, err := io.WriteString(w, Render(s)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
