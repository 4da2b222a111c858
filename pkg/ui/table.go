package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RunSummary carries the figures shown after an export finishes. The cmd
// layer fills it from the collection result so this package stays free of
// domain imports.
type RunSummary struct {
	PostID        string
	Likes         int
	Reposts       int
	Replies       int
	Combined      int
	Decision      string
	FallbackRan   bool
	RequestsUsed  int
	RequestBudget int
	Duration      time.Duration
	ExportPath    string
	ReportPath    string
	Diagnostics   []string
}

// newTable returns a writer preconfigured with the house style.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// renderSummary builds the summary table as a string so tests can inspect
// it without capturing stdout.
func renderSummary(s RunSummary) string {
	t := newTable()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Post", s.PostID})
	t.AppendRow(table.Row{"Likes", s.Likes})
	t.AppendRow(table.Row{"Reposts", s.Reposts})
	t.AppendRow(table.Row{"Replies", s.Replies})
	t.AppendRow(table.Row{"Combined records", s.Combined})
	t.AppendRow(table.Row{"Browser fallback", fallbackCell(s)})
	t.AppendRow(table.Row{"API requests", fmt.Sprintf("%d/%d", s.RequestsUsed, s.RequestBudget)})
	t.AppendRow(table.Row{"Duration", s.Duration.Round(time.Second).String()})
	return t.Render()
}

// fallbackCell compresses the eligibility outcome into one cell.
func fallbackCell(s RunSummary) string {
	switch {
	case s.FallbackRan:
		return fmt.Sprintf("ran (%s)", s.Decision)
	case s.Decision == "" || s.Decision == "None":
		return "not needed"
	default:
		return fmt.Sprintf("skipped (%s)", s.Decision)
	}
}

// PrintRunSummary renders the post-export summary table followed by any
// diagnostics the run accumulated.
func PrintRunSummary(s RunSummary) {
	if quietMode {
		return
	}

	fmt.Println()
	fmt.Println(renderSummary(s))

	if s.ExportPath != "" {
		PrintInfo("Workbook", s.ExportPath)
	}
	if s.ReportPath != "" {
		PrintInfo("Run report", s.ReportPath)
	}
	for _, d := range s.Diagnostics {
		PrintWarning("Diagnostic", d)
	}
}
