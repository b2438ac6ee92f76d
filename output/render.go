/*
Copyright 2026 MR Pilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/javimosch/mr-pilot/review"
)

// Format selects a report renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Render writes the report in the requested format.
func Render(w io.Writer, format Format, report *review.Report) error {
	switch format {
	case FormatText:
		return renderText(w, report)
	case FormatMarkdown:
		return renderMarkdown(w, report)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Markdown renders the report as a markdown document, suitable for posting
// as a forge comment.
func Markdown(report *review.Report) (string, error) {
	var buf bytes.Buffer
	if err := renderMarkdown(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sorted returns the findings ordered by severity (high first), then path,
// then line.
func sorted(findings []review.Finding) []review.Finding {
	out := make([]review.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out
}

func location(f review.Finding) string {
	switch {
	case f.Path == "":
		return "-"
	case f.EndLine > f.StartLine:
		return fmt.Sprintf("%s:%d-%d", f.Path, f.StartLine, f.EndLine)
	case f.StartLine > 0:
		return fmt.Sprintf("%s:%d", f.Path, f.StartLine)
	default:
		return f.Path
	}
}

func summaryLine(report *review.Report) string {
	s := report.Summary
	if len(report.Findings) == 0 {
		return "No findings."
	}
	return fmt.Sprintf("%d finding(s): %d high, %d medium, %d low", len(report.Findings), s.High, s.Medium, s.Low)
}

func renderText(w io.Writer, report *review.Report) error {
	fmt.Fprintf(w, "Review of %s (model %s, took %s)\n", report.Source, report.Model, report.Duration)
	fmt.Fprintf(w, "%s\n", summaryLine(report))
	if report.Truncated {
		fmt.Fprintln(w, "Note: the diff was truncated before review.")
	}
	for _, f := range sorted(report.Findings) {
		fmt.Fprintf(w, "\n[%s/%s] %s\n  %s\n  %s\n", f.Severity, f.Category, f.Title, location(f), f.Message)
		if f.Suggestion != "" {
			fmt.Fprintf(w, "  Suggestion: %s\n", f.Suggestion)
		}
	}
	return nil
}

func renderMarkdown(w io.Writer, report *review.Report) error {
	fmt.Fprintf(w, "## MR Pilot review\n\n")
	fmt.Fprintf(w, "**Source:** %s · **Model:** %s · **Duration:** %s\n\n", report.Source, report.Model, report.Duration)
	fmt.Fprintf(w, "%s\n\n", summaryLine(report))
	if report.Truncated {
		fmt.Fprintf(w, "_The diff was truncated before review; findings may be incomplete._\n\n")
	}
	if len(report.Findings) == 0 {
		return nil
	}

	var buf bytes.Buffer
	table := newMarkdownTable([]string{"Severity", "Category", "Location", "Finding"}, &buf)
	for _, f := range sorted(report.Findings) {
		cell := f.Title
		if f.Suggestion != "" {
			cell = fmt.Sprintf("%s: %s", f.Title, f.Suggestion)
		}
		_ = table.Append([]string{string(f.Severity), string(f.Category), location(f), cell})
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering findings table: %w", err)
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n<details>\n<summary>Details</summary>\n\n")
	for _, f := range sorted(report.Findings) {
		fmt.Fprintf(w, "### %s (%s, %s)\n\n%s\n\n", f.Title, f.Severity, location(f), strings.TrimSpace(f.Message))
	}
	fmt.Fprintf(w, "</details>\n")
	return nil
}

// newMarkdownTable creates a table writer with consistent formatting for
// markdown output.
func newMarkdownTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
