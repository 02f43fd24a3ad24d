// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/pkg/types"
)

// FormatMarkdown writes the run as a Markdown report: a status table, one
// section per record, and the aggregate recommendations.
func FormatMarkdown(r Report, w io.Writer) {
	fmt.Fprintf(w, "# Literature review: %s\n\n", r.Query)

	fmt.Fprintln(w, "## Summaries and retrieval status")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Title | Year | Text source | Local file | Keywords | Key points |")
	fmt.Fprintln(w, "| --- | --- | --- | --- | --- | --- |")
	for _, rec := range r.Records {
		var points []string
		if rec.Summary != nil {
			points = rec.Summary.KeyPoints
		}
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
			cell(rec.Title), yearOrDash(rec.Year), rec.TextSource, orDash(rec.LocalPath),
			orDash(cell(strings.Join(rec.Keywords, ", "))), orDash(cell(strings.Join(points, "<br>"))))
	}
	fmt.Fprintln(w)

	for _, rec := range r.Records {
		writeRecord(w, rec, "###")
	}

	fmt.Fprintln(w, "## Recommendations")
	fmt.Fprintln(w)
	for i, rec := range r.Aggregate.Recommendations {
		fmt.Fprintf(w, "%d. %s\n", i+1, rec)
	}
	if len(r.Aggregate.Keywords) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## Keywords")
		fmt.Fprintln(w)
		for _, k := range r.Aggregate.Keywords {
			fmt.Fprintf(w, "- %s (%d)\n", k.Keyword, k.Count)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Run")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "```")
	FormatStats(r.Stats, w)
	fmt.Fprintln(w, "```")
}

// writeRecord writes one record's metadata and summary under a heading of
// the given level.
func writeRecord(w io.Writer, rec types.LiteratureRecord, heading string) {
	fmt.Fprintf(w, "%s %s\n\n", heading, rec.Title)
	fmt.Fprintf(w, "- Journal: %s\n", orDash(rec.Journal))
	fmt.Fprintf(w, "- Year: %s\n", yearOrDash(rec.Year))
	fmt.Fprintf(w, "- DOI: %s\n", orDash(rec.DOI))
	fmt.Fprintf(w, "- Citations: %d\n", rec.CitationCount)
	fmt.Fprintf(w, "- Text source: %s\n", rec.TextSource)
	fmt.Fprintf(w, "- Local file: %s\n", orDash(rec.LocalPath))
	fmt.Fprintf(w, "- Keywords: %s\n", orDash(strings.Join(rec.Keywords, ", ")))
	fmt.Fprintln(w)
	if rec.Summary != nil {
		fmt.Fprintf(w, "%s\n\n", rec.Summary.Headline)
		for _, p := range rec.Summary.KeyPoints {
			fmt.Fprintf(w, "- %s\n", p)
		}
		fmt.Fprintln(w)
	}
}

// WriteSummaries writes one Markdown file per record into dir and returns
// the paths in record order.
func WriteSummaries(dir string, records []types.LiteratureRecord) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating summaries directory: %w", err)
	}
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		var b strings.Builder
		writeRecord(&b, rec, "#")
		path := filepath.Join(dir, fulltext.Slug(rec.Fingerprint)+".md")
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			return nil, fmt.Errorf("writing summary for %s: %w", rec.Fingerprint, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// cell makes text safe for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yearOrDash(y int) string {
	if y <= 0 {
		return "-"
	}
	return fmt.Sprint(y)
}
