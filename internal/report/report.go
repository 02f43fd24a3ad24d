// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders pipeline results for people and for other tools:
// a terminal table, JSON, CSV, CSL-YAML for reference managers, and a Markdown
// report with per-record summary files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Report is everything a renderer may show about one run.
type Report struct {
	Query     string                   `json:"query" yaml:"query"`
	Records   []types.LiteratureRecord `json:"records" yaml:"records"`
	Stats     types.RunStats           `json:"stats" yaml:"stats"`
	Aggregate types.Aggregate          `json:"aggregate" yaml:"aggregate"`
}

// Formats accepted by Write.
const (
	FormatTableName    = "table"
	FormatJSONName     = "json"
	FormatCSLName      = "csl"
	FormatCSVName      = "csv"
	FormatMarkdownName = "markdown"
)

// Write renders r in the named format.
func Write(w io.Writer, format string, r Report) error {
	switch strings.ToLower(format) {
	case "", FormatTableName:
		FormatTable(r, w)
		return nil
	case FormatJSONName:
		return FormatJSON(r, w)
	case FormatCSLName:
		return FormatCSL(r.Records, w)
	case FormatCSVName:
		return FormatCSV(r.Records, w)
	case FormatMarkdownName, "md":
		FormatMarkdown(r, w)
		return nil
	default:
		return fmt.Errorf("unknown format %q: want table, json, csl, csv, or markdown", format)
	}
}

// FormatTable writes records and run statistics as a human-readable table.
func FormatTable(r Report, w io.Writer) {
	if len(r.Records) == 0 {
		fmt.Fprintln(w, "No records.")
	} else {
		fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %s\n",
			"Rank", "Title", "Authors", "Year", "Cites", "Text")
		fmt.Fprintln(w, strings.Repeat("-", 110))

		for i, rec := range r.Records {
			year := ""
			if rec.Year > 0 {
				year = fmt.Sprintf("%d", rec.Year)
			}
			fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6d  %s\n",
				i+1, truncate(rec.Title, 60), formatAuthors(rec.Authors), year,
				rec.CitationCount, rec.TextSource)
		}
	}
	fmt.Fprintln(w)
	FormatStats(r.Stats, w)
}

// FormatStats writes a short run summary.
func FormatStats(s types.RunStats, w io.Writer) {
	fmt.Fprintf(w, "%d candidates, %d duplicates merged, %d excluded by recency, %d ranked",
		s.CandidatesSeen, s.DuplicatesMerged, s.ExcludedByRecency, s.Ranked)
	if s.TruncatedByCap > 0 {
		fmt.Fprintf(w, " (%d over cap)", s.TruncatedByCap)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "fulltext: %d, metadata only: %d", s.FulltextSucceeded, s.FulltextDegraded)
	if s.SourceOrigin != "" {
		fmt.Fprintf(w, ", source: %s", s.SourceOrigin)
	}
	if s.Cancelled {
		fmt.Fprint(w, ", cancelled")
	}
	fmt.Fprintln(w)
	for _, warn := range s.SourceWarnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if s.SourceError != "" {
		fmt.Fprintf(w, "error: %s\n", s.SourceError)
	}
}

// FormatJSON writes the whole report as indented JSON.
func FormatJSON(r Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
