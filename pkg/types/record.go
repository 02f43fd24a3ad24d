// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litpipe pipeline:
// the candidate shape produced by metadata sources, the canonical
// LiteratureRecord handed to output collaborators, run statistics, and the
// configuration threaded through every stage.
package types

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// TextSource records what a record's summary was derived from.
type TextSource string

const (
	TextSourceFulltext TextSource = "fulltext"
	TextSourceMetadata TextSource = "metadata"
)

// Link is a full-text location advertised by a metadata source.
type Link struct {
	URL         string `json:"url" yaml:"url"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
}

// Candidate is a metadata entry normalized at the source boundary, prior to
// dedup and ranking. Sources never hand anything less structured than this
// to the rest of the pipeline.
type Candidate struct {
	DOI           string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title         string   `json:"title" yaml:"title" validate:"required"`
	Journal       string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year          int      `json:"year,omitempty" yaml:"year,omitempty" validate:"gte=0"`
	Authors       []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	CitationCount int      `json:"citation_count" yaml:"citation_count" validate:"gte=0"`
	Abstract      string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL           string   `json:"url,omitempty" yaml:"url,omitempty"`
	Links         []Link   `json:"links,omitempty" yaml:"links,omitempty"`
	Keywords      []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Source names the backend that produced the candidate (e.g. "crossref", "cache").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Fingerprint returns the dedup key for the candidate.
func (c Candidate) Fingerprint() string {
	return Fingerprint(c.DOI, c.Title, c.Year)
}

// Summary is the structured per-record synthesis. It is produced once by the
// summarizer and never modified afterward.
type Summary struct {
	Headline  string     `json:"headline" yaml:"headline"`
	KeyPoints []string   `json:"key_points" yaml:"key_points"`
	// Derivation mirrors the record's TextSource at summarization time.
	Derivation TextSource `json:"derivation" yaml:"derivation"`
	// Verified is true only when every key point was taken from retrieved text.
	Verified bool `json:"verified" yaml:"verified"`
}

// LiteratureRecord is the canonical record produced by Rank-Dedup and
// enriched by fulltext acquisition and summarization.
type LiteratureRecord struct {
	Fingerprint   string   `json:"fingerprint" yaml:"fingerprint"`
	DOI           string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title         string   `json:"title" yaml:"title"`
	Journal       string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year          int      `json:"year,omitempty" yaml:"year,omitempty"`
	Authors       []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	CitationCount int      `json:"citation_count" yaml:"citation_count"`
	Abstract      string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL           string   `json:"url,omitempty" yaml:"url,omitempty"`
	Links         []Link   `json:"links,omitempty" yaml:"links,omitempty"`
	Source        string   `json:"source,omitempty" yaml:"source,omitempty"`

	TextSource TextSource `json:"text_source" yaml:"text_source"`

	// LocalPath points at a completed artifact in the artifact store. Only
	// fulltext acquisition sets it.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`

	// Keywords is a sorted, duplicate-free set.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	Summary *Summary `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Fulltext holds extracted body text between acquisition and
	// summarization. It is not part of the output contract.
	Fulltext string `json:"-" yaml:"-"`
}

// NewRecord builds a record from a candidate. The record starts
// metadata-only; acquisition upgrades it.
func NewRecord(c Candidate) LiteratureRecord {
	return LiteratureRecord{
		Fingerprint:   c.Fingerprint(),
		DOI:           TrimDOI(c.DOI),
		Title:         strings.TrimSpace(c.Title),
		Journal:       strings.TrimSpace(c.Journal),
		Year:          c.Year,
		Authors:       append([]string(nil), c.Authors...),
		CitationCount: max(c.CitationCount, 0),
		Abstract:      c.Abstract,
		URL:           c.URL,
		Links:         append([]Link(nil), c.Links...),
		Source:        c.Source,
		TextSource:    TextSourceMetadata,
		Keywords:      KeywordSet(c.Keywords),
	}
}

// doiPattern matches bare DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// doiPrefixes are resolver and scheme prefixes stripped before comparison.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// TrimDOI trims a DOI and strips resolver prefixes, preserving case.
func TrimDOI(doi string) string {
	d := strings.TrimSpace(doi)
	lower := strings.ToLower(d)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(d[len(p):])
		}
	}
	return d
}

// NormalizeDOI lowercases a trimmed DOI for comparison.
func NormalizeDOI(doi string) string {
	return strings.ToLower(TrimDOI(doi))
}

// ValidDOI reports whether doi is well formed after normalization.
func ValidDOI(doi string) bool {
	return doiPattern.MatchString(NormalizeDOI(doi))
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the
// title with whitespace collapsed.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fingerprint computes the dedup key: the normalized DOI when present,
// otherwise the normalized title plus year.
func Fingerprint(doi, title string, year int) string {
	if d := NormalizeDOI(doi); d != "" {
		return "doi:" + d
	}
	return "title:" + NormalizeTitle(title) + "|" + strconv.Itoa(year)
}

// KeywordSet trims, drops empties, dedups, and sorts keywords.
func KeywordSet(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String renders a short identification used in logs.
func (r LiteratureRecord) String() string {
	if r.DOI != "" {
		return fmt.Sprintf("%s (%s)", r.Title, r.DOI)
	}
	return r.Title
}
