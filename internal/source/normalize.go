// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/litpipe/pkg/types"
)

// normalize cleans candidates at the source boundary. Problems with a single
// entry are reported as warnings: a missing title drops the entry and
// negative numbers are clamped. Malformed and duplicate DOIs are kept as they
// are; duplicates are merged by rank.
func normalize(in []types.Candidate, label string) ([]types.Candidate, []string) {
	out := make([]types.Candidate, 0, len(in))
	var warnings []string
	firstByDOI := make(map[string]int)

	for i, c := range in {
		c.Title = strings.Join(strings.Fields(c.Title), " ")
		c.Journal = strings.TrimSpace(c.Journal)
		c.DOI = types.TrimDOI(c.DOI)
		c.Keywords = types.KeywordSet(c.Keywords)
		c.Authors = trimAuthors(c.Authors)
		if c.Source == "" {
			c.Source = label
		}

		if c.Title == "" {
			warnings = append(warnings, fmt.Sprintf("%s entry %d: missing title, dropped", label, i))
			continue
		}
		if c.CitationCount < 0 {
			warnings = append(warnings, fmt.Sprintf("%s entry %d: negative citation count %d clamped to 0", label, i, c.CitationCount))
			c.CitationCount = 0
		}
		if c.Year < 0 {
			warnings = append(warnings, fmt.Sprintf("%s entry %d: negative year %d treated as unknown", label, i, c.Year))
			c.Year = 0
		}
		if c.DOI != "" && !types.ValidDOI(c.DOI) {
			warnings = append(warnings, fmt.Sprintf("%s entry %d: malformed DOI %q", label, i, c.DOI))
		}
		if err := types.ValidateCandidate(c); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s entry %d: %v, dropped", label, i, err))
			continue
		}
		if c.DOI != "" {
			key := types.NormalizeDOI(c.DOI)
			if j, ok := firstByDOI[key]; ok {
				warnings = append(warnings, fmt.Sprintf("%s entry %d: duplicate DOI %s (first at entry %d)", label, i, c.DOI, j))
			} else {
				firstByDOI[key] = i
			}
		}
		out = append(out, c)
	}
	return out, warnings
}

func trimAuthors(authors []string) []string {
	if len(authors) == 0 {
		return nil
	}
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// markupBlocks are the JATS and HTML elements whose text forms one paragraph.
var markupBlocks = map[string]bool{
	"p": true, "jats:p": true, "jats:title": true, "h1": true, "h2": true, "h3": true,
}

// cleanMarkup converts JATS or HTML fragments (Crossref abstracts) into
// plain text with collapsed whitespace.
func cleanMarkup(raw string) string {
	if !strings.Contains(raw, "<") {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	var parts []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if !markupBlocks[goquery.NodeName(s)] {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(parts, " ")
	if text == "" {
		text = doc.Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

// truncate caps candidates at n; n <= 0 means no cap.
func truncate(c []types.Candidate, n int) []types.Candidate {
	if n > 0 && len(c) > n {
		return c[:n]
	}
	return c
}
