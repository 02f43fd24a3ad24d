// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litpipe/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// Field names follow the CSL-YAML schema so the output is consumable by
// Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Keyword        string    `yaml:"keyword,omitempty"`
	Note           string    `yaml:"note,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes records as a CSL-YAML list.
func FormatCSL(records []types.LiteratureRecord, w io.Writer) error {
	items := make([]CSLItem, len(records))
	for i, rec := range records {
		items[i] = toCSLItem(rec)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(rec types.LiteratureRecord) CSLItem {
	item := CSLItem{
		ID:             cslID(rec),
		Type:           "article-journal",
		Title:          rec.Title,
		ContainerTitle: rec.Journal,
		Abstract:       rec.Abstract,
		DOI:            rec.DOI,
		URL:            rec.URL,
		Keyword:        strings.Join(rec.Keywords, ", "),
	}
	if rec.Journal == "" {
		item.Type = "article"
	}
	for _, a := range rec.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if rec.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{rec.Year}}}
	}
	if rec.Summary != nil {
		item.Note = rec.Summary.Headline
	}
	return item
}

// cslID is the DOI when present, otherwise the fingerprint.
func cslID(rec types.LiteratureRecord) string {
	if rec.DOI != "" {
		return rec.DOI
	}
	return rec.Fingerprint
}

// parseAuthorName splits a full name into CSL family/given parts. A
// "Family, Given" name splits on the comma; otherwise the last token is
// the family name. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
