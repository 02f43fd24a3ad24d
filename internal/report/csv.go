// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

var csvHeader = []string{
	"rank", "title", "authors", "year", "journal", "doi", "citations",
	"text_source", "local_path", "keywords", "headline", "key_points", "verified",
}

// FormatCSV writes one row per record, in ranked order. Multi-valued
// columns are joined with "; ".
func FormatCSV(records []types.LiteratureRecord, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, rec := range records {
		var headline, points, verified string
		if s := rec.Summary; s != nil {
			headline = s.Headline
			points = strings.Join(s.KeyPoints, "; ")
			verified = strconv.FormatBool(s.Verified)
		}
		year := ""
		if rec.Year > 0 {
			year = strconv.Itoa(rec.Year)
		}
		row := []string{
			strconv.Itoa(i + 1),
			rec.Title,
			strings.Join(rec.Authors, "; "),
			year,
			rec.Journal,
			rec.DOI,
			strconv.Itoa(rec.CitationCount),
			string(rec.TextSource),
			rec.LocalPath,
			strings.Join(rec.Keywords, "; "),
			headline,
			points,
			verified,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
