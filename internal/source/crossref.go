// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

// crossrefMaxRows is the largest page Crossref serves.
const crossrefMaxRows = 1000

// CrossrefBackend queries Crossref, sorted by citation count.
type CrossrefBackend struct{}

// Name returns the backend identifier.
func (b *CrossrefBackend) Name() string { return "crossref" }

// NewRequest builds the works query.
func (b *CrossrefBackend) NewRequest(ctx context.Context, q Query, email string) (*http.Request, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("empty Crossref query")
	}
	rows := q.MaxResults
	if rows <= 0 {
		rows = 20
	}
	rows = min(rows, crossrefMaxRows)

	params := url.Values{
		"query": {text},
		"rows":  {fmt.Sprintf("%d", rows)},
		"sort":  {"is-referenced-by-count"},
		"order": {"desc"},
	}
	if q.FromYear > 0 {
		params.Set("filter", fmt.Sprintf("from-pub-date:%d-01-01", q.FromYear))
	}
	if email != "" {
		params.Set("mailto", email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossrefAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Decode maps a works response onto candidates.
func (b *CrossrefBackend) Decode(r io.Reader) ([]types.Candidate, error) {
	var resp crossrefResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parsing Crossref response: %w", err)
	}

	out := make([]types.Candidate, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		c := types.Candidate{
			DOI:           item.DOI,
			Title:         first(item.Title),
			Journal:       first(item.ContainerTitle),
			Year:          item.year(),
			CitationCount: item.ReferencedBy,
			Abstract:      cleanMarkup(item.Abstract),
			URL:           item.URL,
			Keywords:      item.Subject,
			Source:        b.Name(),
		}
		for _, a := range item.Author {
			if name := a.displayName(); name != "" {
				c.Authors = append(c.Authors, name)
			}
		}
		for _, l := range item.Link {
			if l.URL != "" {
				c.Links = append(c.Links, types.Link{URL: l.URL, ContentType: l.ContentType})
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Crossref API JSON structures.
type crossrefResponse struct {
	Status  string          `json:"status"`
	Message crossrefMessage `json:"message"`
}

type crossrefMessage struct {
	TotalResults int            `json:"total-results"`
	Items        []crossrefItem `json:"items"`
}

type crossrefItem struct {
	DOI             string           `json:"DOI"`
	Title           []string         `json:"title"`
	ContainerTitle  []string         `json:"container-title"`
	Author          []crossrefAuthor `json:"author"`
	ReferencedBy    int              `json:"is-referenced-by-count"`
	Abstract        string           `json:"abstract"`
	URL             string           `json:"URL"`
	Link            []crossrefLink   `json:"link"`
	Subject         []string         `json:"subject"`
	Issued          crossrefDate     `json:"issued"`
	PublishedPrint  crossrefDate     `json:"published-print"`
	PublishedOnline crossrefDate     `json:"published-online"`
}

// year prefers the issued date, then print, then online publication.
func (i crossrefItem) year() int {
	for _, d := range []crossrefDate{i.Issued, i.PublishedPrint, i.PublishedOnline} {
		if y := d.year(); y > 0 {
			return y
		}
	}
	return 0
}

type crossrefDate struct {
	// DateParts holds [[year, month, day]]; year may be null for unknown dates.
	DateParts [][]*int `json:"date-parts"`
}

func (d crossrefDate) year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 || d.DateParts[0][0] == nil {
		return 0
	}
	return *d.DateParts[0][0]
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

func (a crossrefAuthor) displayName() string {
	if a.Name != "" {
		return strings.TrimSpace(a.Name)
	}
	return strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
}

type crossrefLink struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}
