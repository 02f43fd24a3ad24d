// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexMaxPerPage = 200

// OpenAlexBackend queries OpenAlex, sorted by cited_by_count.
type OpenAlexBackend struct{}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return "openalex" }

// NewRequest builds the works search. email goes into mailto for polite
// pool access.
func (b *OpenAlexBackend) NewRequest(ctx context.Context, q Query, email string) (*http.Request, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	perPage := q.MaxResults
	if perPage <= 0 {
		perPage = 20
	}
	perPage = min(perPage, openAlexMaxPerPage)

	params := url.Values{
		"search":   {text},
		"per_page": {fmt.Sprintf("%d", perPage)},
		"page":     {"1"},
		"sort":     {"cited_by_count:desc"},
	}
	if q.FromYear > 0 {
		params.Set("filter", fmt.Sprintf("from_publication_date:%d-01-01", q.FromYear))
	}
	if email != "" {
		params.Set("mailto", email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return req, nil
}

// Decode maps a works page onto candidates. The best open-access PDF, when
// OpenAlex knows one, becomes the first link so acquisition tries it first.
func (b *OpenAlexBackend) Decode(r io.Reader) ([]types.Candidate, error) {
	var oar openAlexResponse
	if err := json.NewDecoder(r).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	out := make([]types.Candidate, 0, len(oar.Results))
	for _, work := range oar.Results {
		title := work.Title
		if title == "" {
			title = work.DisplayName
		}
		c := types.Candidate{
			DOI:           types.TrimDOI(work.DOI),
			Title:         title,
			Year:          work.PublicationYear,
			CitationCount: work.CitedByCount,
			Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
			Source:        b.Name(),
		}
		if work.PrimaryLocation != nil {
			if work.PrimaryLocation.Source != nil {
				c.Journal = work.PrimaryLocation.Source.DisplayName
			}
			c.URL = work.PrimaryLocation.LandingPageURL
		}
		for _, a := range work.Authorships {
			if a.Author.DisplayName != "" {
				c.Authors = append(c.Authors, a.Author.DisplayName)
			}
		}
		if loc := work.BestOALocation; loc != nil && loc.PDFURL != "" {
			c.Links = append(c.Links, types.Link{URL: loc.PDFURL, ContentType: "application/pdf"})
		}
		if oa := work.OpenAccess.OAURL; oa != "" && (len(c.Links) == 0 || c.Links[0].URL != oa) {
			c.Links = append(c.Links, types.Link{URL: oa})
		}
		for _, kw := range work.Keywords {
			if kw.DisplayName != "" {
				c.Keywords = append(c.Keywords, kw.DisplayName)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The index maps each word to the positions where it appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
	Keywords              []openAlexKeyword    `json:"keywords"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	LandingPageURL string          `json:"landing_page_url"`
	PDFURL         string          `json:"pdf_url"`
	Source         *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

type openAlexKeyword struct {
	DisplayName string `json:"display_name"`
}
