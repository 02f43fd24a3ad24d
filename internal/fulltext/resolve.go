// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Base URLs for endpoint resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	doiBase           = "https://doi.org/"
	openAlexWorksBase = "https://api.openalex.org/works/"
)

// Resolver names accepted in FulltextConfig.Resolvers.
const (
	ResolverLinks    = "links"
	ResolverURL      = "url"
	ResolverOpenAlex = "openalex"
	ResolverDOI      = "doi"
)

// endpoint is one place full text may be found. A lookup endpoint resolves
// its URL lazily so the extra request is only made when earlier endpoints
// failed.
type endpoint struct {
	name   string
	url    string
	lookup func(ctx context.Context) (string, error)
}

// endpoints lists the record's candidate endpoints in resolver order,
// without duplicate URLs.
func (a *Acquirer) endpoints(rec *types.LiteratureRecord) []endpoint {
	var out []endpoint
	seen := make(map[string]bool)
	add := func(name, u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] || !isHTTP(u) {
			return
		}
		seen[u] = true
		out = append(out, endpoint{name: name, url: u})
	}

	doi := types.TrimDOI(rec.DOI)
	for _, r := range a.cfg.Resolvers {
		switch r {
		case ResolverLinks:
			for _, l := range rec.Links {
				add("link", l.URL)
			}
		case ResolverURL:
			add("url", rec.URL)
		case ResolverOpenAlex:
			if doi != "" {
				out = append(out, endpoint{name: "openalex", lookup: func(ctx context.Context) (string, error) {
					u, err := a.resolveOpenAlex(ctx, doi)
					if err != nil || seen[u] {
						return "", err
					}
					seen[u] = true
					return u, nil
				}})
			}
		case ResolverDOI:
			if doi != "" {
				add("doi", doiBase+doi)
			}
		default:
			a.log.Warn().Str("resolver", r).Msg("unknown fulltext resolver ignored")
		}
	}
	return out
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// openAlexWork captures the open-access fields of an OpenAlex work record.
type openAlexWork struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
	OpenAccess     struct {
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// resolveOpenAlex asks OpenAlex for an open-access copy of doi. It returns
// an empty string when the work has no open-access location.
func (a *Acquirer) resolveOpenAlex(ctx context.Context, doi string) (string, error) {
	apiURL := openAlexWorksBase + "https://doi.org/" + doi
	if a.email != "" {
		apiURL += "?" + url.Values{"mailto": {a.email}}.Encode()
	}

	body, _, err := a.attempt(ctx, apiURL)
	if err != nil {
		return "", fmt.Errorf("OpenAlex lookup: %w", err)
	}

	var work openAlexWork
	if err := json.Unmarshal(body, &work); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if loc := work.BestOALocation; loc != nil {
		if loc.PDFURL != "" {
			return loc.PDFURL, nil
		}
		if loc.LandingURL != "" {
			return loc.LandingURL, nil
		}
	}
	return work.OpenAccess.OAURL, nil
}
