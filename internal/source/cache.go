// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litpipe/pkg/types"
)

// CacheReader loads a previously persisted candidate list. It never touches
// the network.
type CacheReader struct {
	Path string
}

// Name returns the source identifier.
func (c *CacheReader) Name() string { return "cache" }

// Fetch reads the cache file and returns its candidates in file order,
// truncated to q.MaxResults. The cache is not filtered by q.Text; a cache is
// built for one query and a mismatch is reported as a warning.
func (c *CacheReader) Fetch(ctx context.Context, q Query) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Path == "" {
		return nil, fmt.Errorf("no cache path configured: %w", ErrCacheMissing)
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", c.Path, ErrCacheMissing)
		}
		return nil, fmt.Errorf("reading %s: %w", c.Path, err)
	}

	doc, err := decodeCache(data, isYAML(c.Path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w: %v", c.Path, ErrCacheMalformed, err)
	}

	raw := make([]types.Candidate, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		raw = append(raw, e.candidate())
	}
	cands, warnings := normalize(raw, "cache")
	if len(raw) > 0 && len(cands) == 0 {
		return nil, fmt.Errorf("%s: none of %d entries is usable: %w", c.Path, len(raw), ErrCacheMalformed)
	}

	if doc.Query != "" && q.Text != "" && !strings.EqualFold(strings.TrimSpace(doc.Query), strings.TrimSpace(q.Text)) {
		warnings = append(warnings, fmt.Sprintf("cache was built for query %q, not %q", doc.Query, q.Text))
	}

	return &Batch{
		Candidates: truncate(cands, q.MaxResults),
		Origin:     OriginCache,
		Warnings:   warnings,
	}, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// cacheDocument is the decoded cache. Files are either a bare list of
// entries or an object carrying the entries plus the query that built them.
type cacheDocument struct {
	Query   string
	Entries []cacheEntry
}

// cacheFile is the object form written by WriteCache.
type cacheFile struct {
	Query     string       `json:"query,omitempty" yaml:"query,omitempty"`
	Generated time.Time    `json:"generated,omitzero" yaml:"generated,omitempty"`
	Results   []cacheEntry `json:"results" yaml:"results"`
}

func decodeCache(data []byte, yamlFormat bool) (cacheDocument, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return cacheDocument{}, errors.New("empty file")
	}
	unmarshal := json.Unmarshal
	if yamlFormat {
		unmarshal = yaml.Unmarshal
	}

	var list []cacheEntry
	listErr := unmarshal(data, &list)
	if listErr == nil {
		return cacheDocument{Entries: list}, nil
	}

	var obj cacheFile
	if err := unmarshal(data, &obj); err != nil {
		return cacheDocument{}, listErr
	}
	if obj.Results == nil {
		return cacheDocument{}, errors.New(`expected a list of entries or an object with "results"`)
	}
	return cacheDocument{Query: obj.Query, Entries: obj.Results}, nil
}

// WriteCache persists candidates in the object form read back by
// CacheReader. The file is written to a temporary name in the same directory
// and renamed into place so readers never see a partial cache.
func WriteCache(path, query string, cands []types.Candidate) error {
	entries := make([]cacheEntry, 0, len(cands))
	for _, c := range cands {
		entries = append(entries, entryFromCandidate(c))
	}
	doc := cacheFile{Query: query, Generated: time.Now().UTC(), Results: entries}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(&doc)
	} else {
		data, err = json.MarshalIndent(&doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".litpipe-cache-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming cache into place: %w", err)
	}
	return nil
}

// cacheEntry accepts the field spellings found in caches built by earlier
// crawlers: citation_count or citations, url or link, and authors as either a
// list or a comma-separated string.
type cacheEntry struct {
	Title         string      `json:"title" yaml:"title"`
	DOI           string      `json:"doi,omitempty" yaml:"doi,omitempty"`
	Year          int         `json:"year,omitempty" yaml:"year,omitempty"`
	Journal       string      `json:"journal,omitempty" yaml:"journal,omitempty"`
	Authors       authorList  `json:"authors,omitempty" yaml:"authors,omitempty"`
	CitationCount *int        `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
	Citations     *int        `json:"citations,omitempty" yaml:"citations,omitempty"`
	Abstract      string      `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL           string      `json:"url,omitempty" yaml:"url,omitempty"`
	Link          string      `json:"link,omitempty" yaml:"link,omitempty"`
	Links         []cacheLink `json:"links,omitempty" yaml:"links,omitempty"`
	Keywords      []string    `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Source        string      `json:"source,omitempty" yaml:"source,omitempty"`
}

func (e cacheEntry) candidate() types.Candidate {
	c := types.Candidate{
		DOI:      e.DOI,
		Title:    e.Title,
		Journal:  e.Journal,
		Year:     e.Year,
		Authors:  []string(e.Authors),
		Abstract: e.Abstract,
		URL:      e.URL,
		Keywords: e.Keywords,
		Source:   e.Source,
	}
	switch {
	case e.CitationCount != nil:
		c.CitationCount = *e.CitationCount
	case e.Citations != nil:
		c.CitationCount = *e.Citations
	}
	if c.URL == "" {
		c.URL = e.Link
	}
	for _, l := range e.Links {
		if link := l.link(); link.URL != "" {
			c.Links = append(c.Links, link)
		}
	}
	return c
}

func entryFromCandidate(c types.Candidate) cacheEntry {
	n := c.CitationCount
	e := cacheEntry{
		Title:         c.Title,
		DOI:           c.DOI,
		Year:          c.Year,
		Journal:       c.Journal,
		Authors:       authorList(c.Authors),
		CitationCount: &n,
		Abstract:      c.Abstract,
		URL:           c.URL,
		Keywords:      c.Keywords,
		Source:        c.Source,
	}
	for _, l := range c.Links {
		e.Links = append(e.Links, cacheLink{URL: l.URL, ContentType: l.ContentType})
	}
	return e
}

// cacheLink mirrors Crossref's link objects ("URL", "content-type") as well
// as the snake_case form WriteCache emits. JSON field matching is
// case-insensitive, so only YAML needs the upper-case alias.
type cacheLink struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	URLUpper    string `json:"-" yaml:"URL,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	ContentDash string `json:"content-type,omitempty" yaml:"content-type,omitempty"`
}

func (l cacheLink) link() types.Link {
	out := types.Link{URL: strings.TrimSpace(l.URL), ContentType: l.ContentType}
	if out.URL == "" {
		out.URL = strings.TrimSpace(l.URLUpper)
	}
	if out.ContentType == "" {
		out.ContentType = l.ContentDash
	}
	return out
}

// authorList decodes either ["A", "B"] or "A, B".
type authorList []string

func (a *authorList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("authors: want a list or a string")
	}
	*a = splitAuthors(s)
	return nil
}

func (a *authorList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = list
	case yaml.ScalarNode:
		*a = splitAuthors(node.Value)
	default:
		return fmt.Errorf("authors: want a list or a string")
	}
	return nil
}

func splitAuthors(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
