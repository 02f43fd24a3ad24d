// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litpipe/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// crawlerCache is shaped like caches produced by the earlier citation crawler:
// comma-separated authors, Crossref-style links, and "citations" or "link"
// aliases.
const crawlerCache = `[
  {
    "title": "Heat stress and crop yield",
    "doi": "10.1000/heat.1",
    "year": 2022,
    "journal": "Field Crops Research",
    "citation_count": 120,
    "authors": "Ana Ruiz, Li Wei",
    "abstract": "We found yield losses.",
    "links": [{"URL": "https://example.org/heat.pdf", "content-type": "application/pdf"}]
  },
  {
    "title": "Drought indices revisited",
    "year": 2021,
    "citations": 40,
    "authors": ["Sam Okafor"],
    "link": "https://example.org/drought"
  }
]`

func TestCacheReader_CrawlerFormat(t *testing.T) {
	path := writeFile(t, "cache.json", crawlerCache)

	b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{Text: "heat"})
	require.NoError(t, err)
	assert.Equal(t, OriginCache, b.Origin)
	require.Len(t, b.Candidates, 2)

	first := b.Candidates[0]
	assert.Equal(t, "10.1000/heat.1", first.DOI)
	assert.Equal(t, []string{"Ana Ruiz", "Li Wei"}, first.Authors)
	assert.Equal(t, 120, first.CitationCount)
	require.Len(t, first.Links, 1)
	assert.Equal(t, types.Link{URL: "https://example.org/heat.pdf", ContentType: "application/pdf"}, first.Links[0])
	assert.Equal(t, "cache", first.Source)

	second := b.Candidates[1]
	assert.Equal(t, 40, second.CitationCount)
	assert.Equal(t, "https://example.org/drought", second.URL)
	assert.Equal(t, []string{"Sam Okafor"}, second.Authors)
}

func TestCacheReader_YAML(t *testing.T) {
	path := writeFile(t, "cache.yaml", `
query: soil carbon
results:
  - title: Soil carbon in grasslands
    doi: 10.1000/soil
    year: 2023
    citations: 7
    authors: A. One, B. Two
    links:
      - URL: https://example.org/soil.pdf
        content-type: application/pdf
`)

	b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{Text: "soil carbon"})
	require.NoError(t, err)
	require.Len(t, b.Candidates, 1)
	c := b.Candidates[0]
	assert.Equal(t, 7, c.CitationCount)
	assert.Equal(t, []string{"A. One", "B. Two"}, c.Authors)
	require.Len(t, c.Links, 1)
	assert.Equal(t, "https://example.org/soil.pdf", c.Links[0].URL)
	assert.Equal(t, "application/pdf", c.Links[0].ContentType)
	assert.Empty(t, b.Warnings)
}

func TestCacheReader_Missing(t *testing.T) {
	_, err := (&CacheReader{Path: filepath.Join(t.TempDir(), "nope.json")}).Fetch(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrCacheMissing)

	_, err = (&CacheReader{}).Fetch(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrCacheMissing)
}

func TestCacheReader_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"not json", "c.json", "{not json"},
		{"empty file", "c.json", "   "},
		{"wrong shape", "c.json", `{"items": []}`},
		{"no usable entries", "c.json", `[{"doi": "10.1000/x"}, {"title": ""}]`},
		{"bad yaml", "c.yml", "- title: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{})
			assert.ErrorIs(t, err, ErrCacheMalformed)
		})
	}
}

func TestCacheReader_EmptyListIsValid(t *testing.T) {
	path := writeFile(t, "c.json", "[]")

	b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, b.Candidates)
}

func TestCacheReader_EntryWarnings(t *testing.T) {
	path := writeFile(t, "c.json", `[
		{"title": "Good", "doi": "10.1000/a", "citation_count": 5},
		{"doi": "10.1000/b"},
		{"title": "Negative", "citation_count": -3},
		{"title": "Duplicate", "doi": "10.1000/A"}
	]`)

	b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, b.Candidates, 3)
	assert.Equal(t, 0, b.Candidates[1].CitationCount)
	assert.Len(t, b.Warnings, 3)
}

func TestCacheReader_TruncatesInFileOrder(t *testing.T) {
	path := writeFile(t, "c.json", `[{"title": "one"}, {"title": "two"}, {"title": "three"}]`)

	b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, b.Candidates, 2)
	assert.Equal(t, "one", b.Candidates[0].Title)
	assert.Equal(t, "two", b.Candidates[1].Title)
}

func TestCacheReader_QueryMismatchWarns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")
	require.NoError(t, WriteCache(path, "wheat", []types.Candidate{{Title: "Wheat"}}))

	b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{Text: "barley"})
	require.NoError(t, err)
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], `"wheat"`)
}

func roundTripCandidates() []types.Candidate {
	return []types.Candidate{
		{
			DOI:           "10.1000/Mixed.Case",
			Title:         "Irrigation scheduling with remote sensing",
			Journal:       "Agricultural Water Management",
			Year:          2022,
			Authors:       []string{"Ana Ruiz", "Li Wei"},
			CitationCount: 88,
			Abstract:      "We show that scheduling improves yield.",
			URL:           "https://example.org/irrigation",
			Links:         []types.Link{{URL: "https://example.org/irrigation.pdf", ContentType: "application/pdf"}},
			Keywords:      []string{"irrigation", "remote sensing"},
			Source:        "crossref",
		},
		{
			Title:  "Untitled preprint without DOI",
			Year:   2024,
			Source: "openalex",
		},
		{
			Title:         "Zero citations",
			DOI:           "10.1000/zero",
			CitationCount: 0,
			Source:        "crossref",
		},
	}
}

func TestWriteCache_RoundTrip(t *testing.T) {
	for _, name := range []string{"cache.json", "cache.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := roundTripCandidates()

			require.NoError(t, WriteCache(path, "irrigation", want))

			b, err := (&CacheReader{Path: path}).Fetch(context.Background(), Query{Text: "irrigation"})
			require.NoError(t, err)
			assert.Equal(t, want, b.Candidates)
			assert.Empty(t, b.Warnings)
		})
	}
}

func TestWriteCache_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	require.NoError(t, WriteCache(path, "q", roundTripCandidates()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Name(), ".litpipe-cache-"))
}
