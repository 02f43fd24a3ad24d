// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litpipe/pkg/types"
)

const soilText = `Soil carbon sequestration
Abstract
Soils store more carbon than vegetation and atmosphere combined. We show that cover crops increased soil organic carbon by eight percent. Weather varied a lot during the sampling period in all regions.
Results
The effect was significant at all depths sampled and in every plot.`

func soilRecord() *types.LiteratureRecord {
	return &types.LiteratureRecord{
		Fingerprint: "doi:10.1/soil",
		DOI:         "10.1/soil",
		Title:       "Soil carbon sequestration",
		Journal:     "Geoderma",
		Year:        2022,
		TextSource:  types.TextSourceFulltext,
		Fulltext:    soilText,
	}
}

func TestSummarize_FulltextAbstractSection(t *testing.T) {
	s := New(types.SummaryConfig{KeyPoints: 2})

	sum := s.Summarize(soilRecord(), "cover crops soil carbon")

	assert.Equal(t, "Soil carbon sequestration (Geoderma, 2022)", sum.Headline)
	assert.Equal(t, types.TextSourceFulltext, sum.Derivation)
	assert.True(t, sum.Verified)
	assert.Equal(t, []string{
		"Soils store more carbon than vegetation and atmosphere combined.",
		"We show that cover crops increased soil organic carbon by eight percent.",
	}, sum.KeyPoints)
}

func TestSummarize_KeyPointsComeFromText(t *testing.T) {
	s := New(types.SummaryConfig{})
	rec := soilRecord()

	sum := s.Summarize(rec, "carbon")
	require.NotEmpty(t, sum.KeyPoints)
	for _, p := range sum.KeyPoints {
		assert.Contains(t, rec.Fulltext, p)
	}
}

func TestSummarize_LeadingTextWithoutAbstract(t *testing.T) {
	rec := soilRecord()
	rec.Fulltext = "Soil carbon sequestration\nShort line\nCover crops raised soil carbon in every trial we ran.\nThe weather was unremarkable for the season overall."
	s := New(types.SummaryConfig{KeyPoints: 1})

	sum := s.Summarize(rec, "cover crops")
	assert.Equal(t, []string{"Cover crops raised soil carbon in every trial we ran."}, sum.KeyPoints)
}

func TestSummarize_TruncatesPoints(t *testing.T) {
	s := New(types.SummaryConfig{KeyPoints: 1, MaxPointWords: 5})

	sum := s.Summarize(soilRecord(), "cover crops")
	assert.Equal(t, []string{"We show that cover crops"}, sum.KeyPoints)
}

func TestSummarize_MetadataPlaceholder(t *testing.T) {
	rec := &types.LiteratureRecord{
		Title:      "Soil carbon sequestration",
		Journal:    "Geoderma",
		Year:       2022,
		Keywords:   []string{"soil"},
		Abstract:   "Soils   hold carbon.",
		TextSource: types.TextSourceMetadata,
	}
	s := New(types.SummaryConfig{KeywordMap: map[string]string{"carbon": "Carbon cycle"}})

	sum := s.Summarize(rec, "soil")

	assert.Equal(t, "[metadata-derived] Soil carbon sequestration (Geoderma, 2022)", sum.Headline)
	assert.Equal(t, types.TextSourceMetadata, sum.Derivation)
	assert.False(t, sum.Verified)
	require.Len(t, sum.KeyPoints, 3)
	assert.Equal(t, "Topics inferred from title and keywords: Carbon cycle, soil.", sum.KeyPoints[1])
	assert.Equal(t, manualReview, sum.KeyPoints[2])
	for _, p := range sum.KeyPoints {
		assert.NotContains(t, p, "Soils hold carbon", "placeholder uses title and keywords only")
	}
}

func TestSummarize_FulltextWithoutSentencesUsesLeadingLines(t *testing.T) {
	rec := soilRecord()
	rec.Fulltext = strings.Repeat("Table row value\n", 20) + "Plot 2 value\nPlot 3 value\n"

	sum := New(types.SummaryConfig{}).Summarize(rec, "soil")

	assert.Equal(t, types.TextSourceFulltext, sum.Derivation)
	assert.True(t, sum.Verified)
	assert.False(t, strings.HasPrefix(sum.Headline, MetadataPrefix))
	assert.Equal(t, []string{"Table row value", "Plot 2 value", "Plot 3 value"}, sum.KeyPoints)
}

func TestSummarize_FulltextWithoutTextFallsBack(t *testing.T) {
	rec := soilRecord()
	rec.Fulltext = "  "
	sum := New(types.SummaryConfig{}).Summarize(rec, "soil")

	assert.True(t, strings.HasPrefix(sum.Headline, MetadataPrefix))
	assert.False(t, sum.Verified)
	assert.NotEmpty(t, sum.KeyPoints)
}

func TestSummarize_Deterministic(t *testing.T) {
	s := New(types.SummaryConfig{})
	a := s.Summarize(soilRecord(), "soil carbon")
	b := s.Summarize(soilRecord(), "soil carbon")
	assert.Equal(t, a, b)
}

func TestApply_SetsSummaryAndKeywords(t *testing.T) {
	rec := soilRecord()
	rec.Keywords = []string{"agronomy"}
	s := New(types.SummaryConfig{KeywordMap: map[string]string{
		"cover crop": "Cover cropping",
		"nitrogen":   "Nitrogen",
	}})

	s.Apply(rec, "cover crops")

	require.NotNil(t, rec.Summary)
	assert.Equal(t, []string{"Cover cropping", "agronomy"}, rec.Keywords)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One sentence here. Then another.", []string{"One sentence here.", "Then another."}},
		{"Dr. smith went home. Then left.", []string{"Dr. smith went home.", "Then left."}},
		{"Values were 3.5 units. Next one", []string{"Values were 3.5 units.", "Next one"}},
		{"Is it? \"Yes\" it is!", []string{"Is it?", "\"Yes\" it is!"}},
		{"第一句。第二句。", []string{"第一句。", "第二句。"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSentences(tt.in), tt.in)
	}
}

func TestHeadingKey(t *testing.T) {
	assert.Equal(t, "methods", headingKey("2. Methods:"))
	assert.Equal(t, "abstract", headingKey("  ABSTRACT "))
	assert.True(t, isHeading("Conclusions"))
	assert.False(t, isHeading("Conclusions were drawn from the data."))
}

func TestAggregate(t *testing.T) {
	full := types.Summary{Derivation: types.TextSourceFulltext}
	meta := types.Summary{Derivation: types.TextSourceMetadata}
	records := []types.LiteratureRecord{
		{Title: "A", Keywords: []string{"Biomarker", "Sepsis"}, Summary: &full},
		{Title: "B", Keywords: []string{"Sepsis"}, Summary: &meta},
		{Title: "C"},
	}
	rules := []types.RecommendationRule{
		{Keywords: []string{"Sepsis"}, Text: "track sepsis outcomes"},
		{Keywords: []string{"Biomarker"}, Without: []string{"Deep learning"}, Text: "compare biomarkers"},
		{Keywords: []string{"Mortality"}, Text: "never"},
	}

	agg := Aggregate(records, rules)

	assert.Equal(t, 3, agg.Records)
	assert.Equal(t, 1, agg.ByTextSource[types.TextSourceFulltext])
	assert.Equal(t, 2, agg.ByTextSource[types.TextSourceMetadata])
	assert.Equal(t, []string{"B", "C"}, agg.NeedsReview)
	assert.Equal(t, []types.KeywordCount{{Keyword: "Sepsis", Count: 2}, {Keyword: "Biomarker", Count: 1}}, agg.Keywords)
	require.Len(t, agg.Recommendations, 3)
	assert.Equal(t, "track sepsis outcomes", agg.Recommendations[0])
	assert.Equal(t, "compare biomarkers", agg.Recommendations[1])
	assert.Contains(t, agg.Recommendations[2], "2 of 3 records")
}

func TestAggregate_NoRuleFires(t *testing.T) {
	agg := Aggregate(nil, nil)
	assert.Equal(t, []string{noThemes}, agg.Recommendations)
	assert.Zero(t, agg.Records)
}
