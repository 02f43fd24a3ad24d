// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"sort"

	"github.com/pdiddy/litpipe/pkg/types"
)

// noThemes is recommended when no rule fires.
const noThemes = "No recurring themes were identified from titles; manual review is recommended to add follow-up directions."

// Aggregate builds the cross-record report for summarized records. Records
// without a summary count as metadata-derived.
func Aggregate(records []types.LiteratureRecord, rules []types.RecommendationRule) types.Aggregate {
	agg := types.Aggregate{
		Records:      len(records),
		ByTextSource: map[types.TextSource]int{},
	}

	counts := make(map[string]int)
	for _, rec := range records {
		src := types.TextSourceMetadata
		if rec.Summary != nil {
			src = rec.Summary.Derivation
		}
		agg.ByTextSource[src]++
		if src == types.TextSourceMetadata {
			agg.NeedsReview = append(agg.NeedsReview, rec.Title)
		}
		for _, k := range rec.Keywords {
			counts[k]++
		}
	}

	for k, n := range counts {
		agg.Keywords = append(agg.Keywords, types.KeywordCount{Keyword: k, Count: n})
	}
	sort.Slice(agg.Keywords, func(i, j int) bool {
		a, b := agg.Keywords[i], agg.Keywords[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Keyword < b.Keyword
	})

	for _, r := range rules {
		if anyIn(r.Keywords, counts) && !anyIn(r.Without, counts) {
			agg.Recommendations = append(agg.Recommendations, r.Text)
		}
	}
	if len(agg.Recommendations) == 0 {
		agg.Recommendations = append(agg.Recommendations, noThemes)
	}
	if n := len(agg.NeedsReview); n > 0 {
		agg.Recommendations = append(agg.Recommendations,
			fmt.Sprintf("%d of %d records have metadata-derived summaries and need manual full-text review.", n, len(records)))
	}
	return agg
}

func anyIn(keywords []string, pool map[string]int) bool {
	for _, k := range keywords {
		if pool[k] > 0 {
			return true
		}
	}
	return false
}
