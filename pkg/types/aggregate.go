// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// KeywordCount is one keyword and the number of records carrying it.
type KeywordCount struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Count   int    `json:"count" yaml:"count"`
}

// Aggregate is the cross-record report built after all records are
// summarized.
type Aggregate struct {
	Records int `json:"records" yaml:"records"`

	// ByTextSource counts records per summary derivation.
	ByTextSource map[TextSource]int `json:"by_text_source" yaml:"by_text_source"`

	// Keywords is ordered by count descending, then keyword.
	Keywords []KeywordCount `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// NeedsReview lists titles whose summaries are metadata-derived.
	NeedsReview []string `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`

	// Recommendations are follow-up actions derived from the keyword pool.
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// RecommendationRule fires when any of Keywords appears in the run's keyword
// pool and none of Without does.
type RecommendationRule struct {
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
	Without  []string `json:"without,omitempty" yaml:"without,omitempty" mapstructure:"without"`
	Text     string   `json:"text" yaml:"text" mapstructure:"text"`
}
