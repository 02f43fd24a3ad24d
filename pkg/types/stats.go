// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Degradation records one non-fatal fallback from a richer data source to a
// sparser one.
type Degradation struct {
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Stage       string `json:"stage" yaml:"stage"`
	Reason      string `json:"reason" yaml:"reason"`
}

// RunStats explains what a pipeline run saw and where it degraded.
type RunStats struct {
	CandidatesSeen    int `json:"candidates_seen" yaml:"candidates_seen"`
	DuplicatesMerged  int `json:"duplicates_merged" yaml:"duplicates_merged"`
	ExcludedByRecency int `json:"excluded_by_recency" yaml:"excluded_by_recency"`
	Ranked            int `json:"ranked" yaml:"ranked"`

	// TruncatedByCap counts ranked records beyond MaxRecords.
	TruncatedByCap int `json:"truncated_by_cap" yaml:"truncated_by_cap"`

	FulltextSucceeded int `json:"fulltext_succeeded" yaml:"fulltext_succeeded"`
	FulltextDegraded  int `json:"fulltext_degraded" yaml:"fulltext_degraded"`

	Degradations []Degradation `json:"degradations,omitempty" yaml:"degradations,omitempty"`

	// SourceOrigin is "live" or "cache".
	SourceOrigin   string   `json:"source_origin,omitempty" yaml:"source_origin,omitempty"`
	SourceWarnings []string `json:"source_warnings,omitempty" yaml:"source_warnings,omitempty"`

	// SourceError is the fatal source error that aborted the run, if any.
	SourceError string `json:"source_error,omitempty" yaml:"source_error,omitempty"`

	// Cancelled is set when a run-level cancellation cut the run short.
	Cancelled bool `json:"cancelled" yaml:"cancelled"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Processed returns the number of records that completed acquisition and
// summarization.
func (s RunStats) Processed() int {
	return s.FulltextSucceeded + s.FulltextDegraded
}
