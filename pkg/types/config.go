package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litpipe/0.1 (mailto:someone@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Mode selects how the metadata source is chosen for a run. The choice is
// static for the lifetime of the run.
type Mode string

const (
	// ModeOffline reads the cache only and never touches the network.
	ModeOffline Mode = "offline"
	// ModeOnline queries the live backend only.
	ModeOnline Mode = "online"
	// ModeOnlineWithFallback prefers the live backend and falls back to the cache.
	ModeOnlineWithFallback Mode = "online-with-fallback"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeOffline, ModeOnline, ModeOnlineWithFallback:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q: want offline, online, or online-with-fallback", s)
	}
}

// SourceConfig holds settings for the metadata source stage.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Mode selects offline, online, or online-with-fallback.
	Mode Mode `json:"mode" yaml:"mode" mapstructure:"mode"`

	// Backend names the live bibliographic API: crossref or openalex.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// CachePath is the pre-built candidate cache (JSON, or YAML by extension).
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty" mapstructure:"cache_path"`

	// SaveCache, when set in an online mode, persists live candidates here.
	SaveCache string `json:"save_cache,omitempty" yaml:"save_cache,omitempty" mapstructure:"save_cache"`

	// MaxResults caps the number of candidates requested or read (default 25).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// Email is sent as the polite-pool contact to Crossref and OpenAlex.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// RateLimit is the sustained live request rate per second.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// Burst is the rate limiter bucket size.
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// MaxRetries bounds 429 retries on a live query before RateLimited is returned.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// RankConfig holds settings for the rank-dedup stage.
type RankConfig struct {
	// RecencyWindowYears excludes records older than CurrentYear - window.
	// Zero disables the filter.
	RecencyWindowYears int `json:"recency_window_years" yaml:"recency_window_years" mapstructure:"recency_window_years"`

	// CurrentYear pins the reference year; zero uses the wall clock.
	CurrentYear int `json:"current_year,omitempty" yaml:"current_year,omitempty" mapstructure:"current_year"`
}

// ReferenceYear returns CurrentYear, or now's year when unset.
func (c RankConfig) ReferenceYear(now time.Time) int {
	if c.CurrentYear > 0 {
		return c.CurrentYear
	}
	return now.Year()
}

// FulltextConfig holds settings for the fulltext acquisition stage.
type FulltextConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// ArtifactsDir is the artifact store keyed by fingerprint.
	ArtifactsDir string `json:"artifacts_dir" yaml:"artifacts_dir" mapstructure:"artifacts_dir"`

	// MaxAttempts is the number of attempts per endpoint (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// AttemptTimeout bounds a single HTTP attempt.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// RecordTimeout is the hard ceiling for one record regardless of retries.
	RecordTimeout time.Duration `json:"record_timeout" yaml:"record_timeout" mapstructure:"record_timeout"`

	// BackoffBase is the first backoff delay; it doubles per attempt.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// BackoffMax caps a single backoff delay.
	BackoffMax time.Duration `json:"backoff_max" yaml:"backoff_max" mapstructure:"backoff_max"`

	// MaxBytes caps a downloaded body.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`

	// Resolvers lists endpoint resolvers in order: links, url, openalex, doi.
	Resolvers []string `json:"resolvers" yaml:"resolvers" mapstructure:"resolvers"`

	// PDFImage is the container image used to convert PDFs to text. Empty
	// disables PDF extraction, making PDFs an unsupported content type.
	PDFImage string `json:"pdf_image,omitempty" yaml:"pdf_image,omitempty" mapstructure:"pdf_image"`
}

// SummaryConfig holds the summarizer's tunable heuristics.
type SummaryConfig struct {
	// KeyPoints is the number of sentences kept from fulltext (default 3).
	KeyPoints int `json:"key_points" yaml:"key_points" mapstructure:"key_points"`

	// MaxPointWords truncates each key point (default 60).
	MaxPointWords int `json:"max_point_words" yaml:"max_point_words" mapstructure:"max_point_words"`

	// CuePhrases add weight to sentences that report findings.
	CuePhrases []string `json:"cue_phrases" yaml:"cue_phrases" mapstructure:"cue_phrases"`

	// KeywordMap maps a lowercase needle to the keyword label it implies.
	KeywordMap map[string]string `json:"keyword_map,omitempty" yaml:"keyword_map,omitempty" mapstructure:"keyword_map"`

	// Rules turn the run's keyword pool into recommendations.
	Rules []RecommendationRule `json:"rules,omitempty" yaml:"rules,omitempty" mapstructure:"rules"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// PipelineConfig groups all stage configurations for one run. It is passed
// explicitly; no stage reads process-wide state.
type PipelineConfig struct {
	Source   SourceConfig   `json:"source" yaml:"source" mapstructure:"source"`
	Rank     RankConfig     `json:"rank" yaml:"rank" mapstructure:"rank"`
	Fulltext FulltextConfig `json:"fulltext" yaml:"fulltext" mapstructure:"fulltext"`
	Summary  SummaryConfig  `json:"summary" yaml:"summary" mapstructure:"summary"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`

	// MaxRecords caps how many ranked records are acquired and summarized
	// (0 = all).
	MaxRecords int `json:"max_records" yaml:"max_records" mapstructure:"max_records"`

	// Workers is the fulltext acquisition pool size (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

const defaultUserAgent = "litpipe/0.1"

// DefaultPipelineConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Source: SourceConfig{
			HTTPConfig: HTTPConfig{Timeout: 30 * time.Second, UserAgent: defaultUserAgent},
			Mode:       ModeOnlineWithFallback,
			Backend:    "crossref",
			MaxResults: 25,
			RateLimit:  2,
			Burst:      1,
			MaxRetries: 3,
		},
		Rank: RankConfig{RecencyWindowYears: 5},
		Fulltext: FulltextConfig{
			HTTPConfig:     HTTPConfig{Timeout: 45 * time.Second, UserAgent: defaultUserAgent},
			ArtifactsDir:   "outputs/downloads",
			MaxAttempts:    3,
			AttemptTimeout: 45 * time.Second,
			RecordTimeout:  2 * time.Minute,
			BackoffBase:    time.Second,
			BackoffMax:     20 * time.Second,
			MaxBytes:       25_000_000,
			Resolvers:      []string{"links", "url", "openalex", "doi"},
		},
		Summary: SummaryConfig{
			KeyPoints:     3,
			MaxPointWords: 60,
			CuePhrases: []string{
				"we found", "we show", "results", "conclusion", "demonstrate",
				"significant", "associated with", "suggest", "compared with",
			},
		},
		Logging:    LoggingConfig{Level: "info", Format: "console"},
		MaxRecords: 25,
		Workers:    4,
	}
}
