// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability builds the structured logger and the Prometheus
// metrics shared by pipeline stages.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/pkg/types"
)

// NewLogger creates a zerolog logger writing to out (stderr when nil).
// Format "console" or "pretty" produces human-readable lines; anything
// else produces JSON.
func NewLogger(cfg types.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// WithRecord adds record identification fields to a logger.
func WithRecord(logger zerolog.Logger, rec *types.LiteratureRecord) zerolog.Logger {
	return logger.With().
		Str("fingerprint", rec.Fingerprint).
		Str("title", rec.Title).
		Logger()
}
