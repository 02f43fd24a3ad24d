// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source provides the metadata sources that feed the pipeline: a
// cache reader for air-gapped runs, a rate-limited live fetcher for Crossref
// and OpenAlex, and the static mode selection that decides which of them a
// run uses. Every source normalizes its payload into types.Candidate before
// returning it.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Sentinel errors. ErrSourceUnavailable is the only one that aborts a run.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrCacheMissing      = errors.New("cache missing")
	ErrCacheMalformed    = errors.New("cache malformed")
	ErrNetwork           = errors.New("network error")
	ErrRateLimited       = errors.New("rate limited")
)

// RateLimitError reports remote throttling. Callers must wait at least
// RetryAfter before repeating the same request.
type RateLimitError struct {
	Backend    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %v", e.Backend, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Backend)
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Origin values reported in Batch.Origin.
const (
	OriginLive  = "live"
	OriginCache = "cache"
)

// Query holds the parameters of one metadata fetch.
type Query struct {
	Text string
	// MaxResults caps the candidates returned; 0 means no cap.
	MaxResults int
	// FromYear, when positive, asks live backends for works published on or
	// after January 1 of that year.
	FromYear int
}

// Batch is the output of one fetch.
type Batch struct {
	Candidates []types.Candidate
	Origin     string
	// Warnings are data-quality and fallback notes; none of them are fatal.
	Warnings []string
}

// Source provides candidates for a query.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (*Batch, error)
}

// Select builds the source for a run. The mode is fixed for the run:
// offline never touches live, online never touches cache, and
// online-with-fallback tries live first and records the fallback as a
// warning. Either live or cache may be nil when not configured.
func Select(mode types.Mode, live, cache Source, log zerolog.Logger) (Source, error) {
	switch mode {
	case types.ModeOffline:
		if cache == nil {
			return nil, unavailable(fmt.Errorf("offline mode requires a cache: %w", ErrCacheMissing))
		}
		return strict{cache}, nil
	case types.ModeOnline:
		if live == nil {
			return nil, unavailable(errors.New("online mode requires a live backend"))
		}
		return strict{live}, nil
	case types.ModeOnlineWithFallback:
		switch {
		case live == nil && cache == nil:
			return nil, unavailable(errors.New("no live backend or cache configured"))
		case cache == nil:
			return strict{live}, nil
		case live == nil:
			return strict{cache}, nil
		}
		return &fallback{primary: live, secondary: cache, log: log}, nil
	default:
		_, err := types.ParseMode(string(mode))
		return nil, err
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

// strict surfaces any failure of its source as ErrSourceUnavailable.
type strict struct{ src Source }

func (s strict) Name() string { return s.src.Name() }

func (s strict) Fetch(ctx context.Context, q Query) (*Batch, error) {
	b, err := s.src.Fetch(ctx, q)
	if err != nil {
		return nil, unavailable(err)
	}
	return b, nil
}

// fallback tries primary, then secondary.
type fallback struct {
	primary   Source
	secondary Source
	log       zerolog.Logger
}

func (f *fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *fallback) Fetch(ctx context.Context, q Query) (*Batch, error) {
	b, err := f.primary.Fetch(ctx, q)
	if err == nil {
		return b, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, unavailable(ctxErr)
	}

	f.log.Warn().Err(err).
		Str("primary", f.primary.Name()).
		Str("fallback", f.secondary.Name()).
		Msg("primary source failed, falling back")

	fb, fbErr := f.secondary.Fetch(ctx, q)
	if fbErr != nil {
		return nil, unavailable(errors.Join(err, fbErr))
	}
	note := fmt.Sprintf("%s failed (%v); used %s", f.primary.Name(), err, f.secondary.Name())
	fb.Warnings = append([]string{note}, fb.Warnings...)
	return fb, nil
}
