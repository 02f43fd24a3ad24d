// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litpipe/internal/httputil"
	"github.com/pdiddy/litpipe/pkg/types"
)

// maxResponseBytes bounds a decoded API response.
const maxResponseBytes = 32 << 20

// Backend encapsulates one bibliographic API: how to ask it and how to read
// its answer. Each API implements this interface per the Strategy pattern.
type Backend interface {
	Name() string
	NewRequest(ctx context.Context, q Query, email string) (*http.Request, error)
	Decode(r io.Reader) ([]types.Candidate, error)
}

// NewBackend returns the backend registered under name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "", "crossref":
		return &CrossrefBackend{}, nil
	case "openalex":
		return &OpenAlexBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q: want crossref or openalex", name)
	}
}

// LiveFetcher issues rate-limited queries against a Backend. Requests are
// spaced by a token bucket, and HTTP 429 responses are retried with backoff
// up to MaxRetries before RateLimited is reported.
type LiveFetcher struct {
	backend    Backend
	client     httputil.Doer
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	email      string
	log        zerolog.Logger
}

// NewLiveFetcher wires a backend to an HTTP client using the source config.
// A nil client gets an *http.Client with cfg.Timeout.
func NewLiveFetcher(backend Backend, client httputil.Doer, cfg types.SourceConfig, log zerolog.Logger) *LiveFetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &LiveFetcher{
		backend:    backend,
		client:     client,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: cfg.MaxRetries,
		userAgent:  cfg.UserAgent,
		email:      cfg.Email,
		log:        log.With().Str("backend", backend.Name()).Logger(),
	}
}

// Name returns the backend identifier.
func (f *LiveFetcher) Name() string { return f.backend.Name() }

// Fetch runs one query.
func (f *LiveFetcher) Fetch(ctx context.Context, q Query) (*Batch, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: waiting for rate limiter: %w", f.Name(), err)
	}

	req, err := f.backend.NewRequest(ctx, q, f.email)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", f.Name(), err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.maxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %v", f.Name(), ErrNetwork, err)
	}
	defer resp.Body.Close()

	f.log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("url", req.URL.Redacted()).
		Msg("live query")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rle := &RateLimitError{Backend: f.Name()}
		if ra, ok := httputil.RetryAfter(resp, time.Now()); ok {
			rle.RetryAfter = ra
		}
		return nil, rle
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: %w: HTTP %d", f.Name(), ErrNetwork, resp.StatusCode)
	}

	raw, err := f.backend.Decode(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: decoding response: %v", f.Name(), ErrNetwork, err)
	}

	cands, warnings := normalize(raw, f.Name())
	return &Batch{
		Candidates: truncate(cands, q.MaxResults),
		Origin:     OriginLive,
		Warnings:   warnings,
	}, nil
}
