// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

// MaxRetryDelay caps any single wait, including server-provided Retry-After.
var MaxRetryDelay = 2 * time.Minute

const defaultMaxRetries = 5

// Doer is the subset of *http.Client used by the retry helpers.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoWithRetry executes an HTTP request and retries on HTTP 429 (Too Many
// Requests). The wait honors a Retry-After header when present and otherwise
// doubles from RetryBaseDelay: 10 s, 20 s, 40 s, ...
//
// When maxRetries is 0 the default (5) is used. On each 429 the response
// body is drained and closed before sleeping. If the context is cancelled
// during a backoff wait the function returns ctx.Err(). After exhausting
// retries the last 429 response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client Doer, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, nil
		}

		wait := Backoff(RetryBaseDelay, MaxRetryDelay, attempt)
		if ra, ok := RetryAfter(resp, time.Now()); ok {
			wait = min(ra, MaxRetryDelay)
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// maxBackoff bounds Backoff when no limit is given.
const maxBackoff = time.Duration(math.MaxInt64)

// Backoff returns base * 2^attempt capped at limit. A non-positive limit
// caps at the largest representable duration instead.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d > maxBackoff/2 {
			d = maxBackoff
			break
		}
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// RetryAfter parses the Retry-After header as delay-seconds or an HTTP date.
func RetryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
