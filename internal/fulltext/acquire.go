// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext obtains article body text for ranked records. Each record
// runs through a bounded state machine (Attempting, Backoff, Degraded,
// Succeeded) over an ordered list of endpoints. The transport and the sleep
// function are injected so the machine can be driven without a network.
// Completed artifacts are kept in a Store keyed by fingerprint.
package fulltext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/litpipe/internal/httputil"
	"github.com/pdiddy/litpipe/pkg/types"
)

// Acquisition errors. None of them abort a run; they explain a Degraded
// outcome.
var (
	ErrFetchTimeout       = errors.New("fulltext fetch timed out")
	ErrUnsupportedContent = errors.New("unsupported content type")
	ErrRejected           = errors.New("request rejected")
	ErrTransient          = errors.New("transient fetch failure")
	ErrEmptyText          = errors.New("no usable text extracted")
	ErrTooLarge           = errors.New("response exceeds size limit")
	ErrNoEndpoint         = errors.New("no fulltext endpoint")
	ErrOffline            = errors.New("offline and not in artifact store")
)

// State is a node of the per-record acquisition machine.
type State int

const (
	Attempting State = iota
	Backoff
	Degraded
	Succeeded
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Backoff:
		return "backoff"
	case Degraded:
		return "degraded"
	case Succeeded:
		return "succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the terminal result of acquiring one record.
type Outcome struct {
	// State is Succeeded or Degraded.
	State State
	// Trace lists every state entered, ending with State.
	Trace []State
	// Endpoint is the URL that produced the text, if any.
	Endpoint string
	// Attempts counts HTTP requests issued across all endpoints.
	Attempts int
	// FromStore is set when the artifact store already held the text.
	FromStore bool
	// Cancelled is set when the parent context ended the attempt. The record
	// is then incomplete and must not be reported as processed.
	Cancelled bool
	// Err explains a Degraded outcome.
	Err error
}

// Transport issues one HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// PDFConverter turns a PDF into plain text.
type PDFConverter interface {
	ConvertPDF(ctx context.Context, pdf io.Reader) (string, error)
}

// Acquirer runs the acquisition machine for individual records. It holds no
// per-record state and is safe for concurrent use.
type Acquirer struct {
	cfg       types.FulltextConfig
	transport Transport
	store     *Store
	converter PDFConverter
	offline   bool
	email     string
	sleep     func(ctx context.Context, d time.Duration) error
	log       zerolog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithStore persists and reuses artifacts.
func WithStore(s *Store) Option { return func(a *Acquirer) { a.store = s } }

// WithPDFConverter enables PDF extraction.
func WithPDFConverter(c PDFConverter) Option { return func(a *Acquirer) { a.converter = c } }

// Offline restricts acquisition to artifact store lookups.
func Offline(offline bool) Option { return func(a *Acquirer) { a.offline = offline } }

// WithEmail sets the polite-pool contact for OpenAlex lookups.
func WithEmail(email string) Option { return func(a *Acquirer) { a.email = email } }

// WithSleep replaces the backoff sleep. Tests use it to record waits.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Acquirer) { a.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option { return func(a *Acquirer) { a.log = log } }

// New returns an Acquirer. A nil transport gets an *http.Client with
// cfg.Timeout.
func New(cfg types.FulltextConfig, transport Transport, opts ...Option) *Acquirer {
	if transport == nil {
		transport = &http.Client{Timeout: cfg.Timeout}
	}
	defaults := types.DefaultPipelineConfig().Fulltext
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaults.MaxBytes
	}
	if len(cfg.Resolvers) == 0 {
		cfg.Resolvers = defaults.Resolvers
	}
	a := &Acquirer{
		cfg:       cfg,
		transport: transport,
		sleep:     httputil.Sleep,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Acquire tries to obtain fulltext for rec. On success it sets
// rec.TextSource, rec.LocalPath, and rec.Fulltext; on degradation rec is left
// metadata-only. Acquire never returns an error: the outcome carries it.
func (a *Acquirer) Acquire(ctx context.Context, rec *types.LiteratureRecord) Outcome {
	m := &machine{a: a, rec: rec, log: a.log.With().Str("fingerprint", rec.Fingerprint).Logger()}
	return m.run(ctx)
}

// machine is the state of one Acquire call.
type machine struct {
	a   *Acquirer
	rec *types.LiteratureRecord
	log zerolog.Logger
	out Outcome
}

func (m *machine) enter(s State) {
	m.out.State = s
	m.out.Trace = append(m.out.Trace, s)
}

func (m *machine) succeed(endpoint, path, text string) Outcome {
	m.rec.TextSource = types.TextSourceFulltext
	m.rec.LocalPath = path
	m.rec.Fulltext = text
	m.out.Endpoint = endpoint
	m.out.Err = nil
	m.enter(Succeeded)
	return m.out
}

func (m *machine) degrade(err error) Outcome {
	m.out.Err = err
	m.enter(Degraded)
	m.log.Debug().Err(err).Int("attempts", m.out.Attempts).Msg("fulltext degraded")
	return m.out
}

func (m *machine) run(ctx context.Context) Outcome {
	a := m.a
	if err := ctx.Err(); err != nil {
		m.out.Cancelled = true
		return m.degrade(err)
	}

	if a.store != nil {
		if art, ok := a.store.Lookup(m.rec.Fingerprint); ok {
			m.out.FromStore = true
			return m.succeed("", art.RawPath, art.Text)
		}
	}
	if a.offline {
		return m.degrade(ErrOffline)
	}

	rctx := ctx
	if a.cfg.RecordTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, a.cfg.RecordTimeout)
		defer cancel()
	}

	endpoints := a.endpoints(m.rec)
	if len(endpoints) == 0 {
		return m.degrade(ErrNoEndpoint)
	}

	var errs []error
	for _, ep := range endpoints {
		target := ep.url
		if ep.lookup != nil {
			m.enter(Attempting)
			m.out.Attempts++
			u, err := ep.lookup(rctx)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ep.name, err))
			}
			if rctx.Err() != nil {
				break
			}
			if u == "" {
				continue
			}
			target = u
		}

		body, mediaType, err := m.fetch(rctx, target)
		if err == nil {
			var text string
			text, err = a.extract(rctx, mediaType, body, target)
			if err == nil {
				path := ""
				if a.store != nil {
					var saveErr error
					path, saveErr = a.store.Save(m.rec.Fingerprint, extensionFor(mediaType), body, text)
					if saveErr != nil {
						m.log.Warn().Err(saveErr).Msg("storing artifact failed")
					}
				}
				return m.succeed(target, path, text)
			}
		}
		errs = append(errs, fmt.Errorf("%s %s: %w", ep.name, target, err))
		if rctx.Err() != nil {
			break
		}
	}

	switch {
	case ctx.Err() != nil:
		m.out.Cancelled = true
		return m.degrade(ctx.Err())
	case rctx.Err() != nil:
		return m.degrade(fmt.Errorf("%w after %v: %w", ErrFetchTimeout, a.cfg.RecordTimeout, errors.Join(errs...)))
	}
	return m.degrade(errors.Join(errs...))
}

// fetch runs Attempting/Backoff cycles against one URL. 429, 5xx, and
// transport errors are retried up to MaxAttempts; other 4xx responses and
// oversize bodies end the endpoint immediately.
func (m *machine) fetch(ctx context.Context, target string) ([]byte, string, error) {
	a := m.a
	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			m.enter(Backoff)
			wait := httputil.Backoff(a.cfg.BackoffBase, a.cfg.BackoffMax, attempt-1)
			var rle *retryAfterError
			if errors.As(lastErr, &rle) {
				wait = rle.wait
				if a.cfg.BackoffMax > 0 {
					wait = min(wait, a.cfg.BackoffMax)
				}
			}
			if err := a.sleep(ctx, wait); err != nil {
				return nil, "", err
			}
		}

		m.enter(Attempting)
		m.out.Attempts++
		body, mediaType, err := a.attempt(ctx, target)
		if err == nil {
			return body, mediaType, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return nil, "", err
		}
		m.log.Debug().Err(err).Int("attempt", attempt+1).Str("url", target).Msg("fulltext attempt failed")
	}
	return nil, "", lastErr
}

// retryAfterError carries a server-requested wait.
type retryAfterError struct {
	err  error
	wait time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

func retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// attempt issues one request bounded by AttemptTimeout and reads the body.
func (a *Acquirer) attempt(ctx context.Context, target string) ([]byte, string, error) {
	actx := ctx
	if a.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.cfg.AttemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := a.transport.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		err := fmt.Errorf("%w: HTTP %d", ErrTransient, resp.StatusCode)
		if wait, ok := httputil.RetryAfter(resp, time.Now()); ok {
			return nil, "", &retryAfterError{err: err, wait: wait}
		}
		return nil, "", err
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %v", ErrTransient, err)
	}
	if int64(len(body)) > a.cfg.MaxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, a.cfg.MaxBytes)
	}
	return body, mediaTypeOf(resp.Header.Get("Content-Type"), body), nil
}
