// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litpipe/pkg/types"
)

const longText = `Heat stress during flowering reduces grain set in wheat.
We found that canopy temperature above thirty degrees lowered yield by twelve percent across sites.
Results suggest that irrigation timing moderates the effect, and that cultivars with earlier flowering escape the worst heat.
These findings are consistent with earlier field trials and crop model projections for the region over the coming decades.`

// fakeTransport answers requests with handler and records the URLs asked for.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []string
	handler func(req *http.Request) (*http.Response, error)
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL.String())
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func response(status int, contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

// sequence returns the given responses in order, repeating the last one.
func sequence(resps ...func() *http.Response) func(*http.Request) (*http.Response, error) {
	var mu sync.Mutex
	i := 0
	return func(*http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		r := resps[min(i, len(resps)-1)]()
		i++
		return r, nil
	}
}

func testConfig() types.FulltextConfig {
	cfg := types.DefaultPipelineConfig().Fulltext
	cfg.BackoffBase = time.Second
	cfg.BackoffMax = 20 * time.Second
	cfg.AttemptTimeout = 0
	cfg.RecordTimeout = 0
	cfg.Resolvers = []string{ResolverLinks, ResolverURL, ResolverDOI}
	return cfg
}

// recordingSleep returns a sleep function that records waits without
// blocking.
func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func newRecord() *types.LiteratureRecord {
	r := types.NewRecord(types.Candidate{
		DOI:   "10.1000/heat.1",
		Title: "Heat stress and crop yield",
		URL:   "https://publisher.example/heat",
		Links: []types.Link{{URL: "https://publisher.example/heat.txt", ContentType: "text/plain"}},
	})
	return &r
}

func TestAcquire_404DegradesWithoutRetry(t *testing.T) {
	tr := &fakeTransport{handler: sequence(func() *http.Response { return response(404, "text/html", "not found") })}
	var waits []time.Duration
	a := New(testConfig(), tr, WithSleep(recordingSleep(&waits)))

	rec := newRecord()
	out := a.Acquire(context.Background(), rec)

	assert.Equal(t, Degraded, out.State)
	assert.ErrorIs(t, out.Err, ErrRejected)
	assert.False(t, out.Cancelled)
	assert.Equal(t, 3, out.Attempts, "one attempt per endpoint")
	assert.Equal(t, []State{Attempting, Attempting, Attempting, Degraded}, out.Trace)
	assert.Empty(t, waits)

	assert.Equal(t, types.TextSourceMetadata, rec.TextSource)
	assert.Empty(t, rec.LocalPath)
	assert.Empty(t, rec.Fulltext)

	assert.Equal(t, []string{
		"https://publisher.example/heat.txt",
		"https://publisher.example/heat",
		"https://doi.org/10.1000/heat.1",
	}, tr.calls)
}

func TestAcquire_RetriesTransientThenSucceeds(t *testing.T) {
	tr := &fakeTransport{handler: sequence(
		func() *http.Response { return response(503, "", "") },
		func() *http.Response { return response(502, "", "") },
		func() *http.Response { return response(200, "text/plain; charset=utf-8", longText) },
	)}
	var waits []time.Duration
	a := New(testConfig(), tr, WithSleep(recordingSleep(&waits)))

	rec := newRecord()
	out := a.Acquire(context.Background(), rec)

	require.Equal(t, Succeeded, out.State, "err: %v", out.Err)
	assert.Equal(t, []State{Attempting, Backoff, Attempting, Backoff, Attempting, Succeeded}, out.Trace)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "https://publisher.example/heat.txt", out.Endpoint)

	assert.Equal(t, types.TextSourceFulltext, rec.TextSource)
	assert.Contains(t, rec.Fulltext, "We found that canopy temperature")
	assert.Empty(t, rec.LocalPath, "no store configured")
}

func TestAcquire_HonorsRetryAfter(t *testing.T) {
	tr := &fakeTransport{handler: sequence(
		func() *http.Response {
			r := response(429, "", "")
			r.Header.Set("Retry-After", "3")
			return r
		},
		func() *http.Response {
			r := response(429, "", "")
			r.Header.Set("Retry-After", "600")
			return r
		},
		func() *http.Response { return response(200, "text/plain", longText) },
	)}
	var waits []time.Duration
	a := New(testConfig(), tr, WithSleep(recordingSleep(&waits)))

	out := a.Acquire(context.Background(), newRecord())
	require.Equal(t, Succeeded, out.State)
	assert.Equal(t, []time.Duration{3 * time.Second, 20 * time.Second}, waits, "Retry-After capped at BackoffMax")
}

func TestAcquire_ExhaustsAttemptsThenNextEndpoint(t *testing.T) {
	tr := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, ".txt") {
			return response(500, "", ""), nil
		}
		return response(200, "text/plain", longText), nil
	}}
	var waits []time.Duration
	cfg := testConfig()
	cfg.MaxAttempts = 2
	a := New(cfg, tr, WithSleep(recordingSleep(&waits)))

	out := a.Acquire(context.Background(), newRecord())
	require.Equal(t, Succeeded, out.State)
	assert.Equal(t, "https://publisher.example/heat", out.Endpoint)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []State{Attempting, Backoff, Attempting, Attempting, Succeeded}, out.Trace)
}

func TestAcquire_TransportErrorsAreRetried(t *testing.T) {
	calls := 0
	tr := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return response(200, "text/plain", longText), nil
	}}
	var waits []time.Duration
	a := New(testConfig(), tr, WithSleep(recordingSleep(&waits)))

	out := a.Acquire(context.Background(), newRecord())
	assert.Equal(t, Succeeded, out.State)
	assert.Len(t, waits, 1)
}

func TestAcquire_RecordTimeout(t *testing.T) {
	tr := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	cfg := testConfig()
	cfg.RecordTimeout = 50 * time.Millisecond
	a := New(cfg, tr)

	start := time.Now()
	rec := newRecord()
	out := a.Acquire(context.Background(), rec)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Degraded, out.State)
	assert.ErrorIs(t, out.Err, ErrFetchTimeout)
	assert.False(t, out.Cancelled)
	assert.Equal(t, types.TextSourceMetadata, rec.TextSource)
}

func TestAcquire_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransport{handler: func(*http.Request) (*http.Response, error) {
		cancel()
		return nil, context.Canceled
	}}
	a := New(testConfig(), tr)

	out := a.Acquire(ctx, newRecord())
	assert.Equal(t, Degraded, out.State)
	assert.True(t, out.Cancelled)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 1, tr.count())
}

func TestAcquire_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &fakeTransport{handler: sequence(func() *http.Response { return response(200, "text/plain", longText) })}

	out := New(testConfig(), tr).Acquire(ctx, newRecord())
	assert.True(t, out.Cancelled)
	assert.Zero(t, tr.count())
}

func TestAcquire_StoreHitWorksOffline(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	rec := newRecord()
	rawPath, err := store.Save(rec.Fingerprint, ".txt", []byte(longText), longText)
	require.NoError(t, err)

	tr := &fakeTransport{handler: sequence(func() *http.Response { return response(500, "", "") })}
	a := New(testConfig(), tr, WithStore(store), Offline(true))

	out := a.Acquire(context.Background(), rec)
	require.Equal(t, Succeeded, out.State)
	assert.True(t, out.FromStore)
	assert.Zero(t, tr.count())
	assert.Equal(t, rawPath, rec.LocalPath)
	assert.Equal(t, types.TextSourceFulltext, rec.TextSource)
	assert.Equal(t, longText, rec.Fulltext)
}

func TestAcquire_OfflineMissDegrades(t *testing.T) {
	tr := &fakeTransport{handler: sequence(func() *http.Response { return response(200, "text/plain", longText) })}
	a := New(testConfig(), tr, WithStore(&Store{Dir: t.TempDir()}), Offline(true))

	out := a.Acquire(context.Background(), newRecord())
	assert.Equal(t, Degraded, out.State)
	assert.ErrorIs(t, out.Err, ErrOffline)
	assert.Zero(t, tr.count())
}

func TestAcquire_SavesArtifact(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTransport{handler: sequence(func() *http.Response { return response(200, "text/plain", longText) })}
	a := New(testConfig(), tr, WithStore(&Store{Dir: dir}))

	rec := newRecord()
	out := a.Acquire(context.Background(), rec)
	require.Equal(t, Succeeded, out.State)
	assert.False(t, out.FromStore)

	assert.Equal(t, filepath.Join(dir, Slug(rec.Fingerprint)+".txt"), rec.LocalPath)
	data, err := os.ReadFile(rec.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, longText, string(data))

	// A second run hits the store.
	again := newRecord()
	out = a.Acquire(context.Background(), again)
	assert.True(t, out.FromStore)
	assert.Equal(t, 1, tr.count())
}

func TestAcquire_NoEndpoint(t *testing.T) {
	r := types.NewRecord(types.Candidate{Title: "No identifiers at all"})
	tr := &fakeTransport{handler: sequence(func() *http.Response { return response(200, "text/plain", longText) })}

	out := New(testConfig(), tr).Acquire(context.Background(), &r)
	assert.Equal(t, Degraded, out.State)
	assert.ErrorIs(t, out.Err, ErrNoEndpoint)
}

type fakeConverter struct{ text string }

func (f fakeConverter) ConvertPDF(_ context.Context, r io.Reader) (string, error) {
	data, _ := io.ReadAll(r)
	if !strings.HasPrefix(string(data), "%PDF-") {
		return "", errors.New("not a pdf")
	}
	return f.text, nil
}

func TestAcquire_PDF(t *testing.T) {
	pdf := func() *http.Response { return response(200, "application/octet-stream", "%PDF-1.7 binary") }

	t.Run("without converter", func(t *testing.T) {
		tr := &fakeTransport{handler: sequence(pdf)}
		out := New(testConfig(), tr).Acquire(context.Background(), newRecord())
		assert.Equal(t, Degraded, out.State)
		assert.ErrorIs(t, out.Err, ErrUnsupportedContent)
		assert.Equal(t, 3, tr.count(), "unsupported content is not retried")
	})

	t.Run("with converter", func(t *testing.T) {
		dir := t.TempDir()
		tr := &fakeTransport{handler: sequence(pdf)}
		a := New(testConfig(), tr, WithStore(&Store{Dir: dir}), WithPDFConverter(fakeConverter{text: longText}))

		rec := newRecord()
		out := a.Acquire(context.Background(), rec)
		require.Equal(t, Succeeded, out.State, "err: %v", out.Err)
		assert.True(t, strings.HasSuffix(rec.LocalPath, ".pdf"))
	})
}

func TestAcquire_ShortTextIsEmpty(t *testing.T) {
	tr := &fakeTransport{handler: sequence(func() *http.Response {
		return response(200, "text/html", "<html><body><p>Please sign in to read.</p></body></html>")
	})}

	out := New(testConfig(), tr).Acquire(context.Background(), newRecord())
	assert.Equal(t, Degraded, out.State)
	assert.ErrorIs(t, out.Err, ErrEmptyText)
}

func TestAcquire_OpenAlexResolver(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/works/"):
			assert.Equal(t, "team@example.org", r.URL.Query().Get("mailto"))
			w.Write([]byte(`{"best_oa_location": {"pdf_url": "` + ts.URL + `/oa/heat.txt"}}`))
		case r.URL.Path == "/oa/heat.txt":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(longText))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	oldOA, oldDOI := openAlexWorksBase, doiBase
	openAlexWorksBase = ts.URL + "/works/"
	doiBase = ts.URL + "/doi/"
	defer func() { openAlexWorksBase, doiBase = oldOA, oldDOI }()

	cfg := testConfig()
	cfg.Resolvers = []string{ResolverOpenAlex, ResolverDOI}
	a := New(cfg, ts.Client(), WithEmail("team@example.org"))

	rec := newRecord()
	out := a.Acquire(context.Background(), rec)
	require.Equal(t, Succeeded, out.State, "err: %v", out.Err)
	assert.Equal(t, ts.URL+"/oa/heat.txt", out.Endpoint)
	assert.Equal(t, 2, out.Attempts, "lookup plus download")
}

func TestEndpoints_OrderAndDedup(t *testing.T) {
	cfg := testConfig()
	cfg.Resolvers = []string{ResolverLinks, ResolverURL, ResolverOpenAlex, ResolverDOI, "bogus"}
	a := New(cfg, &fakeTransport{})

	r := types.NewRecord(types.Candidate{
		DOI:   "doi:10.1/X",
		Title: "T",
		URL:   "https://a.example/1",
		Links: []types.Link{{URL: "https://a.example/1"}, {URL: "ftp://nope"}, {URL: "https://a.example/2"}},
	})

	eps := a.endpoints(&r)
	var names []string
	for _, ep := range eps {
		names = append(names, ep.name+" "+ep.url)
	}
	assert.Equal(t, []string{
		"link https://a.example/1",
		"link https://a.example/2",
		"openalex ",
		"doi https://doi.org/10.1/X",
	}, names)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "attempting", Attempting.String())
	assert.Equal(t, "backoff", Backoff.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "succeeded", Succeeded.String())
}
