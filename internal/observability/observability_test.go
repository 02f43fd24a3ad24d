// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/pkg/types"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(types.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("stage", "fulltext").Msg("degraded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "fulltext", entry["stage"])
	assert.Contains(t, entry, "time")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(types.LoggingConfig{Level: "debug", Format: "console"}, &buf)
	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestWithRecord(t *testing.T) {
	var buf bytes.Buffer
	log := WithRecord(zerolog.New(&buf), &types.LiteratureRecord{Fingerprint: "doi:10.1/a", Title: "A"})
	log.Info().Msg("x")
	assert.Contains(t, buf.String(), `"fingerprint":"doi:10.1/a"`)
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordRank("cache", 5, 2, 1)
	m.RecordFulltext(fulltext.Outcome{State: fulltext.Succeeded, Attempts: 2}, time.Second)
	m.RecordFulltext(fulltext.Outcome{State: fulltext.Succeeded, FromStore: true}, 0)
	m.RecordFulltext(fulltext.Outcome{State: fulltext.Degraded, Attempts: 3}, time.Second)
	m.RecordSummary(types.TextSourceFulltext)
	m.RecordRun(types.RunStats{Cancelled: true, Duration: 3 * time.Second})

	assert.Equal(t, 5.0, testutil.ToFloat64(m.CandidatesTotal.WithLabelValues("cache")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DuplicatesMerged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExcludedByRecency))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FulltextTotal.WithLabelValues("succeeded", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FulltextTotal.WithLabelValues("succeeded", "store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FulltextTotal.WithLabelValues("degraded", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummariesTotal.WithLabelValues("fulltext")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("cancelled")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.FulltextTotal))
}

func TestMetrics_Independent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordSummary(types.TextSourceMetadata)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SummariesTotal.WithLabelValues("metadata")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordRun(types.RunStats{})

	path := filepath.Join(t.TempDir(), "litpipe.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `litpipe_runs_total{outcome="ok"} 1`)
}
