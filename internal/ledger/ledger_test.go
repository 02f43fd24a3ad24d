// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/litpipe/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(query string, started time.Time) *Run {
	return &Run{
		Query:     query,
		Mode:      types.ModeOffline,
		StartedAt: started,
		Stats: types.RunStats{
			SourceOrigin:      "cache",
			Ranked:            2,
			FulltextSucceeded: 1,
			FulltextDegraded:  1,
			Degradations:      []types.Degradation{{Fingerprint: "doi:10.1/b", Stage: "fulltext", Reason: "HTTP 404"}},
		},
		Aggregate: types.Aggregate{Records: 2, Recommendations: []string{"review"}},
		Records: []types.LiteratureRecord{
			{
				Fingerprint: "doi:10.1/a",
				DOI:         "10.1/a",
				Title:       "Soil carbon under cover crops",
				Keywords:    []string{"Agronomy"},
				TextSource:  types.TextSourceFulltext,
				Summary:     &types.Summary{Headline: "Soil carbon under cover crops", KeyPoints: []string{"Cover crops add 8% carbon."}, Derivation: types.TextSourceFulltext, Verified: true},
			},
			{
				Fingerprint: "doi:10.1/b",
				DOI:         "10.1/b",
				Title:       "Sepsis biomarkers",
				TextSource:  types.TextSourceMetadata,
				Fulltext:    "never persisted",
			},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.Save(ctx, sampleRun("soil carbon", started))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "soil carbon", run.Query)
	assert.Equal(t, types.ModeOffline, run.Mode)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, 1, run.Stats.FulltextSucceeded)
	require.Len(t, run.Stats.Degradations, 1)
	assert.Equal(t, []string{"review"}, run.Aggregate.Recommendations)

	require.Len(t, run.Records, 2)
	assert.Equal(t, "Soil carbon under cover crops", run.Records[0].Title)
	require.NotNil(t, run.Records[0].Summary)
	assert.True(t, run.Records[0].Summary.Verified)
	assert.Equal(t, "Sepsis biomarkers", run.Records[1].Title)
	assert.Empty(t, run.Records[1].Fulltext)
}

func TestGet_ByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("q", time.Now())
	run.ID = "abc123-run"
	_, err := s.Save(ctx, run)
	require.NoError(t, err)

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123-run", got.ID)

	_, err = s.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	other := sampleRun("q2", time.Now())
	other.ID = "abc999-run"
	_, err = s.Save(ctx, other)
	require.NoError(t, err)

	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestGet_PrefixWildcardsAreLiteral(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Save(context.Background(), sampleRun("q", time.Now()))
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "%")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		_, err := s.Save(ctx, sampleRun(q, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].Query)
	assert.Equal(t, "second", runs[1].Query)
	assert.Equal(t, 2, runs[0].Records)
	assert.Equal(t, 1, runs[0].Fulltext)
	assert.Equal(t, "cache", runs[0].Origin)
	assert.False(t, runs[0].Cancelled)
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, sampleRun("q", time.Now()))
	require.NoError(t, err)

	tests := []struct {
		text string
		want []string
	}{
		{"SEPSIS", []string{"Sepsis biomarkers"}},
		{"agronomy", []string{"Soil carbon under cover crops"}},
		{"8% carbon", []string{"Soil carbon under cover crops"}},
		{"100%", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			hits, err := s.Search(ctx, tt.text, 0)
			require.NoError(t, err)
			var titles []string
			for _, h := range hits {
				assert.Equal(t, id, h.RunID)
				titles = append(titles, h.Record.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Save(context.Background(), sampleRun("q", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, run.Records, 2)
}
