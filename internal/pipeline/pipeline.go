// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one literature retrieval: fetch candidates, rank and
// dedup them, acquire full text with a bounded worker pool, and summarize
// each record. Output order is fixed by ranking and never depends on
// acquisition latency.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/internal/observability"
	"github.com/pdiddy/litpipe/internal/rank"
	"github.com/pdiddy/litpipe/internal/source"
	"github.com/pdiddy/litpipe/internal/summarize"
	"github.com/pdiddy/litpipe/pkg/types"
)

// errNoSummaryText marks fetched text that yielded no key points.
var errNoSummaryText = errors.New("extracted text has no usable content for a summary")

// Acquirer obtains full text for one record. *fulltext.Acquirer satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, rec *types.LiteratureRecord) fulltext.Outcome
}

// Result is the output of one run.
type Result struct {
	Query     string                   `json:"query" yaml:"query"`
	Records   []types.LiteratureRecord `json:"records" yaml:"records"`
	Stats     types.RunStats           `json:"stats" yaml:"stats"`
	Aggregate types.Aggregate          `json:"aggregate" yaml:"aggregate"`
}

// Pipeline wires the stages of a run. It is reusable across runs.
type Pipeline struct {
	cfg        types.PipelineConfig
	source     source.Source
	acquirer   Acquirer
	summarizer *summarize.Summarizer
	metrics    *observability.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option { return func(p *Pipeline) { p.log = log } }

// WithClock replaces time.Now. The clock drives the recency reference year
// and run duration.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New returns a Pipeline over the given source and acquirer.
func New(cfg types.PipelineConfig, src source.Source, acq Acquirer, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		source:     src,
		acquirer:   acq,
		summarizer: summarize.New(cfg.Summary),
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the pipeline for query. Only a source failure is returned as
// an error (wrapping source.ErrSourceUnavailable); the partial Result still
// carries stats. Every other failure degrades a record and is reported in
// Stats.Degradations.
//
// When ctx is cancelled, no further records are scheduled and Run returns
// the longest prefix of ranked records that completed, with
// Stats.Cancelled set.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	start := p.now()
	res := &Result{Query: query}
	stats := &res.Stats
	finish := func() {
		stats.Duration = p.now().Sub(start)
		if p.metrics != nil {
			p.metrics.RecordRun(*stats)
		}
	}

	refYear := p.cfg.Rank.ReferenceYear(start)
	q := source.Query{Text: query, MaxResults: p.cfg.Source.MaxResults}
	if w := p.cfg.Rank.RecencyWindowYears; w > 0 {
		q.FromYear = refYear - w
	}

	batch, err := p.source.Fetch(ctx, q)
	if err != nil {
		stats.SourceError = err.Error()
		stats.Cancelled = ctx.Err() != nil
		finish()
		p.log.Error().Err(err).Str("source", p.source.Name()).Msg("metadata source unavailable")
		return res, err
	}
	stats.SourceOrigin = batch.Origin
	stats.SourceWarnings = append(stats.SourceWarnings, batch.Warnings...)
	for _, w := range batch.Warnings {
		p.log.Warn().Str("source", p.source.Name()).Msg(w)
	}
	p.saveCache(query, batch, stats)

	ranked := rank.Process(batch.Candidates, rank.Options{
		RecencyWindowYears: p.cfg.Rank.RecencyWindowYears,
		ReferenceYear:      refYear,
	})
	stats.CandidatesSeen = ranked.CandidatesSeen
	stats.DuplicatesMerged = ranked.DuplicatesMerged
	stats.ExcludedByRecency = ranked.ExcludedByRecency
	stats.Ranked = len(ranked.Records)
	if p.metrics != nil {
		p.metrics.RecordRank(batch.Origin, ranked.CandidatesSeen, ranked.DuplicatesMerged, ranked.ExcludedByRecency)
	}

	records := ranked.Records
	if n := p.cfg.MaxRecords; n > 0 && len(records) > n {
		stats.TruncatedByCap = len(records) - n
		records = records[:n]
	}

	outcomes := p.process(ctx, query, records)

	completed := 0
	for completed < len(outcomes) && outcomes[completed].done {
		completed++
	}
	stats.Cancelled = completed < len(records)
	for i := range completed {
		p.account(&records[i], outcomes[i], stats)
	}
	res.Records = records[:completed:completed]
	res.Aggregate = summarize.Aggregate(res.Records, p.cfg.Summary.Rules)

	finish()
	p.log.Info().
		Str("query", query).
		Str("origin", stats.SourceOrigin).
		Int("ranked", stats.Ranked).
		Int("processed", stats.Processed()).
		Int("fulltext", stats.FulltextSucceeded).
		Int("degraded", stats.FulltextDegraded).
		Bool("cancelled", stats.Cancelled).
		Dur("duration", stats.Duration).
		Msg("run complete")
	return res, nil
}

// recordOutcome is one worker's report.
type recordOutcome struct {
	done    bool
	outcome fulltext.Outcome
	elapsed time.Duration
	// summaryErr is set when fetched text produced no fulltext summary.
	summaryErr error
}

// process acquires and summarizes records with at most Workers in flight.
// Each worker owns exactly one record.
func (p *Pipeline) process(ctx context.Context, query string, records []types.LiteratureRecord) []recordOutcome {
	outcomes := make([]recordOutcome, len(records))
	workers := p.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec := &records[i]
			began := time.Now()
			out := p.acquirer.Acquire(ctx, rec)
			if out.Cancelled {
				return nil
			}
			p.summarizer.Apply(rec, query)
			ro := recordOutcome{done: true, outcome: out, elapsed: time.Since(began)}
			if rec.TextSource == types.TextSourceFulltext && rec.Summary.Derivation != types.TextSourceFulltext {
				// The summary decides what the record is derived from.
				rec.TextSource = types.TextSourceMetadata
				ro.summaryErr = errNoSummaryText
			}
			outcomes[i] = ro
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// account folds one completed record into the run stats.
func (p *Pipeline) account(rec *types.LiteratureRecord, ro recordOutcome, stats *types.RunStats) {
	out := ro.outcome
	if out.State == fulltext.Succeeded && ro.summaryErr == nil {
		stats.FulltextSucceeded++
	} else {
		stats.FulltextDegraded++
		stage, reason := "fulltext", "fulltext unavailable"
		switch {
		case ro.summaryErr != nil:
			stage, reason = "summary", ro.summaryErr.Error()
		case out.Err != nil:
			reason = out.Err.Error()
		}
		stats.Degradations = append(stats.Degradations, types.Degradation{
			Fingerprint: rec.Fingerprint,
			Stage:       stage,
			Reason:      reason,
		})
		rl := observability.WithRecord(p.log, rec)
		rl.Warn().
			Str("stage", stage).
			Int("attempts", out.Attempts).
			Str("reason", reason).
			Msg("fulltext degraded to metadata")
	}
	if p.metrics != nil {
		p.metrics.RecordFulltext(out, ro.elapsed)
		if rec.Summary != nil {
			p.metrics.RecordSummary(rec.Summary.Derivation)
		}
	}
}

// saveCache persists live candidates for later offline runs. A failure is
// recorded as a source warning.
func (p *Pipeline) saveCache(query string, batch *source.Batch, stats *types.RunStats) {
	path := p.cfg.Source.SaveCache
	if path == "" || batch.Origin != source.OriginLive {
		return
	}
	if err := source.WriteCache(path, query, batch.Candidates); err != nil {
		p.log.Warn().Err(err).Str("path", path).Msg("saving candidate cache failed")
		stats.SourceWarnings = append(stats.SourceWarnings, "saving cache: "+err.Error())
		return
	}
	p.log.Debug().Str("path", path).Int("candidates", len(batch.Candidates)).Msg("candidate cache saved")
}
