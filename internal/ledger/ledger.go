// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records pipeline runs in a SQLite database so earlier
// results can be listed, reopened, and searched without re-running.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/litpipe/pkg/types"
)

// Errors returned by run lookups.
var (
	ErrNotFound  = errors.New("run not found")
	ErrAmbiguous = errors.New("run ID prefix is ambiguous")
)

// defaultLimit bounds list and search results when no limit is given.
const defaultLimit = 20

// Run is one recorded pipeline run.
type Run struct {
	ID        string                   `json:"id" yaml:"id"`
	Query     string                   `json:"query" yaml:"query"`
	Mode      types.Mode               `json:"mode" yaml:"mode"`
	StartedAt time.Time                `json:"started_at" yaml:"started_at"`
	Stats     types.RunStats           `json:"stats" yaml:"stats"`
	Aggregate types.Aggregate          `json:"aggregate" yaml:"aggregate"`
	Records   []types.LiteratureRecord `json:"records,omitempty" yaml:"records,omitempty"`
}

// RunSummary is a run without its records.
type RunSummary struct {
	ID        string     `json:"id" yaml:"id"`
	Query     string     `json:"query" yaml:"query"`
	Mode      types.Mode `json:"mode" yaml:"mode"`
	StartedAt time.Time  `json:"started_at" yaml:"started_at"`
	Origin    string     `json:"origin" yaml:"origin"`
	Records   int        `json:"records" yaml:"records"`
	Fulltext  int        `json:"fulltext" yaml:"fulltext"`
	Cancelled bool       `json:"cancelled" yaml:"cancelled"`
}

// Hit is a record matched by Search, with the run it came from.
type Hit struct {
	RunID     string                 `json:"run_id" yaml:"run_id"`
	Query     string                 `json:"query" yaml:"query"`
	StartedAt time.Time              `json:"started_at" yaml:"started_at"`
	Position  int                    `json:"position" yaml:"position"`
	Record    types.LiteratureRecord `json:"record" yaml:"record"`
}

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating parent directories and
// the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			mode TEXT,
			started_at TEXT NOT NULL,
			origin TEXT,
			record_count INTEGER NOT NULL,
			fulltext_count INTEGER NOT NULL,
			cancelled INTEGER NOT NULL,
			stats TEXT NOT NULL,
			aggregate TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			title TEXT NOT NULL,
			keywords TEXT,
			summary TEXT,
			data TEXT NOT NULL,
			UNIQUE(run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON records(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes run and its records in one transaction. An empty run.ID is
// filled with a new UUID, which Save returns.
func (s *Store) Save(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return "", fmt.Errorf("encoding stats: %w", err)
	}
	aggJSON, err := json.Marshal(run.Aggregate)
	if err != nil {
		return "", fmt.Errorf("encoding aggregate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, query, mode, started_at, origin, record_count, fulltext_count, cancelled, stats, aggregate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Query, string(run.Mode), run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Stats.SourceOrigin, len(run.Records), run.Stats.FulltextSucceeded, run.Stats.Cancelled,
		string(statsJSON), string(aggJSON),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, position, fingerprint, title, keywords, summary, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range run.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("encoding record %s: %w", rec.Fingerprint, err)
		}
		summary := ""
		if rec.Summary != nil {
			summary = rec.Summary.Headline + "\n" + strings.Join(rec.Summary.KeyPoints, "\n")
		}
		_, err = stmt.ExecContext(ctx, run.ID, i, rec.Fingerprint, rec.Title,
			strings.Join(rec.Keywords, "\n"), summary, string(data))
		if err != nil {
			return "", fmt.Errorf("inserting record %s: %w", rec.Fingerprint, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, mode, started_at, origin, record_count, fulltext_count, cancelled
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			mode      string
			startedAt string
			origin    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Query, &mode, &startedAt, &origin, &r.Records, &r.Fulltext, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Mode = types.Mode(mode)
		r.Origin = origin.String
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get loads a run and its records. id may be a unique prefix of a run ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		run       Run
		mode      string
		startedAt string
		statsJSON string
		aggJSON   string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, query, mode, started_at, stats, aggregate FROM runs WHERE id = ?`, fullID,
	).Scan(&run.ID, &run.Query, &mode, &startedAt, &statsJSON, &aggJSON)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", fullID, err)
	}
	run.Mode = types.Mode(mode)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	if err := json.Unmarshal([]byte(aggJSON), &run.Aggregate); err != nil {
		return nil, fmt.Errorf("decoding aggregate: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE run_id = ? ORDER BY position`, fullID)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var rec types.LiteratureRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		run.Records = append(run.Records, rec)
	}
	return &run, rows.Err()
}

func (s *Store) resolveID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("resolving run ID: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scanning run ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// Search finds records whose title, keywords, or summary contain text,
// case-insensitively, newest runs first.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(text))) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, u.query, u.started_at, r.position, r.data
		 FROM records r JOIN runs u ON u.id = r.run_id
		 WHERE lower(r.title) LIKE ?1 ESCAPE '\'
		    OR lower(r.keywords) LIKE ?1 ESCAPE '\'
		    OR lower(r.summary) LIKE ?1 ESCAPE '\'
		 ORDER BY u.started_at DESC, r.run_id, r.position
		 LIMIT ?2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h         Hit
			startedAt string
			data      string
		)
		if err := rows.Scan(&h.RunID, &h.Query, &startedAt, &h.Position, &data); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if err := json.Unmarshal([]byte(data), &h.Record); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// escapeLike escapes LIKE wildcards so text matches literally.
func escapeLike(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(text)
}
