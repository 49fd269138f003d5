// Package history persists build-run summaries in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"git.home.luguber.info/inful/easepack/internal/build/models"
	eperr "git.home.luguber.info/inful/easepack/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id    TEXT NOT NULL,
	app         TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	outcome     TEXT NOT NULL,
	errors      INTEGER NOT NULL,
	warnings    INTEGER NOT NULL,
	retries     INTEGER NOT NULL,
	packaged    INTEGER NOT NULL,
	output_path TEXT,
	git_commit  TEXT,
	source_hash TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS stage_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	stage       TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
);
`

// Store is a SQLite-backed build-run history.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the history database at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "open history db")
	}
	// modernc sqlite does not tolerate concurrent writers on one connection pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "migrate history db")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Run is a persisted build-run summary row.
type Run struct {
	ID         int64
	BuildID    string
	App        string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Errors     int
	Warnings   int
	Retries    int
	Packaged   bool
	OutputPath string
	GitCommit  string
	SourceHash string
}

// Duration returns the wall-clock duration of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Append stores a finished build report and its per-stage durations.
func (s *Store) Append(ctx context.Context, r *models.BuildReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "begin history tx")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (build_id, app, started_at, finished_at, outcome, errors, warnings, retries, packaged, output_path, git_commit, source_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.App, r.Start, r.End, string(r.Outcome),
		len(r.Errors), len(r.Warnings), r.Retries, r.Packaged,
		r.OutputPath, r.GitCommit, r.SourceHash)
	if err != nil {
		return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "insert run")
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "run id")
	}

	for stage, dur := range r.StageDurations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stage_events (run_id, stage, duration_ms) VALUES (?, ?, ?)`,
			runID, stage, dur.Milliseconds()); err != nil {
			return eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, fmt.Sprintf("insert stage event %s", stage))
		}
	}
	return tx.Commit()
}

// Recent returns the most recent n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, build_id, app, started_at, finished_at, outcome, errors, warnings, retries, packaged, output_path, git_commit, source_hash
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "query runs")
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.BuildID, &r.App, &r.StartedAt, &r.FinishedAt,
			&r.Outcome, &r.Errors, &r.Warnings, &r.Retries, &r.Packaged,
			&r.OutputPath, &r.GitCommit, &r.SourceHash); err != nil {
			return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StageDurations returns the recorded stage timings for a run.
func (s *Store) StageDurations(ctx context.Context, runID int64) (map[string]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, duration_ms FROM stage_events WHERE run_id = ?`, runID)
	if err != nil {
		return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "query stage events")
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]time.Duration)
	for rows.Next() {
		var stage string
		var ms int64
		if err := rows.Scan(&stage, &ms); err != nil {
			return nil, eperr.Wrap(err, eperr.CategoryInternal, eperr.SeverityError, "scan stage event")
		}
		out[stage] = time.Duration(ms) * time.Millisecond
	}
	return out, rows.Err()
}
