// Package history stores suite runs and their scenario outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	cause       TEXT NOT NULL DEFAULT 'manual',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	passed      INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	pages       INTEGER NOT NULL DEFAULT 0,
	api_values  INTEGER NOT NULL DEFAULT 0,
	ui_values   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
`

// Outcome statuses
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ErrNotFound is returned by Get for an unknown run ID
var ErrNotFound = errors.New("not found")

// Run is one suite execution
type Run struct {
	ID         string    `db:"id" json:"id"`
	Trigger    string    `db:"cause" json:"trigger"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Passed     int       `db:"passed" json:"passed"`
	Failed     int       `db:"failed" json:"failed"`
	Skipped    int       `db:"skipped" json:"skipped"`

	Outcomes []Outcome `db:"-" json:"outcomes,omitempty"`
}

// Duration is the run's wall time
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// OK reports whether no scenario failed
func (r Run) OK() bool { return r.Failed == 0 }

// Outcome is one scenario's result within a run
type Outcome struct {
	RunID      string `db:"run_id" json:"-"`
	Name       string `db:"name" json:"name"`
	Kind       string `db:"kind" json:"kind"`
	Status     string `db:"status" json:"status"`
	Error      string `db:"error" json:"error,omitempty"`
	DurationMS int64  `db:"duration_ms" json:"duration_ms"`
	Pages      int    `db:"pages" json:"pages"`
	APIValues  int    `db:"api_values" json:"api_values"`
	UIValues   int    `db:"ui_values" json:"ui_values"`
}

// Recorder persists runs. A nil *Recorder records nothing.
type Recorder struct {
	db *sqlx.DB
}

// Open connects to the database at path, creating its directory and schema.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Recorder, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// one connection keeps ":memory:" a single database and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close closes the database
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}

// Record stores run and its outcomes in one transaction
func (r *Recorder) Record(ctx context.Context, run Run) error {
	if r == nil {
		return nil
	}
	if run.ID == "" {
		return errors.New("history: run has no id")
	}
	if run.Trigger == "" {
		run.Trigger = "manual"
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, cause, started_at, finished_at, passed, failed, skipped)
		VALUES (:id, :cause, :started_at, :finished_at, :passed, :failed, :skipped)`, run); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for _, o := range run.Outcomes {
		o.RunID = run.ID
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO outcomes (run_id, name, kind, status, error, duration_ms, pages, api_values, ui_values)
			VALUES (:run_id, :name, :kind, :status, :error, :duration_ms, :pages, :api_values, :ui_values)`, o); err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.Name, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first, without their outcomes
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, cause, started_at, finished_at, passed, failed, skipped
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its outcomes in recording order
func (r *Recorder) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := r.db.GetContext(ctx, &run, `
		SELECT id, cause, started_at, finished_at, passed, failed, skipped
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &run.Outcomes, `
		SELECT run_id, name, kind, status, error, duration_ms, pages, api_values, ui_values
		FROM outcomes WHERE run_id = ? ORDER BY id`, id); err != nil {
		return nil, fmt.Errorf("list outcomes of %s: %w", id, err)
	}
	return &run, nil
}

// Latest returns the newest run with its outcomes, or nil when nothing was recorded
func (r *Recorder) Latest(ctx context.Context) (*Run, error) {
	runs, err := r.Recent(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return r.Get(ctx, runs[0].ID)
}

// Prune deletes runs started before cutoff and returns how many went
func (r *Recorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
