// Package store keeps a SQLite ledger of pipeline runs: one row per run and
// one row per stage with its record counts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ahrav/go-sftprep/internal/pipeline"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	config_digest TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS stage_results (
	run_id TEXT NOT NULL REFERENCES runs(id),
	stage_index INTEGER NOT NULL,
	target TEXT NOT NULL,
	records_in INTEGER NOT NULL,
	records_out INTEGER NOT NULL,
	PRIMARY KEY (run_id, stage_index)
);
`

// Run is one ledger entry.
type Run struct {
	ID           string
	ConfigDigest string
	Status       string
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Stages       []pipeline.StageStats
}

// Ledger implements pipeline.Recorder on a SQLite database.
type Ledger struct {
	db *sql.DB
}

var _ pipeline.Recorder = (*Ledger)(nil)

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error { return l.db.Close() }

// StartRun inserts a running entry.
func (l *Ledger) StartRun(ctx context.Context, info pipeline.RunInfo) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, config_digest, status, started_at) VALUES (?, ?, ?, ?)`,
		info.ID, info.ConfigDigest, pipeline.StatusRunning, info.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording run %s: %w", info.ID, err)
	}
	return nil
}

// FinishRun sets the final status and stores per-stage counts in one
// transaction.
func (l *Ledger) FinishRun(
	ctx context.Context,
	runID, status string,
	stats []pipeline.StageStats,
	runErr error,
) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var msg sql.NullString
	if runErr != nil {
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, msg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: %w", runID, ErrRunNotFound)
	}

	for _, s := range stats {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO stage_results (run_id, stage_index, target, records_in, records_out)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, s.Index, s.Target, s.In, s.Out); err != nil {
			return fmt.Errorf("recording stage %d of run %s: %w", s.Index, runID, err)
		}
	}
	return tx.Commit()
}

// Runs lists the most recent runs first, without stage detail. A limit of
// zero or less returns every run.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, config_digest, status, error_message, started_at, finished_at
	      FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a run with its stage counts in chain order.
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, config_digest, status, error_message, started_at, finished_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT stage_index, target, records_in, records_out
		 FROM stage_results WHERE run_id = ? ORDER BY stage_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s pipeline.StageStats
		if err := rows.Scan(&s.Index, &s.Target, &s.In, &s.Out); err != nil {
			return nil, err
		}
		r.Stages = append(r.Stages, s)
	}
	return &r, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		msg      sql.NullString
		finished sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.ConfigDigest, &r.Status, &msg, &r.StartedAt, &finished); err != nil {
		return Run{}, err
	}
	r.Error = msg.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}
