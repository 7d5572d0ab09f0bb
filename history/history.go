// Package history keeps a log of sync runs in a sqlite database.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/csmith/cratesync/report"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// DB is a run history database
type DB struct {
	db *sql.DB
}

// Run is a summary of a past run
type Run struct {
	ID         int64
	Started    time.Time
	Finished   time.Time
	DryRun     bool
	Threshold  int
	Error      string
	Playlists  int
	Matched    int
	Unresolved int
	Added      int
	Removed    int
}

// Open opens (creating if necessary) the history database at path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialising history database: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores a completed (or aborted) run and returns its ID
func (d *DB) Record(ctx context.Context, run *report.Run, finished time.Time) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	errText := ""
	if run.Err != nil {
		errText = run.Err.Error()
	}

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO runs (started_at, finished_at, dry_run, threshold, error) VALUES (?, ?, ?, ?, ?)`,
		run.Started.Unix(), finished.Unix(), run.DryRun, run.Threshold, errText,
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range run.Playlists {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO playlist_runs
				(run_id, playlist, identity, source_type, action, total, matched, unresolved, fallbacks, cache_hits, searches, added, removed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.Name, p.Identity, string(p.SourceType), string(p.Reconcile.Action),
			p.Total(), len(p.Matched()), len(p.Unresolved()), p.Fallbacks(), p.CacheHits(), p.Searches(),
			p.Reconcile.Added, p.Reconcile.Removed,
		)
		if err != nil {
			return 0, fmt.Errorf("recording playlist %q: %w", p.Name, err)
		}
	}

	return id, tx.Commit()
}

// Recent returns up to limit runs, newest first
func (d *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.dry_run, r.threshold, r.error,
			COUNT(p.run_id),
			COALESCE(SUM(p.matched), 0),
			COALESCE(SUM(p.unresolved), 0),
			COALESCE(SUM(p.added), 0),
			COALESCE(SUM(p.removed), 0)
		FROM runs r
		LEFT JOIN playlist_runs p ON p.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		if err := rows.Scan(
			&run.ID, &started, &finished, &run.DryRun, &run.Threshold, &run.Error,
			&run.Playlists, &run.Matched, &run.Unresolved, &run.Added, &run.Removed,
		); err != nil {
			return nil, err
		}
		run.Started = time.Unix(started, 0)
		run.Finished = time.Unix(finished, 0)
		res = append(res, run)
	}
	return res, rows.Err()
}
