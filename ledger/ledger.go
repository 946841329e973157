// Package ledger persists a best-effort audit trail of sandbox executions
// to Postgres via database/sql over pgx's stdlib driver. A failing write
// never fails the execution it is recording.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sandsheet/supervisor"
)

// Record is one completed execution, ready to persist.
type Record struct {
	Script         string
	Filesystem     string
	Network        string
	ExitKind       supervisor.ExitKind
	ExitCode       int
	FailureMessage string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Ledger writes Records to a `sandbox_executions` table. The schema is
// created on Open if it does not already exist.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sandbox_executions (
	id              BIGSERIAL PRIMARY KEY,
	script          TEXT NOT NULL,
	filesystem_mode TEXT NOT NULL,
	network_mode    TEXT NOT NULL,
	exit_kind       TEXT NOT NULL,
	exit_code       INTEGER NOT NULL,
	failure_message TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
)`

// Open connects to dsn (a standard Postgres connection string) and ensures
// the ledger table exists.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error { return l.db.Close() }

// Write inserts rec. On failure it logs and returns, rather than
// propagating an error the caller would have to decide how to ignore —
// the ledger is an audit trail, not a correctness dependency.
func (l *Ledger) Write(ctx context.Context, rec Record) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sandbox_executions
			(script, filesystem_mode, network_mode, exit_kind, exit_code, failure_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Script, rec.Filesystem, rec.Network, string(rec.ExitKind), rec.ExitCode,
		rec.FailureMessage, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		log.Printf("ledger: write failed: %v", err)
	}
}

// RecentFailures returns the most recent limit executions whose exit kind
// was not "normal", newest first.
func (l *Ledger) RecentFailures(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT script, filesystem_mode, network_mode, exit_kind, exit_code, failure_message, started_at, finished_at
		FROM sandbox_executions
		WHERE exit_kind <> 'normal'
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query recent failures: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var exitKind string
		if err := rows.Scan(&r.Script, &r.Filesystem, &r.Network, &exitKind, &r.ExitCode, &r.FailureMessage, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		r.ExitKind = supervisor.ExitKind(exitKind)
		out = append(out, r)
	}
	return out, rows.Err()
}
