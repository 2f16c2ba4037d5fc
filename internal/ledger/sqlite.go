package ledger

// sqlite.go implements the embedded-database ledger backend. One row
// per file identity; recording the same identity again updates the row
// in place, so the table always reflects the latest attempt.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	path        TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (path, fingerprint)
);
`

// SQLiteLedger is the embedded-database Ledger backend.
type SQLiteLedger struct {
	db         *sql.DB
	skipFailed bool
}

// OpenSQLite opens (or creates) the SQLite ledger at path and ensures
// the schema exists. Semantics of skipFailed match the file backend.
func OpenSQLite(path string, skipFailed bool) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger %s: %w", path, err)
	}

	// A single connection serializes appends without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	return &SQLiteLedger{db: db, skipFailed: skipFailed}, nil
}

// HasCompleted implements Ledger.
func (l *SQLiteLedger) HasCompleted(id FileIdentity) (bool, error) {
	var outcome string
	err := l.db.QueryRow(
		`SELECT outcome FROM ledger_entries WHERE path = ? AND fingerprint = ?`,
		id.Path, id.Fingerprint,
	).Scan(&outcome)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}

	if Outcome(outcome) == OutcomeCompleted {
		return true, nil
	}
	return l.skipFailed, nil
}

// RecordOutcome implements Ledger. Re-recording an identity replaces
// the previous outcome.
func (l *SQLiteLedger) RecordOutcome(ctx context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (path, fingerprint, outcome, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path, fingerprint) DO UPDATE SET
			outcome = excluded.outcome,
			recorded_at = excluded.recorded_at
	`, e.Identity.Path, e.Identity.Fingerprint, string(e.Outcome), ts)

	if err != nil {
		return fmt.Errorf("record ledger outcome: %w", err)
	}
	return nil
}

// Close implements Ledger.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
