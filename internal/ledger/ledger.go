// Package ledger tracks which input files have already been handled.
//
// The ledger is the sole source of truth for "has this file been
// processed" across restarts. Entries are keyed by file identity
// (path plus content fingerprint), so a file replaced at the same path
// is treated as new work, not a repeat. Appends are durable before
// RecordOutcome returns; a crash between processing and append means
// the file is reprocessed on the next run (at-least-once), which the
// sinks make safe by overwriting per identity instead of appending.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Outcome is the terminal result recorded for one file attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// FileIdentity identifies one version of an input file.
type FileIdentity struct {
	Path        string
	Fingerprint string
}

// Entry is one ledger record.
type Entry struct {
	Identity  FileIdentity
	Outcome   Outcome
	Timestamp time.Time
}

// Ledger is the durable record of attempted files. Implementations
// serialize RecordOutcome calls internally; HasCompleted may run
// concurrently with appends.
type Ledger interface {
	// HasCompleted reports whether the identity needs no further work:
	// it was completed, or it failed terminally and the ledger is
	// configured not to retry failures.
	HasCompleted(id FileIdentity) (bool, error)

	// RecordOutcome appends one entry and persists it durably before
	// returning.
	RecordOutcome(ctx context.Context, e Entry) error

	Close() error
}

// Fingerprint computes the content fingerprint (SHA-256, hex) of the
// file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
