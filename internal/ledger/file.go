package ledger

// file.go implements the flat-file ledger backend: an append-only log
// with one tab-separated entry per line,
//
//	path \t fingerprint \t outcome \t timestamp [\t extra fields]
//
// Trailing unknown fields are ignored on read so newer writers stay
// compatible with older readers. Appends hold a mutex and fsync before
// returning; lines are never interleaved.

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// FileLedger is the append-only flat-file Ledger backend.
type FileLedger struct {
	mu         sync.RWMutex
	f          *os.File
	outcomes   map[FileIdentity]Outcome
	skipFailed bool
}

// OpenFile opens (or creates) the ledger file at path and loads the
// existing entries. When skipFailed is true, files whose last recorded
// outcome is Failed are treated as handled and not retried.
func OpenFile(path string, skipFailed bool) (*FileLedger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	l := &FileLedger{
		f:          f,
		outcomes:   make(map[FileIdentity]Outcome),
		skipFailed: skipFailed,
	}
	if err := l.load(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// load replays the existing entries into memory. Malformed lines are
// skipped rather than failing the whole ledger: a torn final line from
// a crash must not block recovery.
func (l *FileLedger) load() error {
	if _, err := l.f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek ledger: %w", err)
	}

	scanner := bufio.NewScanner(l.f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		id := FileIdentity{Path: fields[0], Fingerprint: fields[1]}
		outcome := Outcome(fields[2])
		if outcome != OutcomeCompleted && outcome != OutcomeFailed {
			continue
		}
		l.outcomes[id] = outcome
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	return nil
}

// HasCompleted implements Ledger.
func (l *FileLedger) HasCompleted(id FileIdentity) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	outcome, ok := l.outcomes[id]
	if !ok {
		return false, nil
	}
	if outcome == OutcomeCompleted {
		return true, nil
	}
	return l.skipFailed, nil
}

// RecordOutcome implements Ledger. The entry is flushed to stable
// storage before the in-memory index is updated.
func (l *FileLedger) RecordOutcome(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
		e.Identity.Path, e.Identity.Fingerprint, e.Outcome, ts.Format(time.RFC3339))

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.WriteString(line); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.outcomes[e.Identity] = e.Outcome
	return nil
}

// Close implements Ledger.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
