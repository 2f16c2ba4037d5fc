package sink

// csv.go implements the filesystem sink: one CSV file per input file,
// named after the input's basename. Writes go to a temp file in the
// same directory followed by a rename, so a reprocessed file replaces
// its prior output atomically instead of appending to it.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bankpipe/internal/crypt"
	"bankpipe/internal/ledger"
	"bankpipe/internal/record"
)

// CSVSink writes per-file CSV artifacts into a directory.
type CSVSink struct {
	dir        string
	quarantine bool
	enc        crypt.Provider
}

// NewCSVSink creates the directory if needed and returns a sink
// writing canonical output. enc may be nil for masked output.
func NewCSVSink(dir string, enc crypt.Provider) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", dir, err)
	}
	return &CSVSink{dir: dir, enc: enc}, nil
}

// NewQuarantineSink returns a sink for invalid Records. Quarantine
// rows include the violation codes and are always masked.
func NewQuarantineSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create quarantine dir %s: %w", dir, err)
	}
	return &CSVSink{dir: dir, quarantine: true}, nil
}

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, id ledger.FileIdentity, recs []record.Record) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}

	data, err := encodeCSV(recs, s.quarantine, s.enc)
	if err != nil {
		return Ack{}, err
	}

	dest := filepath.Join(s.dir, destName(id))

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return Ack{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Ack{}, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return Ack{}, fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Ack{}, fmt.Errorf("rename into place %s: %w", dest, err)
	}

	return Ack{Location: dest, Records: len(recs)}, nil
}

// destName derives the artifact name from the input file's basename.
// The same input path always maps to the same artifact, which is what
// makes rewrites replace rather than accumulate. Non-CSV sources keep
// their extension in the name so releve.csv and releve.pdf never
// share an artifact.
func destName(id ledger.FileIdentity) string {
	base := filepath.Base(id.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext != "" && !strings.EqualFold(ext, ".csv") {
		stem += "_" + strings.TrimPrefix(ext, ".")
	}
	return stem + ".csv"
}
