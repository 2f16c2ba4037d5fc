package pipeline

// reader.go defines the format-reader boundary. The pipeline core is
// agnostic to how rows come out of a file: each supported format has a
// RowReader registered for it, and everything downstream of Read sees
// only raw rows. CSV ships with a built-in reader; spreadsheet and PDF
// extraction plug in from outside the core.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"bankpipe/internal/record"
)

// Format identifies a supported input file format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
	FormatPDF         Format = "pdf"
)

// DetectFormat maps a file path to its format by extension.
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx", ".xls":
		return FormatSpreadsheet, true
	case ".pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}

// RowReader extracts raw rows from one input file.
//
// Read takes no context, so the per-Job timeout is only observed
// between pipeline stages; a reader that can block indefinitely
// (network filesystem, external extraction service) must enforce its
// own I/O deadline or it will hold a worker slot past the timeout.
type RowReader interface {
	Read(path string) ([]record.Row, error)
}

// ReaderRegistry maps formats to their readers.
type ReaderRegistry map[Format]RowReader

// NewReaderRegistry returns a registry with the built-in CSV reader
// installed. Callers add external readers for the other formats.
func NewReaderRegistry() ReaderRegistry {
	return ReaderRegistry{FormatCSV: CSVReader{}}
}

// CSVReader is the built-in reader for comma-separated files. It is
// lenient about the artifacts real exports carry: invalid UTF-8 bytes,
// ragged rows, stray quotes.
type CSVReader struct{}

// Read implements RowReader. The first non-empty line is the header;
// rows shorter than the header are padded with empty cells and longer
// rows are truncated. A file with a header and no data rows yields an
// empty row slice, not an error.
func (CSVReader) Read(path string) ([]record.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	headerIdx := -1
	for i, line := range lines {
		if !isEmptyLine(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("parse %s: no header row", path)
	}

	header := make([]string, len(lines[headerIdx]))
	for i, h := range lines[headerIdx] {
		header[i] = strings.TrimSpace(h)
	}

	var rows []record.Row
	for _, line := range lines[headerIdx+1:] {
		if isEmptyLine(line) {
			continue
		}
		row := make(record.Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(line) {
				row[col] = line[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement
// rune so the csv reader never chokes on encoding damage.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}

func isEmptyLine(line []string) bool {
	for _, v := range line {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
