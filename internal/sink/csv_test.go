package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bankpipe/internal/crypt"
	"bankpipe/internal/ledger"
	"bankpipe/internal/record"

	"github.com/shopspring/decimal"
)

func testRecord() record.Record {
	return record.Record{
		Amount:          decimal.NullDecimal{Decimal: decimal.NewFromFloat(75.20), Valid: true},
		Currency:        "EUR",
		Date:            record.NullDate{Time: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Valid: true},
		Description:     "Virement salaire",
		IBANEmitter:     "FR7630006000011234567890189",
		IBANBeneficiary: "DE89370400440532013000",
		BIC:             "BNPAFRPP",
		Category:        "salaire",
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return rows
}

func TestCSVSink_WritesMaskedByDefault(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(dir, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	id := ledger.FileIdentity{Path: "in/march.csv", Fingerprint: "abc"}
	ack, err := s.Write(context.Background(), id, []record.Record{testRecord()})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ack.Records != 1 {
		t.Errorf("ack.Records = %d, want 1", ack.Records)
	}
	if ack.Location != filepath.Join(dir, "march.csv") {
		t.Errorf("ack.Location = %q", ack.Location)
	}

	rows := readCSV(t, ack.Location)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}

	header, data := rows[0], rows[1]
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return data[i]
			}
		}
		t.Fatalf("column %q missing from header %v", name, header)
		return ""
	}

	if got := col("iban_emitter"); got != "FR****0189" {
		t.Errorf("iban_emitter = %q, want masked", got)
	}
	if got := col("iban_beneficiary"); got != "DE****3000" {
		t.Errorf("iban_beneficiary = %q, want masked", got)
	}
	if got := col("amount"); got != "75.2" {
		t.Errorf("amount = %q", got)
	}
	if got := col("date"); got != "2024-03-15" {
		t.Errorf("date = %q", got)
	}
	if got := col("category"); got != "salaire" {
		t.Errorf("category = %q", got)
	}
}

func TestCSVSink_EncryptsWhenProviderConfigured(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	enc, err := crypt.NewAESGCM(key)
	if err != nil {
		t.Fatal(err)
	}

	s, err := NewCSVSink(t.TempDir(), enc)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	rec := testRecord()
	id := ledger.FileIdentity{Path: "in/march.csv", Fingerprint: "abc"}
	ack, err := s.Write(context.Background(), id, []record.Record{rec})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows := readCSV(t, ack.Location)
	data := rows[1]

	var emitter string
	for i, h := range rows[0] {
		if h == "iban_emitter" {
			emitter = data[i]
		}
	}
	if emitter == rec.IBANEmitter || strings.Contains(emitter, "****") {
		t.Errorf("iban_emitter = %q, want ciphertext", emitter)
	}

	// The ciphertext decrypts back to the original.
	got, err := crypt.DecryptString(enc, emitter)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != rec.IBANEmitter {
		t.Errorf("decrypted = %q, want %q", got, rec.IBANEmitter)
	}
}

func TestQuarantineSink_AppendsViolationCodes(t *testing.T) {
	s, err := NewQuarantineSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewQuarantineSink: %v", err)
	}

	rec := testRecord()
	rec.Verdict = record.NewVerdict([]record.Violation{
		{Code: "AMOUNT_EXCEEDS_LIMIT", Message: "over limit"},
		{Code: "CURRENCY_NOT_ALLOWED", Message: "bad currency"},
	})

	id := ledger.FileIdentity{Path: "in/march.csv", Fingerprint: "abc"}
	ack, err := s.Write(context.Background(), id, []record.Record{rec})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows := readCSV(t, ack.Location)
	header, data := rows[0], rows[1]

	if header[len(header)-1] != "violations" {
		t.Fatalf("last column = %q, want violations", header[len(header)-1])
	}
	if got := data[len(data)-1]; got != "AMOUNT_EXCEEDS_LIMIT|CURRENCY_NOT_ALLOWED" {
		t.Errorf("violations = %q", got)
	}

	// Quarantine rows are always masked, never encrypted.
	for i, h := range header {
		if h == "iban_emitter" && data[i] != "FR****0189" {
			t.Errorf("quarantine iban_emitter = %q, want masked", data[i])
		}
	}
}

func TestCSVSink_RewriteReplacesPriorOutput(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(dir, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	id := ledger.FileIdentity{Path: "in/march.csv", Fingerprint: "abc"}
	ctx := context.Background()

	first := testRecord()
	second := testRecord()
	second.Description = "Virement loyer"

	if _, err := s.Write(ctx, id, []record.Record{first, second}); err != nil {
		t.Fatal(err)
	}
	// Reprocessing the same identity writes fewer records; the artifact
	// must shrink, not accumulate.
	if _, err := s.Write(ctx, id, []record.Record{first}); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(dir, "march.csv"))
	if len(rows) != 2 {
		t.Errorf("rows after rewrite = %d, want header + 1", len(rows))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1: %v", len(entries), entries)
	}
}

func TestCSVSink_SameStemDifferentExtensionStayDistinct(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(dir, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	ctx := context.Background()
	csvID := ledger.FileIdentity{Path: "in/releve.csv", Fingerprint: "a"}
	pdfID := ledger.FileIdentity{Path: "in/releve.pdf", Fingerprint: "b"}

	csvAck, err := s.Write(ctx, csvID, []record.Record{testRecord()})
	if err != nil {
		t.Fatal(err)
	}
	pdfAck, err := s.Write(ctx, pdfID, nil)
	if err != nil {
		t.Fatal(err)
	}

	if csvAck.Location == pdfAck.Location {
		t.Fatalf("both inputs mapped to %q", csvAck.Location)
	}
	// Neither write clobbered the other.
	if rows := readCSV(t, csvAck.Location); len(rows) != 2 {
		t.Errorf("csv artifact rows = %d, want 2", len(rows))
	}
	if rows := readCSV(t, pdfAck.Location); len(rows) != 1 {
		t.Errorf("pdf artifact rows = %d, want header only", len(rows))
	}
}

func TestCSVSink_EmptyRecordsWritesHeaderOnly(t *testing.T) {
	s, err := NewCSVSink(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	id := ledger.FileIdentity{Path: "in/empty.csv", Fingerprint: "abc"}
	ack, err := s.Write(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ack.Records != 0 {
		t.Errorf("ack.Records = %d, want 0", ack.Records)
	}

	rows := readCSV(t, ack.Location)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}

func TestCSVSink_CancelledContext(t *testing.T) {
	s, err := NewCSVSink(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := ledger.FileIdentity{Path: "in/march.csv", Fingerprint: "abc"}
	if _, err := s.Write(ctx, id, []record.Record{testRecord()}); err == nil {
		t.Error("expected error from cancelled context")
	}
}
