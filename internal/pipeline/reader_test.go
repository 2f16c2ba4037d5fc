package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path   string
		want   Format
		wantOK bool
	}{
		{"in/releve.csv", FormatCSV, true},
		{"in/RELEVE.CSV", FormatCSV, true},
		{"in/classeur.xlsx", FormatSpreadsheet, true},
		{"in/classeur.xls", FormatSpreadsheet, true},
		{"in/releve.pdf", FormatPDF, true},
		{"in/notes.txt", "", false},
		{"in/noext", "", false},
	}

	for _, tt := range tests {
		got, ok := DetectFormat(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("DetectFormat(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCSVReader_Read(t *testing.T) {
	path := writeFile(t, "releve.csv",
		"Montant,Devise,Libellé\n"+
			"100.50,EUR,salaire\n"+
			"200.00,USD,loyer\n")

	rows, err := CSVReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["Montant"] != "100.50" || rows[0]["Devise"] != "EUR" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["Libellé"] != "loyer" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestCSVReader_RaggedRows(t *testing.T) {
	path := writeFile(t, "ragged.csv",
		"a,b,c\n"+
			"1,2\n"+ // short row padded
			"1,2,3,4\n") // long row truncated

	rows, err := CSVReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["c"] != "" {
		t.Errorf("short row c = %q, want empty", rows[0]["c"])
	}
	if rows[1]["c"] != "3" {
		t.Errorf("long row c = %q, want 3", rows[1]["c"])
	}
	if _, ok := rows[1]["d"]; ok {
		t.Error("long row should not grow extra columns")
	}
}

func TestCSVReader_SkipsBlankLinesBeforeHeader(t *testing.T) {
	path := writeFile(t, "padded.csv",
		"\n"+
			" , , \n"+
			"Montant,Devise\n"+
			"10,EUR\n")

	rows, err := CSVReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0]["Montant"] != "10" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestCSVReader_HeaderOnlyYieldsNoRows(t *testing.T) {
	path := writeFile(t, "empty.csv", "Montant,Devise\n")

	rows, err := CSVReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestCSVReader_NoHeaderIsAnError(t *testing.T) {
	path := writeFile(t, "blank.csv", "\n\n")

	if _, err := (CSVReader{}).Read(path); err == nil {
		t.Error("expected error for file without a header")
	}
}

func TestCSVReader_InvalidUTF8IsSanitized(t *testing.T) {
	path := writeFile(t, "latin1.csv", "Montant,Libell\xe9\n10,caf\xe9\n")

	rows, err := CSVReader{}.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	// The damaged bytes become replacement runes instead of a parse error.
	for col, val := range rows[0] {
		if col == "Montant" && val != "10" {
			t.Errorf("Montant = %q", val)
		}
	}
}

func TestCSVReader_MissingFile(t *testing.T) {
	if _, err := (CSVReader{}).Read(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewReaderRegistry(t *testing.T) {
	reg := NewReaderRegistry()
	if _, ok := reg[FormatCSV]; !ok {
		t.Error("registry should ship with the CSV reader")
	}
	if _, ok := reg[FormatPDF]; ok {
		t.Error("registry should not claim PDF support out of the box")
	}
}
