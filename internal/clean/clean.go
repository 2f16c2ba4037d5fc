// Package clean normalizes raw tabular rows into Records.
//
// The stage is pure: it performs no file or network I/O and its only
// outputs are the Record sequence and a dropped-duplicate count.
// Cleaning is idempotent: running it over already-clean values yields
// the same values, which keeps reprocessed files byte-stable.
package clean

import (
	"sort"
	"strings"

	"bankpipe/internal/record"
)

// columnAliases maps normalized source column names to the canonical
// schema names. The aliases cover the French bank-statement headers the
// pipeline was built for alongside their English equivalents.
var columnAliases = map[string]string{
	"montant":          record.FieldAmount,
	"amount":           record.FieldAmount,
	"devise":           record.FieldCurrency,
	"currency":         record.FieldCurrency,
	"date":             record.FieldDate,
	"date_operation":   record.FieldDate,
	"libell":           record.FieldDescription,
	"libelle":          record.FieldDescription,
	"description":      record.FieldDescription,
	"reference":        record.FieldReference,
	"ref":              record.FieldReference,
	"iban_emetteur":    record.FieldIBANEmitter,
	"iban_emitter":     record.FieldIBANEmitter,
	"iban_beneficiaire": record.FieldIBANBeneficiary,
	"iban_beneficiary":  record.FieldIBANBeneficiary,
	"bic_swift":        record.FieldBIC,
	"bic":              record.FieldBIC,
	"swift":            record.FieldBIC,
}

// NormalizeColumn canonicalizes a column name: trims whitespace,
// collapses runs of non-ASCII-alphanumeric characters into single
// underscores, lowercases, and resolves known schema aliases
// (e.g. "IBAN Emetteur" -> "iban_emitter"). Unrecognized names are
// returned in their normalized form.
func NormalizeColumn(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r + ('a' - 'A'))
		default:
			pendingSep = true
		}
	}

	normalized := b.String()
	if canonical, ok := columnAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// Clean converts raw rows into Records. Exact duplicates (every
// normalized field equal) are dropped, first occurrence wins, original
// row order is preserved. The returned count is the number of rows
// dropped as duplicates.
func Clean(rows []record.Row) ([]record.Record, int) {
	records := make([]record.Record, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	duplicates := 0

	for _, raw := range rows {
		normalized := normalizeRow(raw)

		key := rowKey(normalized)
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}

		records = append(records, buildRecord(normalized))
	}

	return records, duplicates
}

// normalizeRow canonicalizes column names and trims cell whitespace.
// Colliding columns keep the first non-empty value.
func normalizeRow(raw record.Row) record.Row {
	out := make(record.Row, len(raw))
	for name, value := range raw {
		col := NormalizeColumn(name)
		if col == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if existing, ok := out[col]; ok && existing != "" {
			continue
		}
		out[col] = value
	}
	return out
}

// rowKey builds a canonical identity for duplicate detection: sorted
// normalized columns joined with unit separators.
func rowKey(row record.Row) string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var b strings.Builder
	for _, col := range cols {
		b.WriteString(col)
		b.WriteByte('\x1f')
		b.WriteString(row[col])
		b.WriteByte('\x1e')
	}
	return b.String()
}

// buildRecord coerces a normalized row into a typed Record. Cells that
// are present but untypeable become absent and are noted as coercion
// failures rather than dropped.
func buildRecord(row record.Row) record.Record {
	rec := record.Record{}

	for col, value := range row {
		switch col {
		case record.FieldAmount:
			rec.Amount = ParseAmount(value)
			if value != "" && !rec.Amount.Valid {
				rec.CoercionFailures = append(rec.CoercionFailures, record.FieldAmount)
			}
		case record.FieldDate:
			rec.Date = ParseDate(value)
			if value != "" && !rec.Date.Valid {
				rec.CoercionFailures = append(rec.CoercionFailures, record.FieldDate)
			}
		case record.FieldCurrency:
			rec.Currency = strings.ToUpper(value)
		case record.FieldDescription:
			rec.Description = value
		case record.FieldReference:
			rec.Reference = value
		case record.FieldIBANEmitter:
			rec.IBANEmitter = normalizeAccount(value)
		case record.FieldIBANBeneficiary:
			rec.IBANBeneficiary = normalizeAccount(value)
		case record.FieldBIC:
			rec.BIC = normalizeAccount(value)
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[col] = value
		}
	}

	sort.Strings(rec.CoercionFailures)
	return rec
}

// normalizeAccount uppercases an IBAN/BIC and strips interior spaces,
// the form banks print them in.
func normalizeAccount(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
