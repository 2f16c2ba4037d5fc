// Package sink persists processed Records. Every sink writes
// idempotently by file identity: rewriting the same identity replaces
// prior content instead of duplicating it, which makes at-least-once
// reprocessing after a crash safe.
//
// Sensitive fields (IBANs) never leave the process in the clear: they
// are masked in all persisted copies unless an encryption provider is
// configured, in which case the canonical output carries the encrypted
// original instead.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"bankpipe/internal/crypt"
	"bankpipe/internal/ledger"
	"bankpipe/internal/record"
)

// Ack acknowledges a completed write.
type Ack struct {
	// Location is where the records landed (path, table, object URI).
	Location string
	// Records is the number of records written.
	Records int
}

// Sink persists the Records of one file under its identity.
type Sink interface {
	Write(ctx context.Context, id ledger.FileIdentity, recs []record.Record) (Ack, error)
}

// columns is the canonical output column order.
var columns = []string{
	record.FieldDate,
	record.FieldAmount,
	record.FieldCurrency,
	record.FieldDescription,
	record.FieldReference,
	record.FieldIBANEmitter,
	record.FieldIBANBeneficiary,
	record.FieldBIC,
	"category",
}

const violationsColumn = "violations"

// encodeCSV renders records as CSV bytes. Quarantine output appends a
// violations column with the record's reason codes. When enc is nil
// the IBAN fields are masked; otherwise they carry the encrypted
// originals.
func encodeCSV(recs []record.Record, quarantine bool, enc crypt.Provider) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := columns
	if quarantine {
		header = append(append([]string(nil), columns...), violationsColumn)
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range recs {
		row, err := encodeRecord(rec, quarantine, enc)
		if err != nil {
			return nil, err
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeRecord(rec record.Record, quarantine bool, enc crypt.Provider) ([]string, error) {
	emitter, beneficiary, err := sensitiveFields(rec, quarantine, enc)
	if err != nil {
		return nil, err
	}

	date := ""
	if rec.Date.Valid {
		date = rec.Date.Time.Format("2006-01-02")
	}
	amount := ""
	if rec.Amount.Valid {
		amount = rec.Amount.Decimal.String()
	}

	row := []string{
		date,
		amount,
		rec.Currency,
		rec.Description,
		rec.Reference,
		emitter,
		beneficiary,
		rec.BIC,
		rec.Category,
	}
	if quarantine {
		row = append(row, strings.Join(rec.Verdict.Codes(), "|"))
	}
	return row, nil
}

// sensitiveFields resolves the persisted form of the IBAN fields.
// Quarantine rows are for human review and are always masked.
func sensitiveFields(rec record.Record, quarantine bool, enc crypt.Provider) (emitter, beneficiary string, err error) {
	if quarantine || enc == nil {
		masked := rec.Masked()
		return masked.IBANEmitter, masked.IBANBeneficiary, nil
	}

	if rec.IBANEmitter != "" {
		emitter, err = crypt.EncryptString(enc, rec.IBANEmitter)
		if err != nil {
			return "", "", fmt.Errorf("encrypt emitter iban: %w", err)
		}
	}
	if rec.IBANBeneficiary != "" {
		beneficiary, err = crypt.EncryptString(enc, rec.IBANBeneficiary)
		if err != nil {
			return "", "", fmt.Errorf("encrypt beneficiary iban: %w", err)
		}
	}
	return emitter, beneficiary, nil
}
