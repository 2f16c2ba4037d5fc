// Package record defines the typed transaction model shared by the
// cleaning, validation and persistence layers.
//
// A Record is one bank transaction derived from a raw tabular row.
// Fields that may legitimately be missing from source data carry an
// explicit absent marker (NullDecimal, NullDate, empty string) so that
// downstream validation can distinguish "missing" from "invalid";
// a missing amount is never silently defaulted to zero.
package record

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical field names produced by column normalization. Sinks and
// the validation engine address Record fields through these names.
const (
	FieldAmount          = "amount"
	FieldCurrency        = "currency"
	FieldDate            = "date"
	FieldDescription     = "description"
	FieldReference       = "reference"
	FieldIBANEmitter     = "iban_emitter"
	FieldIBANBeneficiary = "iban_beneficiary"
	FieldBIC             = "bic"
)

// Row is one raw tabular row as supplied by a format reader:
// a mapping from column name to the untyped cell value.
type Row map[string]string

// NullDate is a calendar date with an explicit absent marker,
// following the Valid-flag convention of the pgtype null wrappers.
type NullDate struct {
	Time  time.Time
	Valid bool
}

// Record is one cleaned transaction plus its validation outcome.
type Record struct {
	Amount          decimal.NullDecimal
	Currency        string
	Date            NullDate
	Description     string
	Reference       string
	IBANEmitter     string
	IBANBeneficiary string
	BIC             string

	// Category is assigned after validation by the keyword classifier.
	Category string

	// Extra holds normalized columns the schema does not recognize.
	// They are carried through to the sinks but ignored by validation.
	Extra map[string]string

	// MaskedFields lists the field names that were redacted in this copy.
	MaskedFields []string

	// CoercionFailures lists fields that were present in the source row
	// but could not be coerced to their target type (and became absent).
	CoercionFailures []string

	Verdict Verdict
}

// maskFiller replaces the middle of a masked account identifier.
const maskFiller = "****"

// MaskAccount redacts an account identifier (IBAN or similar), keeping
// the two-character country prefix and the last four characters.
// Inputs too short to mask meaningfully are replaced entirely.
func MaskAccount(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + maskFiller + s[len(s)-4:]
}

// Masked returns a copy of the Record with sensitive fields redacted
// and MaskedFields updated accordingly. The receiver is not modified;
// the unmasked original stays available for validation and for the
// encrypted canonical output.
func (r Record) Masked() Record {
	out := r
	out.MaskedFields = append([]string(nil), r.MaskedFields...)

	if r.IBANEmitter != "" {
		out.IBANEmitter = MaskAccount(r.IBANEmitter)
		out.MaskedFields = append(out.MaskedFields, FieldIBANEmitter)
	}
	if r.IBANBeneficiary != "" {
		out.IBANBeneficiary = MaskAccount(r.IBANBeneficiary)
		out.MaskedFields = append(out.MaskedFields, FieldIBANBeneficiary)
	}
	return out
}

// IsMasked reports whether the named field has been redacted in this copy.
func (r Record) IsMasked(field string) bool {
	for _, f := range r.MaskedFields {
		if f == field {
			return true
		}
	}
	return false
}
