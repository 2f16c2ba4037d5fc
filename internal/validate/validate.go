// Package validate applies configurable business rules to Records.
//
// Validate is a pure function of (Record, RuleSet): the same inputs
// always produce the same verdict, which keeps quarantine decisions
// reproducible across runs. Rules are evaluated in a fixed order and
// never short-circuit, so a single Record carries every violation
// that applies and auditors see the complete reason set.
package validate

import (
	"fmt"
	"regexp"

	"bankpipe/internal/record"

	"github.com/shopspring/decimal"
)

// Violation codes, stable across releases. Quarantine output and
// reporting key on these.
const (
	CodeAmountMissing        = "AMOUNT_MISSING"
	CodeAmountExceedsLimit   = "AMOUNT_EXCEEDS_LIMIT"
	CodeCurrencyMissing      = "CURRENCY_MISSING"
	CodeCurrencyNotAllowed   = "CURRENCY_NOT_ALLOWED"
	CodeIBANEmitterInvalid   = "IBAN_EMITTER_INVALID"
	CodeIBANBeneficiaryInvalid = "IBAN_BENEFICIARY_INVALID"
	CodeBICInvalid           = "BIC_INVALID"
)

// Structural patterns used when the rules document does not override them.
const (
	DefaultIBANPattern = `^[A-Z]{2}[0-9]{2}[A-Z0-9]{1,30}$`
	DefaultBICPattern  = `^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`
)

// RuleSet is the immutable business-rule configuration for one run.
// It is loaded once at run start and shared read-only across workers;
// changing the rules requires a new run.
type RuleSet struct {
	MaxTransactionAmount decimal.Decimal
	AllowedCurrencies    map[string]struct{}
	IBANPattern          *regexp.Regexp
	BICPattern           *regexp.Regexp
}

// NewRuleSet compiles a rule set from its raw parts. Empty patterns
// fall back to the structural defaults; an empty currency list allows
// every ISO code.
func NewRuleSet(maxAmount decimal.Decimal, currencies []string, ibanPattern, bicPattern string) (*RuleSet, error) {
	if ibanPattern == "" {
		ibanPattern = DefaultIBANPattern
	}
	if bicPattern == "" {
		bicPattern = DefaultBICPattern
	}

	iban, err := regexp.Compile(ibanPattern)
	if err != nil {
		return nil, fmt.Errorf("compile iban pattern: %w", err)
	}
	bic, err := regexp.Compile(bicPattern)
	if err != nil {
		return nil, fmt.Errorf("compile bic pattern: %w", err)
	}

	rs := &RuleSet{
		MaxTransactionAmount: maxAmount,
		IBANPattern:          iban,
		BICPattern:           bic,
	}
	if len(currencies) > 0 {
		rs.AllowedCurrencies = make(map[string]struct{}, len(currencies))
		for _, c := range currencies {
			rs.AllowedCurrencies[c] = struct{}{}
		}
	}
	return rs, nil
}

// Validate evaluates every applicable rule against the Record and
// returns the verdict. Evaluation order is fixed so violation lists
// are deterministic:
//
//  1. amount present and non-zero
//  2. |amount| within the configured limit
//  3. currency present and allowed
//  4. IBAN fields structurally valid when present (optional fields)
//  5. BIC structurally valid when present
func (rs *RuleSet) Validate(rec record.Record) record.Verdict {
	var violations []record.Violation

	// 1. Amount presence.
	switch {
	case !rec.Amount.Valid:
		violations = append(violations, record.Violation{
			Code:    CodeAmountMissing,
			Message: "amount is absent or could not be parsed",
		})
	case rec.Amount.Decimal.IsZero():
		violations = append(violations, record.Violation{
			Code:    CodeAmountMissing,
			Message: "amount is zero",
		})
	}

	// 2. Amount limit, only meaningful when an amount exists.
	if rec.Amount.Valid && rec.Amount.Decimal.Abs().GreaterThan(rs.MaxTransactionAmount) {
		violations = append(violations, record.Violation{
			Code: CodeAmountExceedsLimit,
			Message: fmt.Sprintf("amount %s exceeds limit %s",
				rec.Amount.Decimal, rs.MaxTransactionAmount),
		})
	}

	// 3. Currency membership.
	switch {
	case rec.Currency == "":
		violations = append(violations, record.Violation{
			Code:    CodeCurrencyMissing,
			Message: "currency is absent",
		})
	case !rs.currencyAllowed(rec.Currency):
		violations = append(violations, record.Violation{
			Code:    CodeCurrencyNotAllowed,
			Message: fmt.Sprintf("currency %s is not allowed", rec.Currency),
		})
	}

	// 4. IBANs are optional but must be structurally valid when present.
	if rec.IBANEmitter != "" && !rs.IBANPattern.MatchString(rec.IBANEmitter) {
		violations = append(violations, record.Violation{
			Code:    CodeIBANEmitterInvalid,
			Message: fmt.Sprintf("emitter IBAN %s is malformed", record.MaskAccount(rec.IBANEmitter)),
		})
	}
	if rec.IBANBeneficiary != "" && !rs.IBANPattern.MatchString(rec.IBANBeneficiary) {
		violations = append(violations, record.Violation{
			Code:    CodeIBANBeneficiaryInvalid,
			Message: fmt.Sprintf("beneficiary IBAN %s is malformed", record.MaskAccount(rec.IBANBeneficiary)),
		})
	}

	// 5. BIC, also optional.
	if rec.BIC != "" && !rs.BICPattern.MatchString(rec.BIC) {
		violations = append(violations, record.Violation{
			Code:    CodeBICInvalid,
			Message: fmt.Sprintf("BIC %s is malformed", rec.BIC),
		})
	}

	return record.NewVerdict(violations)
}

func (rs *RuleSet) currencyAllowed(currency string) bool {
	if rs.AllowedCurrencies == nil {
		return true
	}
	_, ok := rs.AllowedCurrencies[currency]
	return ok
}

// Partition validates a batch and splits it into valid and invalid
// Records, each carrying its computed verdict. Input order is
// preserved within both partitions.
func (rs *RuleSet) Partition(recs []record.Record) (valid, invalid []record.Record) {
	for _, rec := range recs {
		rec.Verdict = rs.Validate(rec)
		if rec.Verdict.Valid() {
			valid = append(valid, rec)
		} else {
			invalid = append(invalid, rec)
		}
	}
	return valid, invalid
}
