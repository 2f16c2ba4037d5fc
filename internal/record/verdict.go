package record

// Status classifies a Record after validation.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Violation is one business-rule failure: a stable machine-readable
// code plus a human-readable message for quarantine review.
type Violation struct {
	Code    string
	Message string
}

// Verdict is the immutable validation outcome of a Record. A Record
// with one or more violations is invalid; an empty violation list
// means valid. Re-validation constructs a new Verdict, never mutates
// an existing one.
type Verdict struct {
	Status     Status
	Violations []Violation
}

// NewVerdict builds a Verdict from the accumulated violations.
// The slice is copied so later appends by the caller cannot mutate
// the verdict.
func NewVerdict(violations []Violation) Verdict {
	if len(violations) == 0 {
		return Verdict{Status: StatusValid}
	}
	return Verdict{
		Status:     StatusInvalid,
		Violations: append([]Violation(nil), violations...),
	}
}

// Valid reports whether the verdict carries no violations.
func (v Verdict) Valid() bool {
	return v.Status == StatusValid
}

// Codes returns the violation codes in evaluation order.
func (v Verdict) Codes() []string {
	codes := make([]string, len(v.Violations))
	for i, viol := range v.Violations {
		codes[i] = viol.Code
	}
	return codes
}
