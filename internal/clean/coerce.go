package clean

// coerce.go provides type coercion for the messy reality of exported
// bank data:
//   - comma- and period-decimal amounts ("12 000 000,00", "1,234.56")
//   - space, comma, apostrophe and NBSP thousands separators
//   - currency symbols and accounting-format negatives "(123.45)"
//   - several date layouts, day-first preferred
//
// Coercion never guesses a value into existence: anything that cannot
// be parsed becomes an absent marker for the caller to record as a
// coercion failure.

import (
	"regexp"
	"strings"
	"time"

	"bankpipe/internal/record"

	"github.com/shopspring/decimal"
)

// numericRegex validates the canonical numeric form after separator
// cleanup: integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayouts is the fixed, ordered set of accepted date formats.
// Day-first layouts come before month-first since the source data is
// predominantly European.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"02.01.2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseAmount coerces an amount cell into a decimal. It accepts both
// comma-decimal and period-decimal conventions with optional thousands
// separators. Unparsable input yields an invalid NullDecimal, never zero.
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}

	// Accounting format: "(123.45)" means negative.
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Strip currency symbols and spacing used as thousands separators.
	replacer := strings.NewReplacer(
		"$", "", "€", "", "£", "",
		" ", "", " ", "", " ", "", "'", "",
	)
	s = replacer.Replace(s)

	s = resolveSeparators(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// resolveSeparators rewrites comma/period separators into a canonical
// period-decimal form. When both appear, the rightmost one is the
// decimal separator. A lone comma is treated as a decimal separator
// unless it groups exactly three trailing digits alongside siblings.
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastPeriod := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastPeriod >= 0:
		if lastComma > lastPeriod {
			// European: periods group thousands, comma is decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// Multiple commas can only be thousands grouping.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	return s
}

// ParseDate coerces a date cell against the accepted layouts, in order.
// Unparsable input yields an invalid NullDate.
func ParseDate(s string) record.NullDate {
	s = strings.TrimSpace(s)
	if s == "" {
		return record.NullDate{}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return record.NullDate{Time: t, Valid: true}
		}
	}
	return record.NullDate{}
}
