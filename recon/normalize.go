/*
normalize.go - Canonical forms for names, dates, and monetary amounts

PURPOSE:
  Every lookup key in the engine is built from normalized values, never raw
  ones, so that whitespace and date-format drift between source files never
  causes a false mismatch. "John  Doe" and "John Doe" are the same employee;
  "01/02/25" and "01/02/2025" are the same date.

CANONICAL DATE FORM:
  DD/MM/YYYY. Accepted inputs: the canonical form itself, DD/MM/YY
  (two-digit years <50 map to 20YY, otherwise 19YY), DD.MM.YYYY, or a
  native time.Time via FormatDate. Anything else normalizes to "".

SIGN HANDLING FOR AMOUNTS:
  Leading '+' is stripped. A raw value beginning with '-' is coerced to
  ZERO, not negated - a negative reimbursement is not meaningful in this
  domain. Preserved as-is from the upstream system pending product-owner
  confirmation (see DESIGN.md).
*/
package recon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical date form used for all keys and stored cells.
const DateLayout = "02/01/2006"

// =============================================================================
// NAMES
// =============================================================================

// NormalizeName trims and collapses internal whitespace runs to single
// spaces. Empty or missing input yields "". Idempotent.
func NormalizeName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// =============================================================================
// DATES
// =============================================================================

// FormatDate renders a native date in the canonical DD/MM/YYYY form.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// NormalizeDate canonicalizes a raw date string to DD/MM/YYYY.
// Unparseable or missing input yields "".
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// DD.MM.YYYY -> DD/MM/YYYY
	if len(s) == 10 && s[2] == '.' && s[5] == '.' {
		s = strings.ReplaceAll(s, ".", "/")
	}

	// DD/MM/YY -> expand two-digit year
	if len(s) == 8 && s[2] == '/' && s[5] == '/' {
		yy, err := strconv.Atoi(s[6:])
		if err != nil {
			return ""
		}
		century := "19"
		if yy < 50 {
			century = "20"
		}
		s = s[:6] + century + s[6:]
	}

	if _, ok := ParseDate(s); !ok {
		return ""
	}
	return s
}

// ParseDate parses the canonical DD/MM/YYYY form. It is the inverse of
// FormatDate/NormalizeDate and reports false on any failure, never panics.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MonthLabel renders the "MM/YYYY" calendar-month label of a date.
func MonthLabel(t time.Time) string {
	return t.Format("01/2006")
}

// =============================================================================
// AMOUNTS
// =============================================================================

// ParseAmount parses a raw monetary field from an insurer export.
// Thousands separators and a leading '+' are stripped. A raw value that
// begins with '-' is coerced to zero rather than negated. Empty input is
// zero; anything else unparseable is an error (the row is then counted as
// malformed and skipped, it never aborts the batch).
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.HasPrefix(s, "-") {
		// Negative adjustments are dropped, not negated.
		return decimal.Zero, nil
	}
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", raw, ErrMalformedAmount)
	}
	return d, nil
}

// =============================================================================
// COMPOSITE KEYS
// =============================================================================

// PeriodKey builds the lookup key for a service period from already-
// normalized parts.
func PeriodKey(employee, start, end string) string {
	return employee + "|" + start + "|" + end
}

// InsurerKey builds the lookup key for an insurer payment record from
// already-normalized parts. Claim type participates so an original claim
// and its 40% bonus never collide.
func InsurerKey(employee, start, end string, claim ClaimType) string {
	return employee + "|" + start + "|" + end + "|" + claim
}
