/*
Package recon provides the core reconciliation engine for reserve-duty
payroll.

PURPOSE:
  This package contains the types and algorithms that reconcile two
  payroll-adjacent record sets for employees called up for reserve duty:
  attendance periods imported from the MECANO time-tracking export, and
  reimbursement records from the national-insurance payer (BTL). It computes
  the gap between what the employer paid for working days and what the
  insurer reimbursed, and assigns each period a settlement status.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:             roster entry with daily rate and monthly salary
  - AttendanceRecord:     one raw day of attendance (ephemeral input)
  - ServicePeriod:        a contiguous service range confined to one month
  - InsurerPaymentRecord: one BTL reimbursement row
  - ReconciliationSummary: derived per-period settlement line
  - PaymentBatch:         per-batch rollup of insurer disbursements

DESIGN PRINCIPLES:
  1. Precision: all money uses decimal.Decimal, never float
  2. Normalized keys: matching always uses normalized name/date strings,
     so formatting differences between source files never cause mismatches
  3. Month confinement: a ServicePeriod never crosses a calendar-month
     boundary - guaranteed by construction in the segmentation engine

SEE ALSO:
  - normalize.go: name/date/amount canonicalization
  - calendar.go:  work-day classification against a holiday calendar
  - segment.go:   attendance rows -> month-bounded periods
  - match.go:     idempotent merge of periods and insurer records
  - reconcile.go: employer-vs-insurer difference and status
  - audit.go:     orphan detection
*/
package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE - Roster entry (read-only to the engine)
// =============================================================================

// Employee is a roster entry. The roster is maintained by an external
// collaborator; the engine only reads it to resolve names and rates.
type Employee struct {
	Identity      string // tax/ID number
	Name          string // whitespace-normalized full name
	Department    string
	MonthlySalary decimal.Decimal
	DailyRate     decimal.Decimal
	BankInfo      string
	Active        bool
}

// =============================================================================
// ATTENDANCE - Raw daily input, consumed entirely by segmentation
// =============================================================================

// AttendanceRecord is a single day of attendance from the MECANO export.
// Records are never stored; they only feed the segmentation engine.
type AttendanceRecord struct {
	Employee   string // normalized
	Date       time.Time
	Department string
}

// =============================================================================
// SERVICE PERIOD - One employee, one contiguous range, one calendar month
// =============================================================================

// ServicePeriod is a stored reserve-duty period.
//
// INVARIANTS:
//   - Start <= End
//   - Weekdays+Fridays+Saturdays+Holidays == TotalDays == End-Start+1
//   - Start and End are in the same calendar month (by construction)
type ServicePeriod struct {
	ID         string // sequential, "P" + zero-padded integer
	Employee   string // normalized
	Department string
	Start      time.Time
	End        time.Time
	Month      string // "MM/YYYY", taken from Start

	TotalDays int
	Weekdays  int // Sunday-Thursday
	Fridays   int
	Saturdays int
	Holidays  int

	DailyRate       decimal.Decimal // snapshot at import time
	EmployerPayment decimal.Decimal

	// Enrichment written back by the payment sync; zero until then.
	Compensation20   decimal.Decimal
	Bonus40          decimal.Decimal
	Reimbursement    decimal.Decimal
	InsurerPaidDate  string // normalized DD/MM/YYYY, last payment seen
	Difference       decimal.Decimal
	PaymentMonth     string // payroll month the difference was paid out, "" if unpaid
	Status           Status
	Notes            string

	Tag RowTag
}

// Key returns the composite lookup key for duplicate detection.
func (p ServicePeriod) Key() string {
	return PeriodKey(p.Employee, FormatDate(p.Start), FormatDate(p.End))
}

// =============================================================================
// INSURER PAYMENT RECORD - One BTL reimbursement row
// =============================================================================

// ClaimType distinguishes original claims, adjustments, and the
// supplementary 40% bonus track.
type ClaimType = string

// ClaimTypeBonus40 is the claim type assigned to rows from the 40% bonus
// export. Kept in the payer's own wording for workbook compatibility.
const ClaimTypeBonus40 ClaimType = "תוספת 40%"

// InsurerPaymentRecord is a stored BTL reimbursement row.
//
// Natural key: (normalized employee name, Start, End, ClaimType).
// Amounts are never negative: sign-marked raw values are coerced to zero
// during parsing, not negated.
type InsurerPaymentRecord struct {
	Identity string
	Employee string // normalized
	Start    string // normalized DD/MM/YYYY
	End      string // normalized DD/MM/YYYY
	Claim    ClaimType

	Reimbursement   decimal.Decimal // tagmul
	Compensation20  decimal.Decimal // pitzuy, 20% employer compensation
	Bonus40         decimal.Decimal
	TotalToEmployee decimal.Decimal

	BatchNumber string
	PaymentDate string // normalized DD/MM/YYYY
	SourceFile  string

	Tag RowTag
}

// Key returns the composite lookup key for duplicate/conflict detection.
func (r InsurerPaymentRecord) Key() string {
	return InsurerKey(r.Employee, r.Start, r.End, r.Claim)
}

// =============================================================================
// RECONCILIATION SUMMARY - Derived, fully recomputed each run
// =============================================================================

// Status classifies the employer-vs-insurer difference of a period.
type Status string

const (
	// StatusBalanced: |difference| < 1 currency unit.
	StatusBalanced Status = "מאוזן"
	// StatusPending: insurer paid more than the employer; an amount is owed
	// to the employee.
	StatusPending Status = "ממתין"
	// StatusNotApplicable: the employer already paid enough or more.
	StatusNotApplicable Status = "לא רלוונטי"
)

// ReconciliationSummary is one derived settlement line per stored period.
// The summary table is replaced wholesale on every calculation run; it is
// never independently mutated.
type ReconciliationSummary struct {
	PeriodID   string
	Employee   string
	Department string
	Month      string
	Start      time.Time
	End        time.Time
	TotalDays  int
	Weekdays   int

	DailyRate       decimal.Decimal
	EmployerPayment decimal.Decimal
	Reimbursement   decimal.Decimal
	Compensation20  decimal.Decimal
	Bonus40         decimal.Decimal
	Difference      decimal.Decimal // Reimbursement - EmployerPayment, signed
	Status          Status
}

// =============================================================================
// PAYMENT BATCH - Per-batch rollup of insurer disbursements
// =============================================================================

// PaymentBatch is a rollup of all insurer rows disbursed together under one
// batch (mana) number. One row per distinct batch number seen across imports.
type PaymentBatch struct {
	Number         string
	PaymentDate    string // normalized DD/MM/YYYY
	Reimbursement  decimal.Decimal
	Compensation20 decimal.Decimal
	Bonus40        decimal.Decimal
	Total          decimal.Decimal

	Tag RowTag
}

// =============================================================================
// ROW TAGGING - How downstream reporting marks mutated rows
// =============================================================================

// RowTag marks what the last import did to a row so the workbook store can
// color it for operator review (new = green, updated = orange, orphan = red).
type RowTag string

const (
	TagNone    RowTag = ""
	TagNew     RowTag = "new"
	TagUpdated RowTag = "updated"
	TagOrphan  RowTag = "orphan"
)

// =============================================================================
// TABULAR INPUT - What the ingest readers hand the engine
// =============================================================================

// Row is one source-file row as a field-name-to-raw-value mapping.
// Values are unparsed; the engine normalizes them itself.
type Row map[string]string

// InsurerFile is a parsed-but-raw BTL or bonus export: fixed-position
// metadata plus the data rows in file order.
type InsurerFile struct {
	BatchNumber string
	PaymentDate string // raw, normalized by the merge engine
	Rows        []Row
	SourceFile  string
}
