/*
reconcile.go - Employer-vs-insurer difference, status, and payment sync

PURPOSE:
  Joins stored service periods to stored insurer payments and computes the
  settlement picture. Two operations share the join:

  CALCULATE: derives the full summary table from scratch. Total and
  idempotent - the summary table is replaced wholesale each run, never
  patched incrementally.

  SYNC: enriches each stored period in place with the summed insurer
  amounts, the last payment date, and the signed difference; insurer rows
  with no matching period are tagged as orphans for operator attention.

JOIN KEY:
  normalized employee name + normalized start + normalized end.
  Claim type is NOT part of this join: an original claim and its 40%
  bonus both contribute to the same period's totals.

STATUS:
  |difference| < 1  -> Balanced
  difference  > 0   -> Pending       (owed to the employee)
  difference  < 0   -> NotApplicable (employer already paid enough)
*/
package recon

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS
// =============================================================================

// StatusFor classifies a signed insurer-minus-employer difference.
func StatusFor(difference decimal.Decimal) Status {
	switch {
	case difference.Abs().LessThan(amountTolerance):
		return StatusBalanced
	case difference.IsPositive():
		return StatusPending
	default:
		return StatusNotApplicable
	}
}

// =============================================================================
// PAYMENT JOIN
// =============================================================================

// paymentTotals accumulates all insurer rows joined to one period.
type paymentTotals struct {
	reimbursement  decimal.Decimal
	compensation20 decimal.Decimal
	bonus40        decimal.Decimal
	lastPaidDate   string
}

func paymentJoinKey(employee, start, end string) string {
	return employee + "|" + start + "|" + end
}

// indexPayments groups stored insurer rows by the period join key.
func indexPayments(records []InsurerPaymentRecord) map[string]*paymentTotals {
	index := make(map[string]*paymentTotals)
	for _, r := range records {
		key := paymentJoinKey(r.Employee, r.Start, r.End)
		t, ok := index[key]
		if !ok {
			t = &paymentTotals{
				reimbursement:  decimal.Zero,
				compensation20: decimal.Zero,
				bonus40:        decimal.Zero,
			}
			index[key] = t
		}
		t.reimbursement = t.reimbursement.Add(r.Reimbursement)
		t.compensation20 = t.compensation20.Add(r.Compensation20)
		t.bonus40 = t.bonus40.Add(r.Bonus40)
		if r.PaymentDate != "" {
			t.lastPaidDate = r.PaymentDate
		}
	}
	return index
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler derives settlement state from stored periods and payments.
type Reconciler struct {
	Store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{Store: store}
}

// Calculate recomputes the whole summary table and writes it back,
// replacing the previous set. Employer payments are recomputed from the
// current roster rates, so a roster correction flows into the next run.
func (r *Reconciler) Calculate(ctx context.Context) ([]ReconciliationSummary, error) {
	backup, err := BackupIfSupported(ctx, r.Store)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}

	employees, err := r.Store.Employees(ctx)
	if err != nil {
		return nil, err
	}
	rates := make(map[string]decimal.Decimal, len(employees))
	salaries := make(map[string]decimal.Decimal, len(employees))
	for _, e := range employees {
		name := NormalizeName(e.Name)
		rates[name] = e.DailyRate
		salaries[name] = e.MonthlySalary
	}

	periods, err := r.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	records, err := r.Store.InsurerRecords(ctx)
	if err != nil {
		return nil, err
	}
	payments := indexPayments(records)

	summaries := make([]ReconciliationSummary, 0, len(periods))
	for _, p := range periods {
		rate, okRate := rates[p.Employee]
		if !okRate {
			rate = decimal.Zero
		}
		monthly := salaries[p.Employee]
		employerPayment := EmployerPaymentFor(p.Weekdays, rate, monthly)

		totals := paymentTotals{
			reimbursement:  decimal.Zero,
			compensation20: decimal.Zero,
			bonus40:        decimal.Zero,
		}
		if t, ok := payments[paymentJoinKey(p.Employee, FormatDate(p.Start), FormatDate(p.End))]; ok {
			totals = *t
		}

		difference := totals.reimbursement.Sub(employerPayment)
		summaries = append(summaries, ReconciliationSummary{
			PeriodID:        p.ID,
			Employee:        p.Employee,
			Department:      p.Department,
			Month:           p.Month,
			Start:           p.Start,
			End:             p.End,
			TotalDays:       p.TotalDays,
			Weekdays:        p.Weekdays,
			DailyRate:       rate,
			EmployerPayment: employerPayment,
			Reimbursement:   totals.reimbursement,
			Compensation20:  totals.compensation20,
			Bonus40:         totals.bonus40,
			Difference:      difference,
			Status:          StatusFor(difference),
		})
	}

	if err := r.Store.ReplaceSummaries(ctx, summaries); err != nil {
		return nil, err
	}
	if err := r.Store.Save(ctx); err != nil {
		return nil, &SaveError{BackupPath: backup, Err: err}
	}
	return summaries, nil
}

// =============================================================================
// PAYMENT SYNC
// =============================================================================

// SyncReport summarizes one payment sync run.
type SyncReport struct {
	RunID      string
	BackupPath string

	Updated               int // periods enriched with insurer amounts
	PeriodsWithoutPayment int // periods with no matching insurer row
	Orphans               []InsurerPaymentRecord
}

// Sync writes insurer totals back onto each stored period and tags insurer
// rows without a matching period as orphans. The period's own snapshot of
// the employer payment anchors the difference here, unlike Calculate.
func (r *Reconciler) Sync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{RunID: uuid.NewString()}

	backup, err := BackupIfSupported(ctx, r.Store)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	report.BackupPath = backup

	periods, err := r.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	records, err := r.Store.InsurerRecords(ctx)
	if err != nil {
		return nil, err
	}
	payments := indexPayments(records)

	periodKeys := make(map[string]bool, len(periods))
	for _, p := range periods {
		key := paymentJoinKey(p.Employee, FormatDate(p.Start), FormatDate(p.End))
		periodKeys[key] = true

		totals, ok := payments[key]
		if !ok {
			report.PeriodsWithoutPayment++
			continue
		}

		p.Compensation20 = totals.compensation20
		p.Bonus40 = totals.bonus40
		p.Reimbursement = totals.reimbursement
		p.InsurerPaidDate = totals.lastPaidDate
		p.Difference = totals.reimbursement.Sub(p.EmployerPayment)
		p.Status = StatusFor(p.Difference)
		p.Tag = TagUpdated
		if err := r.Store.UpdatePeriod(ctx, p); err != nil {
			return report, err
		}
		report.Updated++
	}

	for _, rec := range records {
		if periodKeys[paymentJoinKey(rec.Employee, rec.Start, rec.End)] {
			continue
		}
		rec.Tag = TagOrphan
		if err := r.Store.UpdateInsurerRecord(ctx, rec); err != nil {
			return report, err
		}
		report.Orphans = append(report.Orphans, rec)
	}

	if err := r.Store.Save(ctx); err != nil {
		return report, &SaveError{BackupPath: backup, Err: err}
	}
	return report, nil
}

// UnpaidPeriods lists stored periods that have no payment-execution month
// recorded - the input for the payroll differences report. Read-only.
func (r *Reconciler) UnpaidPeriods(ctx context.Context) ([]ServicePeriod, error) {
	periods, err := r.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	var unpaid []ServicePeriod
	for _, p := range periods {
		if p.ID == "" {
			continue
		}
		if NormalizeName(p.PaymentMonth) == "" {
			unpaid = append(unpaid, p)
		}
	}
	return unpaid, nil
}
