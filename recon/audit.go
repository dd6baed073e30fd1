/*
audit.go - Orphan and consistency scans

PURPOSE:
  Two one-directional scans over the full period and payment tables:

  1. Periods with no matching insurer row: still awaiting payment.
  2. Insurer rows with no matching period: orphaned payments - a strong
     signal of a missing attendance import or a name/date mismatch.

  Both scans are read-only. They report; only the payment sync
  (reconcile.go) writes tags back to the store.
*/
package recon

import "context"

// AuditReport is the result of a consistency scan.
type AuditReport struct {
	// AwaitingPayment lists stored periods with zero matching insurer rows.
	AwaitingPayment []ServicePeriod
	// OrphanPayments lists insurer rows with zero matching periods.
	// These require operator attention; they are never merged into
	// another period silently.
	OrphanPayments []InsurerPaymentRecord
}

// Auditor runs consistency scans against a store.
type Auditor struct {
	Store Store
}

func NewAuditor(store Store) *Auditor {
	return &Auditor{Store: store}
}

// Audit runs both scans. It never mutates stored data.
func (a *Auditor) Audit(ctx context.Context) (*AuditReport, error) {
	periods, err := a.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.Store.InsurerRecords(ctx)
	if err != nil {
		return nil, err
	}

	paymentKeys := make(map[string]bool, len(records))
	for _, r := range records {
		paymentKeys[paymentJoinKey(r.Employee, r.Start, r.End)] = true
	}
	periodKeys := make(map[string]bool, len(periods))

	report := &AuditReport{}
	for _, p := range periods {
		key := paymentJoinKey(p.Employee, FormatDate(p.Start), FormatDate(p.End))
		periodKeys[key] = true
		if !paymentKeys[key] {
			report.AwaitingPayment = append(report.AwaitingPayment, p)
		}
	}
	for _, r := range records {
		if !periodKeys[paymentJoinKey(r.Employee, r.Start, r.End)] {
			report.OrphanPayments = append(report.OrphanPayments, r)
		}
	}
	return report, nil
}
