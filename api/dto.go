/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

AMOUNTS:
  The engine works in decimal.Decimal; DTOs carry float64 for natural
  JSON numbers. The conversion happens only at the API boundary, never
  inside the engine.

HEBREW VALUES:
  Statuses and claim types keep the payer's wording (the workbook carries
  the same strings); clients display them as-is.

SEE ALSO:
  - handlers.go: Uses these types
  - recon/types.go: The domain model behind them
*/
package api

import (
	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents a roster entry in API responses.
type EmployeeDTO struct {
	Identity      string  `json:"identity,omitempty"`
	Name          string  `json:"name"`
	Department    string  `json:"department,omitempty"`
	MonthlySalary float64 `json:"monthly_salary"`
	DailyRate     float64 `json:"daily_rate"`
	Active        bool    `json:"active"`
}

// PeriodDTO represents a stored service period.
type PeriodDTO struct {
	ID         string `json:"id"`
	Employee   string `json:"employee"`
	Department string `json:"department,omitempty"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Month      string `json:"month"`

	TotalDays int `json:"total_days"`
	Weekdays  int `json:"weekdays"`
	Fridays   int `json:"fridays"`
	Saturdays int `json:"saturdays"`
	Holidays  int `json:"holidays"`

	DailyRate       float64 `json:"daily_rate"`
	EmployerPayment float64 `json:"employer_payment"`
	Compensation20  float64 `json:"compensation_20"`
	Bonus40         float64 `json:"bonus_40"`
	Reimbursement   float64 `json:"reimbursement"`
	InsurerPaidDate string  `json:"insurer_paid_date,omitempty"`
	Difference      float64 `json:"difference"`
	PaymentMonth    string  `json:"payment_month,omitempty"`
	Status          string  `json:"status,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// InsurerRecordDTO represents one stored BTL reimbursement row.
type InsurerRecordDTO struct {
	Identity        string  `json:"identity"`
	Employee        string  `json:"employee"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	ClaimType       string  `json:"claim_type"`
	Reimbursement   float64 `json:"reimbursement"`
	Compensation20  float64 `json:"compensation_20"`
	Bonus40         float64 `json:"bonus_40"`
	TotalToEmployee float64 `json:"total_to_employee"`
	BatchNumber     string  `json:"batch_number,omitempty"`
	PaymentDate     string  `json:"payment_date,omitempty"`
	SourceFile      string  `json:"source_file,omitempty"`
}

// BatchDTO represents a per-batch rollup row.
type BatchDTO struct {
	Number         string  `json:"number"`
	PaymentDate    string  `json:"payment_date,omitempty"`
	Reimbursement  float64 `json:"reimbursement"`
	Compensation20 float64 `json:"compensation_20"`
	Bonus40        float64 `json:"bonus_40"`
	Total          float64 `json:"total"`
}

// SummaryDTO represents one derived settlement line.
type SummaryDTO struct {
	PeriodID        string  `json:"period_id"`
	Employee        string  `json:"employee"`
	Department      string  `json:"department,omitempty"`
	Month           string  `json:"month"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	TotalDays       int     `json:"total_days"`
	Weekdays        int     `json:"weekdays"`
	DailyRate       float64 `json:"daily_rate"`
	EmployerPayment float64 `json:"employer_payment"`
	Reimbursement   float64 `json:"reimbursement"`
	Compensation20  float64 `json:"compensation_20"`
	Bonus40         float64 `json:"bonus_40"`
	Difference      float64 `json:"difference"`
	Status          string  `json:"status"`
}

// RowErrorDTO carries one skipped-row diagnostic from an import.
type RowErrorDTO struct {
	Index    int    `json:"index"`
	Employee string `json:"employee,omitempty"`
	Reason   string `json:"reason"`
}

// ImportReportDTO summarizes one import run.
type ImportReportDTO struct {
	RunID      string `json:"run_id"`
	BackupPath string `json:"backup_path,omitempty"`

	Added        int `json:"added"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	SkippedNames int `json:"skipped_names,omitempty"`

	NewEmployees []string      `json:"new_employees,omitempty"`
	RowErrors    []RowErrorDTO `json:"row_errors,omitempty"`

	TotalReimbursement float64 `json:"total_reimbursement"`
	TotalCompensation  float64 `json:"total_compensation"`
	TotalBonus         float64 `json:"total_bonus"`
}

// SyncReportDTO summarizes one payment-sync run.
type SyncReportDTO struct {
	RunID                 string `json:"run_id"`
	BackupPath            string `json:"backup_path,omitempty"`
	Updated               int    `json:"updated"`
	PeriodsWithoutPayment int    `json:"periods_without_payment"`
	Orphans               int    `json:"orphans"`
}

// AuditReportDTO lists the two orphan directions.
type AuditReportDTO struct {
	AwaitingPayment []PeriodDTO        `json:"awaiting_payment"`
	OrphanPayments  []InsurerRecordDTO `json:"orphan_payments"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e recon.Employee) EmployeeDTO {
	return EmployeeDTO{
		Identity:      e.Identity,
		Name:          e.Name,
		Department:    e.Department,
		MonthlySalary: e.MonthlySalary.InexactFloat64(),
		DailyRate:     e.DailyRate.InexactFloat64(),
		Active:        e.Active,
	}
}

func toPeriodDTO(p recon.ServicePeriod) PeriodDTO {
	return PeriodDTO{
		ID:              p.ID,
		Employee:        p.Employee,
		Department:      p.Department,
		Start:           recon.FormatDate(p.Start),
		End:             recon.FormatDate(p.End),
		Month:           p.Month,
		TotalDays:       p.TotalDays,
		Weekdays:        p.Weekdays,
		Fridays:         p.Fridays,
		Saturdays:       p.Saturdays,
		Holidays:        p.Holidays,
		DailyRate:       p.DailyRate.InexactFloat64(),
		EmployerPayment: p.EmployerPayment.InexactFloat64(),
		Compensation20:  p.Compensation20.InexactFloat64(),
		Bonus40:         p.Bonus40.InexactFloat64(),
		Reimbursement:   p.Reimbursement.InexactFloat64(),
		InsurerPaidDate: p.InsurerPaidDate,
		Difference:      p.Difference.InexactFloat64(),
		PaymentMonth:    p.PaymentMonth,
		Status:          string(p.Status),
		Notes:           p.Notes,
	}
}

func toInsurerRecordDTO(r recon.InsurerPaymentRecord) InsurerRecordDTO {
	return InsurerRecordDTO{
		Identity:        r.Identity,
		Employee:        r.Employee,
		Start:           r.Start,
		End:             r.End,
		ClaimType:       r.Claim,
		Reimbursement:   r.Reimbursement.InexactFloat64(),
		Compensation20:  r.Compensation20.InexactFloat64(),
		Bonus40:         r.Bonus40.InexactFloat64(),
		TotalToEmployee: r.TotalToEmployee.InexactFloat64(),
		BatchNumber:     r.BatchNumber,
		PaymentDate:     r.PaymentDate,
		SourceFile:      r.SourceFile,
	}
}

func toBatchDTO(b recon.PaymentBatch) BatchDTO {
	return BatchDTO{
		Number:         b.Number,
		PaymentDate:    b.PaymentDate,
		Reimbursement:  b.Reimbursement.InexactFloat64(),
		Compensation20: b.Compensation20.InexactFloat64(),
		Bonus40:        b.Bonus40.InexactFloat64(),
		Total:          b.Total.InexactFloat64(),
	}
}

func toSummaryDTO(s recon.ReconciliationSummary) SummaryDTO {
	return SummaryDTO{
		PeriodID:        s.PeriodID,
		Employee:        s.Employee,
		Department:      s.Department,
		Month:           s.Month,
		Start:           recon.FormatDate(s.Start),
		End:             recon.FormatDate(s.End),
		TotalDays:       s.TotalDays,
		Weekdays:        s.Weekdays,
		DailyRate:       s.DailyRate.InexactFloat64(),
		EmployerPayment: s.EmployerPayment.InexactFloat64(),
		Reimbursement:   s.Reimbursement.InexactFloat64(),
		Compensation20:  s.Compensation20.InexactFloat64(),
		Bonus40:         s.Bonus40.InexactFloat64(),
		Difference:      s.Difference.InexactFloat64(),
		Status:          string(s.Status),
	}
}

func toImportReportDTO(r *recon.ImportReport) ImportReportDTO {
	dto := ImportReportDTO{
		RunID:              r.RunID,
		BackupPath:         r.BackupPath,
		Added:              r.Added,
		Updated:            r.Updated,
		Skipped:            r.Skipped,
		SkippedNames:       r.SkippedNames,
		NewEmployees:       r.NewEmployees,
		TotalReimbursement: r.TotalReimbursement.InexactFloat64(),
		TotalCompensation:  r.TotalCompensation.InexactFloat64(),
		TotalBonus:         r.TotalBonus.InexactFloat64(),
	}
	for _, re := range r.RowErrors {
		dto.RowErrors = append(dto.RowErrors, RowErrorDTO{
			Index:    re.Index,
			Employee: re.Employee,
			Reason:   re.Err.Error(),
		})
	}
	return dto
}
