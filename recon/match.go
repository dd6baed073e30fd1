/*
match.go - Idempotent merge of candidate periods and insurer records

PURPOSE:
  The merge engine decides, for every incoming record, whether it is a new
  insert, a duplicate to skip, or a conflicting update. It is the only
  component that writes periods and insurer rows into the store.

MERGE SEMANTICS:
  Periods:  keyed by normalizedEmployee|start|end. Unknown employee names
            are routed to the NameResolver (map / register / skip); known
            keys are skipped as duplicates; new keys get work-day
            classification, an employer payment, and a sequential ID.
  Insurer:  keyed by normalizedEmployee|start|end|claimType. An existing
            record whose stored amount differs by less than one currency
            unit is an identical duplicate; a materially different amount
            is a conflict routed to the ConflictResolver, honoring a
            run-scoped blanket policy. 40% bonus rows never conflict:
            duplicates are always skipped.

IDEMPOTENCE:
  Re-running any import against unchanged inputs yields zero inserts and
  zero updates. Every insert and update is tagged (TagNew / TagUpdated)
  so the workbook store can color rows for operator review.

EMPLOYER PAYMENT:
  weekdays * dailyRate, or the flat monthly salary when a period implies
  more than 20 qualifying weekdays in its calendar month (a full-month
  call-up).

ERROR HANDLING:
  A malformed row (missing identity, unparseable amount or date) is
  skipped, counted on the report, and never aborts the batch. Only a
  store failure is fatal for the run.
*/
package recon

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SOURCE-FILE FIELD NAMES - Fixed by the upstream exports
// =============================================================================

const (
	FieldEmployeeName = "שם עובד"
	FieldDate         = "תאריך"
	FieldDepartment   = "מחלקה"

	FieldIdentity      = "זהות"
	FieldFirstName     = "שם פרטי"
	FieldLastName      = "שם משפחה"
	FieldServiceStart  = "תאריך שרות"
	FieldServiceEnd    = "תאריך סיום שרות"
	FieldClaimType     = "סוג תביעה"
	FieldReimbursement = "תגמול"
	FieldCompensation  = "פיצוי %20 למעסיק"
	// The bonus export carries its amount under a different header,
	// falling back to the regular reimbursement column.
	FieldRequiredReimbursement = "תגמול נדרש"
)

// fullMonthWeekdays is the weekday count above which a period is treated
// as a full-month call-up and paid the flat monthly salary.
const fullMonthWeekdays = 20

// amountTolerance is the currency-rounding tolerance under which two
// amounts are considered identical.
var amountTolerance = decimal.NewFromInt(1)

// =============================================================================
// IMPORT REPORT
// =============================================================================

// ImportReport summarizes one merge run for the operator.
type ImportReport struct {
	RunID      string // unique per run, for log correlation
	BackupPath string

	Added        int
	Updated      int
	Skipped      int // duplicates
	SkippedNames int // candidates dropped by name resolution

	NewEmployees []string
	RowErrors    []*RowError

	// Batch totals accumulated during insurer/bonus imports.
	TotalReimbursement decimal.Decimal
	TotalCompensation  decimal.Decimal
	TotalBonus         decimal.Decimal
}

func newImportReport() *ImportReport {
	return &ImportReport{
		RunID:              uuid.NewString(),
		TotalReimbursement: decimal.Zero,
		TotalCompensation:  decimal.Zero,
		TotalBonus:         decimal.Zero,
	}
}

func (r *ImportReport) rowError(index int, employee string, err error) {
	r.RowErrors = append(r.RowErrors, &RowError{Index: index, Employee: employee, Err: err})
}

// =============================================================================
// MERGER
// =============================================================================

// Merger merges incoming records into the store. One Merger per run; the
// blanket conflict policy is run-scoped state.
type Merger struct {
	Store     Store
	Calendar  HolidayCalendar
	Names     NameResolver
	Conflicts ConflictResolver

	policy ConflictPolicy
}

// NewMerger wires a merge engine with non-interactive defaults: unknown
// names are skipped and conflicts are skipped. Callers needing operator
// interaction replace Names and Conflicts.
func NewMerger(store Store, cal HolidayCalendar) *Merger {
	return &Merger{
		Store:     store,
		Calendar:  cal,
		Names:     SkipUnknownNames{},
		Conflicts: FixedConflictPolicy(ChoiceSkip),
	}
}

// EmployerPaymentFor computes what the employer owes for a period's
// qualifying weekdays.
func EmployerPaymentFor(weekdays int, dailyRate, monthlySalary decimal.Decimal) decimal.Decimal {
	if weekdays > fullMonthWeekdays {
		return monthlySalary
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(weekdays)))
}

// =============================================================================
// ATTENDANCE PARSING
// =============================================================================

// ParseAttendance converts raw attendance rows into AttendanceRecords.
// Rows with a missing name or an unparseable date are skipped and
// reported; they never abort the batch.
func ParseAttendance(rows []Row) ([]AttendanceRecord, []*RowError) {
	var (
		records []AttendanceRecord
		errs    []*RowError
	)
	for i, row := range rows {
		name := NormalizeName(row[FieldEmployeeName])
		if name == "" {
			errs = append(errs, &RowError{Index: i, Err: fmt.Errorf("employee name: %w", ErrMissingIdentity)})
			continue
		}
		norm := NormalizeDate(row[FieldDate])
		date, ok := ParseDate(norm)
		if !ok {
			errs = append(errs, &RowError{Index: i, Employee: name, Err: fmt.Errorf("%q: %w", row[FieldDate], ErrMalformedDate)})
			continue
		}
		records = append(records, AttendanceRecord{
			Employee:   name,
			Date:       date,
			Department: NormalizeName(row[FieldDepartment]),
		})
	}
	return records, errs
}

// =============================================================================
// PERIOD MERGE
// =============================================================================

// ImportPeriods merges segmented candidate periods into the store.
// The store is backed up before the first mutation and saved at the end.
func (m *Merger) ImportPeriods(ctx context.Context, candidates []CandidatePeriod) (*ImportReport, error) {
	report := newImportReport()

	backup, err := BackupIfSupported(ctx, m.Store)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	report.BackupPath = backup

	employees, err := m.Store.Employees(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(employees))
	rates := make(map[string]decimal.Decimal, len(employees))
	salaries := make(map[string]decimal.Decimal, len(employees))
	var knownNames []string
	for _, e := range employees {
		name := NormalizeName(e.Name)
		known[name] = true
		rates[name] = e.DailyRate
		salaries[name] = e.MonthlySalary
		knownNames = append(knownNames, name)
	}

	periods, err := m.Store.Periods(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]bool, len(periods))
	for _, p := range periods {
		index[p.Key()] = true
	}
	nextID := nextPeriodNumber(periods)

	// Name decisions are cached for the run: the operator answers once per
	// distinct unrecognized name, not once per candidate period.
	mappings := make(map[string]string)

	for _, cand := range candidates {
		name := cand.Employee

		if !known[name] {
			if mapped, seen := mappings[name]; seen {
				if mapped == "" {
					report.SkippedNames++
					continue
				}
				name = mapped
			} else {
				decision, err := m.Names.ResolveName(name, SuggestNames(name, knownNames, 5), knownNames)
				if err != nil {
					return report, fmt.Errorf("resolve name %q: %w", name, err)
				}
				switch decision.Action {
				case NameRegister:
					if err := m.Store.AppendEmployee(ctx, Employee{Name: name, Department: cand.Department, Active: true, DailyRate: decimal.Zero, MonthlySalary: decimal.Zero}); err != nil {
						return report, err
					}
					known[name] = true
					knownNames = append(knownNames, name)
					rates[name] = decimal.Zero
					salaries[name] = decimal.Zero
					mappings[name] = name
					report.NewEmployees = append(report.NewEmployees, name)
				case NameMap:
					mapped := NormalizeName(decision.MapTo)
					mappings[name] = mapped
					name = mapped
				default:
					mappings[cand.Employee] = ""
					report.SkippedNames++
					continue
				}
			}
		}

		key := PeriodKey(name, FormatDate(cand.Start), FormatDate(cand.End))
		if index[key] {
			report.Skipped++
			continue
		}

		breakdown := ClassifyDays(cand.Start, cand.End, m.Calendar)
		rate := rates[name]
		period := ServicePeriod{
			ID:              fmt.Sprintf("P%04d", nextID),
			Employee:        name,
			Department:      cand.Department,
			Start:           cand.Start,
			End:             cand.End,
			Month:           MonthLabel(cand.Start),
			TotalDays:       cand.Days,
			Weekdays:        breakdown.Weekdays,
			Fridays:         breakdown.Fridays,
			Saturdays:       breakdown.Saturdays,
			Holidays:        breakdown.Holidays,
			DailyRate:       rate,
			EmployerPayment: EmployerPaymentFor(breakdown.Weekdays, rate, salaries[name]),
			Status:          "",
			Tag:             TagNew,
		}
		if err := m.Store.AppendPeriod(ctx, period); err != nil {
			return report, err
		}
		index[key] = true
		nextID++
		report.Added++
	}

	if err := m.Store.Save(ctx); err != nil {
		return report, &SaveError{BackupPath: backup, Err: err}
	}
	return report, nil
}

// nextPeriodNumber scans existing IDs of the form P<number> and returns
// max+1, starting at 1 for an empty store.
func nextPeriodNumber(periods []ServicePeriod) int {
	max := 0
	for _, p := range periods {
		var n int
		if _, err := fmt.Sscanf(p.ID, "P%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// =============================================================================
// INSURER MERGE
// =============================================================================

// ImportInsurer merges a BTL reimbursement export into the store and
// refreshes the batch rollup. The blanket conflict policy resets at the
// start of each run.
func (m *Merger) ImportInsurer(ctx context.Context, file InsurerFile) (*ImportReport, error) {
	m.policy = Undecided
	report := newImportReport()

	backup, err := BackupIfSupported(ctx, m.Store)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	report.BackupPath = backup

	existing, err := m.loadInsurerIndex(ctx)
	if err != nil {
		return nil, err
	}

	paymentDate := NormalizeDate(file.PaymentDate)

	for i, row := range file.Rows {
		identity := NormalizeName(row[FieldIdentity])
		if identity == "" {
			report.rowError(i, "", ErrMissingIdentity)
			continue
		}
		name := NormalizeName(row[FieldFirstName] + " " + row[FieldLastName])
		start := NormalizeDate(row[FieldServiceStart])
		end := NormalizeDate(row[FieldServiceEnd])
		if start == "" || end == "" {
			report.rowError(i, name, ErrMalformedDate)
			continue
		}
		claim := NormalizeName(row[FieldClaimType])

		reimbursement, err := ParseAmount(row[FieldReimbursement])
		if err != nil {
			report.rowError(i, name, err)
			continue
		}
		compensation, err := ParseAmount(row[FieldCompensation])
		if err != nil {
			report.rowError(i, name, err)
			continue
		}

		incoming := InsurerPaymentRecord{
			Identity:        identity,
			Employee:        name,
			Start:           start,
			End:             end,
			Claim:           claim,
			Reimbursement:   reimbursement,
			Compensation20:  compensation,
			Bonus40:         decimal.Zero,
			TotalToEmployee: reimbursement,
			BatchNumber:     file.BatchNumber,
			PaymentDate:     paymentDate,
			SourceFile:      file.SourceFile,
		}

		prev, found := existing[incoming.Key()]
		if found {
			if prev.Reimbursement.Sub(reimbursement).Abs().LessThan(amountTolerance) {
				report.Skipped++
				continue
			}
			update, err := m.decideConflict(Conflict{
				Employee: name,
				Start:    start,
				Existing: prev,
				Incoming: incoming,
			})
			if err != nil {
				return report, err
			}
			if !update {
				report.Skipped++
				continue
			}
			// Update overwrites amounts and batch metadata in place; the
			// bonus column of the stored row is preserved.
			incoming.Bonus40 = prev.Bonus40
			incoming.Tag = TagUpdated
			if err := m.Store.UpdateInsurerRecord(ctx, incoming); err != nil {
				return report, err
			}
			existing[incoming.Key()] = incoming
			report.Updated++
			report.TotalReimbursement = report.TotalReimbursement.Add(reimbursement)
			report.TotalCompensation = report.TotalCompensation.Add(compensation)
			continue
		}

		incoming.Tag = TagNew
		if err := m.Store.AppendInsurerRecord(ctx, incoming); err != nil {
			return report, err
		}
		existing[incoming.Key()] = incoming
		report.Added++
		report.TotalReimbursement = report.TotalReimbursement.Add(reimbursement)
		report.TotalCompensation = report.TotalCompensation.Add(compensation)
	}

	if err := m.rollupBatch(ctx, file.BatchNumber, paymentDate, report, false); err != nil {
		return report, err
	}

	if err := m.Store.Save(ctx); err != nil {
		return report, &SaveError{BackupPath: backup, Err: err}
	}
	return report, nil
}

// ImportBonus merges a 40% bonus export. Bonus rows are keyed under their
// own claim type, zero-amount rows are dropped, and duplicates are always
// skipped - there is no conflict path for bonus records.
func (m *Merger) ImportBonus(ctx context.Context, file InsurerFile) (*ImportReport, error) {
	report := newImportReport()

	backup, err := BackupIfSupported(ctx, m.Store)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	report.BackupPath = backup

	existing, err := m.loadInsurerIndex(ctx)
	if err != nil {
		return nil, err
	}

	paymentDate := NormalizeDate(file.PaymentDate)

	for i, row := range file.Rows {
		identity := NormalizeName(row[FieldIdentity])
		if identity == "" {
			report.rowError(i, "", ErrMissingIdentity)
			continue
		}
		name := NormalizeName(row[FieldFirstName] + " " + row[FieldLastName])
		start := NormalizeDate(row[FieldServiceStart])
		end := NormalizeDate(row[FieldServiceEnd])
		if start == "" || end == "" {
			report.rowError(i, name, ErrMalformedDate)
			continue
		}

		raw, ok := row[FieldRequiredReimbursement]
		if !ok {
			raw = row[FieldReimbursement]
		}
		bonus, err := ParseAmount(raw)
		if err != nil {
			report.rowError(i, name, err)
			continue
		}
		if bonus.IsZero() {
			continue
		}

		record := InsurerPaymentRecord{
			Identity:        identity,
			Employee:        name,
			Start:           start,
			End:             end,
			Claim:           ClaimTypeBonus40,
			Reimbursement:   decimal.Zero,
			Compensation20:  decimal.Zero,
			Bonus40:         bonus,
			TotalToEmployee: bonus,
			BatchNumber:     file.BatchNumber,
			PaymentDate:     paymentDate,
			SourceFile:      file.SourceFile,
			Tag:             TagNew,
		}

		if _, found := existing[record.Key()]; found {
			report.Skipped++
			continue
		}
		if err := m.Store.AppendInsurerRecord(ctx, record); err != nil {
			return report, err
		}
		existing[record.Key()] = record
		report.Added++
		report.TotalBonus = report.TotalBonus.Add(bonus)
	}

	if err := m.rollupBatch(ctx, file.BatchNumber, paymentDate, report, true); err != nil {
		return report, err
	}

	if err := m.Store.Save(ctx); err != nil {
		return report, &SaveError{BackupPath: backup, Err: err}
	}
	return report, nil
}

// decideConflict consults the run-scoped blanket policy first and falls
// back to the per-record resolver, recording any new blanket choice.
func (m *Merger) decideConflict(c Conflict) (update bool, err error) {
	switch m.policy {
	case AlwaysUpdate:
		return true, nil
	case AlwaysSkip:
		return false, nil
	}

	choice, err := m.Conflicts.ResolveConflict(c)
	if err != nil {
		return false, fmt.Errorf("resolve conflict for %s: %w", c.Employee, err)
	}
	switch choice {
	case ChoiceUpdate:
		return true, nil
	case ChoiceUpdateAll:
		m.policy = AlwaysUpdate
		return true, nil
	case ChoiceSkipAll:
		m.policy = AlwaysSkip
		return false, nil
	default:
		return false, nil
	}
}

// loadInsurerIndex builds the composite-key index over stored insurer rows.
func (m *Merger) loadInsurerIndex(ctx context.Context) (map[string]InsurerPaymentRecord, error) {
	records, err := m.Store.InsurerRecords(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]InsurerPaymentRecord, len(records))
	for _, r := range records {
		index[r.Key()] = r
	}
	return index, nil
}

// rollupBatch refreshes the one-row-per-batch rollup. An insurer import
// replaces the reimbursement and compensation columns; a bonus import
// replaces the bonus column. The untouched columns survive and the total
// is recomputed from all three.
func (m *Merger) rollupBatch(ctx context.Context, number, paymentDate string, report *ImportReport, bonusRun bool) error {
	if number == "" {
		return nil
	}
	batches, err := m.Store.Batches(ctx)
	if err != nil {
		return err
	}

	batch := PaymentBatch{
		Number:         number,
		PaymentDate:    paymentDate,
		Reimbursement:  decimal.Zero,
		Compensation20: decimal.Zero,
		Bonus40:        decimal.Zero,
		Tag:            TagNew,
	}
	for _, b := range batches {
		if b.Number == number {
			batch = b
			batch.Tag = TagUpdated
			break
		}
	}

	if bonusRun {
		batch.Bonus40 = report.TotalBonus
	} else {
		batch.Reimbursement = report.TotalReimbursement
		batch.Compensation20 = report.TotalCompensation
		batch.PaymentDate = paymentDate
	}
	batch.Total = batch.Reimbursement.Add(batch.Compensation20).Add(batch.Bonus40)

	return m.Store.UpsertBatch(ctx, batch)
}
