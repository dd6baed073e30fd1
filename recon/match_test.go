package recon_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelush19/Litay-Panda-miluim/recon"
	"github.com/yelush19/Litay-Panda-miluim/recon/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestMerger(t *testing.T, roster ...recon.Employee) (*recon.Merger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	for _, e := range roster {
		require.NoError(t, mem.AppendEmployee(ctx, e))
	}
	return recon.NewMerger(mem, recon.EmptyCalendar{}), mem
}

func rosterEntry(name string, dailyRate, monthlySalary int64) recon.Employee {
	return recon.Employee{
		Name:          name,
		DailyRate:     decimal.NewFromInt(dailyRate),
		MonthlySalary: decimal.NewFromInt(monthlySalary),
		Active:        true,
	}
}

func candidate(name string, start, end time.Time) recon.CandidatePeriod {
	return recon.CandidatePeriod{
		Employee: name,
		Start:    start,
		End:      end,
		Days:     recon.DaySpan(start, end),
	}
}

func insurerRow(first, last, start, end, claim, reimbursement, compensation string) recon.Row {
	return recon.Row{
		recon.FieldIdentity:      "123456789",
		recon.FieldFirstName:     first,
		recon.FieldLastName:      last,
		recon.FieldServiceStart:  start,
		recon.FieldServiceEnd:    end,
		recon.FieldClaimType:     claim,
		recon.FieldReimbursement: reimbursement,
		recon.FieldCompensation:  compensation,
	}
}

// =============================================================================
// EMPLOYER PAYMENT
// =============================================================================

func TestEmployerPaymentFor_DailyRateUpToFullMonth(t *testing.T) {
	// GIVEN: rate 500, salary 9000
	// WHEN: 10 weekdays -> THEN: 10 * 500
	got := recon.EmployerPaymentFor(10, decimal.NewFromInt(500), decimal.NewFromInt(9000))
	assert.True(t, got.Equal(decimal.NewFromInt(5000)))
}

func TestEmployerPaymentFor_FlatSalaryAboveFullMonth(t *testing.T) {
	// WHEN: 25 weekdays -> THEN: the flat monthly salary
	got := recon.EmployerPaymentFor(25, decimal.NewFromInt(500), decimal.NewFromInt(9000))
	assert.True(t, got.Equal(decimal.NewFromInt(9000)))
}

// =============================================================================
// ATTENDANCE PARSING
// =============================================================================

func TestParseAttendance_SkipsMalformedRows(t *testing.T) {
	rows := []recon.Row{
		{recon.FieldEmployeeName: "Dana Cohen", recon.FieldDate: "06.07.2025"},
		{recon.FieldEmployeeName: "", recon.FieldDate: "07.07.2025"},
		{recon.FieldEmployeeName: "Avi Levi", recon.FieldDate: "not a date"},
	}

	records, errs := recon.ParseAttendance(rows)

	require.Len(t, records, 1)
	assert.Equal(t, "Dana Cohen", records[0].Employee)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], recon.ErrMissingIdentity)
	assert.ErrorIs(t, errs[1], recon.ErrMalformedDate)
}

// =============================================================================
// PERIOD MERGE
// =============================================================================

func TestImportPeriods_AddsClassifiedPeriods(t *testing.T) {
	// GIVEN: a rostered employee with rate 500
	merger, mem := newTestMerger(t, rosterEntry("Dana Cohen", 500, 9000))
	ctx := context.Background()

	// WHEN: importing Sunday through Saturday
	report, err := merger.ImportPeriods(ctx, []recon.CandidatePeriod{
		candidate("Dana Cohen", date(2025, time.July, 6), date(2025, time.July, 12)),
	})
	require.NoError(t, err)

	// THEN: one new period with day breakdown and employer payment
	assert.Equal(t, 1, report.Added)
	periods, err := mem.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	p := periods[0]
	assert.Equal(t, "P0001", p.ID)
	assert.Equal(t, 7, p.TotalDays)
	assert.Equal(t, 5, p.Weekdays)
	assert.Equal(t, 1, p.Fridays)
	assert.Equal(t, 1, p.Saturdays)
	assert.Equal(t, "07/2025", p.Month)
	assert.True(t, p.EmployerPayment.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, recon.TagNew, p.Tag)
}

func TestImportPeriods_Idempotent(t *testing.T) {
	merger, _ := newTestMerger(t, rosterEntry("Dana Cohen", 500, 9000))
	ctx := context.Background()
	candidates := []recon.CandidatePeriod{
		candidate("Dana Cohen", date(2025, time.July, 6), date(2025, time.July, 8)),
	}

	first, err := merger.ImportPeriods(ctx, candidates)
	require.NoError(t, err)
	second, err := merger.ImportPeriods(ctx, candidates)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Added)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 1, second.Skipped)
}

func TestImportPeriods_SequentialIDsAcrossRuns(t *testing.T) {
	merger, mem := newTestMerger(t, rosterEntry("Dana Cohen", 500, 9000))
	ctx := context.Background()

	_, err := merger.ImportPeriods(ctx, []recon.CandidatePeriod{
		candidate("Dana Cohen", date(2025, time.July, 6), date(2025, time.July, 8)),
	})
	require.NoError(t, err)
	_, err = merger.ImportPeriods(ctx, []recon.CandidatePeriod{
		candidate("Dana Cohen", date(2025, time.August, 3), date(2025, time.August, 5)),
	})
	require.NoError(t, err)

	periods, err := mem.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "P0001", periods[0].ID)
	assert.Equal(t, "P0002", periods[1].ID)
}

func TestImportPeriods_UnknownNameSkippedByDefault(t *testing.T) {
	// GIVEN: an empty roster and the default skip policy
	merger, mem := newTestMerger(t)
	ctx := context.Background()

	report, err := merger.ImportPeriods(ctx, []recon.CandidatePeriod{
		candidate("Nobody Known", date(2025, time.July, 6), date(2025, time.July, 8)),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 1, report.SkippedNames)
	periods, err := mem.Periods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestImportPeriods_RegisterPolicyAddsEmployee(t *testing.T) {
	merger, mem := newTestMerger(t)
	merger.Names = recon.RegisterUnknownNames{}
	ctx := context.Background()

	report, err := merger.ImportPeriods(ctx, []recon.CandidatePeriod{
		candidate("Dana Cohen", date(2025, time.July, 6), date(2025, time.July, 8)),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.Equal(t, []string{"Dana Cohen"}, report.NewEmployees)
	employees, err := mem.Employees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.True(t, employees[0].Active)
}

// mapToResolver maps every unrecognized name to one fixed roster name.
type mapToResolver string

func (r mapToResolver) ResolveName(string, []string, []string) (recon.NameDecision, error) {
	return recon.NameDecision{Action: recon.NameMap, MapTo: string(r)}, nil
}

func TestImportPeriods_MappedNameUsesRosterRate(t *testing.T) {
	// GIVEN: the roster knows "Dana Cohen"; the export says "Dana  Cohn"
	merger, mem := newTestMerger(t, rosterEntry("Dana Cohen", 500, 9000))
	merger.Names = mapToResolver("Dana Cohen")
	ctx := context.Background()

	report, err := merger.ImportPeriods(ctx, []recon.CandidatePeriod{
		candidate("Dana Cohn", date(2025, time.July, 6), date(2025, time.July, 8)),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	periods, err := mem.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "Dana Cohen", periods[0].Employee)
	assert.True(t, periods[0].DailyRate.Equal(decimal.NewFromInt(500)))
}

// =============================================================================
// INSURER MERGE
// =============================================================================

func testInsurerFile(rows ...recon.Row) recon.InsurerFile {
	return recon.InsurerFile{
		BatchNumber: "81234",
		PaymentDate: "20/07/2025",
		Rows:        rows,
		SourceFile:  "btl_july.xlsx",
	}
}

func TestImportInsurer_AddsAndRollsUpBatch(t *testing.T) {
	merger, mem := newTestMerger(t)
	ctx := context.Background()

	report, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6,000", "1,200"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.True(t, report.TotalReimbursement.Equal(decimal.NewFromInt(6000)))

	records, err := mem.InsurerRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "דנה כהן", records[0].Employee)
	assert.Equal(t, "81234", records[0].BatchNumber)
	assert.Equal(t, "20/07/2025", records[0].PaymentDate)

	batches, err := mem.Batches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Reimbursement.Equal(decimal.NewFromInt(6000)))
	assert.True(t, batches[0].Compensation20.Equal(decimal.NewFromInt(1200)))
	assert.True(t, batches[0].Total.Equal(decimal.NewFromInt(7200)))
}

func TestImportInsurer_SecondIdenticalImportSkipsEverything(t *testing.T) {
	merger, _ := newTestMerger(t)
	ctx := context.Background()
	file := testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000", "1200"),
	)

	first, err := merger.ImportInsurer(ctx, file)
	require.NoError(t, err)
	second, err := merger.ImportInsurer(ctx, file)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Added)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Skipped)
}

func TestImportInsurer_SubUnitDriftIsDuplicate(t *testing.T) {
	// GIVEN: a stored amount and an incoming one differing by less than 1
	merger, _ := newTestMerger(t)
	ctx := context.Background()

	_, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000.00", "0"),
	))
	require.NoError(t, err)

	report, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000.40", "0"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Updated)
}

func TestImportInsurer_ConflictSkippedByDefault(t *testing.T) {
	merger, mem := newTestMerger(t)
	ctx := context.Background()

	_, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000", "0"),
	))
	require.NoError(t, err)

	report, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "9000", "0"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	records, err := mem.InsurerRecords(ctx)
	require.NoError(t, err)
	assert.True(t, records[0].Reimbursement.Equal(decimal.NewFromInt(6000)))
}

func TestImportInsurer_ConflictUpdatePreservesBonus(t *testing.T) {
	// GIVEN: a stored record that already carries a 40% bonus
	merger, mem := newTestMerger(t)
	merger.Conflicts = recon.FixedConflictPolicy(recon.ChoiceUpdate)
	ctx := context.Background()

	_, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000", "0"),
	))
	require.NoError(t, err)

	records, err := mem.InsurerRecords(ctx)
	require.NoError(t, err)
	stored := records[0]
	stored.Bonus40 = decimal.NewFromInt(800)
	require.NoError(t, mem.UpdateInsurerRecord(ctx, stored))

	// WHEN: a conflicting amount arrives and the policy says update
	report, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "9000", "0"),
	))
	require.NoError(t, err)

	// THEN: the amount is replaced, the bonus column survives
	assert.Equal(t, 1, report.Updated)
	records, err = mem.InsurerRecords(ctx)
	require.NoError(t, err)
	assert.True(t, records[0].Reimbursement.Equal(decimal.NewFromInt(9000)))
	assert.True(t, records[0].Bonus40.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, recon.TagUpdated, records[0].Tag)
}

// countingResolver records how many times it was consulted.
type countingResolver struct {
	calls  int
	answer recon.ConflictChoice
}

func (r *countingResolver) ResolveConflict(recon.Conflict) (recon.ConflictChoice, error) {
	r.calls++
	return r.answer, nil
}

func TestImportInsurer_BlanketChoiceStopsPrompting(t *testing.T) {
	// GIVEN: two stored records that will both conflict
	merger, _ := newTestMerger(t)
	ctx := context.Background()

	_, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000", "0"),
		insurerRow("אבי", "לוי", "06/07/2025", "12/07/2025", "תביעה מקורית", "5000", "0"),
	))
	require.NoError(t, err)

	// WHEN: the resolver answers "update all" on the first conflict
	resolver := &countingResolver{answer: recon.ChoiceUpdateAll}
	merger.Conflicts = resolver
	report, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "7000", "0"),
		insurerRow("אבי", "לוי", "06/07/2025", "12/07/2025", "תביעה מקורית", "8000", "0"),
	))
	require.NoError(t, err)

	// THEN: both records are updated but the resolver ran only once
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, resolver.calls)
}

func TestImportInsurer_MalformedRowsReportedNotFatal(t *testing.T) {
	merger, _ := newTestMerger(t)
	ctx := context.Background()

	badAmount := insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "oops", "0")
	noIdentity := insurerRow("אבי", "לוי", "06/07/2025", "12/07/2025", "תביעה מקורית", "5000", "0")
	noIdentity[recon.FieldIdentity] = ""
	good := insurerRow("רון", "מור", "06/07/2025", "12/07/2025", "תביעה מקורית", "4000", "0")

	report, err := merger.ImportInsurer(ctx, testInsurerFile(badAmount, noIdentity, good))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	require.Len(t, report.RowErrors, 2)
	assert.ErrorIs(t, report.RowErrors[0], recon.ErrMalformedAmount)
	assert.ErrorIs(t, report.RowErrors[1], recon.ErrMissingIdentity)
}

// =============================================================================
// BONUS MERGE
// =============================================================================

func bonusRow(first, last, start, end, amount string) recon.Row {
	row := insurerRow(first, last, start, end, "", "", "")
	row[recon.FieldRequiredReimbursement] = amount
	return row
}

func TestImportBonus_ForcesClaimTypeAndSkipsZeros(t *testing.T) {
	merger, mem := newTestMerger(t)
	ctx := context.Background()

	report, err := merger.ImportBonus(ctx, testInsurerFile(
		bonusRow("דנה", "כהן", "06/07/2025", "12/07/2025", "2400"),
		bonusRow("אבי", "לוי", "06/07/2025", "12/07/2025", "0"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	records, err := mem.InsurerRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, recon.ClaimTypeBonus40, records[0].Claim)
	assert.True(t, records[0].Bonus40.Equal(decimal.NewFromInt(2400)))
}

func TestImportBonus_DuplicatesAlwaysSkipped(t *testing.T) {
	// Bonus rows never conflict, even with a different amount.
	merger, mem := newTestMerger(t)
	ctx := context.Background()

	_, err := merger.ImportBonus(ctx, testInsurerFile(
		bonusRow("דנה", "כהן", "06/07/2025", "12/07/2025", "2400"),
	))
	require.NoError(t, err)

	report, err := merger.ImportBonus(ctx, testInsurerFile(
		bonusRow("דנה", "כהן", "06/07/2025", "12/07/2025", "9999"),
	))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 1, report.Skipped)
	records, err := mem.InsurerRecords(ctx)
	require.NoError(t, err)
	assert.True(t, records[0].Bonus40.Equal(decimal.NewFromInt(2400)))
}

func TestImportBonus_RollupKeepsInsurerColumns(t *testing.T) {
	// GIVEN: a batch already rolled up from an insurer import
	merger, mem := newTestMerger(t)
	ctx := context.Background()

	_, err := merger.ImportInsurer(ctx, testInsurerFile(
		insurerRow("דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000", "1200"),
	))
	require.NoError(t, err)

	// WHEN: a bonus file for the same batch arrives
	_, err = merger.ImportBonus(ctx, testInsurerFile(
		bonusRow("דנה", "כהן", "06/07/2025", "12/07/2025", "2400"),
	))
	require.NoError(t, err)

	// THEN: the rollup keeps the insurer columns and recomputes the total
	batches, err := mem.Batches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Reimbursement.Equal(decimal.NewFromInt(6000)))
	assert.True(t, batches[0].Compensation20.Equal(decimal.NewFromInt(1200)))
	assert.True(t, batches[0].Bonus40.Equal(decimal.NewFromInt(2400)))
	assert.True(t, batches[0].Total.Equal(decimal.NewFromInt(9600)))
	assert.Equal(t, recon.TagUpdated, batches[0].Tag)
}
