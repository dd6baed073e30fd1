package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelush19/Litay-Panda-miluim/recon"
	"github.com/yelush19/Litay-Panda-miluim/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testPeriod(id string) recon.ServicePeriod {
	return recon.ServicePeriod{
		ID:              id,
		Employee:        "Dana Cohen",
		Department:      "R&D",
		Start:           time.Date(2025, time.July, 6, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
		Month:           "07/2025",
		TotalDays:       7,
		Weekdays:        5,
		Fridays:         1,
		Saturdays:       1,
		DailyRate:       decimal.NewFromInt(500),
		EmployerPayment: decimal.NewFromInt(2500),
		Difference:      decimal.RequireFromString("-123.45"),
		Status:          recon.StatusNotApplicable,
		Tag:             recon.TagNew,
	}
}

func testRecord() recon.InsurerPaymentRecord {
	return recon.InsurerPaymentRecord{
		Identity:        "123456789",
		Employee:        "Dana Cohen",
		Start:           "06/07/2025",
		End:             "12/07/2025",
		Claim:           "תביעה מקורית",
		Reimbursement:   decimal.RequireFromString("6000.50"),
		Compensation20:  decimal.NewFromInt(1200),
		Bonus40:         decimal.Zero,
		TotalToEmployee: decimal.RequireFromString("6000.50"),
		BatchNumber:     "81234",
		PaymentDate:     "20/07/2025",
		SourceFile:      "btl_july.xlsx",
		Tag:             recon.TagNew,
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestEmployeeRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := recon.Employee{
		Identity:      "123456789",
		Name:          "Dana Cohen",
		Department:    "R&D",
		MonthlySalary: decimal.NewFromInt(20000),
		DailyRate:     decimal.RequireFromString("909.09"),
		BankInfo:      "12-345-67890",
		Active:        true,
	}
	require.NoError(t, st.AppendEmployee(ctx, in))

	out, err := st.Employees(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in.Name, out[0].Name)
	assert.Equal(t, in.BankInfo, out[0].BankInfo)
	assert.True(t, out[0].DailyRate.Equal(in.DailyRate))
	assert.True(t, out[0].Active)
}

func TestPeriodRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := testPeriod("P0001")
	require.NoError(t, st.AppendPeriod(ctx, in))

	out, err := st.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, in.ID, got.ID)
	assert.True(t, got.Start.Equal(in.Start))
	assert.True(t, got.End.Equal(in.End))
	assert.Equal(t, in.Weekdays, got.Weekdays)
	assert.True(t, got.EmployerPayment.Equal(in.EmployerPayment))
	// Negative differences survive: the skip-sign amount coercion applies
	// to source parsing only, not to stored values.
	assert.True(t, got.Difference.Equal(in.Difference))
	assert.Equal(t, recon.StatusNotApplicable, got.Status)
	assert.Equal(t, recon.TagNew, got.Tag)
}

func TestPeriodsOrderedByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	second := testPeriod("P0002")
	require.NoError(t, st.AppendPeriod(ctx, second))
	require.NoError(t, st.AppendPeriod(ctx, testPeriod("P0001")))

	out, err := st.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "P0001", out[0].ID)
	assert.Equal(t, "P0002", out[1].ID)
}

func TestInsurerRecordRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := testRecord()
	require.NoError(t, st.AppendInsurerRecord(ctx, in))

	out, err := st.InsurerRecords(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in.Key(), out[0].Key())
	assert.True(t, out[0].Reimbursement.Equal(in.Reimbursement))
	assert.Equal(t, "81234", out[0].BatchNumber)
	assert.Equal(t, "btl_july.xlsx", out[0].SourceFile)
}

// =============================================================================
// UPDATES
// =============================================================================

func TestUpdatePeriod(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.AppendPeriod(ctx, testPeriod("P0001")))

	p := testPeriod("P0001")
	p.Reimbursement = decimal.NewFromInt(6000)
	p.Status = recon.StatusPending
	p.Tag = recon.TagUpdated
	require.NoError(t, st.UpdatePeriod(ctx, p))

	out, err := st.Periods(ctx)
	require.NoError(t, err)
	assert.True(t, out[0].Reimbursement.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, recon.StatusPending, out[0].Status)
}

func TestUpdatePeriod_UnknownID(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdatePeriod(context.Background(), testPeriod("P9999"))

	assert.ErrorIs(t, err, recon.ErrPeriodNotFound)
}

func TestUpdateInsurerRecord_UnknownKey(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateInsurerRecord(context.Background(), testRecord())

	assert.ErrorIs(t, err, recon.ErrRecordNotFound)
}

func TestUpdateInsurerRecord_MatchesOnFullKey(t *testing.T) {
	// GIVEN: two rows for the same range under different claim types
	st := newTestStore(t)
	ctx := context.Background()

	base := testRecord()
	require.NoError(t, st.AppendInsurerRecord(ctx, base))
	bonus := testRecord()
	bonus.Claim = recon.ClaimTypeBonus40
	bonus.Bonus40 = decimal.NewFromInt(2400)
	require.NoError(t, st.AppendInsurerRecord(ctx, bonus))

	// WHEN: updating only the base claim's amount
	base.Reimbursement = decimal.NewFromInt(9000)
	require.NoError(t, st.UpdateInsurerRecord(ctx, base))

	// THEN: the bonus row is untouched
	out, err := st.InsurerRecords(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Reimbursement.Equal(decimal.NewFromInt(9000)))
	assert.True(t, out[1].Bonus40.Equal(decimal.NewFromInt(2400)))
}

// =============================================================================
// BATCHES
// =============================================================================

func TestUpsertBatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := recon.PaymentBatch{
		Number:        "81234",
		PaymentDate:   "20/07/2025",
		Reimbursement: decimal.NewFromInt(6000),
		Total:         decimal.NewFromInt(6000),
		Tag:           recon.TagNew,
	}
	require.NoError(t, st.UpsertBatch(ctx, first))

	// Second upsert of the same number overwrites, not duplicates.
	first.Bonus40 = decimal.NewFromInt(2400)
	first.Total = decimal.NewFromInt(8400)
	first.Tag = recon.TagUpdated
	require.NoError(t, st.UpsertBatch(ctx, first))

	out, err := st.Batches(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Total.Equal(decimal.NewFromInt(8400)))
	assert.Equal(t, recon.TagUpdated, out[0].Tag)
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestReplaceSummaries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	line := recon.ReconciliationSummary{
		PeriodID:        "P0001",
		Employee:        "Dana Cohen",
		Month:           "07/2025",
		Start:           time.Date(2025, time.July, 6, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC),
		TotalDays:       7,
		Weekdays:        5,
		DailyRate:       decimal.NewFromInt(500),
		EmployerPayment: decimal.NewFromInt(2500),
		Reimbursement:   decimal.NewFromInt(6000),
		Difference:      decimal.NewFromInt(3500),
		Status:          recon.StatusPending,
	}
	require.NoError(t, st.ReplaceSummaries(ctx, []recon.ReconciliationSummary{line, line}))
	require.NoError(t, st.ReplaceSummaries(ctx, []recon.ReconciliationSummary{line}))

	out, err := st.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "P0001", out[0].PeriodID)
	assert.True(t, out[0].Difference.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, recon.StatusPending, out[0].Status)
}

// =============================================================================
// RESET / BACKUP
// =============================================================================

func TestReset_KeepsRoster(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendEmployee(ctx, recon.Employee{Name: "Dana Cohen", DailyRate: decimal.Zero, MonthlySalary: decimal.Zero}))
	require.NoError(t, st.AppendPeriod(ctx, testPeriod("P0001")))
	require.NoError(t, st.AppendInsurerRecord(ctx, testRecord()))
	require.NoError(t, st.UpsertBatch(ctx, recon.PaymentBatch{Number: "81234", Reimbursement: decimal.Zero, Compensation20: decimal.Zero, Bonus40: decimal.Zero, Total: decimal.Zero}))

	require.NoError(t, st.Reset(ctx))

	employees, err := st.Employees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	periods, err := st.Periods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods)
	records, err := st.InsurerRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	batches, err := st.Batches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestBackup_InMemoryIsSkipped(t *testing.T) {
	st := newTestStore(t)

	path, err := st.Backup(context.Background())

	require.NoError(t, err)
	assert.Empty(t, path)
}
