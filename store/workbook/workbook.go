/*
Package workbook implements recon.Store over the operator's Excel system
file.

PURPOSE:
  The workbook IS the system of record for the payroll operator: one xlsx
  file with a roster sheet, a service-period tracking sheet, the insurer
  payment sheet, the per-batch payment list and a derived summary sheet.
  This package reads the whole file into memory on Open, lets the engine
  mutate typed records, and rewrites the sheets on Save.

SHEET LAYOUTS (column-positional, preserved for compatibility):
  Periods:  21 columns - id, employee, department, start, end, month,
            total days, weekdays, fridays, saturdays, holidays, daily
            rate, employer payment, compensation 20%, bonus 40%, total
            reimbursement, insurer payment date, difference, payment
            month, status, notes
  Insurer:  12 columns - identity, employee, start, end, claim type,
            reimbursement, compensation 20%, bonus 40%, total to
            employee, batch number, payment date, source file
  Batches:  6 columns - number, payment date, reimbursement,
            compensation 20%, bonus 40%, total
  Summary:  15 columns, replaced wholesale on every calculation

ROW COLORING:
  Rows mutated by the last run carry a RowTag and are filled on Save:
  new = green, updated = orange, orphan = red. Tags are colors only;
  they are not read back on Open.

TRACKING SHEET NAME:
  Older system files name the tracking sheet differently; Open accepts
  either name and Save keeps whichever was found.

SEE ALSO:
  - recon/store.go: the contract this implements
  - store/sqlite: same contract over SQLite
*/
package workbook

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// =============================================================================
// SHEET NAMES & LAYOUTS
// =============================================================================

const (
	SheetEmployees  = "1️⃣ רשימת עובדים"
	SheetPeriods    = "2️⃣ תקופות מילואים"
	SheetPeriodsOld = "📊 מעקב מילואים ותשלומים"
	SheetInsurer    = "3️⃣ תשלומי ב\"ל"
	SheetBatches    = "💵 רשימת תשלומים"
	SheetSummary    = "4️⃣ דוח מסכם"
)

// Row fill colors for operator review.
const (
	colorNew     = "D4EDDA"
	colorUpdated = "FFF3CD"
	colorOrphan  = "FFE6E6"
)

var employeeHeader = []string{
	"זהות", "שם מלא", "מחלקה", "משכורת חודשית", "תעריף יומי", "פרטי בנק", "סטטוס",
}

var periodHeader = []string{
	"מזהה תקופה", "שם עובד", "מחלקה", "תאריך התחלה", "תאריך סיום", "חודש",
	"סה\"כ ימים", "ימי א-ה", "ימי שישי", "שבתות", "חגים", "תעריף יומי",
	"תשלום מעסיק", "פיצוי 20% ₪", "תוספת 40% ₪", "סה\"כ תגמול", "מועד תשלום",
	"הפרש", "חודש ביצוע תשלום", "סטטוס", "הערות",
}

var insurerHeader = []string{
	"זהות", "שם עובד", "תאריך התחלה", "תאריך סיום", "סוג תביעה", "תגמול ₪",
	"פיצוי 20% ₪", "תוספת 40% ₪", "סה\"כ לעובד", "מספר מנה", "תאריך תשלום",
	"קובץ מקור",
}

var batchHeader = []string{
	"מספר מנה", "תאריך תשלום", "תגמול ₪", "פיצוי 20% ₪", "תוספת 40% ₪", "סה\"כ",
}

var summaryHeader = []string{
	"עובד", "מזהה", "מחלקה", "חודש", "התחלה", "סיום", "ימים", "ימי א-ה",
	"תעריף", "תשלום מעסיק", "תגמול ב\"ל", "פיצוי 20%", "תוספת 40%", "הפרש",
	"סטטוס",
}

// =============================================================================
// STORE
// =============================================================================

// Store is the xlsx-backed system of record.
type Store struct {
	path          string
	trackingSheet string

	mu        sync.RWMutex
	employees []recon.Employee
	periods   []recon.ServicePeriod
	records   []recon.InsurerPaymentRecord
	batches   []recon.PaymentBatch
	summaries []recon.ReconciliationSummary
}

var (
	_ recon.Store       = (*Store)(nil)
	_ recon.BackupStore = (*Store)(nil)
)

// Open loads an existing system file. A missing or unreadable file is
// fatal for the run.
func Open(path string) (*Store, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", recon.ErrStoreUnavailable, path, err)
	}
	defer f.Close()

	s := &Store{path: path, trackingSheet: SheetPeriods}
	if err := s.load(f); err != nil {
		return nil, err
	}
	return s, nil
}

// Create returns an empty store bound to path. The file is written on the
// first Save.
func Create(path string) *Store {
	return &Store{path: path, trackingSheet: SheetPeriods}
}

// Path returns the bound system-file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load(f *excelize.File) error {
	sheets := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}
	if !sheets[SheetPeriods] && sheets[SheetPeriodsOld] {
		s.trackingSheet = SheetPeriodsOld
	}

	if sheets[SheetEmployees] {
		if err := s.loadEmployees(f); err != nil {
			return fmt.Errorf("sheet %q: %w", SheetEmployees, err)
		}
	}
	if sheets[s.trackingSheet] {
		if err := s.loadPeriods(f); err != nil {
			return fmt.Errorf("sheet %q: %w", s.trackingSheet, err)
		}
	}
	if sheets[SheetInsurer] {
		if err := s.loadInsurer(f); err != nil {
			return fmt.Errorf("sheet %q: %w", SheetInsurer, err)
		}
	}
	if sheets[SheetBatches] {
		if err := s.loadBatches(f); err != nil {
			return fmt.Errorf("sheet %q: %w", SheetBatches, err)
		}
	}
	return nil
}

func (s *Store) loadEmployees(f *excelize.File) error {
	rows, err := f.GetRows(SheetEmployees)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 || cell(row, 1) == "" {
			continue
		}
		s.employees = append(s.employees, recon.Employee{
			Identity:      cell(row, 0),
			Name:          recon.NormalizeName(cell(row, 1)),
			Department:    cell(row, 2),
			MonthlySalary: cellDecimal(row, 3),
			DailyRate:     cellDecimal(row, 4),
			BankInfo:      cell(row, 5),
			Active:        cell(row, 6) != "לא פעיל",
		})
	}
	return nil
}

func (s *Store) loadPeriods(f *excelize.File) error {
	rows, err := f.GetRows(s.trackingSheet)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 || cell(row, 0) == "" {
			continue
		}
		start, ok := recon.ParseDate(recon.NormalizeDate(cell(row, 3)))
		if !ok {
			return fmt.Errorf("row %d: %w: %q", i+1, recon.ErrMalformedDate, cell(row, 3))
		}
		end, ok := recon.ParseDate(recon.NormalizeDate(cell(row, 4)))
		if !ok {
			return fmt.Errorf("row %d: %w: %q", i+1, recon.ErrMalformedDate, cell(row, 4))
		}
		s.periods = append(s.periods, recon.ServicePeriod{
			ID:              cell(row, 0),
			Employee:        recon.NormalizeName(cell(row, 1)),
			Department:      cell(row, 2),
			Start:           start,
			End:             end,
			Month:           cell(row, 5),
			TotalDays:       cellInt(row, 6),
			Weekdays:        cellInt(row, 7),
			Fridays:         cellInt(row, 8),
			Saturdays:       cellInt(row, 9),
			Holidays:        cellInt(row, 10),
			DailyRate:       cellDecimal(row, 11),
			EmployerPayment: cellDecimal(row, 12),
			Compensation20:  cellDecimal(row, 13),
			Bonus40:         cellDecimal(row, 14),
			Reimbursement:   cellDecimal(row, 15),
			InsurerPaidDate: cell(row, 16),
			Difference:      cellDecimal(row, 17),
			PaymentMonth:    cell(row, 18),
			Status:          recon.Status(cell(row, 19)),
			Notes:           cell(row, 20),
		})
	}
	return nil
}

func (s *Store) loadInsurer(f *excelize.File) error {
	rows, err := f.GetRows(SheetInsurer)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 || cell(row, 1) == "" {
			continue
		}
		s.records = append(s.records, recon.InsurerPaymentRecord{
			Identity:        cell(row, 0),
			Employee:        recon.NormalizeName(cell(row, 1)),
			Start:           recon.NormalizeDate(cell(row, 2)),
			End:             recon.NormalizeDate(cell(row, 3)),
			Claim:           cell(row, 4),
			Reimbursement:   cellDecimal(row, 5),
			Compensation20:  cellDecimal(row, 6),
			Bonus40:         cellDecimal(row, 7),
			TotalToEmployee: cellDecimal(row, 8),
			BatchNumber:     cell(row, 9),
			PaymentDate:     cell(row, 10),
			SourceFile:      cell(row, 11),
		})
	}
	return nil
}

func (s *Store) loadBatches(f *excelize.File) error {
	rows, err := f.GetRows(SheetBatches)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 || cell(row, 0) == "" {
			continue
		}
		s.batches = append(s.batches, recon.PaymentBatch{
			Number:         cell(row, 0),
			PaymentDate:    cell(row, 1),
			Reimbursement:  cellDecimal(row, 2),
			Compensation20: cellDecimal(row, 3),
			Bonus40:        cellDecimal(row, 4),
			Total:          cellDecimal(row, 5),
		})
	}
	return nil
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

func (s *Store) Employees(context.Context) ([]recon.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recon.Employee, len(s.employees))
	copy(out, s.employees)
	return out, nil
}

func (s *Store) AppendEmployee(_ context.Context, e recon.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = append(s.employees, e)
	return nil
}

func (s *Store) Periods(context.Context) ([]recon.ServicePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recon.ServicePeriod, len(s.periods))
	copy(out, s.periods)
	return out, nil
}

func (s *Store) AppendPeriod(_ context.Context, p recon.ServicePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, p)
	return nil
}

func (s *Store) UpdatePeriod(_ context.Context, p recon.ServicePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.periods {
		if s.periods[i].ID == p.ID {
			s.periods[i] = p
			return nil
		}
	}
	return recon.ErrPeriodNotFound
}

func (s *Store) InsurerRecords(context.Context) ([]recon.InsurerPaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recon.InsurerPaymentRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) AppendInsurerRecord(_ context.Context, r recon.InsurerPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *Store) UpdateInsurerRecord(_ context.Context, r recon.InsurerPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Key()
	for i := range s.records {
		if s.records[i].Key() == key {
			s.records[i] = r
			return nil
		}
	}
	return recon.ErrRecordNotFound
}

func (s *Store) Batches(context.Context) ([]recon.PaymentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recon.PaymentBatch, len(s.batches))
	copy(out, s.batches)
	return out, nil
}

func (s *Store) UpsertBatch(_ context.Context, b recon.PaymentBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.batches {
		if s.batches[i].Number == b.Number {
			s.batches[i] = b
			return nil
		}
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *Store) ReplaceSummaries(_ context.Context, summaries []recon.ReconciliationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = make([]recon.ReconciliationSummary, len(summaries))
	copy(s.summaries, summaries)
	return nil
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = nil
	s.records = nil
	s.batches = nil
	s.summaries = nil
	return nil
}

// =============================================================================
// SAVE - Rewrite every sheet from the in-memory state
// =============================================================================

// Save rewrites the workbook at the bound path from the in-memory state.
func (s *Store) Save(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := excelize.NewFile()
	defer f.Close()

	fills, err := tagStyles(f)
	if err != nil {
		return err
	}

	if err := s.writeEmployees(f, fills); err != nil {
		return err
	}
	if err := s.writePeriods(f, fills); err != nil {
		return err
	}
	if err := s.writeInsurer(f, fills); err != nil {
		return err
	}
	if err := s.writeBatches(f, fills); err != nil {
		return err
	}
	if err := s.writeSummary(f); err != nil {
		return err
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

func tagStyles(f *excelize.File) (map[recon.RowTag]int, error) {
	out := make(map[recon.RowTag]int, 3)
	for tag, color := range map[recon.RowTag]string{
		recon.TagNew:     colorNew,
		recon.TagUpdated: colorUpdated,
		recon.TagOrphan:  colorOrphan,
	} {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, err
		}
		out[tag] = id
	}
	return out, nil
}

func writeSheet(f *excelize.File, name string, header []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	return writeRow(f, name, 1, toAny(header))
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cellName, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cellName, v); err != nil {
			return err
		}
	}
	return nil
}

func fillRow(f *excelize.File, sheet string, row, width int, tag recon.RowTag, fills map[recon.RowTag]int) error {
	style, ok := fills[tag]
	if !ok {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func (s *Store) writeEmployees(f *excelize.File, fills map[recon.RowTag]int) error {
	if err := writeSheet(f, SheetEmployees, employeeHeader); err != nil {
		return err
	}
	for i, e := range s.employees {
		status := "פעיל"
		if !e.Active {
			status = "לא פעיל"
		}
		if err := writeRow(f, SheetEmployees, i+2, []any{
			e.Identity, e.Name, e.Department,
			decimalCell(e.MonthlySalary), decimalCell(e.DailyRate),
			e.BankInfo, status,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writePeriods(f *excelize.File, fills map[recon.RowTag]int) error {
	if err := writeSheet(f, s.trackingSheet, periodHeader); err != nil {
		return err
	}
	for i, p := range s.periods {
		row := i + 2
		if err := writeRow(f, s.trackingSheet, row, []any{
			p.ID, p.Employee, p.Department,
			recon.FormatDate(p.Start), recon.FormatDate(p.End), p.Month,
			p.TotalDays, p.Weekdays, p.Fridays, p.Saturdays, p.Holidays,
			decimalCell(p.DailyRate), decimalCell(p.EmployerPayment),
			decimalCell(p.Compensation20), decimalCell(p.Bonus40),
			decimalCell(p.Reimbursement), p.InsurerPaidDate,
			decimalCell(p.Difference), p.PaymentMonth, string(p.Status), p.Notes,
		}); err != nil {
			return err
		}
		if err := fillRow(f, s.trackingSheet, row, len(periodHeader), p.Tag, fills); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeInsurer(f *excelize.File, fills map[recon.RowTag]int) error {
	if err := writeSheet(f, SheetInsurer, insurerHeader); err != nil {
		return err
	}
	for i, r := range s.records {
		row := i + 2
		if err := writeRow(f, SheetInsurer, row, []any{
			r.Identity, r.Employee, r.Start, r.End, r.Claim,
			decimalCell(r.Reimbursement), decimalCell(r.Compensation20),
			decimalCell(r.Bonus40), decimalCell(r.TotalToEmployee),
			r.BatchNumber, r.PaymentDate, r.SourceFile,
		}); err != nil {
			return err
		}
		if err := fillRow(f, SheetInsurer, row, len(insurerHeader), r.Tag, fills); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeBatches(f *excelize.File, fills map[recon.RowTag]int) error {
	if err := writeSheet(f, SheetBatches, batchHeader); err != nil {
		return err
	}
	for i, b := range s.batches {
		row := i + 2
		if err := writeRow(f, SheetBatches, row, []any{
			b.Number, b.PaymentDate,
			decimalCell(b.Reimbursement), decimalCell(b.Compensation20),
			decimalCell(b.Bonus40), decimalCell(b.Total),
		}); err != nil {
			return err
		}
		if err := fillRow(f, SheetBatches, row, len(batchHeader), b.Tag, fills); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeSummary(f *excelize.File) error {
	if err := writeSheet(f, SheetSummary, summaryHeader); err != nil {
		return err
	}
	for i, sm := range s.summaries {
		if err := writeRow(f, SheetSummary, i+2, []any{
			sm.Employee, sm.PeriodID, sm.Department, sm.Month,
			recon.FormatDate(sm.Start), recon.FormatDate(sm.End),
			sm.TotalDays, sm.Weekdays, decimalCell(sm.DailyRate),
			decimalCell(sm.EmployerPayment), decimalCell(sm.Reimbursement),
			decimalCell(sm.Compensation20), decimalCell(sm.Bonus40),
			decimalCell(sm.Difference), string(sm.Status),
		}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// BACKUP & REPORTS
// =============================================================================

// Backup copies the current file into backups/ next to it with a
// timestamped name. Returns "" when no file has been written yet.
func (s *Store) Backup(context.Context) (string, error) {
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", recon.ErrStoreUnavailable, err)
	}
	defer src.Close()

	dir := filepath.Join(filepath.Dir(s.path), "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("backup_%s.xlsx", time.Now().Format("20060102_150405")))

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// WriteUnpaidReport writes a standalone workbook holding only the given
// periods, in the tracking-sheet layout. Used for the unpaid-differences
// report handed to payroll.
func WriteUnpaidReport(path string, periods []recon.ServicePeriod) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, SheetPeriods, periodHeader); err != nil {
		return err
	}
	for i, p := range periods {
		if err := writeRow(f, SheetPeriods, i+2, []any{
			p.ID, p.Employee, p.Department,
			recon.FormatDate(p.Start), recon.FormatDate(p.End), p.Month,
			p.TotalDays, p.Weekdays, p.Fridays, p.Saturdays, p.Holidays,
			decimalCell(p.DailyRate), decimalCell(p.EmployerPayment),
			decimalCell(p.Compensation20), decimalCell(p.Bonus40),
			decimalCell(p.Reimbursement), p.InsurerPaidDate,
			decimalCell(p.Difference), p.PaymentMonth, string(p.Status), p.Notes,
		}); err != nil {
			return err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// =============================================================================
// CELL HELPERS
// =============================================================================

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func cellInt(row []string, col int) int {
	n, err := strconv.Atoi(cell(row, col))
	if err != nil {
		return 0
	}
	return n
}

// cellDecimal parses a stored amount. Unlike ingest parsing this keeps the
// sign: stored differences are legitimately negative.
func cellDecimal(row []string, col int) decimal.Decimal {
	raw := strings.ReplaceAll(cell(row, col), ",", "")
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decimalCell renders an amount as a float for natural spreadsheet display.
func decimalCell(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
