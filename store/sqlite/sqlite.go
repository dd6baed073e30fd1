/*
Package sqlite provides a SQLite-backed implementation of recon.Store.

PURPOSE:
  The operator-facing system of record is the Excel workbook
  (store/workbook), but runs that do not need to hand a workbook back to
  the operator - scripted imports, the HTTP server - can use SQLite for
  the same contract with real indexes.

KEY TABLES:
  employees:        roster (read-mostly)
  periods:          stored service periods, one row per month-bounded range
  insurer_records:  BTL reimbursement rows
  batches:          per-batch rollups
  summaries:        derived reconciliation lines, replaced wholesale

AMOUNTS:
  All monetary columns are TEXT holding decimal strings; they round-trip
  through shopspring/decimal without float drift.

WAL MODE:
  Opened with WAL journaling for crash recovery; there is still only one
  operator and one writer at a time.

BACKUP:
  Backup copies the database file next to itself under backups/ with a
  timestamped name. An in-memory database has nothing to copy and
  reports "".

USAGE:
  st, err := sqlite.New("./miluim.db")
  if err != nil { ... }
  defer st.Close()
  merger := recon.NewMerger(st, calendar)

SEE ALSO:
  - recon/store.go: interface definition and durability model
  - store/workbook: the Excel implementation
  - recon/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// Store implements recon.Store and recon.BackupStore over SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

var (
	_ recon.Store       = (*Store)(nil)
	_ recon.BackupStore = (*Store)(nil)
)

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", recon.ErrStoreUnavailable, err)
	}
	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		identity TEXT,
		name TEXT NOT NULL,
		department TEXT,
		monthly_salary TEXT NOT NULL DEFAULT '0',
		daily_rate TEXT NOT NULL DEFAULT '0',
		bank_info TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_employees_name ON employees(name);

	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		employee TEXT NOT NULL,
		department TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		month TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		weekdays INTEGER NOT NULL,
		fridays INTEGER NOT NULL,
		saturdays INTEGER NOT NULL,
		holidays INTEGER NOT NULL,
		daily_rate TEXT NOT NULL DEFAULT '0',
		employer_payment TEXT NOT NULL DEFAULT '0',
		compensation_20 TEXT NOT NULL DEFAULT '0',
		bonus_40 TEXT NOT NULL DEFAULT '0',
		reimbursement TEXT NOT NULL DEFAULT '0',
		insurer_paid_date TEXT,
		difference TEXT NOT NULL DEFAULT '0',
		payment_month TEXT,
		status TEXT,
		notes TEXT,
		tag TEXT
	);
	-- Duplicate detection hot path
	CREATE INDEX IF NOT EXISTS idx_periods_key
		ON periods(employee, start_date, end_date);

	CREATE TABLE IF NOT EXISTS insurer_records (
		identity TEXT NOT NULL,
		employee TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		claim_type TEXT NOT NULL,
		reimbursement TEXT NOT NULL DEFAULT '0',
		compensation_20 TEXT NOT NULL DEFAULT '0',
		bonus_40 TEXT NOT NULL DEFAULT '0',
		total_to_employee TEXT NOT NULL DEFAULT '0',
		batch_number TEXT,
		payment_date TEXT,
		source_file TEXT,
		tag TEXT,
		PRIMARY KEY (employee, start_date, end_date, claim_type)
	);

	CREATE TABLE IF NOT EXISTS batches (
		number TEXT PRIMARY KEY,
		payment_date TEXT,
		reimbursement TEXT NOT NULL DEFAULT '0',
		compensation_20 TEXT NOT NULL DEFAULT '0',
		bonus_40 TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		tag TEXT
	);

	CREATE TABLE IF NOT EXISTS summaries (
		period_id TEXT,
		employee TEXT,
		department TEXT,
		month TEXT,
		start_date TEXT,
		end_date TEXT,
		total_days INTEGER,
		weekdays INTEGER,
		daily_rate TEXT,
		employer_payment TEXT,
		reimbursement TEXT,
		compensation_20 TEXT,
		bonus_40 TEXT,
		difference TEXT,
		status TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) Employees(ctx context.Context) ([]recon.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(identity, ''), name, COALESCE(department, ''),
		       monthly_salary, daily_rate, COALESCE(bank_info, ''), active
		FROM employees`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.Employee
	for rows.Next() {
		var (
			e            recon.Employee
			salary, rate string
			active       int
		)
		if err := rows.Scan(&e.Identity, &e.Name, &e.Department, &salary, &rate,
			&e.BankInfo, &active); err != nil {
			return nil, err
		}
		e.MonthlySalary = mustDecimal(salary)
		e.DailyRate = mustDecimal(rate)
		e.Active = active != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendEmployee(ctx context.Context, e recon.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (identity, name, department, monthly_salary, daily_rate, bank_info, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Identity, e.Name, e.Department, e.MonthlySalary.String(), e.DailyRate.String(),
		e.BankInfo, boolToInt(e.Active))
	return err
}

// =============================================================================
// PERIODS
// =============================================================================

func (s *Store) Periods(ctx context.Context) ([]recon.ServicePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee, COALESCE(department, ''), start_date, end_date, month,
		       total_days, weekdays, fridays, saturdays, holidays, daily_rate,
		       employer_payment, compensation_20, bonus_40, reimbursement,
		       COALESCE(insurer_paid_date, ''), difference,
		       COALESCE(payment_month, ''), COALESCE(status, ''),
		       COALESCE(notes, ''), COALESCE(tag, '')
		FROM periods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.ServicePeriod
	for rows.Next() {
		var (
			p                                       recon.ServicePeriod
			start, end                              string
			rate, payment, comp, bonus, reimb, diff string
			status, tag                             string
		)
		if err := rows.Scan(&p.ID, &p.Employee, &p.Department, &start, &end, &p.Month,
			&p.TotalDays, &p.Weekdays, &p.Fridays, &p.Saturdays, &p.Holidays,
			&rate, &payment, &comp, &bonus, &reimb, &p.InsurerPaidDate, &diff,
			&p.PaymentMonth, &status, &p.Notes, &tag); err != nil {
			return nil, err
		}
		p.Start, _ = recon.ParseDate(start)
		p.End, _ = recon.ParseDate(end)
		p.DailyRate = mustDecimal(rate)
		p.EmployerPayment = mustDecimal(payment)
		p.Compensation20 = mustDecimal(comp)
		p.Bonus40 = mustDecimal(bonus)
		p.Reimbursement = mustDecimal(reimb)
		p.Difference = mustDecimal(diff)
		p.Status = recon.Status(status)
		p.Tag = recon.RowTag(tag)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AppendPeriod(ctx context.Context, p recon.ServicePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO periods (id, employee, department, start_date, end_date, month,
			total_days, weekdays, fridays, saturdays, holidays, daily_rate,
			employer_payment, compensation_20, bonus_40, reimbursement,
			insurer_paid_date, difference, payment_month, status, notes, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Employee, p.Department, recon.FormatDate(p.Start), recon.FormatDate(p.End),
		p.Month, p.TotalDays, p.Weekdays, p.Fridays, p.Saturdays, p.Holidays,
		p.DailyRate.String(), p.EmployerPayment.String(), p.Compensation20.String(),
		p.Bonus40.String(), p.Reimbursement.String(), p.InsurerPaidDate,
		p.Difference.String(), p.PaymentMonth, string(p.Status), p.Notes, string(p.Tag))
	return err
}

func (s *Store) UpdatePeriod(ctx context.Context, p recon.ServicePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE periods SET employee=?, department=?, start_date=?, end_date=?,
			month=?, total_days=?, weekdays=?, fridays=?, saturdays=?, holidays=?,
			daily_rate=?, employer_payment=?, compensation_20=?, bonus_40=?,
			reimbursement=?, insurer_paid_date=?, difference=?, payment_month=?,
			status=?, notes=?, tag=?
		WHERE id=?`,
		p.Employee, p.Department, recon.FormatDate(p.Start), recon.FormatDate(p.End),
		p.Month, p.TotalDays, p.Weekdays, p.Fridays, p.Saturdays, p.Holidays,
		p.DailyRate.String(), p.EmployerPayment.String(), p.Compensation20.String(),
		p.Bonus40.String(), p.Reimbursement.String(), p.InsurerPaidDate,
		p.Difference.String(), p.PaymentMonth, string(p.Status), p.Notes, string(p.Tag),
		p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recon.ErrPeriodNotFound
	}
	return nil
}

// =============================================================================
// INSURER RECORDS
// =============================================================================

func (s *Store) InsurerRecords(ctx context.Context) ([]recon.InsurerPaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, employee, start_date, end_date, claim_type,
		       reimbursement, compensation_20, bonus_40, total_to_employee,
		       COALESCE(batch_number, ''), COALESCE(payment_date, ''),
		       COALESCE(source_file, ''), COALESCE(tag, '')
		FROM insurer_records ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.InsurerPaymentRecord
	for rows.Next() {
		var (
			r                         recon.InsurerPaymentRecord
			reimb, comp, bonus, total string
			tag                       string
		)
		if err := rows.Scan(&r.Identity, &r.Employee, &r.Start, &r.End, &r.Claim,
			&reimb, &comp, &bonus, &total, &r.BatchNumber, &r.PaymentDate,
			&r.SourceFile, &tag); err != nil {
			return nil, err
		}
		r.Reimbursement = mustDecimal(reimb)
		r.Compensation20 = mustDecimal(comp)
		r.Bonus40 = mustDecimal(bonus)
		r.TotalToEmployee = mustDecimal(total)
		r.Tag = recon.RowTag(tag)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AppendInsurerRecord(ctx context.Context, r recon.InsurerPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insurer_records (identity, employee, start_date, end_date,
			claim_type, reimbursement, compensation_20, bonus_40,
			total_to_employee, batch_number, payment_date, source_file, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Identity, r.Employee, r.Start, r.End, r.Claim,
		r.Reimbursement.String(), r.Compensation20.String(), r.Bonus40.String(),
		r.TotalToEmployee.String(), r.BatchNumber, r.PaymentDate, r.SourceFile, string(r.Tag))
	return err
}

func (s *Store) UpdateInsurerRecord(ctx context.Context, r recon.InsurerPaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE insurer_records SET identity=?, reimbursement=?, compensation_20=?,
			bonus_40=?, total_to_employee=?, batch_number=?, payment_date=?,
			source_file=?, tag=?
		WHERE employee=? AND start_date=? AND end_date=? AND claim_type=?`,
		r.Identity, r.Reimbursement.String(), r.Compensation20.String(),
		r.Bonus40.String(), r.TotalToEmployee.String(), r.BatchNumber,
		r.PaymentDate, r.SourceFile, string(r.Tag),
		r.Employee, r.Start, r.End, r.Claim)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recon.ErrRecordNotFound
	}
	return nil
}

// =============================================================================
// BATCHES & SUMMARIES
// =============================================================================

func (s *Store) Batches(ctx context.Context) ([]recon.PaymentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT number, COALESCE(payment_date, ''), reimbursement,
		       compensation_20, bonus_40, total, COALESCE(tag, '')
		FROM batches ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.PaymentBatch
	for rows.Next() {
		var (
			b                         recon.PaymentBatch
			reimb, comp, bonus, total string
			tag                       string
		)
		if err := rows.Scan(&b.Number, &b.PaymentDate, &reimb, &comp, &bonus, &total,
			&tag); err != nil {
			return nil, err
		}
		b.Reimbursement = mustDecimal(reimb)
		b.Compensation20 = mustDecimal(comp)
		b.Bonus40 = mustDecimal(bonus)
		b.Total = mustDecimal(total)
		b.Tag = recon.RowTag(tag)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) UpsertBatch(ctx context.Context, b recon.PaymentBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (number, payment_date, reimbursement, compensation_20, bonus_40, total, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			payment_date=excluded.payment_date,
			reimbursement=excluded.reimbursement,
			compensation_20=excluded.compensation_20,
			bonus_40=excluded.bonus_40,
			total=excluded.total,
			tag=excluded.tag`,
		b.Number, b.PaymentDate, b.Reimbursement.String(), b.Compensation20.String(),
		b.Bonus40.String(), b.Total.String(), string(b.Tag))
	return err
}

func (s *Store) ReplaceSummaries(ctx context.Context, summaries []recon.ReconciliationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries`); err != nil {
		return err
	}
	for _, sm := range summaries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO summaries (period_id, employee, department, month,
				start_date, end_date, total_days, weekdays, daily_rate,
				employer_payment, reimbursement, compensation_20, bonus_40,
				difference, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sm.PeriodID, sm.Employee, sm.Department, sm.Month,
			recon.FormatDate(sm.Start), recon.FormatDate(sm.End),
			sm.TotalDays, sm.Weekdays, sm.DailyRate.String(),
			sm.EmployerPayment.String(), sm.Reimbursement.String(),
			sm.Compensation20.String(), sm.Bonus40.String(),
			sm.Difference.String(), string(sm.Status)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Summaries returns the stored derived summary table.
func (s *Store) Summaries(ctx context.Context) ([]recon.ReconciliationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT period_id, employee, COALESCE(department, ''), month,
		       start_date, end_date, total_days, weekdays, daily_rate,
		       employer_payment, reimbursement, compensation_20, bonus_40,
		       difference, status
		FROM summaries ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recon.ReconciliationSummary
	for rows.Next() {
		var (
			sm                                      recon.ReconciliationSummary
			start, end                              string
			rate, payment, reimb, comp, bonus, diff string
			status                                  string
		)
		if err := rows.Scan(&sm.PeriodID, &sm.Employee, &sm.Department, &sm.Month,
			&start, &end, &sm.TotalDays, &sm.Weekdays, &rate, &payment,
			&reimb, &comp, &bonus, &diff, &status); err != nil {
			return nil, err
		}
		sm.Start, _ = recon.ParseDate(start)
		sm.End, _ = recon.ParseDate(end)
		sm.DailyRate = mustDecimal(rate)
		sm.EmployerPayment = mustDecimal(payment)
		sm.Reimbursement = mustDecimal(reimb)
		sm.Compensation20 = mustDecimal(comp)
		sm.Bonus40 = mustDecimal(bonus)
		sm.Difference = mustDecimal(diff)
		sm.Status = recon.Status(status)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// =============================================================================
// RESET / SAVE / BACKUP
// =============================================================================

// Reset deletes periods, insurer records, batches and summaries.
// The employee roster survives.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM periods;
		DELETE FROM insurer_records;
		DELETE FROM batches;
		DELETE FROM summaries;`)
	return err
}

// Save is a no-op: SQLite persists each statement as it executes.
func (s *Store) Save(context.Context) error { return nil }

// Backup copies the database file into backups/ next to it, named with a
// timestamp. An in-memory database reports "".
func (s *Store) Backup(_ context.Context) (string, error) {
	if s.path == "" || s.path == ":memory:" {
		return "", nil
	}
	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", recon.ErrStoreUnavailable, err)
	}
	defer src.Close()

	dir := filepath.Join(filepath.Dir(s.path), "backups")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("backup_%s.db", time.Now().Format("20060102_150405")))

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

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
