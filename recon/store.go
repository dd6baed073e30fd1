/*
store.go - Persistence interface for the system of record

PURPOSE:
  Defines the boundary between the reconciliation engine and durable
  storage. The operator-facing implementation is an Excel workbook
  (store/workbook); store/sqlite offers the same contract over SQLite, and
  recon/store holds the in-memory implementation used by tests.

ROW-ORIENTED CONTRACT:
  The engine never addresses cells by coordinate. It reads whole record
  sets, appends new records, and updates existing ones by logical key
  (period ID, insurer composite key, batch number). How an implementation
  lays that out - worksheet columns, SQL rows - is its own business.

DURABILITY MODEL:
  Single operator, single run, no concurrent writers. The unit of
  atomicity is "all in-memory mutations for the run are finished before
  Save". The only recovery mechanism is the timestamped backup copy taken
  before any mutation sequence (Backup); a crash mid-save is recovered by
  restoring the latest backup.
*/
package recon

import "context"

// =============================================================================
// STORE - System-of-record access, row-oriented
// =============================================================================

// Store is the persistence contract of the reconciliation engine.
type Store interface {
	// Employees returns the roster. Read-only to the engine except for
	// AppendEmployee (name registration during import).
	Employees(ctx context.Context) ([]Employee, error)
	AppendEmployee(ctx context.Context, e Employee) error

	// Periods returns all stored service periods in store order.
	Periods(ctx context.Context) ([]ServicePeriod, error)
	AppendPeriod(ctx context.Context, p ServicePeriod) error
	// UpdatePeriod replaces the stored period with the same ID.
	UpdatePeriod(ctx context.Context, p ServicePeriod) error

	// InsurerRecords returns all stored insurer payment rows in store order.
	InsurerRecords(ctx context.Context) ([]InsurerPaymentRecord, error)
	AppendInsurerRecord(ctx context.Context, r InsurerPaymentRecord) error
	// UpdateInsurerRecord overwrites the stored record with the same
	// composite key (employee|start|end|claim).
	UpdateInsurerRecord(ctx context.Context, r InsurerPaymentRecord) error

	// Batches returns the per-batch rollup rows.
	Batches(ctx context.Context) ([]PaymentBatch, error)
	// UpsertBatch inserts the rollup for a new batch number or replaces
	// the existing row for a known one.
	UpsertBatch(ctx context.Context, b PaymentBatch) error

	// ReplaceSummaries discards the whole summary table and writes the
	// given set. Summaries are derived and recomputed wholesale.
	ReplaceSummaries(ctx context.Context, s []ReconciliationSummary) error

	// Reset deletes periods, insurer records, batches and summaries.
	// The employee roster survives.
	Reset(ctx context.Context) error

	// Save persists all accumulated changes, atomically from the caller's
	// perspective. A failure is wrapped in SaveError with the backup path.
	Save(ctx context.Context) error
}

// =============================================================================
// BACKUP - Snapshot before any mutation sequence
// =============================================================================

// BackupStore is a Store that can snapshot itself before a write sequence.
// Implementations return the path of the timestamped immutable copy.
type BackupStore interface {
	Store

	// Backup produces a timestamped copy of the current durable content.
	// Called once per run, before the first mutation.
	Backup(ctx context.Context) (string, error)
}

// BackupIfSupported snapshots the store when it supports backups and is a
// no-op otherwise. Returns the backup path, "" for stores without one.
func BackupIfSupported(ctx context.Context, s Store) (string, error) {
	bs, ok := s.(BackupStore)
	if !ok {
		return "", nil
	}
	return bs.Backup(ctx)
}
