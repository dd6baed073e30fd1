/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Row-level errors  - a single malformed input row; counted, never fatal
  2. Store errors      - the system-of-record file is missing or unreadable
  3. Merge errors      - a run was aborted by the operator

CONTRACT:
  No error propagates past a single row's processing during bulk import.
  Row errors are collected on the ImportReport with enough context (row
  index, employee, reason) for manual inspection.
*/
package recon

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedAmount is returned when a monetary field cannot be parsed.
	ErrMalformedAmount = errors.New("malformed amount")

	// ErrMissingIdentity is returned when a row lacks the required identity
	// field. Such rows are trailer noise in the insurer export.
	ErrMissingIdentity = errors.New("missing identity field")

	// ErrMalformedDate is returned when a required date field cannot be
	// normalized to DD/MM/YYYY.
	ErrMalformedDate = errors.New("malformed date")

	// ErrStoreUnavailable is returned when the system-of-record is missing
	// or unreadable. Fatal for the run, reported immediately.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPeriodNotFound is returned when an update targets a period ID that
	// is not in the store.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrRecordNotFound is returned when an update targets an insurer
	// record key that is not in the store.
	ErrRecordNotFound = errors.New("insurer record not found")

	// ErrInvalidRange is returned for a date range with end before start.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrRunAborted is returned when the operator resolver aborts the run.
	ErrRunAborted = errors.New("run aborted by operator")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RowError records why a single input row was skipped during bulk import.
type RowError struct {
	Index    int    // zero-based position within the source data rows
	Employee string // normalized name if known, "" otherwise
	Err      error
}

func (e *RowError) Error() string {
	if e.Employee == "" {
		return fmt.Sprintf("row %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("row %d (%s): %v", e.Index, e.Employee, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// SaveError surfaces a failed store save together with the backup path so
// the operator can recover manually. The run's in-memory results are not
// retried automatically.
type SaveError struct {
	BackupPath string
	Err        error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed (restore from backup %s): %v", e.BackupPath, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
