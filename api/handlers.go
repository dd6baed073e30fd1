/*
handlers.go - HTTP API handlers for the reconciliation engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, file uploads, and delegates to
  the engine.

ENDPOINTS:
  Read:
    GET  /api/employees            Roster
    GET  /api/periods              Stored service periods
    GET  /api/periods/unpaid       Periods without a payment month
    GET  /api/insurer/records      Stored BTL reimbursement rows
    GET  /api/insurer/batches      Per-batch rollups

  Imports (multipart, field "file"):
    POST /api/import/attendance    MECANO attendance export
    POST /api/import/insurer       BTL reimbursement export
    POST /api/import/bonus         40% bonus export

  Reconciliation:
    POST /api/reconcile/calculate  Rebuild the summary table
    POST /api/reconcile/sync       Enrich periods from insurer rows
    GET  /api/reconcile/orphans    Orphans in both directions

  Admin:
    POST /api/admin/reset          Delete everything except the roster

RESOLUTION POLICY:
  HTTP runs are non-interactive; the operator decision points take fixed
  policies from query parameters instead of prompts:
    ?unknown_names=skip|register   (default skip)
    ?conflicts=skip|update         (default skip)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Bad upload, unreadable export
  - 500: Store failures; a failed save includes the backup path

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - cmd/reconcile: the interactive surface over the same engine
*/
package api

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/yelush19/Litay-Panda-miluim/ingest"
	"github.com/yelush19/Litay-Panda-miluim/recon"
)

const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    recon.Store
	Calendar recon.HolidayCalendar
}

// NewHandler creates a new handler over the given store and calendar.
func NewHandler(store recon.Store, cal recon.HolidayCalendar) *Handler {
	return &Handler{Store: store, Calendar: cal}
}

// merger builds a per-request merge engine with the policies selected by
// the request's query parameters.
func (h *Handler) merger(r *http.Request) *recon.Merger {
	m := recon.NewMerger(h.Store, h.Calendar)
	if r.URL.Query().Get("unknown_names") == "register" {
		m.Names = recon.RegisterUnknownNames{}
	}
	if r.URL.Query().Get("conflicts") == "update" {
		m.Conflicts = recon.FixedConflictPolicy(recon.ChoiceUpdate)
	}
	return m
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

// ListEmployees returns the roster.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPeriods returns all stored service periods.
// GET /api/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.Periods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListUnpaidPeriods returns the periods with no payment-execution month.
// GET /api/periods/unpaid
func (h *Handler) ListUnpaidPeriods(w http.ResponseWriter, r *http.Request) {
	reconciler := recon.NewReconciler(h.Store)
	periods, err := reconciler.UnpaidPeriods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list unpaid periods", err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListInsurerRecords returns all stored BTL rows.
// GET /api/insurer/records
func (h *Handler) ListInsurerRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.InsurerRecords(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list insurer records", err)
		return
	}
	dtos := make([]InsurerRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toInsurerRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListBatches returns the per-batch rollups.
// GET /api/insurer/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Store.Batches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batches", err)
		return
	}
	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// IMPORT ENDPOINTS
// =============================================================================

// ImportAttendance ingests a MECANO attendance export, segments it into
// month-bounded periods and merges them into the store.
// POST /api/import/attendance
func (h *Handler) ImportAttendance(w http.ResponseWriter, r *http.Request) {
	file, _, ok := openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rows, err := ingest.ReadMecano(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable attendance export", err)
		return
	}

	records, rowErrs := recon.ParseAttendance(rows)
	candidates := recon.Segment(records)

	report, err := h.merger(r).ImportPeriods(r.Context(), candidates)
	if err != nil {
		writeImportError(w, err)
		return
	}
	report.RowErrors = append(rowErrs, report.RowErrors...)
	writeJSON(w, http.StatusOK, toImportReportDTO(report))
}

// ImportInsurer ingests a BTL reimbursement export.
// POST /api/import/insurer
func (h *Handler) ImportInsurer(w http.ResponseWriter, r *http.Request) {
	file, name, ok := openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	parsed, err := ingest.ReadBTL(file, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable insurer export", err)
		return
	}

	report, err := h.merger(r).ImportInsurer(r.Context(), *parsed)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportReportDTO(report))
}

// ImportBonus ingests a 40% bonus export.
// POST /api/import/bonus
func (h *Handler) ImportBonus(w http.ResponseWriter, r *http.Request) {
	file, name, ok := openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	parsed, err := ingest.ReadBTL(file, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable bonus export", err)
		return
	}

	report, err := h.merger(r).ImportBonus(r.Context(), *parsed)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportReportDTO(report))
}

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// Calculate rebuilds the summary table and returns the settlement lines.
// POST /api/reconcile/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	reconciler := recon.NewReconciler(h.Store)
	summaries, err := reconciler.Calculate(r.Context())
	if err != nil {
		writeImportError(w, err)
		return
	}
	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Sync enriches stored periods from insurer rows and tags orphans.
// POST /api/reconcile/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	reconciler := recon.NewReconciler(h.Store)
	report, err := reconciler.Sync(r.Context())
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncReportDTO{
		RunID:                 report.RunID,
		BackupPath:            report.BackupPath,
		Updated:               report.Updated,
		PeriodsWithoutPayment: report.PeriodsWithoutPayment,
		Orphans:               len(report.Orphans),
	})
}

// Orphans runs the read-only audit and reports both orphan directions.
// GET /api/reconcile/orphans
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	auditor := recon.NewAuditor(h.Store)
	report, err := auditor.Audit(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Audit failed", err)
		return
	}
	dto := AuditReportDTO{
		AwaitingPayment: make([]PeriodDTO, len(report.AwaitingPayment)),
		OrphanPayments:  make([]InsurerRecordDTO, len(report.OrphanPayments)),
	}
	for i, p := range report.AwaitingPayment {
		dto.AwaitingPayment[i] = toPeriodDTO(p)
	}
	for i, rec := range report.OrphanPayments {
		dto.OrphanPayments[i] = toInsurerRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// Reset deletes periods, insurer rows, batches and summaries; the roster
// survives. A backup is taken first when the store supports it.
// POST /api/admin/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	backup, err := recon.BackupIfSupported(ctx, h.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Backup failed", err)
		return
	}
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Reset failed", err)
		return
	}
	if err := h.Store.Save(ctx); err != nil {
		writeImportError(w, &recon.SaveError{BackupPath: backup, Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "reset",
		"backup_path": backup,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing \"file\" form field", err)
		return nil, "", false
	}
	return file, header.Filename, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeImportError distinguishes a failed save, which the operator must
// recover from the backup, from other engine failures.
func writeImportError(w http.ResponseWriter, err error) {
	var saveErr *recon.SaveError
	if errors.As(err, &saveErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Save failed; restore from backup: " + saveErr.BackupPath,
			Details: saveErr.Err.Error(),
		})
		return
	}
	if errors.Is(err, recon.ErrStoreUnavailable) {
		writeError(w, http.StatusInternalServerError, "Store unavailable", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Run failed", err)
}
