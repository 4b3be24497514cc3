/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic. No algorithmic
  complexity lives here.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List employees
    POST   /api/employees                      Create employee
    GET    /api/employees/{id}                 Get employee
    GET    /api/employees/{id}/entries         List entries in a date range
    POST   /api/employees/{id}/entries         Record work
    DELETE /api/employees/{id}/entries/{entryID}  Remove an entry
    GET    /api/employees/{id}/report          Monthly period summary
    GET    /api/employees/{id}/report/year     Twelve monthly summaries

  Cap timeline:
    GET    /api/caps                           List cap periods
    POST   /api/caps                           Insert a cap period
    DELETE /api/caps/{id}                      Delete a future cap period
    POST   /api/caps/recalculate               Repair timeline drift

ERROR HANDLING:
  - 400: Malformed input, invalid date ranges
  - 404: Missing employee/entry/cap period
  - 409: Timeline conflicts (overlap, not-deletable)
  - 500: Internal errors
  Auto-adjustments are never silent: every mutation response carries the
  neighbor adjustments that were applied.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lohnwerk/minijob-engine/billing"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Employees billing.EmployeeRepository
	Entries   billing.EntryRepository
	Timeline  *billing.Timeline
	Ledger    *billing.Ledger
	Log       *zap.SugaredLogger
}

// Deps bundles the handler dependencies.
type Deps struct {
	Employees billing.EmployeeRepository
	Entries   billing.EntryRepository
	Timeline  *billing.Timeline
	Ledger    *billing.Ledger
	Log       *zap.SugaredLogger
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		Employees: d.Employees,
		Entries:   d.Entries,
		Timeline:  d.Timeline,
		Ledger:    d.Ledger,
		Log:       log,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.ListEmployees(r.Context())
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

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg := billing.BillingConfig{StartDay: req.StartDay, EndDay: req.EndDay}
	if !cfg.Valid() {
		writeError(w, http.StatusBadRequest, "start_day and end_day must be in [1,31]", nil)
		return
	}
	rate, err := billing.ParseCents(req.HourlyRate)
	if err != nil || rate <= 0 {
		writeError(w, http.StatusBadRequest, "hourly_rate must be a positive decimal", err)
		return
	}

	emp := billing.Employee{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		StartDay:   req.StartDay,
		EndDay:     req.EndDay,
		HourlyRate: rate,
		CreatedAt:  time.Now().UTC(),
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}

	existing, err := h.Employees.GetEmployee(r.Context(), emp.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	if err := h.Employees.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	// A changed billing-day configuration redraws the period grid, so every
	// memoized carry for this employee is computed against the wrong periods.
	if existing != nil && (existing.StartDay != emp.StartDay || existing.EndDay != emp.EndDay) {
		h.Ledger.InvalidateFrom(emp.ID, cfg, billing.Date{})
	}

	h.Log.Infow("employee created", "id", emp.ID, "start_day", emp.StartDay, "end_day", emp.EndDay)
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns entries for an employee, default the current billing period.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	period := emp.BillingConfig().PeriodContaining(billing.Today())
	from, to := period.Start, period.End
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := billing.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := billing.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		to = d
	}

	entries, err := h.Entries.ListEntries(r.Context(), emp.ID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEntry records work for an employee. Earnings are derived from the
// employee's hourly rate at recording time.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := billing.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive", nil)
		return
	}

	entry := billing.Entry{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		Date:       date,
		Minutes:    req.Minutes,
		Earnings:   billing.EarningsFor(req.Minutes, emp.HourlyRate),
		Note:       req.Note,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.Entries.SaveEntry(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save entry", err)
		return
	}
	h.Ledger.InvalidateFrom(emp.ID, emp.BillingConfig(), date)

	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// DeleteEntry removes a work entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	if err := h.Entries.DeleteEntry(r.Context(), entryID); err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Entry not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete entry", err)
		return
	}

	// The entry's period and everything after it must be recomputed. The
	// date is gone with the entry, so invalidate the whole history.
	h.Ledger.InvalidateFrom(emp.ID, emp.BillingConfig(), billing.Date{})
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetMonthReport returns the period summary for a labeled month
// (?month=2025-08, default the current month).
func (h *Handler) GetMonthReport(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	today := billing.Today()
	year, month := today.Year(), today.Month()
	if v := r.URL.Query().Get("month"); v != "" {
		t, err := time.Parse("2006-01", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
			return
		}
		year, month = t.Year(), t.Month()
	}

	cfg := emp.BillingConfig()
	summary, err := h.Ledger.ComputePeriodSummary(r.Context(), emp.ID, cfg, cfg.PeriodForLabel(year, month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// GetYearReport returns twelve monthly summaries (?year=2025, default current).
func (h *Handler) GetYearReport(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	year := billing.Today().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	cfg := emp.BillingConfig()
	report := YearReportDTO{EmployeeID: emp.ID, Year: year}
	for month := time.January; month <= time.December; month++ {
		summary, err := h.Ledger.ComputePeriodSummary(r.Context(), emp.ID, cfg, cfg.PeriodForLabel(year, month))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
			return
		}
		report.Months = append(report.Months, toSummaryDTO(summary))
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// CAP TIMELINE HANDLERS
// =============================================================================

// ListCapPeriods returns the full cap timeline.
func (h *Handler) ListCapPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Timeline.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cap periods", err)
		return
	}

	dtos := make([]CapPeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toCapPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCapPeriod inserts a new cap period into the timeline.
func (h *Handler) CreateCapPeriod(w http.ResponseWriter, r *http.Request) {
	var req CreateCapPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	limit, err := billing.ParseCents(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	validFrom, err := billing.ParseDate(req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_from (use YYYY-MM-DD)", err)
		return
	}
	if validFrom.Before(billing.Today()) {
		writeError(w, http.StatusBadRequest, "valid_from must be today or in the future", nil)
		return
	}

	period := billing.CapPeriod{
		ID:        uuid.NewString(),
		Limit:     limit,
		ValidFrom: validFrom,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}
	if req.ValidUntil != nil {
		until, err := billing.ParseDate(*req.ValidUntil)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid valid_until (use YYYY-MM-DD)", err)
			return
		}
		period.ValidUntil = &until
	}

	adj, err := h.Timeline.Insert(r.Context(), period)
	if err != nil {
		h.writeTimelineError(w, err)
		return
	}
	h.afterTimelineChange(r)

	result := CapPeriodResultDTO{}
	dto := toCapPeriodDTO(period)
	result.Period = &dto
	if adj != nil {
		result.Adjustments = append(result.Adjustments, toAdjustmentDTO(*adj))
		h.Log.Infow("cap period inserted with neighbor truncation",
			"id", period.ID, "adjusted", adj.PeriodID)
	}
	writeJSON(w, http.StatusCreated, result)
}

// DeleteCapPeriod removes a future cap period and re-stitches the timeline.
func (h *Handler) DeleteCapPeriod(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adj, err := h.Timeline.Delete(r.Context(), id, billing.Today())
	if err != nil {
		h.writeTimelineError(w, err)
		return
	}
	h.afterTimelineChange(r)

	result := CapPeriodResultDTO{}
	if adj != nil {
		result.Adjustments = append(result.Adjustments, toAdjustmentDTO(*adj))
	}
	writeJSON(w, http.StatusOK, result)
}

// RecalculateCapPeriods re-tiles the whole timeline.
func (h *Handler) RecalculateCapPeriods(w http.ResponseWriter, r *http.Request) {
	adjustments, err := h.Timeline.RecalculateAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recalculate cap periods", err)
		return
	}
	h.afterTimelineChange(r)

	result := CapPeriodResultDTO{}
	for _, a := range adjustments {
		result.Adjustments = append(result.Adjustments, toAdjustmentDTO(a))
	}
	writeJSON(w, http.StatusOK, result)
}

// afterTimelineChange drops memoized carry state and refreshes active flags.
func (h *Handler) afterTimelineChange(r *http.Request) {
	h.Ledger.InvalidateAll()
	if err := h.Timeline.SetActiveFlags(r.Context(), billing.Today()); err != nil {
		h.Log.Warnw("failed to refresh active flags", "error", err)
	}
}

func (h *Handler) writeTimelineError(w http.ResponseWriter, err error) {
	var overlap *billing.OverlappingPeriodsError
	switch {
	case errors.As(err, &overlap):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Cap period overlaps existing periods",
			Code:    "overlapping_periods",
			Details: overlap.ConflictIDs,
		})
	case errors.Is(err, billing.ErrPeriodNotDeletable):
		writeError(w, http.StatusConflict, "Cap period is active or past and cannot be deleted", err)
	case errors.Is(err, billing.ErrPeriodNotFound):
		writeError(w, http.StatusNotFound, "Cap period not found", err)
	case errors.Is(err, billing.ErrInvalidDateRange):
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
	default:
		writeError(w, http.StatusInternalServerError, "Timeline operation failed", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) lookupEmployee(w http.ResponseWriter, r *http.Request) (*billing.Employee, bool) {
	id := chi.URLParam(r, "id")
	emp, err := h.Employees.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return nil, false
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return nil, false
	}
	return emp, true
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
