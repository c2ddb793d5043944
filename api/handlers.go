/*
handlers.go - HTTP API handlers for the staffing engine

PURPOSE:
  Exposes scheduling and payroll via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the core.

ENDPOINTS:
  Seeding:
    POST   /api/workers                    Create or rename a worker
    POST   /api/clients                    Create or rename a client
    POST   /api/attendance                 Record a daily attendance row

  Scheduling:
    POST   /api/clients/{id}/schedule      Schedule a batch of shifts
    PATCH  /api/assignments/{id}           Update an assignment
    POST   /api/assignments/{id}/complete  Close an assignment with an end date
    DELETE /api/assignments/{id}           Delete an assignment
    GET    /api/workers/{id}/assignments   List a worker's assignments

  Payroll:
    POST   /api/workers/{id}/salary        Calculate (or recalculate) salary
    POST   /api/workers/{id}/advance       Create an advance payment
    GET    /api/workers/{id}/payments      List a worker's payment records
    POST   /api/payroll/run                Batch run for a period
    GET    /api/payroll/export?from&to     Payroll register (xlsx)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate payload shape (validator tags)
  3. Call the core (scheduling.Scheduler, payroll.Calculator)
  4. Map the Result kind to a status and serialize

ERROR HANDLING:
  Core operations return a generic.Result; its Kind selects the status:
  - 400: validation
  - 404: referential (unknown worker, client, assignment, payment)
  - 409: conflict (shift overlap, pay-period overlap, dependent records)
  - 500: internal
  A success carrying warnings (partial failure) keeps the success status.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/payroll"
	"github.com/warp/staffing-engine/scheduling"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     generic.TxStore
	Scheduler *scheduling.Scheduler
	Payroll   *payroll.Calculator
	Runner    *payroll.Runner

	validate *validator.Validate
	logger   zerolog.Logger

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the given store and core services.
func NewHandler(store generic.TxStore, sched *scheduling.Scheduler, calc *payroll.Calculator, runner *payroll.Runner, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Scheduler: sched,
		Payroll:   calc,
		Runner:    runner,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// =============================================================================
// SEEDING HANDLERS
// =============================================================================

// CreateWorker creates or renames a worker.
// POST /api/workers
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if !h.decode(w, r, &req) {
		return
	}

	worker := generic.Worker{ID: generic.WorkerID(req.ID), Name: req.Name}
	if existing, err := h.Store.GetWorker(r.Context(), worker.ID); err == nil {
		worker.Status = existing.Status
	} else if !errors.Is(err, generic.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to load worker", err)
		return
	}

	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save worker", err)
		return
	}
	if worker.Status == "" {
		worker.Status = generic.WorkerUnassigned
	}
	writeJSON(w, http.StatusCreated, worker)
}

// CreateClient creates or renames a client.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !h.decode(w, r, &req) {
		return
	}

	client := generic.Client{ID: generic.ClientID(req.ID), Name: req.Name}
	if err := h.Store.SaveClient(r.Context(), client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save client", err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// RecordAttendance stores one daily row against an assignment.
// POST /api/attendance
func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.Store.GetAssignment(r.Context(), generic.AssignmentID(req.AssignmentID))
	if errors.Is(err, generic.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Assignment not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load assignment", err)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := generic.AttendanceRecord{
		ID:           generic.RecordID(id),
		AssignmentID: a.ID,
		WorkerID:     a.WorkerID,
		Date:         generic.MustParseDate(req.Date),
		ClockIn:      req.ClockIn,
		ClockOut:     req.ClockOut,
		TotalWorked:  req.TotalWorked,
	}
	if err := h.Store.SaveAttendance(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save attendance", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// =============================================================================
// SCHEDULING HANDLERS
// =============================================================================

// ScheduleShifts schedules a batch of shifts for one client.
// POST /api/clients/{id}/schedule
func (h *Handler) ScheduleShifts(w http.ResponseWriter, r *http.Request) {
	clientID := generic.ClientID(chi.URLParam(r, "id"))

	var req ScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	proposed := make([]generic.ProposedAssignment, len(req.Shifts))
	for i, s := range req.Shifts {
		proposed[i] = generic.ProposedAssignment{
			WorkerID:      generic.WorkerID(s.WorkerID),
			ClientID:      clientID,
			StartDate:     generic.MustParseDate(s.StartDate),
			EndDate:       generic.MustParseDate(s.EndDate),
			ShiftStart:    s.ShiftStart,
			ShiftEnd:      s.ShiftEnd,
			PayRatePerDay: decimal.RequireFromString(s.PayRatePerDay),
			Mode:          generic.AttendanceMode(s.Mode),
		}
	}

	res := h.Scheduler.ScheduleShifts(r.Context(), proposed, clientID)
	writeResult(w, http.StatusCreated, res.Result, res)
}

// UpdateAssignment applies a partial update.
// PATCH /api/assignments/{id}
func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id := generic.AssignmentID(chi.URLParam(r, "id"))

	var req UpdateAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := generic.AssignmentPatch{
		ShiftStart:     req.ShiftStart,
		ShiftEnd:       req.ShiftEnd,
		ShiftStartedAt: req.ShiftStartedAt,
		ShiftEndedAt:   req.ShiftEndedAt,
	}
	if req.StartDate != nil {
		d := generic.MustParseDate(*req.StartDate)
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		d := generic.MustParseDate(*req.EndDate)
		patch.EndDate = &d
	}
	if req.PayRatePerDay != nil {
		rate := decimal.RequireFromString(*req.PayRatePerDay)
		patch.PayRatePerDay = &rate
	}
	if req.CalculatedAttendanceDays != nil {
		days := decimal.RequireFromString(*req.CalculatedAttendanceDays)
		patch.CalculatedAttendanceDays = &days
	}
	if req.Status != nil {
		status := generic.AssignmentStatus(*req.Status)
		patch.Status = &status
	}

	res := h.Scheduler.UpdateAssignment(r.Context(), id, patch)
	writeResult(w, http.StatusOK, res, res)
}

// CompleteAssignment closes an active assignment.
// POST /api/assignments/{id}/complete
func (h *Handler) CompleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := generic.AssignmentID(chi.URLParam(r, "id"))

	var req CompleteAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.Scheduler.CompleteAssignment(r.Context(), id, generic.MustParseDate(req.EndDate))
	writeResult(w, http.StatusOK, res, res)
}

// DeleteAssignment removes an assignment with no attendance.
// DELETE /api/assignments/{id}
func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := generic.AssignmentID(chi.URLParam(r, "id"))
	res := h.Scheduler.DeleteAssignment(r.Context(), id)
	writeResult(w, http.StatusOK, res, res)
}

// ListWorkerAssignments returns a worker's assignments, oldest first.
// GET /api/workers/{id}/assignments?include_cancelled=true
func (h *Handler) ListWorkerAssignments(w http.ResponseWriter, r *http.Request) {
	workerID, ok := h.workerParam(w, r)
	if !ok {
		return
	}

	includeCancelled, _ := strconv.ParseBool(r.URL.Query().Get("include_cancelled"))
	as, err := h.Store.ListAssignments(r.Context(), generic.AssignmentFilter{
		WorkerIDs:        []generic.WorkerID{workerID},
		IncludeCancelled: includeCancelled,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, len(as))
	for i, a := range as {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CalculateSalary calculates salary for a pay period.
// POST /api/workers/{id}/salary
func (h *Handler) CalculateSalary(w http.ResponseWriter, r *http.Request) {
	workerID, period, req, ok := h.periodRequest(w, r)
	if !ok {
		return
	}
	res := h.Payroll.CalculateSalary(r.Context(), workerID, period, generic.PaymentID(req.ExistingPaymentID))
	writePayment(w, res)
}

// CreateAdvance creates an advance payment from scheduled days.
// POST /api/workers/{id}/advance
func (h *Handler) CreateAdvance(w http.ResponseWriter, r *http.Request) {
	workerID, period, _, ok := h.periodRequest(w, r)
	if !ok {
		return
	}
	res := h.Payroll.CreateAdvanceSalary(r.Context(), workerID, period)
	writePayment(w, res)
}

// ListWorkerPayments returns a worker's payment records.
// GET /api/workers/{id}/payments?include_cancelled=true
func (h *Handler) ListWorkerPayments(w http.ResponseWriter, r *http.Request) {
	workerID, ok := h.workerParam(w, r)
	if !ok {
		return
	}

	includeCancelled, _ := strconv.ParseBool(r.URL.Query().Get("include_cancelled"))
	ps, err := h.Store.ListPayments(r.Context(), generic.PaymentFilter{
		WorkerID:         &workerID,
		IncludeCancelled: includeCancelled,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunPayroll calculates salaries for every scheduled worker in a period.
// POST /api/payroll/run
func (h *Handler) RunPayroll(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !h.decode(w, r, &req) {
		return
	}

	period := generic.Period{Start: generic.MustParseDate(req.From), End: generic.MustParseDate(req.To)}
	summary, err := h.Runner.Run(r.Context(), period)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case errors.Is(err, payroll.ErrRunInProgress):
		writeError(w, http.StatusConflict, "Payroll run already in progress", err)
	case errors.Is(err, generic.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid period", err)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("payroll run failed")
		writeError(w, http.StatusInternalServerError, "Payroll run failed", err)
	}
}

// ExportRegister streams the payroll register for a period as xlsx.
// GET /api/payroll/export?from=2025-01-01&to=2025-01-15
func (h *Handler) ExportRegister(w http.ResponseWriter, r *http.Request) {
	period, err := generic.NewPeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use from/to as YYYY-MM-DD)", err)
		return
	}

	var buf bytes.Buffer
	if err := payroll.ExportRegister(r.Context(), h.Store, period, &buf); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("register export failed")
		writeError(w, http.StatusInternalServerError, "Failed to export register", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="payroll-%s-%s.xlsx"`, period.Start, period.End))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body; it writes the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func (h *Handler) workerParam(w http.ResponseWriter, r *http.Request) (generic.WorkerID, bool) {
	id, err := generic.ParseWorkerID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid worker id", err)
		return 0, false
	}
	return id, true
}

func (h *Handler) periodRequest(w http.ResponseWriter, r *http.Request) (generic.WorkerID, generic.Period, PeriodRequest, bool) {
	var req PeriodRequest
	workerID, ok := h.workerParam(w, r)
	if !ok || !h.decode(w, r, &req) {
		return 0, generic.Period{}, req, false
	}
	period := generic.Period{Start: generic.MustParseDate(req.From), End: generic.MustParseDate(req.To)}
	return workerID, period, req, true
}

// statusFor maps a failed Result kind to an HTTP status.
func statusFor(kind generic.ErrorKind) int {
	switch kind {
	case generic.KindValidation:
		return http.StatusBadRequest
	case generic.KindReferential:
		return http.StatusNotFound
	case generic.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, okStatus int, res generic.Result, body any) {
	if res.Success {
		writeJSON(w, okStatus, body)
		return
	}
	writeJSON(w, statusFor(res.Kind), body)
}

func writePayment(w http.ResponseWriter, res payroll.CalculationResult) {
	resp := PaymentResponse{Result: res.Result, ConflictingIDs: res.ConflictingIDs}
	if res.Payment != nil {
		dto := toPaymentDTO(*res.Payment)
		resp.Payment = &dto
	}
	status := http.StatusOK
	if res.Payment != nil && res.Payment.ID != "" {
		status = http.StatusCreated
	}
	writeResult(w, status, res.Result, resp)
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
