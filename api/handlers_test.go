/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Seeding endpoints and payload validation
- Scheduling status mapping (201, 400, 404, 409)
- Assignment lifecycle over HTTP
- Salary, advance and batch payroll endpoints
- Register export, health, rate limiting, payroll scheduler
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/generic/store"
	"github.com/warp/staffing-engine/lock"
	"github.com/warp/staffing-engine/payroll"
	"github.com/warp/staffing-engine/scheduling"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	mem    *store.Memory
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	mem := store.NewMemory()
	calc := payroll.NewCalculator(mem)
	h := NewHandler(mem,
		scheduling.NewScheduler(mem),
		calc,
		payroll.NewRunner(calc, mem, lock.NewLocal()),
		zerolog.Nop(),
	)
	return &testServer{mem: mem, h: h, router: NewRouter(h, opts)}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

// seed creates client acme, workers 1 and 2, and returns a scheduled
// night-shift assignment id for worker 1 over January.
func (s *testServer) seed(t *testing.T) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/clients", CreateClientRequest{ID: "acme", Name: "Acme"}).Code)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/workers", CreateWorkerRequest{ID: 1, Name: "Ana"}).Code)
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/workers", CreateWorkerRequest{ID: 2, Name: "Ben"}).Code)

	rec := s.do(t, "POST", "/api/clients/acme/schedule", ScheduleRequest{Shifts: []ShiftRequest{
		nightShift(1, "2025-01-01", "2025-01-31"),
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res scheduling.ScheduleResult
	decodeBody(t, rec, &res)
	require.Len(t, res.AssignmentIDs, 1)
	return string(res.AssignmentIDs[0])
}

func nightShift(worker int64, from, to string) ShiftRequest {
	return ShiftRequest{
		WorkerID:      worker,
		StartDate:     from,
		EndDate:       to,
		ShiftStart:    "22:00",
		ShiftEnd:      "06:00",
		PayRatePerDay: "800",
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func TestCreateWorker_Validation(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, "POST", "/api/workers", CreateWorkerRequest{ID: 0, Name: "Nobody"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/workers", CreateWorkerRequest{ID: 5, Name: "Eve"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	var w generic.Worker
	decodeBody(t, rec, &w)
	assert.Equal(t, generic.WorkerUnassigned, w.Status)
}

func TestRecordAttendance_UnknownAssignment(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, "POST", "/api/attendance", AttendanceRequest{AssignmentID: "nope", Date: "2025-01-02"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "POST", "/api/attendance", AttendanceRequest{AssignmentID: "nope", Date: "02/01/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCHEDULING
// =============================================================================

func TestScheduleShifts_StatusMapping(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.seed(t)

	w, err := s.mem.GetWorker(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, generic.WorkerAssigned, w.Status)

	tests := []struct {
		name     string
		path     string
		body     any
		status   int
		wantCode string
	}{
		{
			name:     "overlapping shift",
			path:     "/api/clients/acme/schedule",
			body:     ScheduleRequest{Shifts: []ShiftRequest{{WorkerID: 1, StartDate: "2025-01-15", EndDate: "2025-01-20", ShiftStart: "05:00", ShiftEnd: "05:30", PayRatePerDay: "800"}}},
			status:   http.StatusConflict,
			wantCode: generic.ConflictShift,
		},
		{
			name:     "empty batch",
			path:     "/api/clients/acme/schedule",
			body:     ScheduleRequest{},
			status:   http.StatusBadRequest,
			wantCode: generic.CodeEmptyBatch,
		},
		{
			name:     "bad clock",
			path:     "/api/clients/acme/schedule",
			body:     ScheduleRequest{Shifts: []ShiftRequest{{WorkerID: 2, StartDate: "2025-01-01", EndDate: "2025-01-02", ShiftStart: "25:00", ShiftEnd: "06:00", PayRatePerDay: "800"}}},
			status:   http.StatusBadRequest,
			wantCode: generic.CodeInvalidTimeFormat,
		},
		{
			name:   "unknown client",
			path:   "/api/clients/globex/schedule",
			body:   ScheduleRequest{Shifts: []ShiftRequest{nightShift(2, "2025-01-01", "2025-01-31")}},
			status: http.StatusNotFound,
		},
		{
			name:   "malformed date",
			path:   "/api/clients/acme/schedule",
			body:   ScheduleRequest{Shifts: []ShiftRequest{nightShift(2, "Jan 1", "2025-01-31")}},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				var res generic.Result
				decodeBody(t, rec, &res)
				assert.False(t, res.Success)
				assert.Equal(t, tt.wantCode, res.Code)
			}
		})
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.seed(t)

	// GIVEN the shift moves an hour later
	start, end := "23:00", "07:00"
	rec := s.do(t, "PATCH", "/api/assignments/"+id, UpdateAssignmentRequest{ShiftStart: &start, ShiftEnd: &end})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "GET", "/api/workers/1/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []AssignmentDTO
	decodeBody(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "23:00", list[0].ShiftStart)
	assert.Equal(t, "daily", list[0].Mode)

	// WHEN attendance exists THEN delete is refused
	rec = s.do(t, "POST", "/api/attendance", AttendanceRequest{AssignmentID: id, Date: "2025-01-02", ClockIn: "23:00", ClockOut: "07:00", TotalWorked: "8:00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, "DELETE", "/api/assignments/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// completion needs an end date on or after the start
	rec = s.do(t, "POST", "/api/assignments/"+id+"/complete", CompleteAssignmentRequest{EndDate: "2024-12-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/assignments/"+id+"/complete", CompleteAssignmentRequest{EndDate: "2025-01-20"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "DELETE", "/api/assignments/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAssignment_ResetsWorker(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.seed(t)

	rec := s.do(t, "DELETE", "/api/assignments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w, err := s.mem.GetWorker(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, generic.WorkerUnassigned, w.Status)
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestCalculateSalary_Endpoint(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.seed(t)
	rec := s.do(t, "POST", "/api/attendance", AttendanceRequest{AssignmentID: id, Date: "2025-01-02", ClockIn: "22:00", ClockOut: "06:00", TotalWorked: "10:00"})
	require.Equal(t, http.StatusCreated, rec.Code)

	jan := PeriodRequest{From: "2025-01-01", To: "2025-01-15"}
	rec = s.do(t, "POST", "/api/workers/1/salary", jan)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp PaymentResponse
	decodeBody(t, rec, &resp)
	require.NotNil(t, resp.Payment)
	assert.Equal(t, "800.00", resp.Payment.GrossSalary)
	assert.Equal(t, "8", resp.Payment.BillableHours)
	assert.Equal(t, "10", resp.Payment.HoursWorked)
	assert.Equal(t, "pending", resp.Payment.Status)

	// WHEN the same period is calculated again THEN 409 names the existing record
	rec = s.do(t, "POST", "/api/workers/1/salary", jan)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var dup PaymentResponse
	decodeBody(t, rec, &dup)
	assert.Equal(t, []string{resp.Payment.ID}, dup.ConflictingIDs)

	// recalculating in place is allowed
	rec = s.do(t, "POST", "/api/workers/1/salary", PeriodRequest{From: "2025-01-01", To: "2025-01-15", ExistingPaymentID: resp.Payment.ID})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, "GET", "/api/workers/1/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []PaymentDTO
	decodeBody(t, rec, &payments)
	assert.Len(t, payments, 1)
}

func TestCalculateSalary_StatusMapping(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.seed(t)

	// worker 2 has no assignments: zero pay, nothing persisted
	rec := s.do(t, "POST", "/api/workers/2/salary", PeriodRequest{From: "2025-01-01", To: "2025-01-15"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "POST", "/api/workers/99/salary", PeriodRequest{From: "2025-01-01", To: "2025-01-15"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "POST", "/api/workers/1/salary", PeriodRequest{From: "2025-01-15", To: "2025-01-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/workers/abc/salary", PeriodRequest{From: "2025-01-01", To: "2025-01-15"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/workers/2/advance", PeriodRequest{From: "2025-01-01", To: "2025-01-15"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/workers/1/advance", PeriodRequest{From: "2025-01-01", To: "2025-01-05"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var adv PaymentResponse
	decodeBody(t, rec, &adv)
	assert.True(t, adv.Payment.IsAdvance)
	assert.Equal(t, "4000.00", adv.Payment.GrossSalary)
}

func TestRunPayrollAndExport(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.seed(t)
	s.do(t, "POST", "/api/attendance", AttendanceRequest{AssignmentID: id, Date: "2025-01-03", TotalWorked: "8:00", ClockIn: "22:00", ClockOut: "06:00"})

	rec := s.do(t, "POST", "/api/payroll/run", PeriodRequest{From: "2025-01-01", To: "2025-01-15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary payroll.RunSummary
	decodeBody(t, rec, &summary)
	assert.Equal(t, 1, summary.Calculated)
	assert.Equal(t, "800.00", summary.Gross)

	rec = s.do(t, "GET", "/api/payroll/export?from=2025-01-01&to=2025-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payroll-2025-01-01-2025-01-15.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = s.do(t, "GET", "/api/payroll/export?from=bad&to=2025-01-15", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunPayroll_LockHeld(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.seed(t)
	locks := lock.NewLocal()
	s.h.Runner = payroll.NewRunner(s.h.Payroll, s.mem, locks)

	release, err := locks.Acquire(context.Background(), "payroll:2025-01-01:2025-01-15", time.Minute)
	require.NoError(t, err)
	defer release(context.Background())

	rec := s.do(t, "POST", "/api/payroll/run", PeriodRequest{From: "2025-01-01", To: "2025-01-15"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("redis down")
	s := newTestServer(t, RouterOptions{Ready: func(context.Context) error { return ready }})

	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, "GET", "/readyz", nil).Code)

	ready = nil
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/readyz", nil).Code)
}

func TestRateLimitByIP(t *testing.T) {
	s := newTestServer(t, RouterOptions{RateLimitRPS: 0.001, RateBurst: 1})

	first := s.do(t, "GET", "/api/workers/1/assignments", nil)
	second := s.do(t, "GET", "/api/workers/1/assignments", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	// health checks are not limited
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/healthz", nil).Code)
}

func TestPayrollScheduler_RunsPreviousPeriodOnce(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	id := s.seed(t)
	s.do(t, "POST", "/api/attendance", AttendanceRequest{AssignmentID: id, Date: "2025-01-03", TotalWorked: "8:00", ClockIn: "22:00", ClockOut: "06:00"})

	// GIVEN today is 2025-01-20 on a semi-monthly cycle
	ps := NewPayrollScheduler(s.h.Runner, generic.CycleSemiMonthly, zerolog.Nop())
	ps.now = func() time.Time { return time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC) }

	// WHEN it runs twice THEN only the first run calculates 01-01..01-15
	assert.True(t, ps.RunNow(context.Background()))
	assert.False(t, ps.RunNow(context.Background()))

	payments, err := s.mem.ListPayments(context.Background(), generic.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "2025-01-01", payments[0].Period.Start.String())
	assert.Equal(t, "2025-01-15", payments[0].Period.End.String())
}
