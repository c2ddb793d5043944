/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	staffing data. Each scenario creates a client and workers, schedules
	shifts through the scheduler (so conflict rules apply) and records
	attendance, leaving a closed month ready for payroll.

AVAILABLE SCENARIOS:

	agency-week:  Day shifts for two workers, with incomplete attendance rows
	night-shift:  Overnight 22:00-06:00 shift with overtime that is not billed
	shift-block:  Shift-block assignments: finished, running and not started

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create client and workers
 3. Schedule shifts in one batch
 4. Record attendance (or block timestamps) for last month

All dates are placed in the calendar month before today, so that
POST /api/payroll/run over that month pays them.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "night-shift"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Seeding and payroll handlers
  - scheduling/scheduler.go: ScheduleShifts
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"github.com/warp/staffing-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "agency-week",
		Name:        "Agency Week",
		Description: "Two day-shift workers, one week, with missing and zero attendance rows",
		Category:    "daily",
	},
	{
		ID:          "night-shift",
		Name:        "Night Shift",
		Description: "Overnight shift crossing midnight, overtime capped at the shift length",
		Category:    "daily",
	},
	{
		ID:          "shift-block",
		Name:        "Shift Blocks",
		Description: "Shift-block assignments in every state: finished, in progress, not started",
		Category:    "shift_block",
	},
}

// resetter is implemented by stores that can drop all data.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context, generic.Period) error
	switch req.ScenarioID {
	case "agency-week":
		load = h.loadAgencyWeekScenario
	case "night-shift":
		load = h.loadNightShiftScenario
	case "shift-block":
		load = h.loadShiftBlockScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	if err := rs.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	month := lastMonth(generic.Today())
	if err := load(ctx, month); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	hlog.FromRequest(r).Info().Str("scenario", req.ScenarioID).Stringer("month", month).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"from":     month.Start.String(),
		"to":       month.End.String(),
	})
}

// lastMonth is the calendar month before the one containing today.
func lastMonth(today generic.TimePoint) generic.Period {
	return generic.CycleMonthly.PreviousPeriod(today)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadAgencyWeekScenario(ctx context.Context, month generic.Period) error {
	if err := h.seedParties(ctx, generic.Client{ID: "acme-care", Name: "Acme Care Homes"},
		generic.Worker{ID: 101, Name: "Ana Lima"},
		generic.Worker{ID: 102, Name: "Ben Okafor"},
	); err != nil {
		return err
	}

	// One week starting on the month's first Monday
	monday := month.Start
	for monday.Weekday() != time.Monday {
		monday = monday.AddDays(1)
	}
	friday := monday.AddDays(4)

	ids, err := h.scheduleScenario(ctx, "acme-care",
		scenarioShift(101, monday, friday, "09:00", "17:00", 500, generic.ModeDaily),
		scenarioShift(102, monday, friday, "07:00", "15:00", 450, generic.ModeDaily),
	)
	if err != nil {
		return err
	}

	var records []generic.AttendanceRecord
	for i := 0; i < 5; i++ {
		day := monday.AddDays(i)
		records = append(records, scenarioAttendance(ids[0], 101, day, "09:00", "17:00", "8:00"))

		ben := scenarioAttendance(ids[1], 102, day, "07:00", "15:00", "8:00")
		switch i {
		case 2:
			ben.ClockOut, ben.TotalWorked = "", "" // forgot to clock out
		case 4:
			ben.TotalWorked = "0:00"
		}
		records = append(records, ben)
	}
	return h.saveAttendance(ctx, records)
}

func (h *Handler) loadNightShiftScenario(ctx context.Context, month generic.Period) error {
	if err := h.seedParties(ctx, generic.Client{ID: "harbor", Name: "Harbor Logistics"},
		generic.Worker{ID: 201, Name: "Chidi Mensah"},
		generic.Worker{ID: 202, Name: "Dana Reyes"},
	); err != nil {
		return err
	}

	end := month.Start.AddDays(13)
	ids, err := h.scheduleScenario(ctx, "harbor",
		scenarioShift(201, month.Start, end, "22:00", "06:00", 800, generic.ModeDaily),
		scenarioShift(202, month.Start, end, "14:00", "22:00", 600, generic.ModeDaily),
	)
	if err != nil {
		return err
	}

	var records []generic.AttendanceRecord
	for i := 0; i < 14; i++ {
		day := month.Start.AddDays(i)
		worked := "8:00"
		if i%3 == 0 {
			worked = "10:00" // overtime, billed at 8h
		}
		records = append(records,
			scenarioAttendance(ids[0], 201, day, "22:00", "06:00", worked),
			scenarioAttendance(ids[1], 202, day, "14:00", "22:00", "7.5"),
		)
	}
	return h.saveAttendance(ctx, records)
}

func (h *Handler) loadShiftBlockScenario(ctx context.Context, month generic.Period) error {
	if err := h.seedParties(ctx, generic.Client{ID: "northwind", Name: "Northwind Events"},
		generic.Worker{ID: 301, Name: "Eli Novak"},
		generic.Worker{ID: 302, Name: "Fatima Zahra"},
		generic.Worker{ID: 303, Name: "Gus Tran"},
	); err != nil {
		return err
	}

	first := month.Start.AddDays(2)
	ids, err := h.scheduleScenario(ctx, "northwind",
		scenarioShift(301, first, first.AddDays(2), "08:00", "20:00", 900, generic.ModeShiftBlock),
		scenarioShift(302, first, first.AddDays(6), "08:00", "20:00", 900, generic.ModeShiftBlock),
		scenarioShift(303, month.End, month.End, "08:00", "20:00", 900, generic.ModeShiftBlock),
	)
	if err != nil {
		return err
	}

	// 301 worked a finished 60h block: 2.5 days
	started := first.StartOfDay().Add(8 * time.Hour)
	ended := started.Add(60 * time.Hour)
	days := decimal.RequireFromString("2.5")
	if res := h.Scheduler.UpdateAssignment(ctx, ids[0], generic.AssignmentPatch{
		ShiftStartedAt:           &started,
		ShiftEndedAt:             &ended,
		CalculatedAttendanceDays: &days,
	}); !res.Success {
		return fmt.Errorf("finish block: %s", res.Error)
	}

	// 302 clocked in and never out
	if res := h.Scheduler.UpdateAssignment(ctx, ids[1], generic.AssignmentPatch{
		ShiftStartedAt: &started,
	}); !res.Success {
		return fmt.Errorf("start block: %s", res.Error)
	}

	// 303 has not started
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedParties(ctx context.Context, client generic.Client, workers ...generic.Worker) error {
	if err := h.Store.SaveClient(ctx, client); err != nil {
		return fmt.Errorf("save client %s: %w", client.ID, err)
	}
	for _, w := range workers {
		w.Status = generic.WorkerUnassigned
		if err := h.Store.SaveWorker(ctx, w); err != nil {
			return fmt.Errorf("save worker %d: %w", w.ID, err)
		}
	}
	return nil
}

func (h *Handler) scheduleScenario(ctx context.Context, client generic.ClientID, shifts ...generic.ProposedAssignment) ([]generic.AssignmentID, error) {
	res := h.Scheduler.ScheduleShifts(ctx, shifts, client)
	if !res.Success {
		return nil, fmt.Errorf("schedule: %s", res.Error)
	}
	return res.AssignmentIDs, nil
}

func (h *Handler) saveAttendance(ctx context.Context, records []generic.AttendanceRecord) error {
	for _, rec := range records {
		if err := h.Store.SaveAttendance(ctx, rec); err != nil {
			return fmt.Errorf("save attendance %s: %w", rec.ID, err)
		}
	}
	return nil
}

func scenarioShift(worker generic.WorkerID, from, to generic.TimePoint, start, end string, rate int64, mode generic.AttendanceMode) generic.ProposedAssignment {
	return generic.ProposedAssignment{
		WorkerID:      worker,
		StartDate:     from,
		EndDate:       to,
		ShiftStart:    start,
		ShiftEnd:      end,
		PayRatePerDay: decimal.NewFromInt(rate),
		Mode:          mode,
	}
}

func scenarioAttendance(id generic.AssignmentID, worker generic.WorkerID, day generic.TimePoint, in, out, worked string) generic.AttendanceRecord {
	return generic.AttendanceRecord{
		ID:           generic.RecordID(fmt.Sprintf("%s-%s", id, day)),
		AssignmentID: id,
		WorkerID:     worker,
		Date:         day,
		ClockIn:      in,
		ClockOut:     out,
		TotalWorked:  worked,
	}
}
