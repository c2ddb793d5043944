package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/payroll"
	"github.com/warp/staffing-engine/scheduling"
	"github.com/warp/staffing-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SaveClient(ctx, generic.Client{ID: "acme", Name: "Acme Logistics"}))
	require.NoError(t, s.SaveWorker(ctx, generic.Worker{ID: 1, Name: "Ana"}))
	require.NoError(t, s.SaveWorker(ctx, generic.Worker{ID: 2, Name: "Ben"}))
	return s
}

func assignment(id string, worker generic.WorkerID, from, to string) generic.Assignment {
	end := generic.MustParseDate(to)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return generic.Assignment{
		ID:            generic.AssignmentID(id),
		WorkerID:      worker,
		ClientID:      "acme",
		StartDate:     generic.MustParseDate(from),
		EndDate:       &end,
		ShiftStart:    "22:00",
		ShiftEnd:      "06:00",
		PayRatePerDay: decimal.NewFromInt(800),
		Status:        generic.AssignmentActive,
		Mode:          generic.ModeDaily,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// =============================================================================
// WORKERS AND ASSIGNMENTS
// =============================================================================

func TestStore_Workers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	w, err := s.GetWorker(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana", w.Name)
	assert.Equal(t, generic.WorkerUnassigned, w.Status)

	require.NoError(t, s.SetWorkerStatus(ctx, 1, generic.WorkerAssigned))
	found, err := s.FindWorkers(ctx, []generic.WorkerID{1, 2, 99})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, generic.WorkerAssigned, found[0].Status)

	_, err = s.GetWorker(ctx, 99)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.ErrorIs(t, s.SetWorkerStatus(ctx, 99, generic.WorkerAssigned), generic.ErrNotFound)

	ok, err := s.ClientExists(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ClientExists(ctx, "globex")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_AssignmentRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := assignment("a1", 1, "2025-03-01", "2025-03-31")
	started := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	a.Mode = generic.ModeShiftBlock
	a.CalculatedAttendanceDays = decimal.RequireFromString("1.5")
	a.ShiftStartedAt = &started

	n, err := s.InsertAssignments(ctx, []generic.Assignment{a})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", got.EndDate.String())
	assert.Equal(t, generic.ModeShiftBlock, got.Mode)
	assert.True(t, got.PayRatePerDay.Equal(decimal.NewFromInt(800)))
	assert.True(t, got.CalculatedAttendanceDays.Equal(decimal.RequireFromString("1.5")))
	require.NotNil(t, got.ShiftStartedAt)
	assert.True(t, got.ShiftStartedAt.Equal(started))
	assert.Nil(t, got.ShiftEndedAt)

	_, err = s.GetAssignment(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestStore_ListAssignmentsFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	open := assignment("a3", 1, "2025-06-01", "2025-06-30")
	open.EndDate = nil
	cancelled := assignment("a4", 1, "2025-01-01", "2025-12-31")
	cancelled.Status = generic.AssignmentCancelled

	_, err := s.InsertAssignments(ctx, []generic.Assignment{
		assignment("a1", 1, "2025-01-01", "2025-01-31"),
		assignment("a2", 2, "2025-01-10", "2025-02-10"),
		open,
		cancelled,
	})
	require.NoError(t, err)

	// GIVEN a February window for worker 1 and 2
	feb := generic.Period{Start: generic.MustParseDate("2025-02-01"), End: generic.MustParseDate("2025-02-28")}
	got, err := s.ListAssignments(ctx, generic.AssignmentFilter{WorkerIDs: []generic.WorkerID{1, 2}, Window: &feb})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, generic.AssignmentID("a2"), got[0].ID)

	// WHEN the window reaches far into the future THEN the open-ended row matches
	later := generic.Period{Start: generic.MustParseDate("2030-01-01"), End: generic.MustParseDate("2030-01-31")}
	got, err = s.ListAssignments(ctx, generic.AssignmentFilter{Window: &later})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, generic.AssignmentID("a3"), got[0].ID)
	assert.Nil(t, got[0].EndDate)

	all, err := s.ListAssignments(ctx, generic.AssignmentFilter{IncludeCancelled: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_InsertAssignmentsIsAtomic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// GIVEN a batch whose last row duplicates the first id
	_, err := s.InsertAssignments(ctx, []generic.Assignment{
		assignment("a1", 1, "2025-01-01", "2025-01-31"),
		assignment("a2", 2, "2025-01-01", "2025-01-31"),
		assignment("a1", 2, "2025-02-01", "2025-02-28"),
	})

	// THEN nothing is written
	require.Error(t, err)
	all, err := s.ListAssignments(ctx, generic.AssignmentFilter{IncludeCancelled: true})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_UpdateAndDeleteAssignment(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a := assignment("a1", 1, "2025-01-01", "2025-01-31")
	_, err := s.InsertAssignments(ctx, []generic.Assignment{a})
	require.NoError(t, err)

	a.Status = generic.AssignmentCompleted
	a.ShiftEnd = "07:00"
	require.NoError(t, s.UpdateAssignment(ctx, a))

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, generic.AssignmentCompleted, got.Status)
	assert.Equal(t, "07:00", got.ShiftEnd)

	require.NoError(t, s.SaveAttendance(ctx, generic.AttendanceRecord{
		ID: "r1", AssignmentID: "a1", WorkerID: 1, Date: generic.MustParseDate("2025-01-02"),
		ClockIn: "22:00", ClockOut: "06:00", TotalWorked: "8:00",
	}))
	n, err := s.CountAttendance(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// foreign key keeps referenced assignments
	assert.Error(t, s.DeleteAssignment(ctx, "a1"))
	assert.ErrorIs(t, s.DeleteAssignment(ctx, "missing"), generic.ErrNotFound)
}

// =============================================================================
// ATTENDANCE AND PAYMENTS
// =============================================================================

func TestStore_ListAttendance(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.InsertAssignments(ctx, []generic.Assignment{
		assignment("a1", 1, "2025-01-01", "2025-01-31"),
		assignment("a2", 2, "2025-01-01", "2025-01-31"),
	})
	require.NoError(t, err)

	for _, r := range []generic.AttendanceRecord{
		{ID: "r1", AssignmentID: "a1", WorkerID: 1, Date: generic.MustParseDate("2025-01-05"), TotalWorked: "8:00"},
		{ID: "r2", AssignmentID: "a1", WorkerID: 1, Date: generic.MustParseDate("2025-01-20")},
		{ID: "r3", AssignmentID: "a2", WorkerID: 2, Date: generic.MustParseDate("2025-01-05")},
	} {
		require.NoError(t, s.SaveAttendance(ctx, r))
	}

	first := generic.Period{Start: generic.MustParseDate("2025-01-01"), End: generic.MustParseDate("2025-01-15")}
	got, err := s.ListAttendance(ctx, []generic.AssignmentID{"a1"}, first)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, generic.RecordID("r1"), got[0].ID)
	assert.Equal(t, "8:00", got[0].TotalWorked)
	assert.Empty(t, got[0].ClockIn)

	none, err := s.ListAttendance(ctx, nil, first)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_PaymentRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	date := generic.MustParseDate("2025-01-07")
	jan := generic.Period{Start: generic.MustParseDate("2025-01-01"), End: generic.MustParseDate("2025-01-15")}

	p := generic.PaymentRecord{
		ID:                "p1",
		WorkerID:          1,
		Period:            jan,
		DaysWorked:        decimal.RequireFromString("1.5"),
		HoursWorked:       decimal.NewFromInt(12),
		BillableHours:     decimal.NewFromInt(12),
		GrossSalary:       decimal.NewFromInt(1200),
		NetSalary:         decimal.NewFromInt(1200),
		AverageHourlyRate: decimal.NewFromInt(100),
		Status:            generic.PaymentPending,
		Info:              "1.5 days",
		SkippedCount:      1,
		SkippedDetail: []generic.SkippedRecord{
			{RecordID: "r9", AssignmentID: "a1", Date: &date, Reason: generic.SkipMissingAttendanceData},
		},
		CreatedAt: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertPayment(ctx, p))

	got, err := s.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.GrossSalary.Equal(p.GrossSalary))
	assert.Equal(t, jan, got.Period)
	require.Len(t, got.SkippedDetail, 1)
	assert.Equal(t, generic.SkipMissingAttendanceData, got.SkippedDetail[0].Reason)
	assert.Equal(t, "2025-01-07", got.SkippedDetail[0].Date.String())

	p.Bonus = decimal.NewFromInt(50)
	p.RecomputeNet()
	require.NoError(t, s.UpdatePayment(ctx, p))
	got, err = s.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.NetSalary.Equal(decimal.NewFromInt(1250)))

	// inclusive overlap on the shared endpoint, kind and cancellation filters
	worker := generic.WorkerID(1)
	salary := false
	advance := true
	touching := generic.Period{Start: generic.MustParseDate("2025-01-15"), End: generic.MustParseDate("2025-01-31")}

	hits, err := s.ListPayments(ctx, generic.PaymentFilter{WorkerID: &worker, IsAdvance: &salary, Window: &touching})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.ListPayments(ctx, generic.PaymentFilter{WorkerID: &worker, IsAdvance: &advance, Window: &touching})
	require.NoError(t, err)
	assert.Empty(t, hits)

	p.Status = generic.PaymentCancelled
	require.NoError(t, s.UpdatePayment(ctx, p))
	hits, err = s.ListPayments(ctx, generic.PaymentFilter{WorkerID: &worker, Window: &touching})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// =============================================================================
// CORE OPERATIONS AGAINST SQLITE
// =============================================================================

func TestStore_ScheduleAndPay(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sched := scheduling.NewScheduler(s)

	// GIVEN an overnight shift for worker 1
	res := sched.ScheduleShifts(ctx, []generic.ProposedAssignment{{
		WorkerID:      1,
		StartDate:     generic.MustParseDate("2025-01-01"),
		EndDate:       generic.MustParseDate("2025-01-31"),
		ShiftStart:    "22:00",
		ShiftEnd:      "06:00",
		PayRatePerDay: decimal.NewFromInt(800),
	}}, "acme")
	require.True(t, res.Success, res.Error)
	require.Len(t, res.AssignmentIDs, 1)

	w, err := s.GetWorker(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, generic.WorkerAssigned, w.Status)

	// WHEN a clashing shift is proposed THEN it is rejected and nothing is written
	clash := sched.ScheduleShifts(ctx, []generic.ProposedAssignment{{
		WorkerID:      1,
		StartDate:     generic.MustParseDate("2025-01-15"),
		EndDate:       generic.MustParseDate("2025-01-20"),
		ShiftStart:    "05:00",
		ShiftEnd:      "09:00",
		PayRatePerDay: decimal.NewFromInt(800),
	}}, "acme")
	assert.False(t, clash.Success)
	assert.Equal(t, generic.KindConflict, clash.Kind)

	require.NoError(t, s.SaveAttendance(ctx, generic.AttendanceRecord{
		ID: "r1", AssignmentID: res.AssignmentIDs[0], WorkerID: 1,
		Date: generic.MustParseDate("2025-01-02"), ClockIn: "22:00", ClockOut: "06:00", TotalWorked: "8:00",
	}))

	calc := payroll.NewCalculator(s)
	jan := generic.Period{Start: generic.MustParseDate("2025-01-01"), End: generic.MustParseDate("2025-01-15")}
	pay := calc.CalculateSalary(ctx, 1, jan, "")
	require.True(t, pay.Success, pay.Error)
	assert.True(t, pay.Payment.GrossSalary.Equal(decimal.NewFromInt(800)))

	again := calc.CalculateSalary(ctx, 1, jan, "")
	assert.Equal(t, generic.KindConflict, again.Kind)
	assert.Equal(t, []string{string(pay.Payment.ID)}, again.ConflictingIDs)
}

// =============================================================================
// FAILURE PATHS (sqlmock)
// =============================================================================

func TestStore_InsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := sqlite.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO assignments").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	n, err := s.InsertAssignments(context.Background(), []generic.Assignment{
		assignment("a1", 1, "2025-01-01", "2025-01-31"),
		assignment("a2", 2, "2025-01-01", "2025-01-31"),
	})

	assert.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := sqlite.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE workers SET status").
		WithArgs("assigned", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = s.WithTx(context.Background(), func(tx generic.Store) error {
		return tx.SetWorkerStatus(context.Background(), 1, generic.WorkerAssigned)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
