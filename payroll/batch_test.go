package payroll_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/lock"
	"github.com/warp/staffing-engine/payroll"
)

// =============================================================================
// BATCH RUN
// =============================================================================

func TestRunner_CalculatesEveryScheduledWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.assign(t, "a1", worker, "2025-01-01", "2025-01-31", "09:00", "17:00", 500)
	f.assign(t, "a2", 8, "2025-01-01", "2025-01-31", "09:00", "17:00", 600)
	f.attend(t, "r1", "a1", worker, "2025-01-06", "8:00")
	f.attend(t, "r2", "a2", 8, "2025-01-06", "8:00")

	runner := payroll.NewRunner(f.calc, f.mem, lock.NewLocal(), payroll.WithRateLimit(1000, 10))
	summary, err := runner.Run(ctx, period(t, "2025-01-01", "2025-01-15"))

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Workers)
	assert.Equal(t, 2, summary.Calculated)
	assert.Zero(t, summary.Failed)
	assert.Len(t, summary.PaymentIDs, 2)
	assert.Equal(t, "1100.00", summary.Gross)
}

func TestRunner_SecondRunCountsAlreadyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.assign(t, "a1", worker, "2025-01-01", "2025-01-31", "09:00", "17:00", 500)
	runner := payroll.NewRunner(f.calc, f.mem, lock.NewLocal())
	jan := period(t, "2025-01-01", "2025-01-15")

	_, err := runner.Run(ctx, jan)
	require.NoError(t, err)

	summary, err := runner.Run(ctx, jan)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.AlreadyPaid)
	assert.Zero(t, summary.Calculated)
	assert.Len(t, f.payments(t), 1)
}

func TestRunner_LockHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locks := lock.NewLocal()
	jan := period(t, "2025-01-01", "2025-01-15")

	release, err := locks.Acquire(ctx, "payroll:2025-01-01:2025-01-15", time.Minute)
	require.NoError(t, err)
	defer release(ctx)

	_, err = payroll.NewRunner(f.calc, f.mem, locks).Run(ctx, jan)

	assert.ErrorIs(t, err, payroll.ErrRunInProgress)
}

func TestRunner_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	bad := generic.Period{Start: generic.MustParseDate("2025-02-01"), End: generic.MustParseDate("2025-01-01")}

	_, err := payroll.NewRunner(f.calc, f.mem, lock.NewLocal()).Run(context.Background(), bad)

	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// REGISTER EXPORT
// =============================================================================

func TestExportRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.assign(t, "a1", worker, "2025-01-01", "2025-01-31", "09:00", "17:00", 500)
	f.attend(t, "r1", "a1", worker, "2025-01-06", "8:00")
	f.attend(t, "r2", "a1", worker, "2025-01-07", "")
	jan := period(t, "2025-01-01", "2025-01-15")
	res := f.calc.CalculateSalary(ctx, worker, jan, "")
	require.True(t, res.Success, res.Error)

	var buf bytes.Buffer
	require.NoError(t, payroll.ExportRegister(ctx, f.mem, jan, &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Register")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header, one payment, totals")
	assert.Equal(t, "Payment ID", rows[0][0])
	assert.Equal(t, string(res.Payment.ID), rows[1][0])
	assert.Equal(t, "Dana Reyes", rows[1][2])
	assert.Equal(t, "Salary", rows[1][3])
	assert.Equal(t, "500", rows[1][9])
	assert.Equal(t, "TOTAL", rows[2][0])

	skipped, err := book.GetRows("Skipped")
	require.NoError(t, err)
	require.Len(t, skipped, 2)
	assert.Equal(t, "r2", skipped[1][2])
	assert.Equal(t, string(generic.SkipMissingAttendanceData), skipped[1][5])
}
