package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/generic/store"
)

func assignment(id string, worker generic.WorkerID, from, to string) generic.Assignment {
	end := generic.MustParseDate(to)
	return generic.Assignment{
		ID:            generic.AssignmentID(id),
		WorkerID:      worker,
		ClientID:      "acme",
		StartDate:     generic.MustParseDate(from),
		EndDate:       &end,
		ShiftStart:    "09:00",
		ShiftEnd:      "17:00",
		PayRatePerDay: decimal.NewFromInt(500),
		Status:        generic.AssignmentActive,
	}
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveWorker(ctx, generic.Worker{ID: 1, Name: "Ana"}))

	// GIVEN a transaction that writes and then fails
	boom := errors.New("boom")
	err := mem.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.InsertAssignments(ctx, []generic.Assignment{assignment("a1", 1, "2025-01-01", "2025-01-31")}); err != nil {
			return err
		}
		if err := tx.SetWorkerStatus(ctx, 1, generic.WorkerAssigned); err != nil {
			return err
		}
		return boom
	})

	// THEN no write survives
	require.ErrorIs(t, err, boom)
	all, err := mem.ListAssignments(ctx, generic.AssignmentFilter{IncludeCancelled: true})
	require.NoError(t, err)
	assert.Empty(t, all)
	w, err := mem.GetWorker(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, generic.WorkerUnassigned, w.Status)
}

func TestMemory_WithTxCommits(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	err := mem.WithTx(ctx, func(tx generic.Store) error {
		n, err := tx.InsertAssignments(ctx, []generic.Assignment{
			assignment("a1", 1, "2025-01-01", "2025-01-31"),
			assignment("a2", 2, "2025-02-01", "2025-02-28"),
		})
		if n != 2 {
			t.Errorf("inserted %d, want 2", n)
		}
		return err
	})
	require.NoError(t, err)

	feb := generic.Period{Start: generic.MustParseDate("2025-02-10"), End: generic.MustParseDate("2025-02-11")}
	got, err := mem.ListAssignments(ctx, generic.AssignmentFilter{Window: &feb})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, generic.AssignmentID("a2"), got[0].ID)
}

func TestMemory_NotFound(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	_, err := mem.GetWorker(ctx, 9)
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = mem.GetAssignment(ctx, "x")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	_, err = mem.GetPayment(ctx, "x")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.ErrorIs(t, mem.DeleteAssignment(ctx, "x"), generic.ErrNotFound)
}

func TestMemory_PaymentFilter(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jan := generic.Period{Start: generic.MustParseDate("2025-01-01"), End: generic.MustParseDate("2025-01-15")}

	require.NoError(t, mem.InsertPayment(ctx, generic.PaymentRecord{ID: "p1", WorkerID: 1, Period: jan, Status: generic.PaymentPending}))
	require.NoError(t, mem.InsertPayment(ctx, generic.PaymentRecord{ID: "p2", WorkerID: 1, Period: jan, Status: generic.PaymentCancelled}))
	require.NoError(t, mem.InsertPayment(ctx, generic.PaymentRecord{ID: "p3", WorkerID: 1, Period: jan, Status: generic.PaymentPending, IsAdvance: true}))

	worker := generic.WorkerID(1)
	salary := false
	got, err := mem.ListPayments(ctx, generic.PaymentFilter{WorkerID: &worker, IsAdvance: &salary, Window: &jan})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, generic.PaymentID("p1"), got[0].ID)

	got, err = mem.ListPayments(ctx, generic.PaymentFilter{IncludeCancelled: true})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
