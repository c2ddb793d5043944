package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/shift"
)

func testSlot(t *testing.T, label string, worker generic.WorkerID, from, to, start, end string) slot {
	t.Helper()
	sh, err := shift.Parse(start, end)
	require.NoError(t, err)
	return slot{
		label:  label,
		worker: worker,
		dates:  generic.Period{Start: generic.MustParseDate(from), End: generic.MustParseDate(to)},
		times:  start + "-" + end,
		shift:  sh,
	}
}

func TestDetectConflicts_Deduplicated(t *testing.T) {
	p := testSlot(t, "shift #1", 1, "2025-03-01", "2025-03-31", "22:00", "06:00")
	e := testSlot(t, "existing assignment a1", 1, "2025-03-15", "2025-04-15", "05:00", "05:30")

	// Same persisted row returned twice (e.g. by an overlapping read)
	got := detectConflicts([]slot{p}, []slot{e, e})

	require.Len(t, got, 1)
	assert.Equal(t, "worker 1: shift #1 2025-03-01..2025-03-31 22:00-06:00 overlaps existing assignment a1 2025-03-15..2025-04-15 05:00-05:30", got[0])
}

func TestDetectConflicts_OtherWorkerNeverConflicts(t *testing.T) {
	a := testSlot(t, "shift #1", 1, "2025-03-01", "2025-03-31", "00:00", "00:00")
	b := testSlot(t, "shift #2", 2, "2025-03-01", "2025-03-31", "00:00", "00:00")

	assert.Empty(t, detectConflicts([]slot{a, b}, nil))
}

func TestDetectConflicts_DateOverlapAloneIsNotEnough(t *testing.T) {
	a := testSlot(t, "shift #1", 1, "2025-03-01", "2025-03-31", "22:00", "06:00")
	b := testSlot(t, "shift #2", 1, "2025-03-01", "2025-03-31", "06:00", "07:00")

	assert.Empty(t, detectConflicts([]slot{a, b}, nil))
}

func TestExistingSlots_UnparseableShiftBlocksWholeDay(t *testing.T) {
	end := generic.MustParseDate("2025-03-31")
	slots := existingSlots([]generic.Assignment{{
		ID: "legacy", WorkerID: 1, StartDate: generic.MustParseDate("2025-03-01"), EndDate: &end,
		ShiftStart: "9am", ShiftEnd: "5pm",
	}})

	require.Len(t, slots, 1)
	assert.True(t, slots[0].shift.Interval.IsFullDay())
}
