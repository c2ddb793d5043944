/*
assignment.go - Worker-to-client shift assignments

PURPOSE:
  An assignment places one worker at one client for a range of calendar
  dates, on a daily wall-clock shift (e.g. 22:00-06:00), at a pay rate per
  day. This file defines the proposed (not yet persisted) and the persisted
  forms.

KEY CONCEPTS:
  ProposedAssignment:
    Created by the caller per scheduling batch. Always has an end date.
    Consumed by the scheduler and discarded.

  Assignment:
    The persisted record. Carries an id, a lifecycle status and an
    optional end date (nil = open-ended). Shift-block assignments also
    carry pre-computed attendance days and the actual block timestamps.

LIFECYCLE:
  active -> completed   explicit end-date action
  active -> cancelled   explicit cancellation
  active -> (deleted)   only when no attendance rows reference it

SEE ALSO:
  - scheduling/scheduler.go: Conflict detection and insert
  - scheduling/lifecycle.go: Update, complete, delete
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenEnd stands in for the end date of an open-ended assignment.
var OpenEnd = NewTimePoint(9999, time.December, 31)

// ProposedAssignment is one row of a scheduling batch.
type ProposedAssignment struct {
	WorkerID      WorkerID
	ClientID      ClientID
	StartDate     TimePoint
	EndDate       TimePoint
	ShiftStart    string
	ShiftEnd      string
	PayRatePerDay decimal.Decimal
	Mode          AttendanceMode
}

// Range returns the proposed date range.
func (p ProposedAssignment) Range() Period {
	return Period{Start: p.StartDate, End: p.EndDate}
}

// Assignment is a persisted worker-to-client assignment.
type Assignment struct {
	ID            AssignmentID
	WorkerID      WorkerID
	ClientID      ClientID
	StartDate     TimePoint
	EndDate       *TimePoint // nil = open-ended
	ShiftStart    string
	ShiftEnd      string
	PayRatePerDay decimal.Decimal
	Status        AssignmentStatus
	Mode          AttendanceMode

	// Shift-block mode only.
	CalculatedAttendanceDays decimal.Decimal
	ShiftStartedAt           *time.Time
	ShiftEndedAt             *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Range returns the assignment's date range; open-ended assignments run to OpenEnd.
func (a Assignment) Range() Period {
	end := OpenEnd
	if a.EndDate != nil {
		end = *a.EndDate
	}
	return Period{Start: a.StartDate, End: end}
}

// IsCancelled reports whether the assignment is out of the schedule.
func (a Assignment) IsCancelled() bool { return a.Status == AssignmentCancelled }

// EffectiveMode defaults an empty mode to daily.
func (a Assignment) EffectiveMode() AttendanceMode {
	if a.Mode == "" {
		return ModeDaily
	}
	return a.Mode
}

// AssignmentPatch carries the fields of an update; nil fields are unchanged.
type AssignmentPatch struct {
	StartDate     *TimePoint
	EndDate       *TimePoint
	ShiftStart    *string
	ShiftEnd      *string
	PayRatePerDay *decimal.Decimal
	Status        *AssignmentStatus

	CalculatedAttendanceDays *decimal.Decimal
	ShiftStartedAt           *time.Time
	ShiftEndedAt             *time.Time
}

// TouchesSchedule reports whether the patch changes dates or shift times.
func (p AssignmentPatch) TouchesSchedule() bool {
	return p.StartDate != nil || p.EndDate != nil || p.ShiftStart != nil || p.ShiftEnd != nil
}
