package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// Worker is a placeable worker.
type Worker struct {
	ID     WorkerID     `json:"id"`
	Name   string       `json:"name"`
	Status WorkerStatus `json:"status"`
}

// Client is an agency client that receives shifts.
type Client struct {
	ID   ClientID `json:"id"`
	Name string   `json:"name"`
}

// AttendanceRecord is one daily clock-in/clock-out row.
// Blank fields are kept as blank strings; the aggregator skips them with a reason.
type AttendanceRecord struct {
	ID           RecordID
	AssignmentID AssignmentID
	WorkerID     WorkerID
	Date         TimePoint
	ClockIn      string
	ClockOut     string
	TotalWorked  string // "HH:MM[:SS]" or decimal hours
}

// =============================================================================
// SKIPPED RECORDS
// =============================================================================

// SkipReason says why an attendance record could not be paid.
type SkipReason string

const (
	SkipMissingAttendanceData    SkipReason = "MissingAttendanceData"
	SkipInvalidOrZeroWorkedHours SkipReason = "InvalidOrZeroWorkedHours"
	SkipNotYetStarted            SkipReason = "NotYetStarted"
	SkipInProgress               SkipReason = "InProgress"
	SkipNoValidAssignment        SkipReason = "NoValidAssignment"
)

// SkipReasons lists every reason in summary order.
var SkipReasons = []SkipReason{
	SkipMissingAttendanceData,
	SkipInvalidOrZeroWorkedHours,
	SkipNotYetStarted,
	SkipInProgress,
	SkipNoValidAssignment,
}

// Label is the short form used in info strings.
func (r SkipReason) Label() string {
	switch r {
	case SkipMissingAttendanceData:
		return "missing data"
	case SkipInvalidOrZeroWorkedHours:
		return "invalid hours"
	case SkipNotYetStarted:
		return "not yet started"
	case SkipInProgress:
		return "in progress"
	case SkipNoValidAssignment:
		return "no valid assignment"
	}
	return string(r)
}

// SkippedRecord is retained for every record the aggregator could not pay.
type SkippedRecord struct {
	RecordID     string       `json:"recordId"`
	AssignmentID AssignmentID `json:"assignmentId,omitempty"`
	Date         *TimePoint   `json:"date,omitempty"`
	Reason       SkipReason   `json:"reason"`
	Detail       string       `json:"detail,omitempty"`
}

// =============================================================================
// PAYMENT RECORD
// =============================================================================

// PaymentRecord is a persisted salary or advance calculation.
// Invariant: non-cancelled records of the same kind for a worker never overlap.
type PaymentRecord struct {
	ID                PaymentID
	WorkerID          WorkerID
	Period            Period
	DaysWorked        decimal.Decimal
	HoursWorked       decimal.Decimal
	BillableHours     decimal.Decimal
	GrossSalary       decimal.Decimal
	Bonus             decimal.Decimal
	Deduction         decimal.Decimal
	NetSalary         decimal.Decimal
	AverageHourlyRate decimal.Decimal
	Status            PaymentStatus
	Reviewed          bool
	Info              string
	SkippedCount      int
	SkippedDetail     []SkippedRecord
	IsAdvance         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RecomputeNet applies net = gross + bonus - deduction.
func (p *PaymentRecord) RecomputeNet() {
	p.NetSalary = p.GrossSalary.Add(p.Bonus).Sub(p.Deduction)
}
