/*
Package generic provides the core types of the staffing engine.

PURPOSE:
  This package contains the value types, records, errors and storage
  interfaces shared by the scheduling and payroll packages. It knows
  nothing about how conflicts are detected or how pay is computed; it
  only defines what an assignment, an attendance record and a payment
  record look like and how they are persisted.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: WorkerID (positive integer), ClientID, AssignmentID, PaymentID
  - Decimal helpers: all money, rates, hours and day counts are decimal.Decimal
  - Statuses: assignment lifecycle, worker status, payment status

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing worker/client IDs
  3. Plain data: records carry no behavior beyond small derived accessors

SEE ALSO:
  - models.go: Worker, Client, Assignment, AttendanceRecord, PaymentRecord
  - errors.go: Error taxonomy (validation, referential, conflict, partial failure)
  - store.go: Persistence interfaces
*/
package generic

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID int64
type ClientID string
type AssignmentID string
type PaymentID string
type RecordID string

func (id WorkerID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseWorkerID parses a decimal worker id. It does not check positivity.
func ParseWorkerID(s string) (WorkerID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return WorkerID(n), nil
}

// =============================================================================
// STATUSES
// =============================================================================

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

type WorkerStatus string

const (
	WorkerUnassigned WorkerStatus = "unassigned"
	WorkerAssigned   WorkerStatus = "assigned"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

// AttendanceMode selects how attendance is tracked for one assignment.
// The two modes are never mixed within an assignment.
type AttendanceMode string

const (
	ModeDaily      AttendanceMode = "daily"
	ModeShiftBlock AttendanceMode = "shift_block"
)

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// HoursPerDay is the hour count of a shift-block day and of a 24-hour shift.
var HoursPerDay = decimal.NewFromInt(24)

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// MustParseDecimal is for literals in tests and fixtures; it panics on invalid input.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// FormatQuantity renders a day count or rate without trailing zeros ("12.5", "500").
func FormatQuantity(d decimal.Decimal) string {
	return d.Round(2).String()
}
