/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags for the shape of the
  payload (required fields, date layout, numeric strings). Business rules
  (shift formats, date ranges, pay rates, transitions) stay in the core so
  that library callers get the same codes as HTTP callers.

MONEY:
  Decimals travel as strings ("800", "714.29") to avoid float rounding.

SEE ALSO:
  - handlers.go: Uses these types
  - generic/result.go: Result envelope embedded in operation responses
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/staffing-engine/generic"
)

// =============================================================================
// SEEDING
// =============================================================================

type CreateWorkerRequest struct {
	ID   int64  `json:"id" validate:"required,gt=0"`
	Name string `json:"name" validate:"required"`
}

type CreateClientRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// AttendanceRequest records one daily clock-in/clock-out row.
// Blank clock fields are accepted and skipped at payroll time.
type AttendanceRequest struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignmentId" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	ClockIn      string `json:"clockIn"`
	ClockOut     string `json:"clockOut"`
	TotalWorked  string `json:"totalWorked"`
}

// =============================================================================
// SCHEDULING
// =============================================================================

type ShiftRequest struct {
	WorkerID      int64  `json:"workerId"`
	StartDate     string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate       string `json:"endDate" validate:"required,datetime=2006-01-02"`
	ShiftStart    string `json:"shiftStart"`
	ShiftEnd      string `json:"shiftEnd"`
	PayRatePerDay string `json:"payRatePerDay" validate:"required,numeric"`
	Mode          string `json:"attendanceMode"`
}

// ScheduleRequest is a batch of shifts for one client. An empty batch is
// passed through so the core reports it.
type ScheduleRequest struct {
	Shifts []ShiftRequest `json:"shifts" validate:"dive"`
}

type UpdateAssignmentRequest struct {
	StartDate     *string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate       *string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	ShiftStart    *string `json:"shiftStart"`
	ShiftEnd      *string `json:"shiftEnd"`
	PayRatePerDay *string `json:"payRatePerDay" validate:"omitempty,numeric"`
	Status        *string `json:"status" validate:"omitempty,oneof=active completed cancelled"`

	CalculatedAttendanceDays *string    `json:"calculatedAttendanceDays" validate:"omitempty,numeric"`
	ShiftStartedAt           *time.Time `json:"shiftStartedAt"`
	ShiftEndedAt             *time.Time `json:"shiftEndedAt"`
}

type CompleteAssignmentRequest struct {
	EndDate string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// AssignmentDTO represents an assignment in API responses.
type AssignmentDTO struct {
	ID                       string     `json:"id"`
	WorkerID                 int64      `json:"workerId"`
	ClientID                 string     `json:"clientId"`
	StartDate                string     `json:"startDate"`
	EndDate                  string     `json:"endDate,omitempty"`
	ShiftStart               string     `json:"shiftStart"`
	ShiftEnd                 string     `json:"shiftEnd"`
	PayRatePerDay            string     `json:"payRatePerDay"`
	Status                   string     `json:"status"`
	Mode                     string     `json:"attendanceMode"`
	CalculatedAttendanceDays string     `json:"calculatedAttendanceDays,omitempty"`
	ShiftStartedAt           *time.Time `json:"shiftStartedAt,omitempty"`
	ShiftEndedAt             *time.Time `json:"shiftEndedAt,omitempty"`
}

func toAssignmentDTO(a generic.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:             string(a.ID),
		WorkerID:       int64(a.WorkerID),
		ClientID:       string(a.ClientID),
		StartDate:      a.StartDate.String(),
		ShiftStart:     a.ShiftStart,
		ShiftEnd:       a.ShiftEnd,
		PayRatePerDay:  a.PayRatePerDay.String(),
		Status:         string(a.Status),
		Mode:           string(a.EffectiveMode()),
		ShiftStartedAt: a.ShiftStartedAt,
		ShiftEndedAt:   a.ShiftEndedAt,
	}
	if a.EndDate != nil {
		dto.EndDate = a.EndDate.String()
	}
	if a.EffectiveMode() == generic.ModeShiftBlock {
		dto.CalculatedAttendanceDays = a.CalculatedAttendanceDays.String()
	}
	return dto
}

// =============================================================================
// PAYROLL
// =============================================================================

// PeriodRequest names an inclusive pay period.
type PeriodRequest struct {
	From              string `json:"from" validate:"required,datetime=2006-01-02"`
	To                string `json:"to" validate:"required,datetime=2006-01-02"`
	ExistingPaymentID string `json:"existingPaymentId"`
}

// PaymentDTO represents a payment record in API responses.
type PaymentDTO struct {
	ID                string                  `json:"id"`
	WorkerID          int64                   `json:"workerId"`
	PeriodStart       string                  `json:"periodStart"`
	PeriodEnd         string                  `json:"periodEnd"`
	DaysWorked        string                  `json:"daysWorked"`
	HoursWorked       string                  `json:"hoursWorked"`
	BillableHours     string                  `json:"billableHours"`
	GrossSalary       string                  `json:"grossSalary"`
	Bonus             string                  `json:"bonus"`
	Deduction         string                  `json:"deduction"`
	NetSalary         string                  `json:"netSalary"`
	AverageHourlyRate string                  `json:"averageHourlyRate"`
	Status            string                  `json:"status"`
	Reviewed          bool                    `json:"reviewed"`
	IsAdvance         bool                    `json:"isAdvance"`
	Info              string                  `json:"info"`
	SkippedCount      int                     `json:"skippedCount"`
	SkippedDetail     []generic.SkippedRecord `json:"skippedDetail,omitempty"`
}

func toPaymentDTO(p generic.PaymentRecord) PaymentDTO {
	money := func(d decimal.Decimal) string { return d.StringFixed(2) }
	return PaymentDTO{
		ID:                string(p.ID),
		WorkerID:          int64(p.WorkerID),
		PeriodStart:       p.Period.Start.String(),
		PeriodEnd:         p.Period.End.String(),
		DaysWorked:        generic.FormatQuantity(p.DaysWorked),
		HoursWorked:       generic.FormatQuantity(p.HoursWorked),
		BillableHours:     generic.FormatQuantity(p.BillableHours),
		GrossSalary:       money(p.GrossSalary),
		Bonus:             money(p.Bonus),
		Deduction:         money(p.Deduction),
		NetSalary:         money(p.NetSalary),
		AverageHourlyRate: money(p.AverageHourlyRate),
		Status:            string(p.Status),
		Reviewed:          p.Reviewed,
		IsAdvance:         p.IsAdvance,
		Info:              p.Info,
		SkippedCount:      p.SkippedCount,
		SkippedDetail:     p.SkippedDetail,
	}
}

// PaymentResponse is the outcome of a salary or advance calculation.
type PaymentResponse struct {
	generic.Result
	Payment        *PaymentDTO `json:"payment,omitempty"`
	ConflictingIDs []string    `json:"conflictingIds,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // attendance mode the scenario exercises
}

// LoadScenarioRequest selects a demo scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is returned for malformed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
