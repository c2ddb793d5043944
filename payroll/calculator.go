/*
calculator.go - Salary and advance calculation for one worker and one pay period

PURPOSE:
  Produces a payment record from a worker's assignments and attendance.
  Two records of the same kind (salary or advance) for one worker may
  never cover overlapping pay periods unless one of them is cancelled.

SALARY FLOW:
  1. Period sanity: start <= end (ValidationError)
  2. Worker exists; existing payment id, if given, exists (ReferentialError)
  3. Overlap check against non-cancelled salary records, excluding the
     record being recalculated (ConflictError lists the clashing ids)
  4. Load non-cancelled assignments intersecting the period
     - none: success with zero pay, nothing persisted
  5. Load attendance for those assignments, aggregate (attendance package)
  6. Round money and hours to 2 dp, average hourly = gross / actual hours
  7. Insert (new) or update (recalculation) with status pending, reviewed=false

ADVANCE FLOW:
  Same checks against advance records. Pay is rate * days of each
  assignment inside the period, ignoring attendance.

DUPLICATE CALLS:
  Identical concurrent calls are collapsed with singleflight and share
  one result. The overlap check is repeated inside the write transaction.

SEE ALSO:
  - attendance/aggregator.go: Billable hours and the info string
  - batch.go: Runs the calculator for every worker in a period
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/warp/staffing-engine/attendance"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/metrics"
	"github.com/warp/staffing-engine/shift"
)

// NoAssignmentsInfo is the info line of a zero-pay result.
const NoAssignmentsInfo = "No active assignments in period"

const (
	kindSalary  = "salary"
	kindAdvance = "advance"
)

// Calculator computes and persists payment records.
type Calculator struct {
	store  generic.TxStore
	logger zerolog.Logger
	now    func() time.Time
	newID  func() generic.PaymentID
	sf     singleflight.Group
}

// Option configures a Calculator.
type Option func(*Calculator)

func WithLogger(l zerolog.Logger) Option { return func(c *Calculator) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *Calculator) { c.now = now } }

func NewCalculator(store generic.TxStore, opts ...Option) *Calculator {
	c := &Calculator{
		store:  store,
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  func() generic.PaymentID { return generic.PaymentID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalculationResult is the outcome of a salary or advance calculation.
type CalculationResult struct {
	generic.Result
	Payment        *generic.PaymentRecord `json:"payment,omitempty"`
	ConflictingIDs []string               `json:"conflictingIds,omitempty"`
}

func failed(err error) CalculationResult {
	res := CalculationResult{Result: generic.ResultFromError(err)}
	var ce *generic.ConflictError
	if errors.As(err, &ce) {
		res.ConflictingIDs = ce.ExistingIDs
	}
	return res
}

// =============================================================================
// SALARY
// =============================================================================

// CalculateSalary computes the salary of workerID for period. A non-empty
// existingID recalculates that record in place, keeping its bonus and deduction.
// Concurrent identical calls share one calculation, which is not cancelled
// when the caller that started it goes away.
func (c *Calculator) CalculateSalary(ctx context.Context, workerID generic.WorkerID, period generic.Period, existingID generic.PaymentID) CalculationResult {
	key := fmt.Sprintf("%s:%d:%s:%s", kindSalary, workerID, period, existingID)
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.calculateSalary(shared, workerID, period, existingID), nil
	})
	return v.(CalculationResult)
}

func (c *Calculator) calculateSalary(ctx context.Context, workerID generic.WorkerID, period generic.Period, existingID generic.PaymentID) CalculationResult {
	log := c.logger.With().Int64("worker", int64(workerID)).Str("period", period.String()).Logger()

	existing, err := c.preconditions(ctx, workerID, period, existingID, false)
	if err != nil {
		return c.reject(log, kindSalary, err)
	}

	assignments, err := c.store.ListAssignments(ctx, generic.AssignmentFilter{
		WorkerIDs: []generic.WorkerID{workerID},
		Window:    &period,
	})
	if err != nil {
		return c.reject(log, kindSalary, fmt.Errorf("load assignments: %w", err))
	}
	if len(assignments) == 0 {
		metrics.IncPayrollCalculation(kindSalary, "empty")
		log.Info().Msg("no assignments in period")
		res := CalculationResult{Result: generic.OK(NoAssignmentsInfo)}
		res.Payment = &generic.PaymentRecord{
			WorkerID:          workerID,
			Period:            period,
			DaysWorked:        decimal.Zero,
			HoursWorked:       decimal.Zero,
			BillableHours:     decimal.Zero,
			GrossSalary:       decimal.Zero,
			Bonus:             decimal.Zero,
			Deduction:         decimal.Zero,
			NetSalary:         decimal.Zero,
			AverageHourlyRate: decimal.Zero,
			Status:            generic.PaymentPending,
			Info:              NoAssignmentsInfo,
		}
		return res
	}

	ids := make([]generic.AssignmentID, len(assignments))
	for i, a := range assignments {
		ids[i] = a.ID
	}
	records, err := c.store.ListAttendance(ctx, ids, period)
	if err != nil {
		return c.reject(log, kindSalary, fmt.Errorf("load attendance: %w", err))
	}

	sum := attendance.Aggregate(assignments, records, period)
	for reason, n := range sum.SkipCounts() {
		metrics.AddAttendanceSkipped(string(reason), n)
	}

	rec := generic.PaymentRecord{
		WorkerID:          workerID,
		Period:            period,
		DaysWorked:        generic.Round2(sum.DaysWorked),
		HoursWorked:       generic.Round2(sum.ActualHours),
		BillableHours:     generic.Round2(sum.BillableHours),
		GrossSalary:       generic.Round2(sum.GrossPay),
		AverageHourlyRate: averageHourly(sum.GrossPay, sum.ActualHours),
		Info:              sum.Info(),
		SkippedCount:      len(sum.Skipped),
		SkippedDetail:     sum.Skipped,
	}

	saved, err := c.persist(ctx, rec, existing)
	if err != nil {
		return c.reject(log, kindSalary, err)
	}

	metrics.IncPayrollCalculation(kindSalary, "saved")
	log.Info().
		Str("payment", string(saved.ID)).
		Str("gross", saved.GrossSalary.String()).
		Int("records", len(records)).
		Int("skipped", saved.SkippedCount).
		Msg("salary calculated")

	return CalculationResult{
		Result:  generic.OK(fmt.Sprintf("salary for worker %d: %s", workerID, saved.Info)),
		Payment: saved,
	}
}

// =============================================================================
// ADVANCE
// =============================================================================

// CreateAdvanceSalary records an advance of rate * scheduled days for period.
func (c *Calculator) CreateAdvanceSalary(ctx context.Context, workerID generic.WorkerID, period generic.Period) CalculationResult {
	key := fmt.Sprintf("%s:%d:%s", kindAdvance, workerID, period)
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.createAdvance(shared, workerID, period), nil
	})
	return v.(CalculationResult)
}

func (c *Calculator) createAdvance(ctx context.Context, workerID generic.WorkerID, period generic.Period) CalculationResult {
	log := c.logger.With().Int64("worker", int64(workerID)).Str("period", period.String()).Bool("advance", true).Logger()

	if _, err := c.preconditions(ctx, workerID, period, "", true); err != nil {
		return c.reject(log, kindAdvance, err)
	}

	assignments, err := c.store.ListAssignments(ctx, generic.AssignmentFilter{
		WorkerIDs: []generic.WorkerID{workerID},
		Window:    &period,
	})
	if err != nil {
		return c.reject(log, kindAdvance, fmt.Errorf("load assignments: %w", err))
	}
	if len(assignments) == 0 {
		return c.reject(log, kindAdvance, &generic.ValidationError{
			Code:    generic.CodeNoAssignmentsInPeriod,
			Message: fmt.Sprintf("worker %d has no assignments in %s", workerID, period),
		})
	}

	sum := advanceSummary(assignments, period)
	rec := generic.PaymentRecord{
		WorkerID:          workerID,
		Period:            period,
		DaysWorked:        generic.Round2(sum.DaysWorked),
		HoursWorked:       generic.Round2(sum.ActualHours),
		BillableHours:     generic.Round2(sum.BillableHours),
		GrossSalary:       generic.Round2(sum.GrossPay),
		AverageHourlyRate: averageHourly(sum.GrossPay, sum.ActualHours),
		Info:              "Advance: " + sum.Info(),
		IsAdvance:         true,
	}

	saved, err := c.persist(ctx, rec, nil)
	if err != nil {
		return c.reject(log, kindAdvance, err)
	}

	metrics.IncPayrollCalculation(kindAdvance, "saved")
	log.Info().Str("payment", string(saved.ID)).Str("gross", saved.GrossSalary.String()).Msg("advance created")
	return CalculationResult{
		Result:  generic.OK(fmt.Sprintf("advance for worker %d: %s", workerID, saved.Info)),
		Payment: saved,
	}
}

// advanceSummary pays each assignment's rate for every day it covers in period.
func advanceSummary(assignments []generic.Assignment, period generic.Period) attendance.Summary {
	sum := attendance.Summary{
		DaysWorked:    decimal.Zero,
		ActualHours:   decimal.Zero,
		BillableHours: decimal.Zero,
		GrossPay:      decimal.Zero,
	}
	byRate := make(map[string]int)
	for _, a := range assignments {
		overlap, ok := a.Range().Intersect(period)
		if !ok {
			continue
		}
		days := decimal.NewFromInt(int64(overlap.DayCount()))
		hours := days.Mul(generic.HoursPerDay)
		if sh, err := shift.Parse(a.ShiftStart, a.ShiftEnd); err == nil && a.EffectiveMode() == generic.ModeDaily {
			hours = days.Mul(sh.Hours())
		}

		sum.Considered++
		sum.Paid++
		sum.DaysWorked = sum.DaysWorked.Add(days)
		sum.ActualHours = sum.ActualHours.Add(hours)
		sum.BillableHours = sum.BillableHours.Add(hours)
		sum.GrossPay = sum.GrossPay.Add(days.Mul(a.PayRatePerDay))

		key := a.PayRatePerDay.String()
		if i, seen := byRate[key]; seen {
			sum.Buckets[i].Days = sum.Buckets[i].Days.Add(days)
			continue
		}
		byRate[key] = len(sum.Buckets)
		sum.Buckets = append(sum.Buckets, attendance.RateBucket{Rate: a.PayRatePerDay, Days: days})
	}
	sort.Slice(sum.Buckets, func(i, j int) bool {
		return sum.Buckets[i].Rate.LessThan(sum.Buckets[j].Rate)
	})
	return sum
}

// =============================================================================
// SHARED STEPS
// =============================================================================

// preconditions validates the request and checks for overlapping records.
// It returns the record being recalculated, if any.
func (c *Calculator) preconditions(ctx context.Context, workerID generic.WorkerID, period generic.Period, existingID generic.PaymentID, advance bool) (*generic.PaymentRecord, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if workerID <= 0 {
		return nil, &generic.ValidationError{Code: generic.CodeInvalidWorkerID, Field: "workerId", Message: "worker id must be a positive integer"}
	}
	if _, err := c.store.GetWorker(ctx, workerID); err != nil {
		if errors.Is(err, generic.ErrNotFound) {
			return nil, &generic.ReferentialError{Entity: "worker", IDs: []string{workerID.String()}}
		}
		return nil, fmt.Errorf("load worker: %w", err)
	}

	var existing *generic.PaymentRecord
	if existingID != "" {
		p, err := c.store.GetPayment(ctx, existingID)
		switch {
		case errors.Is(err, generic.ErrNotFound):
			return nil, &generic.ReferentialError{Entity: "payment", IDs: []string{string(existingID)}}
		case err != nil:
			return nil, fmt.Errorf("load payment: %w", err)
		case p.WorkerID != workerID || p.IsAdvance != advance:
			return nil, &generic.ReferentialError{Entity: "payment", IDs: []string{string(existingID)}}
		}
		existing = p
	}

	if err := checkOverlap(ctx, c.store, workerID, period, existingID, advance); err != nil {
		return nil, err
	}
	return existing, nil
}

// checkOverlap rejects period if a non-cancelled record of the same kind covers
// any of its days. The record with excludeID is ignored.
func checkOverlap(ctx context.Context, s generic.PaymentStore, workerID generic.WorkerID, period generic.Period, excludeID generic.PaymentID, advance bool) error {
	payments, err := s.ListPayments(ctx, generic.PaymentFilter{
		WorkerID:  &workerID,
		IsAdvance: &advance,
		Window:    &period,
	})
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}

	var conflicts, ids []string
	for _, p := range payments {
		if p.ID == excludeID || !p.Period.Overlaps(period) {
			continue
		}
		ids = append(ids, string(p.ID))
		conflicts = append(conflicts, fmt.Sprintf("payment %s already covers %s", p.ID, p.Period))
	}
	if len(ids) > 0 {
		return &generic.ConflictError{Kind: generic.ConflictPayPeriod, Conflicts: conflicts, ExistingIDs: ids}
	}
	return nil
}

// persist inserts rec, or updates existing with rec's figures.
func (c *Calculator) persist(ctx context.Context, rec generic.PaymentRecord, existing *generic.PaymentRecord) (*generic.PaymentRecord, error) {
	now := c.now().UTC()
	rec.Status = generic.PaymentPending
	rec.Reviewed = false
	rec.UpdatedAt = now

	if existing != nil {
		rec.ID = existing.ID
		rec.Bonus = existing.Bonus
		rec.Deduction = existing.Deduction
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.ID = c.newID()
		rec.Bonus = decimal.Zero
		rec.Deduction = decimal.Zero
		rec.CreatedAt = now
	}
	rec.RecomputeNet()

	err := c.store.WithTx(ctx, func(tx generic.Store) error {
		if err := checkOverlap(ctx, tx, rec.WorkerID, rec.Period, rec.ID, rec.IsAdvance); err != nil {
			return err
		}
		if existing != nil {
			return tx.UpdatePayment(ctx, rec)
		}
		return tx.InsertPayment(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Calculator) reject(log zerolog.Logger, kind string, err error) CalculationResult {
	if generic.IsClientError(err) {
		metrics.IncPayrollCalculation(kind, "rejected")
		log.Info().Err(err).Msg("payroll calculation rejected")
	} else {
		metrics.IncPayrollCalculation(kind, "error")
		log.Error().Err(err).Msg("payroll calculation failed")
	}
	return failed(err)
}

func averageHourly(gross, hours decimal.Decimal) decimal.Decimal {
	if !hours.IsPositive() {
		return decimal.Zero
	}
	return generic.Round2(gross.Div(hours))
}
