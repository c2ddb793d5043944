/*
aggregator.go - Turns attendance into billable hours, days and gross pay

PURPOSE:
  Folds a worker's attendance for one pay period into totals the payroll
  calculator persists. Every input record is either paid or skipped with
  a reason; none is dropped silently.

DAILY MODE:
  One record per worked day. For each record:
    standard hours = length of the assignment's shift (24 for 00:00-00:00)
    billable       = min(worked, standard)
    hourly rate    = pay rate per day / standard hours
    earnings       = billable * hourly rate
    days           = 1 per paid record, whatever the hours
  Records with blank fields skip as MissingAttendanceData; records whose
  worked time does not parse or is not positive skip as
  InvalidOrZeroWorkedHours.

SHIFT-BLOCK MODE:
  One continuous block per assignment with pre-computed attendance days.
  A block that has not started skips as NotYetStarted (dated at the later
  of its start date and the period start), one still running skips as
  InProgress. A finished block pays days * rate and counts
  days * 24 hours.

CONSERVATION:
  paid records + skipped records = records considered, and in daily mode
  days worked = paid records.

SEE ALSO:
  - payroll/calculator.go: Persists the summary as a payment record
  - shift/validator.go: Shift lengths and worked-duration parsing
*/
package attendance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/shift"
)

// RateBucket is the number of days paid at one daily rate.
type RateBucket struct {
	Rate decimal.Decimal `json:"rate"`
	Days decimal.Decimal `json:"days"`
}

// Summary is the aggregate of one worker's attendance over a period.
type Summary struct {
	DaysWorked    decimal.Decimal
	ActualHours   decimal.Decimal
	BillableHours decimal.Decimal
	GrossPay      decimal.Decimal

	Buckets []RateBucket // ascending by rate
	Skipped []generic.SkippedRecord

	Considered int // records and blocks looked at
	Paid       int
}

// SkipCounts returns the number of skipped records per reason.
func (s Summary) SkipCounts() map[generic.SkipReason]int {
	counts := make(map[generic.SkipReason]int)
	for _, sk := range s.Skipped {
		counts[sk.Reason]++
	}
	return counts
}

// Info renders the human-readable breakdown, e.g.
//
//	12.5 days [10 days (500/day), 2.5 days (600/day)] | SKIPPED: 3 records (2 missing data, 1 invalid hours)
func (s Summary) Info() string {
	var b strings.Builder
	b.WriteString(generic.FormatQuantity(s.DaysWorked))
	b.WriteString(" days")

	if len(s.Buckets) > 0 {
		parts := make([]string, len(s.Buckets))
		for i, bk := range s.Buckets {
			parts[i] = fmt.Sprintf("%s days (%s/day)", generic.FormatQuantity(bk.Days), generic.FormatQuantity(bk.Rate))
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("]")
	}

	if len(s.Skipped) > 0 {
		counts := s.SkipCounts()
		var parts []string
		for _, r := range generic.SkipReasons {
			if n := counts[r]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, r.Label()))
			}
		}
		fmt.Fprintf(&b, " | SKIPPED: %d records (%s)", len(s.Skipped), strings.Join(parts, ", "))
	}
	return b.String()
}

// =============================================================================
// AGGREGATE
// =============================================================================

type accumulator struct {
	sum     Summary
	buckets map[string]*RateBucket
}

func (acc *accumulator) skip(sk generic.SkippedRecord) {
	acc.sum.Considered++
	acc.sum.Skipped = append(acc.sum.Skipped, sk)
}

func (acc *accumulator) pay(rate, days, actual, billable, earnings decimal.Decimal) {
	acc.sum.Considered++
	acc.sum.Paid++
	acc.sum.DaysWorked = acc.sum.DaysWorked.Add(days)
	acc.sum.ActualHours = acc.sum.ActualHours.Add(actual)
	acc.sum.BillableHours = acc.sum.BillableHours.Add(billable)
	acc.sum.GrossPay = acc.sum.GrossPay.Add(earnings)

	key := rate.String()
	bk, ok := acc.buckets[key]
	if !ok {
		bk = &RateBucket{Rate: rate, Days: decimal.Zero}
		acc.buckets[key] = bk
	}
	bk.Days = bk.Days.Add(days)
}

// Aggregate folds records and shift blocks into a Summary. Records are
// expected to be dated within period; assignments are the worker's
// non-cancelled assignments intersecting period.
func Aggregate(assignments []generic.Assignment, records []generic.AttendanceRecord, period generic.Period) Summary {
	acc := &accumulator{
		sum: Summary{
			DaysWorked:    decimal.Zero,
			ActualHours:   decimal.Zero,
			BillableHours: decimal.Zero,
			GrossPay:      decimal.Zero,
		},
		buckets: make(map[string]*RateBucket),
	}

	byID := make(map[generic.AssignmentID]generic.Assignment, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a
	}

	for _, r := range records {
		aggregateDaily(acc, byID, r)
	}
	for _, a := range assignments {
		if a.EffectiveMode() == generic.ModeShiftBlock && !a.IsCancelled() {
			aggregateBlock(acc, a, period)
		}
	}

	for _, bk := range acc.buckets {
		acc.sum.Buckets = append(acc.sum.Buckets, *bk)
	}
	sort.Slice(acc.sum.Buckets, func(i, j int) bool {
		return acc.sum.Buckets[i].Rate.LessThan(acc.sum.Buckets[j].Rate)
	})
	return acc.sum
}

func aggregateDaily(acc *accumulator, byID map[generic.AssignmentID]generic.Assignment, r generic.AttendanceRecord) {
	date := r.Date
	skipped := func(reason generic.SkipReason, detail string) generic.SkippedRecord {
		return generic.SkippedRecord{
			RecordID:     string(r.ID),
			AssignmentID: r.AssignmentID,
			Date:         &date,
			Reason:       reason,
			Detail:       detail,
		}
	}

	a, ok := byID[r.AssignmentID]
	switch {
	case !ok || a.IsCancelled():
		acc.skip(skipped(generic.SkipNoValidAssignment, "no active assignment for record"))
		return
	case a.EffectiveMode() != generic.ModeDaily:
		acc.skip(skipped(generic.SkipNoValidAssignment, "assignment is paid per shift block"))
		return
	case !a.Range().Contains(r.Date):
		acc.skip(skipped(generic.SkipNoValidAssignment, "record date outside assignment"))
		return
	}

	sh, err := shift.Parse(a.ShiftStart, a.ShiftEnd)
	if err != nil {
		acc.skip(skipped(generic.SkipNoValidAssignment, "assignment shift is invalid"))
		return
	}

	if strings.TrimSpace(r.ClockIn) == "" || strings.TrimSpace(r.ClockOut) == "" || strings.TrimSpace(r.TotalWorked) == "" {
		acc.skip(skipped(generic.SkipMissingAttendanceData, ""))
		return
	}

	worked, err := shift.ParseWorkedDuration(r.TotalWorked)
	if err != nil || !worked.IsPositive() {
		acc.skip(skipped(generic.SkipInvalidOrZeroWorkedHours, fmt.Sprintf("total worked %q", r.TotalWorked)))
		return
	}

	std := sh.Hours()
	billable := decimal.Min(worked, std)
	hourly := a.PayRatePerDay.Div(std)
	acc.pay(a.PayRatePerDay, decimal.NewFromInt(1), worked, billable, billable.Mul(hourly))
}

func aggregateBlock(acc *accumulator, a generic.Assignment, period generic.Period) {
	start := a.StartDate
	skipped := func(reason generic.SkipReason) generic.SkippedRecord {
		return generic.SkippedRecord{
			RecordID:     string(a.ID),
			AssignmentID: a.ID,
			Date:         &start,
			Reason:       reason,
		}
	}

	if a.ShiftStartedAt == nil {
		if a.Range().Overlaps(period) {
			if start.Before(period.Start) {
				start = period.Start
			}
			acc.skip(skipped(generic.SkipNotYetStarted))
		}
		return
	}

	started := generic.DateOf(*a.ShiftStartedAt)
	if a.ShiftEndedAt == nil {
		if started.BeforeOrEqual(period.End) {
			start = started
			acc.skip(skipped(generic.SkipInProgress))
		}
		return
	}

	block := generic.Period{Start: started, End: generic.DateOf(*a.ShiftEndedAt)}
	if !block.Overlaps(period) {
		return
	}

	days := a.CalculatedAttendanceDays
	if !days.IsPositive() {
		elapsed := a.ShiftEndedAt.Sub(*a.ShiftStartedAt).Hours()
		days = generic.Round2(decimal.NewFromFloat(elapsed).Div(generic.HoursPerDay))
	}
	if !days.IsPositive() {
		acc.skip(skipped(generic.SkipInvalidOrZeroWorkedHours))
		return
	}

	hours := days.Mul(generic.HoursPerDay)
	acc.pay(a.PayRatePerDay, days, hours, hours, days.Mul(a.PayRatePerDay))
}
