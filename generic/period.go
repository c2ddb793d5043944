package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive calendar date range
// =============================================================================

// Period is an inclusive range of calendar dates [Start, End].
// Assignment date ranges and pay periods are both Periods.
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod parses two YYYY-MM-DD strings into a Period without validating order.
func NewPeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: s, End: e}, nil
}

// Validate returns a ValidationError for a missing bound or when End is before Start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Code: CodeMissingField, Field: "period", Message: "period start and end are required"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{
			Code:    CodeInvalidDateRange,
			Field:   "period",
			Message: fmt.Sprintf("period end %s is before start %s", p.End, p.Start),
		}
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps is the inclusive interval test start1 <= end2 && end1 >= start2.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && p.End.AfterOrEqual(other.Start)
}

// Intersect returns the shared days of two periods.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	out := p
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// DayCount is the number of calendar days in the period, both ends included.
func (p Period) DayCount() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Instants returns the half-open instant window [Start 00:00, End+1 00:00).
func (p Period) Instants() (time.Time, time.Time) {
	return p.Start.StartOfDay(), p.End.EndOfDay()
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Span returns the smallest period covering every given period.
func Span(periods ...Period) Period {
	var out Period
	for i, p := range periods {
		if i == 0 || p.Start.Before(out.Start) {
			out.Start = p.Start
		}
		if i == 0 || p.End.After(out.End) {
			out.End = p.End
		}
	}
	return out
}

// =============================================================================
// PAY CYCLE - Derives pay periods for the scheduled payroll run
// =============================================================================

// PayCycle defines how pay periods are laid out on the calendar.
type PayCycle string

const (
	CycleWeekly      PayCycle = "weekly"       // Monday - Sunday
	CycleBiweekly    PayCycle = "biweekly"     // 14 days from an anchor Monday
	CycleSemiMonthly PayCycle = "semi_monthly" // 1-15, 16-end of month
	CycleMonthly     PayCycle = "monthly"      // 1 - end of month
)

// biweeklyAnchor is the first day of a known biweekly period.
var biweeklyAnchor = NewTimePoint(2024, time.January, 1)

// Valid reports whether c is a known cycle.
func (c PayCycle) Valid() bool {
	switch c {
	case CycleWeekly, CycleBiweekly, CycleSemiMonthly, CycleMonthly:
		return true
	}
	return false
}

// PeriodFor returns the pay period that contains the given date.
func (c PayCycle) PeriodFor(date TimePoint) Period {
	switch c {
	case CycleWeekly:
		offset := (int(date.Weekday()) + 6) % 7
		start := date.AddDays(-offset)
		return Period{Start: start, End: start.AddDays(6)}

	case CycleBiweekly:
		days := DaysBetween(biweeklyAnchor, date)
		offset := ((days % 14) + 14) % 14
		start := date.AddDays(-offset)
		return Period{Start: start, End: start.AddDays(13)}

	case CycleSemiMonthly:
		if date.Day() <= 15 {
			return Period{
				Start: StartOfMonth(date.Year(), date.Month()),
				End:   NewTimePoint(date.Year(), date.Month(), 15),
			}
		}
		return Period{
			Start: NewTimePoint(date.Year(), date.Month(), 16),
			End:   EndOfMonth(date.Year(), date.Month()),
		}

	default:
		return Period{
			Start: StartOfMonth(date.Year(), date.Month()),
			End:   EndOfMonth(date.Year(), date.Month()),
		}
	}
}

// PreviousPeriod returns the last fully closed period before the one containing date.
func (c PayCycle) PreviousPeriod(date TimePoint) Period {
	current := c.PeriodFor(date)
	return c.PeriodFor(current.Start.AddDays(-1))
}
