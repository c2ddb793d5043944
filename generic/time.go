package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date used for assignment ranges and pay periods
// =============================================================================

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date, held as midnight UTC. The zero value is "no date".
type TimePoint struct {
	t time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

func Today() TimePoint { return DateOf(time.Now()) }

func (d TimePoint) Before(o TimePoint) bool        { return d.t.Before(o.t) }
func (d TimePoint) After(o TimePoint) bool         { return d.t.After(o.t) }
func (d TimePoint) Equal(o TimePoint) bool         { return d.t.Equal(o.t) }
func (d TimePoint) BeforeOrEqual(o TimePoint) bool { return !d.t.After(o.t) }
func (d TimePoint) AfterOrEqual(o TimePoint) bool  { return !d.t.Before(o.t) }

func (d TimePoint) AddDays(n int) TimePoint { return TimePoint{t: d.t.AddDate(0, 0, n)} }

func (d TimePoint) Year() int             { return d.t.Year() }
func (d TimePoint) Month() time.Month     { return d.t.Month() }
func (d TimePoint) Day() int              { return d.t.Day() }
func (d TimePoint) Weekday() time.Weekday { return d.t.Weekday() }
func (d TimePoint) IsZero() bool          { return d.t.IsZero() }

// StartOfDay and EndOfDay bound the date as UTC instants, end exclusive.
func (d TimePoint) StartOfDay() time.Time { return d.t }
func (d TimePoint) EndOfDay() time.Time   { return d.t.AddDate(0, 0, 1) }

func (d TimePoint) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d TimePoint) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *TimePoint) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = TimePoint{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween counts calendar days from from to to; negative when to is earlier.
func DaysBetween(from, to TimePoint) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month+1, 1).AddDays(-1)
}
