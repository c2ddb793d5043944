/*
interval.go - Wall-clock shift intervals and overlap detection

PURPOSE:
  A shift repeats every day at the same wall-clock times. Whether two
  shifts collide on a shared calendar day depends only on their
  time-of-day windows, which this file models as half-open intervals of
  seconds since midnight.

WRAPAROUND:
  22:00-06:00 ends "before" it starts. It is split into two segments,
  [22:00, 24:00) and [00:00, 06:00), and each segment is compared on its
  own. 00:00-00:00 is the canonical 24-hour shift [0, 86400) and overlaps
  every non-empty interval.

INVARIANTS:
  - Overlaps(a, b) == Overlaps(b, a) for every pair
  - Overlaps never errors; malformed strings are rejected by Parse first

SEE ALSO:
  - validator.go: Parses "HH:MM[:SS]" strings into intervals
*/
package shift

import "fmt"

// SecondsPerDay is the length of the wall clock.
const SecondsPerDay = 86400

// TimeInterval is [StartSeconds, EndSeconds) on a 24-hour clock.
// EndSeconds <= StartSeconds means the interval wraps past midnight,
// except for the full day {0, 86400}.
type TimeInterval struct {
	StartSeconds int
	EndSeconds   int
}

// FullDay is the 24-hour interval.
var FullDay = TimeInterval{StartSeconds: 0, EndSeconds: SecondsPerDay}

// IsFullDay reports whether the interval covers the whole clock.
func (t TimeInterval) IsFullDay() bool {
	return t.StartSeconds == 0 && t.EndSeconds == SecondsPerDay
}

// Wraps reports whether the interval crosses midnight.
func (t TimeInterval) Wraps() bool {
	return !t.IsFullDay() && t.EndSeconds <= t.StartSeconds
}

// segment is a non-wrapping piece of an interval.
type segment struct{ start, end int }

// segments splits a wrapping interval into [start, 86400) and [0, end).
func (t TimeInterval) segments() []segment {
	if !t.Wraps() {
		return []segment{{t.StartSeconds, t.EndSeconds}}
	}
	out := make([]segment, 0, 2)
	if t.StartSeconds < SecondsPerDay {
		out = append(out, segment{t.StartSeconds, SecondsPerDay})
	}
	if t.EndSeconds > 0 {
		out = append(out, segment{0, t.EndSeconds})
	}
	return out
}

// DurationSeconds is the length of the interval, wraparound included.
func (t TimeInterval) DurationSeconds() int {
	total := 0
	for _, s := range t.segments() {
		if s.end > s.start {
			total += s.end - s.start
		}
	}
	return total
}

// Hours is DurationSeconds in hours.
func (t TimeInterval) Hours() float64 {
	return float64(t.DurationSeconds()) / 3600
}

func (t TimeInterval) String() string {
	return FormatClock(t.StartSeconds) + "-" + FormatClock(t.EndSeconds%SecondsPerDay)
}

// Overlaps reports whether two daily intervals share any second.
func Overlaps(a, b TimeInterval) bool {
	if a.IsFullDay() && b.DurationSeconds() > 0 {
		return true
	}
	if b.IsFullDay() && a.DurationSeconds() > 0 {
		return true
	}
	for _, x := range a.segments() {
		for _, y := range b.segments() {
			if x.start < y.end && y.start < x.end {
				return true
			}
		}
	}
	return false
}

// FormatClock renders seconds-of-day as HH:MM, or HH:MM:SS when seconds are set.
func FormatClock(seconds int) string {
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
