package shift

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/staffing-engine/generic"
)

// Classification is the kind of daily shift.
type Classification string

const (
	SameDay   Classification = "same_day"
	Overnight Classification = "overnight"
	Is24Hour  Classification = "24_hour"
)

// Shift is a validated daily shift window.
type Shift struct {
	Start          string
	End            string
	Interval       TimeInterval
	Classification Classification
}

// Hours is the standard length of the shift; 24 for a 24-hour shift.
func (s Shift) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(s.Interval.DurationSeconds())).Div(decimal.NewFromInt(3600))
}

func (s Shift) String() string { return s.Interval.String() }

// Validation is the outcome of Validate.
type Validation struct {
	OK             bool
	Classification Classification
	Err            error
}

// Validate checks a shift's start and end strings.
func Validate(start, end string) Validation {
	s, err := Parse(start, end)
	if err != nil {
		return Validation{OK: false, Err: err}
	}
	return Validation{OK: true, Classification: s.Classification}
}

// Parse validates and classifies a shift.
// 00:00-00:00 is a 24-hour shift. A same-day shift must have positive length.
func Parse(start, end string) (Shift, error) {
	startSec, err := ParseClock(start)
	if err != nil {
		return Shift{}, withField(err, "shiftStart")
	}
	endSec, err := ParseClock(end)
	if err != nil {
		return Shift{}, withField(err, "shiftEnd")
	}

	s := Shift{Start: start, End: end}
	switch {
	case startSec == 0 && endSec == 0:
		s.Classification = Is24Hour
		s.Interval = FullDay
	case endSec < startSec:
		s.Classification = Overnight
		s.Interval = TimeInterval{StartSeconds: startSec, EndSeconds: endSec}
	case endSec == startSec:
		return Shift{}, &generic.ValidationError{
			Code:    generic.CodeInvalidTimeRange,
			Field:   "shiftEnd",
			Message: fmt.Sprintf("shift %s-%s has zero length", start, end),
		}
	default:
		s.Classification = SameDay
		s.Interval = TimeInterval{StartSeconds: startSec, EndSeconds: endSec}
	}
	return s, nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into seconds since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, invalidFormat(s)
	}
	limits := []int{23, 59, 59}
	total := 0
	for i, p := range parts {
		if len(p) != 2 {
			return 0, invalidFormat(s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, invalidFormat(s)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}

// ParseWorkedDuration parses a worked total as "H:MM[:SS]" (hours may exceed 23)
// or as decimal hours ("7.5"). Negative values are returned as-is for the caller to reject.
func ParseWorkedDuration(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty duration")
	}
	if !strings.Contains(s, ":") {
		return decimal.NewFromString(s)
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return decimal.Zero, fmt.Errorf("invalid duration %q", s)
	}
	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return decimal.Zero, fmt.Errorf("invalid duration %q", s)
		}
		nums[i] = n
	}
	seconds := nums[0]*3600 + nums[1]*60
	if len(nums) == 3 {
		seconds += nums[2]
	}
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600)), nil
}

func invalidFormat(s string) error {
	return &generic.ValidationError{
		Code:    generic.CodeInvalidTimeFormat,
		Message: fmt.Sprintf("%q is not HH:MM or HH:MM:SS", s),
	}
}

func withField(err error, field string) error {
	if ve, ok := err.(*generic.ValidationError); ok {
		ve.Field = field
	}
	return err
}
