package generic_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/staffing-engine/generic"
)

func mustPeriod(t *testing.T, from, to string) generic.Period {
	t.Helper()
	p, err := generic.NewPeriod(from, to)
	if err != nil {
		t.Fatalf("NewPeriod(%s, %s): %v", from, to, err)
	}
	return p
}

// =============================================================================
// PERIOD
// =============================================================================

func TestPeriod_OverlapIsInclusive(t *testing.T) {
	first := mustPeriod(t, "2025-01-01", "2025-01-15")

	tests := []struct {
		other string
		to    string
		want  bool
	}{
		{"2025-01-10", "2025-01-20", true},
		{"2025-01-15", "2025-01-31", true}, // shared endpoint
		{"2025-01-16", "2025-01-31", false},
		{"2024-12-01", "2024-12-31", false},
		{"2024-12-01", "2025-02-01", true}, // containment
	}
	for _, tt := range tests {
		other := mustPeriod(t, tt.other, tt.to)
		if got := first.Overlaps(other); got != tt.want {
			t.Errorf("%s overlaps %s = %v, want %v", first, other, got, tt.want)
		}
		if got := other.Overlaps(first); got != tt.want {
			t.Errorf("overlap not symmetric for %s", other)
		}
	}
}

func TestPeriod_IntersectAndDayCount(t *testing.T) {
	assignment := mustPeriod(t, "2025-01-10", "2025-02-20")
	pay := mustPeriod(t, "2025-01-01", "2025-01-15")

	got, ok := assignment.Intersect(pay)
	if !ok {
		t.Fatal("expected an intersection")
	}
	if got.Start.String() != "2025-01-10" || got.End.String() != "2025-01-15" {
		t.Errorf("Intersect = %s", got)
	}
	if got.DayCount() != 6 {
		t.Errorf("DayCount = %d, want 6", got.DayCount())
	}

	if _, ok := pay.Intersect(mustPeriod(t, "2025-03-01", "2025-03-02")); ok {
		t.Error("disjoint periods should not intersect")
	}
}

func TestPeriod_Validate(t *testing.T) {
	err := mustPeriod(t, "2025-02-01", "2025-01-01").Validate()

	var ve *generic.ValidationError
	if !errors.As(err, &ve) || ve.Code != generic.CodeInvalidDateRange {
		t.Fatalf("expected InvalidDateRange, got %v", err)
	}
	if !errors.Is(err, generic.ErrValidation) {
		t.Error("validation error should unwrap to ErrValidation")
	}
	if err := (generic.Period{}).Validate(); err == nil {
		t.Error("zero period should not validate")
	}
	if err := mustPeriod(t, "2025-01-01", "2025-01-01").Validate(); err != nil {
		t.Errorf("single day period: %v", err)
	}
}

func TestSpan(t *testing.T) {
	got := generic.Span(
		mustPeriod(t, "2025-03-01", "2025-03-31"),
		mustPeriod(t, "2025-01-15", "2025-02-01"),
		mustPeriod(t, "2025-02-01", "2025-04-10"),
	)
	if got.String() != "[2025-01-15, 2025-04-10]" {
		t.Errorf("Span = %s", got)
	}
}

// =============================================================================
// PAY CYCLE
// =============================================================================

func TestPayCycle_PeriodFor(t *testing.T) {
	tests := []struct {
		cycle generic.PayCycle
		date  string
		want  string
	}{
		{generic.CycleSemiMonthly, "2025-01-15", "[2025-01-01, 2025-01-15]"},
		{generic.CycleSemiMonthly, "2025-02-16", "[2025-02-16, 2025-02-28]"},
		{generic.CycleMonthly, "2024-02-10", "[2024-02-01, 2024-02-29]"},
		{generic.CycleWeekly, "2025-01-08", "[2025-01-06, 2025-01-12]"}, // Wednesday
		{generic.CycleWeekly, "2025-01-12", "[2025-01-06, 2025-01-12]"}, // Sunday
		{generic.CycleBiweekly, "2024-01-14", "[2024-01-01, 2024-01-14]"},
		{generic.CycleBiweekly, "2024-01-15", "[2024-01-15, 2024-01-28]"},
		{generic.CycleBiweekly, "2023-12-31", "[2023-12-18, 2023-12-31]"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.cycle, tt.date), func(t *testing.T) {
			got := tt.cycle.PeriodFor(generic.MustParseDate(tt.date))
			if got.String() != tt.want {
				t.Errorf("PeriodFor(%s) = %s, want %s", tt.date, got, tt.want)
			}
		})
	}
}

func TestPayCycle_PreviousPeriod(t *testing.T) {
	got := generic.CycleSemiMonthly.PreviousPeriod(generic.MustParseDate("2025-03-03"))
	if got.String() != "[2025-02-16, 2025-02-28]" {
		t.Errorf("PreviousPeriod = %s", got)
	}
	if generic.PayCycle("fortnightly").Valid() {
		t.Error("unknown cycle reported valid")
	}
}

// =============================================================================
// RESULT AND ERRORS
// =============================================================================

func TestResultFromError(t *testing.T) {
	res := generic.ResultFromError(&generic.ConflictError{
		Kind:      generic.ConflictShift,
		Conflicts: []string{"a", "b"},
	})
	if res.Success || res.Kind != generic.KindConflict || res.Code != generic.ConflictShift || len(res.Conflicts) != 2 {
		t.Errorf("conflict result = %+v", res)
	}

	res = generic.ResultFromError(&generic.ReferentialError{Entity: "worker", IDs: []string{"41"}})
	if res.Kind != generic.KindReferential || len(res.MissingIDs) != 1 {
		t.Errorf("referential result = %+v", res)
	}

	res = generic.ResultFromError(fmt.Errorf("load: %w", generic.ErrNotFound))
	if res.Kind != generic.KindReferential {
		t.Errorf("not found kind = %s", res.Kind)
	}

	res = generic.ResultFromError(errors.New("disk full"))
	if res.Kind != generic.KindInternal {
		t.Errorf("unknown error kind = %s", res.Kind)
	}
}

func TestResult_WithWarning(t *testing.T) {
	res := generic.OK("done").WithWarning(&generic.PartialFailureWarning{
		Operation: "worker status update",
		Failures:  []string{"worker 2: timeout"},
	})
	if !res.Success || res.Kind != generic.KindPartialFailure || len(res.Warnings) != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := generic.OK("done").WithWarning(nil); got.Kind != generic.KindNone {
		t.Errorf("nil warning changed kind to %s", got.Kind)
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := map[string]string{
		"12.50":  "12.5",
		"500":    "500",
		"0.7143": "0.71",
		"2.005":  "2.01",
	}
	for in, want := range tests {
		if got := generic.FormatQuantity(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatQuantity(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestTimePoint_JSON(t *testing.T) {
	var got struct {
		Date generic.TimePoint  `json:"date"`
		End  *generic.TimePoint `json:"end"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2025-03-09","end":null}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Date.String() != "2025-03-09" || got.End != nil {
		t.Errorf("decoded %+v", got)
	}

	out, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2025-03-09","end":null}` {
		t.Errorf("encoded %s", out)
	}
	if err := json.Unmarshal([]byte(`{"date":"09/03/2025"}`), &got); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
	if generic.DaysBetween(generic.MustParseDate("2024-02-28"), generic.MustParseDate("2024-03-01")) != 2 {
		t.Error("DaysBetween across a leap day")
	}
}
