package scheduling

import (
	"fmt"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/shift"
)

// slot is one side of a conflict comparison: a worker on a shift across a date range.
type slot struct {
	label  string
	worker generic.WorkerID
	dates  generic.Period
	times  string
	shift  shift.Shift
}

func (s slot) describe() string {
	return fmt.Sprintf("%s %s..%s %s", s.label, s.dates.Start, s.dates.End, s.times)
}

// collides is the two-stage test: calendar dates overlap AND daily times overlap.
func collides(a, b slot) bool {
	return a.worker == b.worker &&
		a.dates.Overlaps(b.dates) &&
		shift.Overlaps(a.shift.Interval, b.shift.Interval)
}

// detectConflicts checks every proposed slot against the persisted slots of the
// same worker, then every unordered pair of proposed slots. All conflicts are
// returned, deduplicated, in detection order.
func detectConflicts(proposed, existing []slot) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(msg string) {
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}

	for _, p := range proposed {
		for _, e := range existing {
			if collides(p, e) {
				add(fmt.Sprintf("worker %d: %s overlaps %s", p.worker, p.describe(), e.describe()))
			}
		}
	}

	for i := 0; i < len(proposed); i++ {
		for j := i + 1; j < len(proposed); j++ {
			if collides(proposed[i], proposed[j]) {
				add(fmt.Sprintf("worker %d: %s overlaps %s",
					proposed[i].worker, proposed[i].describe(), proposed[j].describe()))
			}
		}
	}
	return out
}

// existingSlots converts persisted assignments into slots. A persisted row whose
// shift no longer parses is treated as covering the whole day.
func existingSlots(as []generic.Assignment) []slot {
	out := make([]slot, 0, len(as))
	for _, a := range as {
		s, err := shift.Parse(a.ShiftStart, a.ShiftEnd)
		if err != nil {
			s = shift.Shift{Start: a.ShiftStart, End: a.ShiftEnd, Interval: shift.FullDay}
		}
		out = append(out, slot{
			label:  fmt.Sprintf("existing assignment %s", a.ID),
			worker: a.WorkerID,
			dates:  a.Range(),
			times:  a.ShiftStart + "-" + a.ShiftEnd,
			shift:  s,
		})
	}
	return out
}
