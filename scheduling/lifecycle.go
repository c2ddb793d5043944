package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/shift"
)

// allowedTransitions is the assignment state machine.
var allowedTransitions = map[generic.AssignmentStatus][]generic.AssignmentStatus{
	generic.AssignmentActive: {generic.AssignmentCompleted, generic.AssignmentCancelled},
}

func canTransition(from, to generic.AssignmentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateAssignment applies a partial update. Changed dates or shift times are
// re-validated and re-checked for conflicts against the worker's other assignments.
func (s *Scheduler) UpdateAssignment(ctx context.Context, id generic.AssignmentID, patch generic.AssignmentPatch) generic.Result {
	log := s.logger.With().Str("assignment", string(id)).Logger()

	current, err := s.getAssignment(ctx, id)
	if err != nil {
		return generic.ResultFromError(err)
	}

	updated, err := applyPatch(*current, patch)
	if err != nil {
		log.Info().Err(err).Msg("assignment update rejected")
		return generic.ResultFromError(err)
	}
	updated.UpdatedAt = s.now().UTC()

	err = s.store.WithTx(ctx, func(tx generic.Store) error {
		if patch.TouchesSchedule() && !updated.IsCancelled() {
			if err := checkAgainstOthers(ctx, tx, updated); err != nil {
				return err
			}
		}
		return tx.UpdateAssignment(ctx, updated)
	})
	if err != nil {
		log.Info().Err(err).Msg("assignment update failed")
		return generic.ResultFromError(err)
	}

	log.Info().Str("status", string(updated.Status)).Msg("assignment updated")
	return generic.OK(fmt.Sprintf("assignment %s updated", id))
}

// CompleteAssignment ends an active assignment on endDate.
func (s *Scheduler) CompleteAssignment(ctx context.Context, id generic.AssignmentID, endDate generic.TimePoint) generic.Result {
	status := generic.AssignmentCompleted
	return s.UpdateAssignment(ctx, id, generic.AssignmentPatch{EndDate: &endDate, Status: &status})
}

// DeleteAssignment removes an assignment that has no attendance rows. When it
// was the worker's last live assignment, the worker goes back to unassigned.
func (s *Scheduler) DeleteAssignment(ctx context.Context, id generic.AssignmentID) generic.Result {
	log := s.logger.With().Str("assignment", string(id)).Logger()

	var workerID generic.WorkerID
	var remaining int
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		a, err := tx.GetAssignment(ctx, id)
		if err != nil {
			return notFound("assignment", string(id), err)
		}
		workerID = a.WorkerID

		n, err := tx.CountAttendance(ctx, id)
		if err != nil {
			return fmt.Errorf("count attendance: %w", err)
		}
		if n > 0 {
			return &generic.ConflictError{
				Kind:      generic.ConflictDependentRecords,
				Conflicts: []string{fmt.Sprintf("assignment %s has %d attendance record(s)", id, n)},
			}
		}

		if err := tx.DeleteAssignment(ctx, id); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}

		left, err := tx.ListAssignments(ctx, generic.AssignmentFilter{WorkerIDs: []generic.WorkerID{workerID}})
		if err != nil {
			return fmt.Errorf("list remaining assignments: %w", err)
		}
		remaining = len(left)
		return nil
	})
	if err != nil {
		log.Info().Err(err).Msg("assignment delete rejected")
		return generic.ResultFromError(err)
	}

	result := generic.OK(fmt.Sprintf("assignment %s deleted", id))
	if remaining == 0 {
		if w := s.setStatuses(ctx, []generic.WorkerID{workerID}, generic.WorkerUnassigned); w != nil {
			log.Warn().Strs("failures", w.Failures).Msg("worker status reset failed")
			result = result.WithWarning(w)
		}
	}

	log.Info().Int64("worker", int64(workerID)).Int("remaining", remaining).Msg("assignment deleted")
	return result
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Scheduler) getAssignment(ctx context.Context, id generic.AssignmentID) (*generic.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, notFound("assignment", string(id), err)
	}
	return a, nil
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, generic.ErrNotFound) {
		return &generic.ReferentialError{Entity: entity, IDs: []string{id}}
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

// applyPatch returns the patched assignment after validating every changed field.
func applyPatch(a generic.Assignment, p generic.AssignmentPatch) (generic.Assignment, error) {
	if p.Status != nil {
		if !canTransition(a.Status, *p.Status) {
			return a, &generic.ValidationError{
				Code:    generic.CodeInvalidStatusTransition,
				Field:   "status",
				Message: fmt.Sprintf("cannot move assignment from %s to %s", a.Status, *p.Status),
			}
		}
	} else if a.Status != generic.AssignmentActive && (p.TouchesSchedule() || p.PayRatePerDay != nil) {
		return a, &generic.ValidationError{
			Code:    generic.CodeInvalidStatusTransition,
			Field:   "status",
			Message: fmt.Sprintf("assignment is %s and can no longer be changed", a.Status),
		}
	}

	if p.StartDate != nil {
		a.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		a.EndDate = &end
	}
	if p.ShiftStart != nil {
		a.ShiftStart = *p.ShiftStart
	}
	if p.ShiftEnd != nil {
		a.ShiftEnd = *p.ShiftEnd
	}
	if p.PayRatePerDay != nil {
		if !p.PayRatePerDay.IsPositive() {
			return a, &generic.ValidationError{Code: generic.CodeInvalidPayRate, Field: "payRatePerDay", Message: "pay rate must be greater than zero"}
		}
		a.PayRatePerDay = *p.PayRatePerDay
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.CalculatedAttendanceDays != nil {
		a.CalculatedAttendanceDays = *p.CalculatedAttendanceDays
	}
	if p.ShiftStartedAt != nil {
		a.ShiftStartedAt = p.ShiftStartedAt
	}
	if p.ShiftEndedAt != nil {
		a.ShiftEndedAt = p.ShiftEndedAt
	}

	if p.ShiftStart != nil || p.ShiftEnd != nil {
		if _, err := shift.Parse(a.ShiftStart, a.ShiftEnd); err != nil {
			return a, err
		}
	}
	if err := validateDates("assignment", a.StartDate, a.EndDate); err != nil {
		return a, err
	}
	if a.Status == generic.AssignmentCompleted && a.EndDate == nil {
		return a, &generic.ValidationError{Code: generic.CodeMissingField, Field: "endDate", Message: "a completed assignment needs an end date"}
	}
	return a, nil
}

// checkAgainstOthers runs the conflict check for one assignment against the
// worker's other live assignments.
func checkAgainstOthers(ctx context.Context, tx generic.Store, a generic.Assignment) error {
	sh, err := shift.Parse(a.ShiftStart, a.ShiftEnd)
	if err != nil {
		return err
	}
	window := a.Range()
	others, err := tx.ListAssignments(ctx, generic.AssignmentFilter{
		WorkerIDs: []generic.WorkerID{a.WorkerID},
		Window:    &window,
	})
	if err != nil {
		return fmt.Errorf("load existing assignments: %w", err)
	}

	filtered := others[:0]
	for _, o := range others {
		if o.ID != a.ID {
			filtered = append(filtered, o)
		}
	}

	self := slot{
		label:  fmt.Sprintf("assignment %s", a.ID),
		worker: a.WorkerID,
		dates:  window,
		times:  a.ShiftStart + "-" + a.ShiftEnd,
		shift:  sh,
	}
	if conflicts := detectConflicts([]slot{self}, existingSlots(filtered)); len(conflicts) > 0 {
		return &generic.ConflictError{Kind: generic.ConflictShift, Conflicts: conflicts}
	}
	return nil
}
