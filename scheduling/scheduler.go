/*
scheduler.go - Shift scheduling with conflict detection

PURPOSE:
  Accepts a batch of proposed worker-to-client assignments and either
  persists all of them or rejects the batch with every conflict found.

FLOW:
  1. Preconditions (ValidationError, nothing read yet):
     non-empty batch, positive worker ids, valid shifts, end >= start, rate > 0
  2. Referential checks, issued concurrently:
     client exists, every worker exists (ReferentialError lists missing ids)
  3. Inside one transaction:
     a. read persisted assignments for the batch's workers in the batch window
     b. batch-vs-persisted and batch-vs-batch checks (ConflictError, all of them)
     c. insert every row; inserted count must equal the batch size
  4. After commit, fan out worker status updates to "assigned".
     Failures become a PartialFailureWarning on a successful result.

CONCURRENCY:
  The conflict read and the insert share one WithTx, so two racing
  batches for the same worker cannot both pass the check.

SEE ALSO:
  - conflict.go: Two-stage date + time overlap test
  - lifecycle.go: Update, complete and delete
  - shift/interval.go: Wall-clock overlap
*/
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/metrics"
	"github.com/warp/staffing-engine/shift"
)

// DefaultStatusConcurrency bounds concurrent worker status updates.
const DefaultStatusConcurrency = 8

// Scheduler implements shift scheduling and the assignment lifecycle.
type Scheduler struct {
	store             generic.TxStore
	logger            zerolog.Logger
	statusConcurrency int
	now               func() time.Time
	newID             func() generic.AssignmentID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

func WithStatusConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.statusConcurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func NewScheduler(store generic.TxStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:             store,
		logger:            zerolog.Nop(),
		statusConcurrency: DefaultStatusConcurrency,
		now:               time.Now,
		newID:             func() generic.AssignmentID { return generic.AssignmentID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleResult is the outcome of ScheduleShifts.
type ScheduleResult struct {
	generic.Result
	AssignmentIDs []generic.AssignmentID `json:"assignmentIds,omitempty"`
}

// =============================================================================
// SCHEDULE SHIFTS
// =============================================================================

// ScheduleShifts validates, conflict-checks and atomically inserts a batch.
// Every proposal is scheduled for clientID, whatever its own ClientID says.
func (s *Scheduler) ScheduleShifts(ctx context.Context, proposed []generic.ProposedAssignment, clientID generic.ClientID) ScheduleResult {
	log := s.logger.With().Str("client", string(clientID)).Int("shifts", len(proposed)).Logger()

	slots, err := validateBatch(proposed)
	if err != nil {
		return s.reject(log, "invalid", err)
	}

	workerIDs := uniqueWorkers(proposed)
	if err := s.checkReferences(ctx, clientID, workerIDs); err != nil {
		return s.reject(log, "unknown_reference", err)
	}

	rows := make([]generic.Assignment, len(proposed))
	now := s.now().UTC()
	for i, p := range proposed {
		mode := p.Mode
		if mode == "" {
			mode = generic.ModeDaily
		}
		end := p.EndDate
		rows[i] = generic.Assignment{
			ID:            s.newID(),
			WorkerID:      p.WorkerID,
			ClientID:      clientID,
			StartDate:     p.StartDate,
			EndDate:       &end,
			ShiftStart:    p.ShiftStart,
			ShiftEnd:      p.ShiftEnd,
			PayRatePerDay: p.PayRatePerDay,
			Status:        generic.AssignmentActive,
			Mode:          mode,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	window := batchWindow(proposed)
	err = s.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := tx.ListAssignments(ctx, generic.AssignmentFilter{
			WorkerIDs: workerIDs,
			Window:    &window,
		})
		if err != nil {
			return fmt.Errorf("load existing assignments: %w", err)
		}

		if conflicts := detectConflicts(slots, existingSlots(existing)); len(conflicts) > 0 {
			return &generic.ConflictError{Kind: generic.ConflictShift, Conflicts: conflicts}
		}

		n, err := tx.InsertAssignments(ctx, rows)
		if err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		if n != len(rows) {
			return fmt.Errorf("%w: inserted %d of %d", generic.ErrInsertCountMismatch, n, len(rows))
		}
		return nil
	})
	if err != nil {
		var ce *generic.ConflictError
		if errors.As(err, &ce) {
			metrics.AddShiftConflicts(len(ce.Conflicts))
			return s.reject(log, "conflict", err)
		}
		return s.reject(log, "error", err)
	}

	ids := make([]generic.AssignmentID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	result := ScheduleResult{
		Result:        generic.OK(fmt.Sprintf("scheduled %d shift(s) for client %s", len(rows), clientID)),
		AssignmentIDs: ids,
	}

	if warning := s.setStatuses(ctx, workerIDs, generic.WorkerAssigned); warning != nil {
		log.Warn().Strs("failures", warning.Failures).Msg("worker status update partially failed")
		result.Result = result.Result.WithWarning(warning)
		metrics.IncScheduleOutcome("partial")
	} else {
		metrics.IncScheduleOutcome("accepted")
	}

	log.Info().Int("inserted", len(rows)).Msg("shifts scheduled")
	return result
}

func (s *Scheduler) reject(log zerolog.Logger, outcome string, err error) ScheduleResult {
	metrics.IncScheduleOutcome(outcome)
	if generic.IsClientError(err) {
		log.Info().Err(err).Str("outcome", outcome).Msg("schedule rejected")
	} else {
		log.Error().Err(err).Msg("schedule failed")
	}
	return ScheduleResult{Result: generic.ResultFromError(err)}
}

// =============================================================================
// PRECONDITIONS
// =============================================================================

// validateBatch checks every proposal and returns the parsed slots.
func validateBatch(proposed []generic.ProposedAssignment) ([]slot, error) {
	if len(proposed) == 0 {
		return nil, &generic.ValidationError{Code: generic.CodeEmptyBatch, Message: "at least one shift is required"}
	}

	slots := make([]slot, len(proposed))
	for i, p := range proposed {
		label := fmt.Sprintf("shift #%d", i+1)
		if p.WorkerID <= 0 {
			return nil, &generic.ValidationError{
				Code:    generic.CodeInvalidWorkerID,
				Field:   "workerId",
				Message: fmt.Sprintf("%s: worker id %d must be a positive integer", label, p.WorkerID),
			}
		}
		sh, err := shift.Parse(p.ShiftStart, p.ShiftEnd)
		if err != nil {
			var ve *generic.ValidationError
			if errors.As(err, &ve) {
				ve.Message = label + ": " + ve.Message
			}
			return nil, err
		}
		if err := validateDates(label, p.StartDate, &p.EndDate); err != nil {
			return nil, err
		}
		if !p.PayRatePerDay.IsPositive() {
			return nil, &generic.ValidationError{
				Code:    generic.CodeInvalidPayRate,
				Field:   "payRatePerDay",
				Message: fmt.Sprintf("%s: pay rate must be greater than zero", label),
			}
		}
		if p.Mode != "" && p.Mode != generic.ModeDaily && p.Mode != generic.ModeShiftBlock {
			return nil, &generic.ValidationError{
				Code:    generic.CodeInvalidAttendanceMode,
				Field:   "attendanceMode",
				Message: fmt.Sprintf("%s: unknown attendance mode %q", label, p.Mode),
			}
		}
		slots[i] = slot{
			label:  label,
			worker: p.WorkerID,
			dates:  p.Range(),
			times:  p.ShiftStart + "-" + p.ShiftEnd,
			shift:  sh,
		}
	}
	return slots, nil
}

func validateDates(label string, start generic.TimePoint, end *generic.TimePoint) error {
	if start.IsZero() {
		return &generic.ValidationError{Code: generic.CodeMissingField, Field: "startDate", Message: label + ": start date is required"}
	}
	if end == nil {
		return nil
	}
	if end.IsZero() {
		return &generic.ValidationError{Code: generic.CodeMissingField, Field: "endDate", Message: label + ": end date is required"}
	}
	if end.Before(start) {
		return &generic.ValidationError{
			Code:    generic.CodeInvalidDateRange,
			Field:   "endDate",
			Message: fmt.Sprintf("%s: end date %s is before start date %s", label, end, start),
		}
	}
	return nil
}

// =============================================================================
// REFERENTIAL CHECKS
// =============================================================================

// checkReferences verifies the client and every worker concurrently.
func (s *Scheduler) checkReferences(ctx context.Context, clientID generic.ClientID, workerIDs []generic.WorkerID) error {
	var (
		clientOK bool
		found    []generic.Worker
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.store.ClientExists(gctx, clientID)
		if err != nil {
			return fmt.Errorf("lookup client %s: %w", clientID, err)
		}
		clientOK = ok
		return nil
	})
	g.Go(func() error {
		ws, err := s.store.FindWorkers(gctx, workerIDs)
		if err != nil {
			return fmt.Errorf("lookup workers: %w", err)
		}
		found = ws
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var (
		entities []string
		missing  []string
	)
	if !clientOK {
		entities = append(entities, "client")
		missing = append(missing, string(clientID))
	}

	exists := make(map[generic.WorkerID]bool, len(found))
	for _, w := range found {
		exists[w.ID] = true
	}
	workersMissing := false
	for _, id := range workerIDs {
		if !exists[id] {
			workersMissing = true
			missing = append(missing, id.String())
		}
	}
	if workersMissing {
		entities = append(entities, "worker")
	}
	if len(missing) > 0 {
		return &generic.ReferentialError{Entity: strings.Join(entities, "/"), IDs: missing}
	}
	return nil
}

// =============================================================================
// WORKER STATUS FAN-OUT
// =============================================================================

// setStatuses updates every worker concurrently and collects every failure.
// One failed update never cancels the others.
func (s *Scheduler) setStatuses(ctx context.Context, ids []generic.WorkerID, status generic.WorkerStatus) *generic.PartialFailureWarning {
	var (
		mu       sync.Mutex
		failures []string
		g        errgroup.Group
	)
	g.SetLimit(s.statusConcurrency)

	for _, id := range ids {
		id := id // per-iteration copy; go directive is below 1.22
		g.Go(func() error {
			if err := s.store.SetWorkerStatus(ctx, id, status); err != nil {
				metrics.IncStatusUpdateFailure()
				mu.Lock()
				failures = append(failures, fmt.Sprintf("worker %d: set status %s: %v", id, status, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}
	sort.Strings(failures)
	return &generic.PartialFailureWarning{Operation: "worker status update", Failures: failures}
}

// =============================================================================
// HELPERS
// =============================================================================

func uniqueWorkers(proposed []generic.ProposedAssignment) []generic.WorkerID {
	seen := make(map[generic.WorkerID]bool)
	var out []generic.WorkerID
	for _, p := range proposed {
		if !seen[p.WorkerID] {
			seen[p.WorkerID] = true
			out = append(out, p.WorkerID)
		}
	}
	return out
}

func batchWindow(proposed []generic.ProposedAssignment) generic.Period {
	ranges := make([]generic.Period, len(proposed))
	for i, p := range proposed {
		ranges[i] = p.Range()
	}
	return generic.Span(ranges...)
}
