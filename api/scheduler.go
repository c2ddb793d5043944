/*
scheduler.go - Automated payroll scheduler

PURPOSE:
  Periodically runs batch payroll for the last closed pay period so that
  salaries are calculated without an operator triggering each run.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Derives the period from the configured PayCycle (previous period
    relative to today)
  - Skips a period it has already completed in this process
  - Workers already paid for the period are counted by the runner, not
    recalculated, so restarts are safe
  - Another instance holding the run lock is logged and retried next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollScheduler(runner, generic.CycleSemiMonthly, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll/batch.go: Runner
  - generic/period.go: PayCycle
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/payroll"
)

// PayrollScheduler handles automated batch payroll.
type PayrollScheduler struct {
	Runner        *payroll.Runner
	Cycle         generic.PayCycle
	CheckInterval time.Duration
	Enabled       bool

	now    func() time.Time
	logger zerolog.Logger
	last   generic.Period

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollScheduler creates a new scheduler.
func NewPayrollScheduler(runner *payroll.Runner, cycle generic.PayCycle, logger zerolog.Logger) *PayrollScheduler {
	return &PayrollScheduler{
		Runner:        runner,
		Cycle:         cycle,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		now:           time.Now,
		logger:        logger.With().Str("component", "payroll_scheduler").Logger(),
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ps *PayrollScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.logger.Info().Msg("disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	ps.logger.Info().Dur("interval", ps.CheckInterval).Str("cycle", string(ps.Cycle)).Msg("started")
}

// Stop stops the scheduler.
func (ps *PayrollScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.logger.Info().Msg("stopped")
	}
}

func (ps *PayrollScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.RunNow(context.Background())

	for {
		select {
		case <-ps.ticker.C:
			ps.RunNow(context.Background())
		case <-ps.stop:
			return
		}
	}
}

// RunNow runs payroll for the previous pay period unless it already ran.
// It reports whether a run completed.
func (ps *PayrollScheduler) RunNow(ctx context.Context) bool {
	period := ps.Cycle.PreviousPeriod(generic.DateOf(ps.now()))
	if period.Start.Equal(ps.last.Start) && period.End.Equal(ps.last.End) {
		return false
	}

	log := ps.logger.With().Str("period", period.String()).Logger()
	summary, err := ps.Runner.Run(ctx, period)
	if errors.Is(err, payroll.ErrRunInProgress) {
		log.Info().Msg("run lock held elsewhere, retrying next tick")
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("payroll run failed")
		return false
	}

	ps.last = period
	if summary.Failed > 0 {
		log.Warn().Int("failed", summary.Failed).Strs("failures", summary.Failures).Msg("payroll run had failures")
	}
	return true
}

// NextRunTime returns when the next scheduled check will occur.
func (ps *PayrollScheduler) NextRunTime() time.Time {
	return ps.now().Add(ps.CheckInterval)
}
