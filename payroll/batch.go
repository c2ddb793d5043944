package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/lock"
	"github.com/warp/staffing-engine/metrics"
)

// ErrRunInProgress is returned when another run holds the period's lock.
var ErrRunInProgress = errors.New("payroll run already in progress for period")

// RunSummary reports one batch payroll run.
type RunSummary struct {
	Period      generic.Period      `json:"period"`
	Workers     int                 `json:"workers"`
	Calculated  int                 `json:"calculated"`
	AlreadyPaid int                 `json:"alreadyPaid"`
	Empty       int                 `json:"empty"`
	Failed      int                 `json:"failed"`
	Failures    []string            `json:"failures,omitempty"`
	PaymentIDs  []generic.PaymentID `json:"paymentIds,omitempty"`
	Gross       string              `json:"gross"`
}

// Runner calculates salaries for every worker scheduled in a period.
type Runner struct {
	calc        *Calculator
	store       generic.Store
	locker      lock.Locker
	limiter     *rate.Limiter
	concurrency int
	lockTTL     time.Duration
	logger      zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithRunnerLogger(l zerolog.Logger) RunnerOption { return func(r *Runner) { r.logger = l } }

// WithRateLimit caps calculations per second across the run.
func WithRateLimit(perSecond float64, burst int) RunnerOption {
	return func(r *Runner) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithLockTTL(d time.Duration) RunnerOption { return func(r *Runner) { r.lockTTL = d } }

func NewRunner(calc *Calculator, store generic.Store, locker lock.Locker, opts ...RunnerOption) *Runner {
	r := &Runner{
		calc:        calc,
		store:       store,
		locker:      locker,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		concurrency: 4,
		lockTTL:     10 * time.Minute,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run calculates the salary of every worker with a live assignment in period.
// Workers already paid for an overlapping period are counted, not failed.
func (r *Runner) Run(ctx context.Context, period generic.Period) (RunSummary, error) {
	summary := RunSummary{Period: period, Gross: "0.00"}
	if err := period.Validate(); err != nil {
		return summary, err
	}

	release, err := r.locker.Acquire(ctx, "payroll:"+period.Start.String()+":"+period.End.String(), r.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			metrics.IncPayrollRun("locked")
			return summary, fmt.Errorf("%w %s", ErrRunInProgress, period)
		}
		return summary, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			r.logger.Warn().Err(err).Msg("release run lock")
		}
	}()

	workers, err := r.scheduledWorkers(ctx, period)
	if err != nil {
		metrics.IncPayrollRun("error")
		return summary, err
	}
	summary.Workers = len(workers)

	log := r.logger.With().Str("period", period.String()).Int("workers", len(workers)).Logger()
	log.Info().Msg("payroll run started")

	var mu sync.Mutex
	gross := decimal.Zero
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, w := range workers {
		w := w // per-iteration copy; go directive is below 1.22
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return err
			}
			res := r.calc.CalculateSalary(gctx, w, period, "")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Success && res.Payment != nil && res.Payment.ID != "":
				summary.Calculated++
				summary.PaymentIDs = append(summary.PaymentIDs, res.Payment.ID)
				gross = gross.Add(res.Payment.GrossSalary)
			case res.Success:
				summary.Empty++
			case res.Kind == generic.KindConflict:
				summary.AlreadyPaid++
			default:
				summary.Failed++
				summary.Failures = append(summary.Failures, fmt.Sprintf("worker %d: %s", w, res.Error))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncPayrollRun("aborted")
		return summary, fmt.Errorf("payroll run aborted: %w", err)
	}

	sort.Strings(summary.Failures)
	sort.Slice(summary.PaymentIDs, func(i, j int) bool { return summary.PaymentIDs[i] < summary.PaymentIDs[j] })
	summary.Gross = generic.Round2(gross).StringFixed(2)

	outcome := "ok"
	if summary.Failed > 0 {
		outcome = "partial"
	}
	metrics.IncPayrollRun(outcome)
	log.Info().
		Int("calculated", summary.Calculated).
		Int("already_paid", summary.AlreadyPaid).
		Int("failed", summary.Failed).
		Str("gross", summary.Gross).
		Msg("payroll run finished")
	return summary, nil
}

func (r *Runner) scheduledWorkers(ctx context.Context, period generic.Period) ([]generic.WorkerID, error) {
	as, err := r.store.ListAssignments(ctx, generic.AssignmentFilter{Window: &period})
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	seen := make(map[generic.WorkerID]bool)
	var out []generic.WorkerID
	for _, a := range as {
		if !seen[a.WorkerID] {
			seen[a.WorkerID] = true
			out = append(out, a.WorkerID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
