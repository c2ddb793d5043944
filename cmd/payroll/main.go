/*
main.go - Payroll command-line tool

PURPOSE:
  Runs the same payroll operations as the HTTP API against the configured
  SQLite database, for operators and cron jobs.

COMMANDS:
  calculate  Calculate (or recalculate) one worker's salary for a period
  advance    Create an advance payment for one worker
  run        Batch payroll for every scheduled worker in a period
  export     Write the payroll register for a period as xlsx

PERIODS:
  --from/--to give an explicit inclusive period. "run" also accepts
  --previous to use the last closed period of the configured pay cycle.

EXIT STATUS:
  Non-zero when the operation is rejected or fails; the JSON result is
  still printed to stdout.

EXAMPLES:
  payroll calculate --worker 7 --from 2025-01-01 --to 2025-01-15
  payroll run --previous --config configs/config.yaml
  payroll export --from 2025-01-01 --to 2025-01-15 --out register.xlsx

SEE ALSO:
  - payroll/calculator.go, payroll/batch.go, payroll/report.go
*/
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/staffing-engine/config"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/lock"
	"github.com/warp/staffing-engine/payroll"
	"github.com/warp/staffing-engine/store/sqlite"
)

// errRejected marks a result that was printed but not successful.
var errRejected = errors.New("operation rejected")

func main() {
	root, cleanup := newRootCmd(os.Stdout)
	err := root.Execute()
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs; it is built lazily from the root flags.
type app struct {
	out     io.Writer
	cfgPath string
	dbPath  string

	cfg    *config.Config
	logger zerolog.Logger
	store  *sqlite.Store
	rdb    *redis.Client
}

func (a *app) open() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.store = cfg, logger, store
	if opts := cfg.RedisOptions(); opts != nil {
		a.rdb = redis.NewClient(opts)
	}
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) calculator() *payroll.Calculator {
	return payroll.NewCalculator(a.store, payroll.WithLogger(a.logger))
}

func (a *app) runner() *payroll.Runner {
	var locker lock.Locker = lock.NewLocal()
	if a.rdb != nil {
		locker = lock.NewRedis(a.rdb, "staffing:lock:")
	}
	return payroll.NewRunner(a.calculator(), a.store, locker,
		payroll.WithRunnerLogger(a.logger),
		payroll.WithRateLimit(a.cfg.Payroll.RatePerSecond, a.cfg.Payroll.Concurrency),
		payroll.WithConcurrency(a.cfg.Payroll.Concurrency),
	)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newRootCmd returns the command tree and a cleanup that closes what it opened.
func newRootCmd(out io.Writer) (*cobra.Command, func()) {
	a := &app{out: out}

	root := &cobra.Command{
		Use:          "payroll",
		Short:        "Calculate, run and export payroll",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", os.Getenv("STAFFING_CONFIG"), "YAML config path")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")

	root.AddCommand(calculateCmd(a), advanceCmd(a), runCmd(a), exportCmd(a))
	return root, a.close
}

// periodFlags registers --from/--to on cmd.
func periodFlags(cmd *cobra.Command, from, to *string) {
	cmd.Flags().StringVar(from, "from", "", "Period start YYYY-MM-DD")
	cmd.Flags().StringVar(to, "to", "", "Period end YYYY-MM-DD (inclusive)")
}

func calculateCmd(a *app) *cobra.Command {
	var worker int64
	var from, to, existing string

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate one worker's salary for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := generic.NewPeriod(from, to)
			if err != nil {
				return err
			}
			res := a.calculator().CalculateSalary(cmd.Context(), generic.WorkerID(worker), period, generic.PaymentID(existing))
			return a.result(res.Result, res)
		},
	}
	cmd.Flags().Int64Var(&worker, "worker", 0, "Worker id")
	cmd.Flags().StringVar(&existing, "existing", "", "Payment id to recalculate in place")
	periodFlags(cmd, &from, &to)
	cmd.MarkFlagRequired("worker")
	return cmd
}

func advanceCmd(a *app) *cobra.Command {
	var worker int64
	var from, to string

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Create an advance payment from scheduled days",
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := generic.NewPeriod(from, to)
			if err != nil {
				return err
			}
			res := a.calculator().CreateAdvanceSalary(cmd.Context(), generic.WorkerID(worker), period)
			return a.result(res.Result, res)
		},
	}
	cmd.Flags().Int64Var(&worker, "worker", 0, "Worker id")
	periodFlags(cmd, &from, &to)
	cmd.MarkFlagRequired("worker")
	return cmd
}

func runCmd(a *app) *cobra.Command {
	var from, to string
	var previous bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Calculate salaries for every worker scheduled in a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			var period generic.Period
			if previous {
				period = a.cfg.PayCycle().PreviousPeriod(generic.Today())
			} else {
				var err error
				if period, err = generic.NewPeriod(from, to); err != nil {
					return err
				}
			}
			summary, err := a.runner().Run(cmd.Context(), period)
			if err != nil {
				return err
			}
			if err := a.print(summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%w: %d worker(s) failed", errRejected, summary.Failed)
			}
			return nil
		},
	}
	periodFlags(cmd, &from, &to)
	cmd.Flags().BoolVar(&previous, "previous", false, "Use the last closed period of the configured pay cycle")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var from, to, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the payroll register for a period as xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := generic.NewPeriod(from, to)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("payroll-%s-%s.xlsx", period.Start, period.End)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := payroll.ExportRegister(cmd.Context(), a.store, period, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	periodFlags(cmd, &from, &to)
	cmd.Flags().StringVar(&out, "out", "", "Output file (default payroll-<from>-<to>.xlsx)")
	return cmd
}

// result prints body and turns an unsuccessful Result into an error.
func (a *app) result(res generic.Result, body any) error {
	if err := a.print(body); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", errRejected, res.Error)
	}
	return nil
}
