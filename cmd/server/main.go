/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the staffing engine HTTP server and the
  background payroll scheduler. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (YAML file, .env, STAFFING_* environment)
  2. Apply command-line flag overrides
  3. Initialize logger and SQLite store
  4. Connect Redis for the payroll run lock (optional)
  5. Wire scheduler, calculator, runner and HTTP handler
  6. Start server and payroll scheduler with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: $STAFFING_CONFIG or none)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the payroll scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout_seconds)
  4. Close database and Redis connections

EXAMPLES:
  # Run with a config file
  ./server -config=configs/config.yaml

  # Run with in-memory database on another port
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/warp/staffing-engine/api"
	"github.com/warp/staffing-engine/config"
	"github.com/warp/staffing-engine/lock"
	"github.com/warp/staffing-engine/metrics"
	"github.com/warp/staffing-engine/payroll"
	"github.com/warp/staffing-engine/scheduling"
	"github.com/warp/staffing-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", os.Getenv("STAFFING_CONFIG"), "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger, err := cfg.Logger(os.Stdout)
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to configure logger")
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	// Run lock: Redis when configured so that several instances share it
	var locker lock.Locker = lock.NewLocal()
	var rdb *redis.Client
	if opts := cfg.RedisOptions(); opts != nil {
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "staffing:lock:")
		logger.Info().Str("redis", opts.Addr).Msg("using redis run lock")
	}

	metrics.Register()

	// Core services
	sched := scheduling.NewScheduler(store, scheduling.WithLogger(logger))
	calc := payroll.NewCalculator(store, payroll.WithLogger(logger))
	runner := payroll.NewRunner(calc, store, locker,
		payroll.WithRunnerLogger(logger),
		payroll.WithRateLimit(cfg.Payroll.RatePerSecond, cfg.Payroll.Concurrency),
		payroll.WithConcurrency(cfg.Payroll.Concurrency),
	)

	handler := api.NewHandler(store, sched, calc, runner, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins:  cfg.API.CORSOrigins,
		RateLimitRPS: cfg.API.RateLimitRPS,
		RateBurst:    cfg.API.RateBurst,
		Ready: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})

	// Payroll scheduler
	payrollScheduler := api.NewPayrollScheduler(runner, cfg.PayCycle(), logger)
	payrollScheduler.CheckInterval = cfg.Payroll.CheckInterval
	payrollScheduler.Enabled = cfg.Payroll.Enabled
	payrollScheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Str("db", cfg.Database.Path).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	payrollScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
