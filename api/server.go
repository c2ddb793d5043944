/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. hlog:       Request-scoped zerolog logger, request id, access log
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. RateLimit:  Per-IP token bucket on /api

ROUTE GROUPS:
  /api/workers/*        Workers, their assignments and payments
  /api/clients/*        Clients and shift scheduling
  /api/assignments/*    Assignment lifecycle
  /api/attendance       Attendance seeding
  /api/payroll/*        Batch runs and register export
  /api/scenarios/*      Demo data (resets the store)
  /healthz, /readyz     Liveness and readiness
  /metrics              Prometheus

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	CORSOrigins  []string
	RateLimitRPS float64
	RateBurst    int

	// Ready reports whether dependencies (database, redis) are reachable.
	Ready func(ctx context.Context) error
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(hlog.NewHandler(h.logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Request-Id"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitByIP(opts.RateLimitRPS, opts.RateBurst))

		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Post("/", h.CreateWorker)
			r.Get("/{id}/assignments", h.ListWorkerAssignments)
			r.Get("/{id}/payments", h.ListWorkerPayments)
			r.Post("/{id}/salary", h.CalculateSalary)
			r.Post("/{id}/advance", h.CreateAdvance)
		})

		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", h.CreateClient)
			r.Post("/{id}/schedule", h.ScheduleShifts)
		})

		// Assignment routes
		r.Route("/assignments", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateAssignment)
			r.Post("/{id}/complete", h.CompleteAssignment)
			r.Delete("/{id}", h.DeleteAssignment)
		})

		r.Post("/attendance", h.RecordAttendance)

		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Post("/run", h.RunPayroll)
			r.Get("/export", h.ExportRegister)
		})

		// Scenario routes (demo/testing)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
