// Package metrics exposes Prometheus counters for scheduling and payroll.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	scheduleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffing",
			Name:      "schedule_requests_total",
			Help:      "Scheduling batches by outcome.",
		},
		[]string{"outcome"},
	)

	shiftConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staffing",
			Name:      "shift_conflicts_total",
			Help:      "Shift conflicts reported to callers.",
		},
	)

	statusUpdateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "staffing",
			Name:      "worker_status_update_failures_total",
			Help:      "Worker status updates that failed after a committed write.",
		},
	)

	payrollCalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffing",
			Name:      "payroll_calculations_total",
			Help:      "Payroll calculations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	attendanceSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffing",
			Name:      "attendance_records_skipped_total",
			Help:      "Attendance records skipped during aggregation by reason.",
		},
		[]string{"reason"},
	)

	payrollRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staffing",
			Name:      "payroll_batch_runs_total",
			Help:      "Batch payroll runs by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			scheduleOutcomes,
			shiftConflicts,
			statusUpdateFailures,
			payrollCalculations,
			attendanceSkipped,
			payrollRuns,
		)
	})
}

func IncScheduleOutcome(outcome string) {
	scheduleOutcomes.WithLabelValues(outcome).Inc()
}

func AddShiftConflicts(n int) {
	shiftConflicts.Add(float64(n))
}

func IncStatusUpdateFailure() {
	statusUpdateFailures.Inc()
}

func IncPayrollCalculation(kind, outcome string) {
	payrollCalculations.WithLabelValues(kind, outcome).Inc()
}

func AddAttendanceSkipped(reason string, n int) {
	attendanceSkipped.WithLabelValues(reason).Add(float64(n))
}

func IncPayrollRun(outcome string) {
	payrollRuns.WithLabelValues(outcome).Inc()
}
