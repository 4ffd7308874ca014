// Package metrics exposes Prometheus instrumentation for expectation
// evaluation and suite runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for evaluation counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Config configures metric registration.
type Config struct {
	// Namespace prefixes every metric name (default: "kestrel").
	Namespace string
}

// ValidationMetrics tracks expectation evaluation and suite runs.
//
// Metrics:
//   - kestrel_expectation_evaluations_total: evaluations by type, backend, and outcome
//   - kestrel_expectation_evaluation_duration_seconds: evaluation duration by backend
//   - kestrel_suite_runs_total: suite runs by suite name and outcome
//   - kestrel_suite_run_duration_seconds: suite run duration
type ValidationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	suiteRunsTotal     *prometheus.CounterVec
	suiteRunDuration   *prometheus.HistogramVec
}

// NewValidationMetrics creates and registers the validation metrics.
func NewValidationMetrics(cfg Config, registry *prometheus.Registry) *ValidationMetrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "kestrel"
	}

	vm := &ValidationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "expectation_evaluations_total",
				Help:      "Total number of expectation evaluations",
			},
			[]string{"expectation_type", "backend", "outcome"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "expectation_evaluation_duration_seconds",
				Help:      "Duration of expectation evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			},
			[]string{"backend"},
		),
		suiteRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "suite_runs_total",
				Help:      "Total number of suite runs",
			},
			[]string{"suite", "outcome"},
		),
		suiteRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "suite_run_duration_seconds",
				Help:      "Duration of suite runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"suite"},
		),
	}

	registry.MustRegister(
		vm.evaluationsTotal,
		vm.evaluationDuration,
		vm.suiteRunsTotal,
		vm.suiteRunDuration,
	)
	return vm
}

// RecordEvaluation records one expectation evaluation.
func (vm *ValidationMetrics) RecordEvaluation(expectationType, backend, outcome string, duration time.Duration) {
	vm.evaluationsTotal.WithLabelValues(expectationType, backend, outcome).Inc()
	vm.evaluationDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordSuiteRun records one suite run.
func (vm *ValidationMetrics) RecordSuiteRun(suite, outcome string, duration time.Duration) {
	vm.suiteRunsTotal.WithLabelValues(suite, outcome).Inc()
	vm.suiteRunDuration.WithLabelValues(suite).Observe(duration.Seconds())
}
