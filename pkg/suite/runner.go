package suite

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"datakite-hq/kestrel/pkg/engine"
	"datakite-hq/kestrel/pkg/telemetry/metrics"
)

// ExpectationOutcome is the per-expectation record of a suite run. Exactly
// one of Result and Error is set: an evaluation error means no verdict and
// is never folded into Success.
type ExpectationOutcome struct {
	Request engine.ExpectationRequest `json:"request"`
	Result  *engine.ValidationResult  `json:"result,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// Report is the outcome of one suite run.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Suite is the suite name.
	Suite string `json:"suite"`

	// Backend is the backend the suite ran against.
	Backend string `json:"backend"`

	// Dataset is the dataset name.
	Dataset string `json:"dataset"`

	// StartedAt is the run start time (UTC).
	StartedAt time.Time `json:"started_at"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// Outcomes holds one entry per expectation, in declaration order.
	Outcomes []ExpectationOutcome `json:"outcomes"`

	// SuccessCount, FailureCount, and ErrorCount partition the outcomes.
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	ErrorCount   int `json:"error_count"`

	// Success is true only when every expectation evaluated and held.
	Success bool `json:"success"`
}

// Runner evaluates suites against one backend-bound evaluator.
type Runner struct {
	evaluator *engine.Evaluator
	logger    *slog.Logger
	metrics   *metrics.ValidationMetrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(vm *metrics.ValidationMetrics) RunnerOption {
	return func(r *Runner) { r.metrics = vm }
}

// NewRunner creates a runner over the given evaluator.
func NewRunner(evaluator *engine.Evaluator, opts ...RunnerOption) *Runner {
	r := &Runner{
		evaluator: evaluator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every expectation of the suite in declaration order. The
// run continues past failures and errors; ctx cancellation stops it with
// the error recorded for the remaining expectations unevaluated.
func (r *Runner) Run(ctx context.Context, s *Suite) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		Suite:     s.Name,
		Backend:   r.evaluator.Backend(),
		Dataset:   r.evaluator.Dataset(),
		StartedAt: start.UTC(),
		Outcomes:  make([]ExpectationOutcome, 0, len(s.Expectations)),
	}

	for _, exp := range s.Expectations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evalStart := time.Now()
		result, err := r.evaluator.Evaluate(ctx, exp)
		outcome := ExpectationOutcome{Request: exp}

		var label string
		switch {
		case err != nil:
			outcome.Error = err.Error()
			report.ErrorCount++
			label = metrics.OutcomeError
			r.logger.Warn("expectation evaluation failed",
				"run_id", report.RunID,
				"suite", s.Name,
				"expectation_type", exp.Type,
				"error", err,
			)
		case result.Success:
			outcome.Result = result
			report.SuccessCount++
			label = metrics.OutcomeSuccess
		default:
			outcome.Result = result
			report.FailureCount++
			label = metrics.OutcomeFailure
		}
		if r.metrics != nil {
			r.metrics.RecordEvaluation(exp.Type, report.Backend, label, time.Since(evalStart))
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Duration = time.Since(start)
	report.Success = report.FailureCount == 0 && report.ErrorCount == 0

	runLabel := metrics.OutcomeFailure
	if report.Success {
		runLabel = metrics.OutcomeSuccess
	}
	if r.metrics != nil {
		r.metrics.RecordSuiteRun(s.Name, runLabel, report.Duration)
	}

	r.logger.Info("suite run finished",
		"run_id", report.RunID,
		"suite", s.Name,
		"backend", report.Backend,
		"success", report.Success,
		"successes", report.SuccessCount,
		"failures", report.FailureCount,
		"errors", report.ErrorCount,
		"duration", report.Duration,
	)
	return report, nil
}
