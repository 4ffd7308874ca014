package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

// Evaluator is the expectation evaluation engine. It is bound to one
// backend adapter (and through it one dataset handle) chosen at
// construction time; shared logic never branches on backend identity.
//
// Evaluator is safe for concurrent use: each evaluation owns its request,
// row-filter index map, and result, provided the underlying dataset handle
// is not concurrently mutated.
type Evaluator struct {
	adapter metric.Adapter
	logger  *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an evaluator bound to the given backend adapter.
func New(adapter metric.Adapter, opts ...Option) (*Evaluator, error) {
	if adapter == nil {
		return nil, fmt.Errorf("adapter cannot be nil")
	}
	e := &Evaluator{
		adapter: adapter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Backend returns the name of the bound backend adapter.
func (e *Evaluator) Backend() string { return e.adapter.Name() }

// Dataset returns the name of the bound dataset handle.
func (e *Evaluator) Dataset() string { return e.adapter.Dataset().Name() }

// Evaluate runs one expectation against the bound dataset handle. The call
// is synchronous; the adapter's computation is the only suspension point
// and its result is fully materialized before success policy is applied.
//
// Errors follow the taxonomy: *ConfigurationError before any backend call,
// *backend.UnsupportedError for capability mismatches, and
// *EvaluationError for computation failures (including cancellation). A
// returned error always means no verdict; a failed evaluation never
// reports success.
func (e *Evaluator) Evaluate(ctx context.Context, req ExpectationRequest) (*ValidationResult, error) {
	start := time.Now()

	spec, ok := expectations[req.Type]
	if !ok {
		return nil, &ConfigurationError{
			ExpectationType: req.Type,
			Message:         "unrecognized type",
			Cause:           ErrUnknownExpectation,
		}
	}

	built, err := spec.build(kwargs(req.Kwargs))
	if err != nil {
		return nil, &ConfigurationError{
			ExpectationType: req.Type,
			Message:         "invalid kwargs",
			Cause:           err,
		}
	}

	mreq, err := metric.NewRequest(spec.metricID, built.columns, built.args)
	if err != nil {
		return nil, &ConfigurationError{
			ExpectationType: req.Type,
			Message:         "invalid metric request",
			Cause:           err,
		}
	}
	if built.rowPolicy != "" {
		mreq.RowPolicy = built.rowPolicy
	}

	ds := e.adapter.Dataset()
	for _, col := range mreq.Columns {
		if !backend.HasColumn(ds, col) {
			return nil, &ConfigurationError{
				ExpectationType: req.Type,
				Message:         fmt.Sprintf("column %q absent from dataset %q", col, ds.Name()),
				Cause:           ErrColumnNotFound,
			}
		}
	}

	outcome, err := e.adapter.Compute(ctx, mreq)
	if err != nil {
		var unsupported *backend.UnsupportedError
		if errors.As(err, &unsupported) {
			return nil, unsupported
		}
		return nil, &EvaluationError{
			ExpectationType: req.Type,
			Metric:          mreq.ID(),
			Backend:         e.adapter.Name(),
			Cause:           err,
		}
	}

	if err := outcome.Validate(); err != nil {
		return nil, &EvaluationError{
			ExpectationType: req.Type,
			Metric:          mreq.ID(),
			Backend:         e.adapter.Name(),
			Cause:           fmt.Errorf("malformed outcome: %w", err),
		}
	}
	if outcome.Shape != mreq.Definition.Shape {
		return nil, &EvaluationError{
			ExpectationType: req.Type,
			Metric:          mreq.ID(),
			Backend:         e.adapter.Name(),
			Cause: fmt.Errorf("outcome shape %s does not match contract shape %s",
				outcome.Shape, mreq.Definition.Shape),
		}
	}

	result := &ValidationResult{ExpectationType: req.Type}
	switch outcome.Shape {
	case metric.ShapeSeries:
		result.Success, result.Result = assembleSeries(outcome, built.policy)
	case metric.ShapeScalar:
		var assembleErr error
		result.Success, result.Result, assembleErr = assembleScalar(outcome, built.policy)
		if assembleErr != nil {
			return nil, &EvaluationError{
				ExpectationType: req.Type,
				Metric:          mreq.ID(),
				Backend:         e.adapter.Name(),
				Cause:           assembleErr,
			}
		}
	case metric.ShapeCount:
		result.Success, result.Result = assembleCount(outcome, built.policy)
	}

	e.logger.Debug("expectation evaluated",
		"expectation_type", req.Type,
		"backend", e.adapter.Name(),
		"success", result.Success,
		"element_count", result.Result.ElementCount,
		"unexpected_count", result.Result.UnexpectedCount,
		"duration", time.Since(start),
	)

	return result, nil
}
