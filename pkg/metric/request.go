package metric

import (
	"context"
	"fmt"

	"datakite-hq/kestrel/pkg/backend"
)

// RowPolicy is the missing-value policy applied before metric evaluation.
// It determines the effective row set and, through it, the denominator of
// the success ratio.
type RowPolicy string

const (
	// IgnoreNever keeps every row eligible, nulls included.
	IgnoreNever RowPolicy = "never"
	// IgnoreIfMissing drops rows whose target column is null. This is the
	// default for single-column metrics.
	IgnoreIfMissing RowPolicy = "if_missing"
	// IgnoreEitherMissing drops pair rows where either column is null.
	IgnoreEitherMissing RowPolicy = "either_value_is_missing"
	// IgnoreBothMissing drops pair rows where both columns are null.
	IgnoreBothMissing RowPolicy = "both_values_are_missing"
)

// ParseRowPolicy parses the ignore_row_if keyword for pair metrics.
func ParseRowPolicy(s string) (RowPolicy, error) {
	switch s {
	case "never":
		return IgnoreNever, nil
	case "either_value_is_missing":
		return IgnoreEitherMissing, nil
	case "both_values_are_missing":
		return IgnoreBothMissing, nil
	default:
		return "", fmt.Errorf("unknown ignore_row_if value %q", s)
	}
}

// Request is one validated metric computation request. It is immutable for
// the duration of an evaluation and never reused across evaluations.
type Request struct {
	// Definition is the registry entry the request was validated against.
	Definition *Definition

	// Columns holds the domain columns: one for column metrics, two (A, B)
	// for pair metrics, none for table metrics.
	Columns []string

	// Args holds the normalized arguments (defaults applied).
	Args map[string]any

	// RowPolicy is the effective missing-value policy.
	RowPolicy RowPolicy
}

// NewRequest validates columns and args against the registry definition
// for the given metric identifier and builds a request.
func NewRequest(id string, columns []string, args map[string]any) (*Request, error) {
	def, err := Lookup(id)
	if err != nil {
		return nil, err
	}

	switch def.Domain {
	case DomainColumn:
		if len(columns) != 1 {
			return nil, fmt.Errorf("metric %s: expected 1 column, got %d", id, len(columns))
		}
	case DomainColumnPair:
		if len(columns) != 2 {
			return nil, fmt.Errorf("metric %s: expected 2 columns, got %d", id, len(columns))
		}
	case DomainTable:
		if len(columns) != 0 {
			return nil, fmt.Errorf("metric %s: expected no columns, got %d", id, len(columns))
		}
	}

	normalized, err := def.ValidateArgs(args)
	if err != nil {
		return nil, err
	}

	return &Request{
		Definition: def,
		Columns:    columns,
		Args:       normalized,
		RowPolicy:  def.RowPolicy,
	}, nil
}

// ID returns the metric identifier.
func (r *Request) ID() string { return r.Definition.ID }

// BoolArg returns a normalized bool argument.
func (r *Request) BoolArg(name string) bool {
	b, _ := r.Args[name].(bool)
	return b
}

// NumberArg returns a normalized numeric argument.
func (r *Request) NumberArg(name string) float64 {
	f, _ := r.Args[name].(float64)
	return f
}

// StringArg returns a normalized string argument.
func (r *Request) StringArg(name string) string {
	s, _ := r.Args[name].(string)
	return s
}

// StringListArg returns a normalized string list argument.
func (r *Request) StringListArg(name string) []string {
	l, _ := r.Args[name].([]string)
	return l
}

// Adapter is the uniform metric-invocation interface every backend
// implements. An adapter wraps exactly one dataset handle; the engine
// holds the adapter reference chosen at dataset-handle construction time
// and never branches on backend identity.
type Adapter interface {
	// Name returns the backend identifier (e.g. "memtable", "sqlite",
	// "postgresql", "gridframe").
	Name() string

	// Dataset returns the wrapped dataset handle.
	Dataset() backend.Dataset

	// Compute translates the request into the native computation and
	// returns a fully materialized outcome. Requests the backend cannot
	// express must fail with *backend.UnsupportedError rather than being
	// attempted with approximate semantics.
	Compute(ctx context.Context, req *Request) (*Outcome, error)
}
