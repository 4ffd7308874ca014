package engine

// ExpectationRequest is one immutable expectation to evaluate: a type
// identifier plus keyword arguments (target columns included, in the
// declarative style of the expectation documents). Created per evaluation
// call and never reused.
type ExpectationRequest struct {
	// Type is the expectation type identifier,
	// e.g. "expect_column_values_to_be_increasing".
	Type string `json:"expectation_type" yaml:"type"`

	// Kwargs holds the keyword arguments, e.g. column, mostly, thresholds.
	Kwargs map[string]any `json:"kwargs" yaml:"kwargs"`
}

// ValidationResult is the verdict for one expectation evaluation.
// Success is a pure function of the metric outcome and the success policy
// parameters; it is never mutated after construction.
type ValidationResult struct {
	// ExpectationType echoes the evaluated expectation type.
	ExpectationType string `json:"expectation_type"`

	// Success reports whether the expectation held.
	Success bool `json:"success"`

	// Result carries the supporting detail.
	Result ResultDetail `json:"result"`
}

// ResultDetail holds the unexpected values, their original row positions,
// and bookkeeping counts. The invariant
// len(UnexpectedList) == len(UnexpectedIndexList) always holds, and
// indices appear in ascending original-row order.
type ResultDetail struct {
	// ElementCount is the number of eligible rows after row filtering.
	// Zero for scalar and count metrics.
	ElementCount int `json:"element_count"`

	// UnexpectedCount is the number of violating rows.
	UnexpectedCount int `json:"unexpected_count"`

	// UnexpectedPercent is the violating fraction of eligible rows, in
	// percent. Zero when no rows are eligible.
	UnexpectedPercent float64 `json:"unexpected_percent"`

	// UnexpectedList holds the violating values in ascending original-row
	// order. Pair metrics report two-element value slices.
	UnexpectedList []any `json:"unexpected_list"`

	// UnexpectedIndexList holds the original row positions of the
	// violating values.
	UnexpectedIndexList []int `json:"unexpected_index_list"`

	// ObservedValue is populated for aggregate and count metrics (e.g.
	// the computed mean); nil otherwise.
	ObservedValue any `json:"observed_value,omitempty"`
}
