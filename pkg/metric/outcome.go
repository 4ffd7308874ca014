package metric

import (
	"fmt"
	"sort"

	"datakite-hq/kestrel/pkg/backend"
)

// Outcome is the fully materialized result of one metric computation. It is
// owned by a single evaluation and never cached across calls.
//
// For series-shaped metrics the four slices are aligned over the eligible
// rows: Indexes holds the original row positions in ascending order (the
// index-translation table produced by the row filter), Series holds the
// per-row satisfaction flag, and exactly one of Values or Pairs holds the
// row values used for unexpected-value reporting.
type Outcome struct {
	Shape Shape

	// Indexes are the original row positions of the eligible rows.
	Indexes []int

	// Series is the per-row outcome: true when the row satisfies the metric.
	Series []bool

	// Values holds the eligible rows' values for single-column metrics.
	Values []backend.Value

	// Pairs holds the eligible rows' value pairs for column-pair metrics.
	Pairs [][2]backend.Value

	// Scalar is the result of scalar-shaped metrics.
	Scalar backend.Value

	// Count is the result of count-shaped metrics.
	Count int
}

// Validate checks the outcome's alignment invariants.
func (o *Outcome) Validate() error {
	switch o.Shape {
	case ShapeSeries:
		if len(o.Series) != len(o.Indexes) {
			return fmt.Errorf("series length %d does not match index length %d", len(o.Series), len(o.Indexes))
		}
		if o.Values != nil && len(o.Values) != len(o.Indexes) {
			return fmt.Errorf("value length %d does not match index length %d", len(o.Values), len(o.Indexes))
		}
		if o.Pairs != nil && len(o.Pairs) != len(o.Indexes) {
			return fmt.Errorf("pair length %d does not match index length %d", len(o.Pairs), len(o.Indexes))
		}
		if o.Values == nil && o.Pairs == nil && len(o.Indexes) > 0 {
			return fmt.Errorf("series outcome carries neither values nor pairs")
		}
		if !sort.IntsAreSorted(o.Indexes) {
			return fmt.Errorf("eligible row indexes are not in ascending order")
		}
	case ShapeScalar, ShapeCount:
		if len(o.Series) != 0 || len(o.Indexes) != 0 {
			return fmt.Errorf("%s outcome must not carry a series", o.Shape)
		}
	default:
		return fmt.Errorf("unknown outcome shape %d", int(o.Shape))
	}
	return nil
}

// SatisfiedCount returns the number of eligible rows that satisfy the
// metric.
func (o *Outcome) SatisfiedCount() int {
	n := 0
	for _, ok := range o.Series {
		if ok {
			n++
		}
	}
	return n
}

// EligibleCount returns the number of eligible rows.
func (o *Outcome) EligibleCount() int { return len(o.Indexes) }
