package backend

import (
	"context"
	"fmt"
)

// Dataset is an opaque, read-only handle to a backend-resident table. The
// engine never owns the handle; its lifetime is controlled by the caller.
type Dataset interface {
	// Name returns a human-readable identifier for the dataset.
	Name() string

	// Columns returns the column names in declared order.
	Columns() []string

	// ColumnType returns the logical type of a column. The second return
	// is false when the column does not exist.
	ColumnType(name string) (ColumnType, bool)

	// RowCount returns the number of rows in the dataset.
	RowCount(ctx context.Context) (int, error)
}

// HasColumn reports whether the dataset declares the named column.
func HasColumn(ds Dataset, name string) bool {
	_, ok := ds.ColumnType(name)
	return ok
}

// UnsupportedError reports a metric/flag combination the active backend
// cannot express natively. It is a capability mismatch, not an evaluation
// failure: the caller must not interpret it as a rule violation.
type UnsupportedError struct {
	Backend string
	Metric  string
	Reason  string
}

// Error returns the error message.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("backend %s does not support metric %s: %s", e.Backend, e.Metric, e.Reason)
}
