// Package gridframe provides a partitioned in-memory dataframe backend
// that models a distributed execution engine: rows are split into
// fixed-size partitions, per-row metrics fan out to one worker per
// partition, and global statistics are computed with a two-pass
// sum-and-merge. Results are fully materialized before they reach the
// success policy, and partial results are never exposed.
package gridframe

import (
	"context"
	"fmt"
	"sort"

	"datakite-hq/kestrel/pkg/backend"
)

// DefaultPartitionSize is the row count per partition when none is given.
const DefaultPartitionSize = 1024

// Column is one named column of cell values.
type Column struct {
	Name   string
	Values []backend.Value
}

// partition holds a contiguous row range. offset is the global logical
// index of its first row.
type partition struct {
	offset int
	rows   int
	cols   map[string][]backend.Value
}

// Frame is an immutable partitioned columnar table. It implements
// backend.Dataset; logical row indices are global load positions,
// independent of partition boundaries.
type Frame struct {
	name  string
	names []string
	types map[string]backend.ColumnType
	parts []*partition
	rows  int
}

// New builds a frame from columns, splitting rows into partitions of the
// given size. A size of 0 uses DefaultPartitionSize.
func New(name string, columns []Column, partitionSize int) (*Frame, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("frame %q: at least one column required", name)
	}
	if partitionSize <= 0 {
		partitionSize = DefaultPartitionSize
	}

	rows := len(columns[0].Values)
	f := &Frame{
		name:  name,
		names: make([]string, 0, len(columns)),
		types: make(map[string]backend.ColumnType, len(columns)),
		rows:  rows,
	}

	for _, col := range columns {
		if _, dup := f.types[col.Name]; dup {
			return nil, fmt.Errorf("frame %q: duplicate column %q", name, col.Name)
		}
		if len(col.Values) != rows {
			return nil, fmt.Errorf("frame %q: column %q has %d rows, expected %d",
				name, col.Name, len(col.Values), rows)
		}
		f.names = append(f.names, col.Name)
		f.types[col.Name] = backend.InferColumnType(col.Values)
	}

	for offset := 0; offset < rows || offset == 0; offset += partitionSize {
		end := offset + partitionSize
		if end > rows {
			end = rows
		}
		part := &partition{
			offset: offset,
			rows:   end - offset,
			cols:   make(map[string][]backend.Value, len(columns)),
		}
		for _, col := range columns {
			part.cols[col.Name] = col.Values[offset:end]
		}
		f.parts = append(f.parts, part)
		if rows == 0 {
			break
		}
	}

	return f, nil
}

// FromAny builds a frame from dynamically typed column data. Column order
// is alphabetical.
func FromAny(name string, data map[string][]any, partitionSize int) (*Frame, error) {
	names := make([]string, 0, len(data))
	for col := range data {
		names = append(names, col)
	}
	sort.Strings(names)

	columns := make([]Column, 0, len(names))
	for _, col := range names {
		values := make([]backend.Value, len(data[col]))
		for i, raw := range data[col] {
			v, err := backend.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col, i, err)
			}
			values[i] = v
		}
		columns = append(columns, Column{Name: col, Values: values})
	}

	return New(name, columns, partitionSize)
}

// Name returns the frame name.
func (f *Frame) Name() string { return f.name }

// Columns returns the column names in declared order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.names))
	copy(names, f.names)
	return names
}

// ColumnType returns the inferred logical type of a column.
func (f *Frame) ColumnType(name string) (backend.ColumnType, bool) {
	typ, ok := f.types[name]
	return typ, ok
}

// RowCount returns the number of rows across all partitions.
func (f *Frame) RowCount(_ context.Context) (int, error) { return f.rows, nil }

// Partitions returns the number of partitions.
func (f *Frame) Partitions() int { return len(f.parts) }

// column returns a partition's slice of the named column.
func (p *partition) column(name string) ([]backend.Value, error) {
	values, ok := p.cols[name]
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	return values, nil
}
