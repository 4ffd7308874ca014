// Package memtable provides the in-memory columnar table backend. It is
// the reference implementation of every metric contract and the backend
// behind CSV-based ad-hoc validation.
package memtable

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"datakite-hq/kestrel/pkg/backend"
)

// Column is one named column of cell values.
type Column struct {
	Name   string
	Values []backend.Value
}

// Table is an immutable in-memory columnar table. It implements
// backend.Dataset. Logical row indices are the 0-based load positions.
type Table struct {
	name  string
	names []string
	types map[string]backend.ColumnType
	cols  map[string][]backend.Value
	rows  int
}

// New builds a table from columns. All columns must have the same length.
func New(name string, columns []Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: at least one column required", name)
	}

	t := &Table{
		name:  name,
		names: make([]string, 0, len(columns)),
		types: make(map[string]backend.ColumnType, len(columns)),
		cols:  make(map[string][]backend.Value, len(columns)),
		rows:  len(columns[0].Values),
	}

	for _, col := range columns {
		if _, dup := t.cols[col.Name]; dup {
			return nil, fmt.Errorf("table %q: duplicate column %q", name, col.Name)
		}
		if len(col.Values) != t.rows {
			return nil, fmt.Errorf("table %q: column %q has %d rows, expected %d",
				name, col.Name, len(col.Values), t.rows)
		}
		t.names = append(t.names, col.Name)
		t.types[col.Name] = backend.InferColumnType(col.Values)
		t.cols[col.Name] = col.Values
	}

	return t, nil
}

// FromAny builds a table from dynamically typed column data, as decoded
// from JSON or YAML documents. Column order is alphabetical.
func FromAny(name string, data map[string][]any) (*Table, error) {
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

	return New(name, columns)
}

// FromCSV builds a table from CSV input with a header row. Empty cells are
// null; cells that parse as integers or floats become numeric values, all
// others stay strings.
func FromCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]Column, len(header))
	for i, col := range header {
		columns[i] = Column{Name: col}
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		for i, cell := range record {
			columns[i].Values = append(columns[i].Values, parseCSVCell(cell))
		}
	}

	return New(name, columns)
}

// parseCSVCell infers a cell value from its text form.
func parseCSVCell(cell string) backend.Value {
	if cell == "" {
		return backend.Null()
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return backend.Int(i)
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return backend.Float(f)
	}
	return backend.String(cell)
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns the column names in declared order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// ColumnType returns the inferred logical type of a column.
func (t *Table) ColumnType(name string) (backend.ColumnType, bool) {
	typ, ok := t.types[name]
	return typ, ok
}

// RowCount returns the number of rows.
func (t *Table) RowCount(_ context.Context) (int, error) { return t.rows, nil }

// Column returns the values of a column.
func (t *Table) Column(name string) ([]backend.Value, error) {
	values, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("table %q has no column %q", t.name, name)
	}
	return values, nil
}
