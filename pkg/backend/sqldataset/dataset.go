package sqldataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"datakite-hq/kestrel/pkg/backend"
)

// Dataset is a handle to one SQL table. The row-index column carries each
// row's logical load position and supplies the only row ordering the
// adapter relies on; it is excluded from the visible column list.
type Dataset struct {
	db       *sql.DB
	dialect  Dialect
	table    string
	rowIndex string
	names    []string
	types    map[string]backend.ColumnType
}

// NewDataset introspects the table and builds a handle. The rowIndex
// column must exist; handles for tables without a usable load-position
// column cannot be constructed.
func NewDataset(ctx context.Context, db *sql.DB, dialect Dialect, table, rowIndex string) (*Dataset, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if dialect == nil {
		return nil, fmt.Errorf("dialect cannot be nil")
	}
	if rowIndex == "" {
		return nil, fmt.Errorf("table %q: row-index column is required", table)
	}

	cols, err := dialect.Columns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found or has no columns", table)
	}

	ds := &Dataset{
		db:       db,
		dialect:  dialect,
		table:    table,
		rowIndex: rowIndex,
		types:    make(map[string]backend.ColumnType, len(cols)),
	}
	found := false
	for _, col := range cols {
		if col.Name == rowIndex {
			found = true
			continue
		}
		ds.names = append(ds.names, col.Name)
		ds.types[col.Name] = col.Type
	}
	if !found {
		return nil, fmt.Errorf("table %q: row-index column %q not found", table, rowIndex)
	}
	return ds, nil
}

// Name returns the table name.
func (d *Dataset) Name() string { return d.table }

// Columns returns the data column names in declaration order, excluding
// the row-index column.
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.names))
	copy(names, d.names)
	return names
}

// ColumnType returns the mapped logical type of a data column.
func (d *Dataset) ColumnType(name string) (backend.ColumnType, bool) {
	typ, ok := d.types[name]
	return typ, ok
}

// RowCount counts the table's rows.
func (d *Dataset) RowCount(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", d.dialect.QuoteIdent(d.table))
	if err := d.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", d.table, err)
	}
	return n, nil
}

// scanValue converts a scanned database value into a cell value.
func scanValue(raw any) (backend.Value, error) {
	switch v := raw.(type) {
	case nil:
		return backend.Null(), nil
	case bool:
		return backend.Bool(v), nil
	case int64:
		return backend.Int(v), nil
	case float64:
		return backend.Float(v), nil
	case string:
		return backend.String(v), nil
	case []byte:
		return backend.String(string(v)), nil
	case time.Time:
		return backend.Time(v), nil
	default:
		return backend.Value{}, fmt.Errorf("unsupported database value type %T", raw)
	}
}
