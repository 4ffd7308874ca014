package sqldataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datakite-hq/kestrel/pkg/backend"
)

// ColumnInfo is one introspected table column.
type ColumnInfo struct {
	Name string
	Type backend.ColumnType
}

// Dialect abstracts the SQL flavor differences the adapter depends on:
// identifier quoting, parameter placeholders, column introspection, and
// the expressions that differ between engines. A dialect that lacks a
// capability reports it through an *backend.UnsupportedError so the
// adapter can refuse the request instead of approximating it.
type Dialect interface {
	// Name is the backend identifier, e.g. "sqlite" or "postgresql".
	Name() string

	// QuoteIdent quotes a table or column identifier.
	QuoteIdent(name string) string

	// Placeholder renders the parameter placeholder for 1-based position n.
	Placeholder(n int) string

	// Columns introspects the table's columns in declaration order.
	Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error)

	// StddevExpr renders the sample standard deviation aggregate over the
	// quoted column expression, evaluating to 0 for fewer than two rows.
	StddevExpr(col string) string

	// RegexPredicate renders a match predicate between the quoted column
	// expression and the pattern placeholder. negate inverts the match.
	RegexPredicate(col, placeholder string, negate bool) (string, error)

	// TimestampExpr renders a cast of the quoted column expression to a
	// timestamp, for datetime-aware comparison of string columns.
	TimestampExpr(col string) (string, error)
}

// quoteDouble is ANSI double-quote identifier quoting, shared by both
// dialects.
func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SQLiteDialect targets SQLite. Regex matching and timestamp casts are not
// available: SQLite ships no regex operator by default and its datetime
// functions silently mangle unparseable input, so both surface as
// capability mismatches.
type SQLiteDialect struct{}

// Name returns "sqlite".
func (SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdent quotes with ANSI double quotes.
func (SQLiteDialect) QuoteIdent(name string) string { return quoteDouble(name) }

// Placeholder returns the positional "?" placeholder.
func (SQLiteDialect) Placeholder(_ int) string { return "?" }

// Columns introspects via PRAGMA table_info.
func (d SQLiteDialect) Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, declType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("introspect %q: %w", table, err)
		}
		cols = append(cols, ColumnInfo{Name: name, Type: sqliteColumnType(declType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	return cols, nil
}

// sqliteColumnType maps a declared type through SQLite's affinity rules.
func sqliteColumnType(declType string) backend.ColumnType {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return backend.TypeInt
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"), strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return backend.TypeFloat
	case strings.Contains(t, "BOOL"):
		return backend.TypeBool
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return backend.TypeTime
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"):
		return backend.TypeString
	default:
		return backend.TypeUnknown
	}
}

// StddevExpr computes the sample standard deviation from the raw moments.
// SQLite has no STDDEV aggregate; MAX clamps rounding error below zero
// before the square root.
func (SQLiteDialect) StddevExpr(col string) string {
	return fmt.Sprintf(
		"CASE WHEN COUNT(%[1]s) < 2 THEN 0.0 ELSE sqrt(MAX(0.0, (SUM(%[1]s * %[1]s) - COUNT(%[1]s) * AVG(%[1]s) * AVG(%[1]s)) / (COUNT(%[1]s) - 1))) END",
		col)
}

// RegexPredicate is unsupported: SQLite defines REGEXP but ships no
// implementation for it.
func (d SQLiteDialect) RegexPredicate(_, _ string, _ bool) (string, error) {
	return "", &backend.UnsupportedError{
		Backend: d.Name(),
		Reason:  "no regex operator available",
	}
}

// TimestampExpr is unsupported: SQLite datetime() returns NULL for
// unparseable input instead of failing, which would silently turn bad data
// into ignored rows.
func (d SQLiteDialect) TimestampExpr(_ string) (string, error) {
	return "", &backend.UnsupportedError{
		Backend: d.Name(),
		Reason:  "no strict timestamp cast available",
	}
}

// PostgresDialect targets PostgreSQL.
type PostgresDialect struct{}

// Name returns "postgresql".
func (PostgresDialect) Name() string { return "postgresql" }

// QuoteIdent quotes with ANSI double quotes.
func (PostgresDialect) QuoteIdent(name string) string { return quoteDouble(name) }

// Placeholder returns the numbered "$n" placeholder.
func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// Columns introspects via information_schema.
func (PostgresDialect) Columns(ctx context.Context, db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_name = $1 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("introspect %q: %w", table, err)
		}
		cols = append(cols, ColumnInfo{Name: name, Type: postgresColumnType(dataType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %q: %w", table, err)
	}
	return cols, nil
}

func postgresColumnType(dataType string) backend.ColumnType {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint":
		return backend.TypeInt
	case "real", "double precision", "numeric", "decimal":
		return backend.TypeFloat
	case "boolean":
		return backend.TypeBool
	case "text", "character varying", "character":
		return backend.TypeString
	case "date", "timestamp without time zone", "timestamp with time zone":
		return backend.TypeTime
	default:
		return backend.TypeUnknown
	}
}

// StddevExpr uses the native aggregate; STDDEV_SAMP is NULL for fewer than
// two rows.
func (PostgresDialect) StddevExpr(col string) string {
	return fmt.Sprintf("COALESCE(STDDEV_SAMP(%s), 0.0)", col)
}

// RegexPredicate uses the POSIX regex operators.
func (PostgresDialect) RegexPredicate(col, placeholder string, negate bool) (string, error) {
	op := "~"
	if negate {
		op = "!~"
	}
	return fmt.Sprintf("%s %s %s", col, op, placeholder), nil
}

// TimestampExpr casts through ::timestamp, which fails loudly on
// unparseable input.
func (PostgresDialect) TimestampExpr(col string) (string, error) {
	return fmt.Sprintf("(%s)::timestamp", col), nil
}
