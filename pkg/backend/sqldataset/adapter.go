package sqldataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

// Adapter translates metric requests into dialect SQL over one dataset
// handle. All ordering comes from the row-index column; result sets are
// fully materialized before they are returned.
type Adapter struct {
	ds *Dataset
}

// NewAdapter wraps a dataset handle in a metric adapter.
func NewAdapter(ds *Dataset) *Adapter {
	return &Adapter{ds: ds}
}

// Name returns the dialect's backend identifier.
func (a *Adapter) Name() string { return a.ds.dialect.Name() }

// Dataset returns the wrapped dataset handle.
func (a *Adapter) Dataset() backend.Dataset { return a.ds }

// Compute evaluates a metric request against the table.
func (a *Adapter) Compute(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	switch req.ID() {
	case metric.ColumnValuesIncreasing:
		return a.monotonic(ctx, req, true)
	case metric.ColumnValuesDecreasing:
		return a.monotonic(ctx, req, false)
	case metric.ColumnValuesZScoreUnder:
		return a.zScore(ctx, req)
	case metric.ColumnValuesMatchRegexList:
		return a.regexMatch(ctx, req, req.StringArg("match_on") == "all", false)
	case metric.ColumnValuesNotMatchRegexList:
		return a.regexMatch(ctx, req, false, true)
	case metric.ColumnValuesNull:
		return a.nullSeries(ctx, req, true)
	case metric.ColumnValuesNotNull:
		return a.nullSeries(ctx, req, false)
	case metric.ColumnPairAGreaterThanB:
		return a.pairGreater(ctx, req)
	case metric.ColumnMean:
		return a.mean(ctx, req)
	case metric.TableRowCount:
		n, err := a.ds.RowCount(ctx)
		if err != nil {
			return nil, err
		}
		return &metric.Outcome{Shape: metric.ShapeCount, Count: n}, nil
	default:
		return nil, &backend.UnsupportedError{
			Backend: a.Name(),
			Metric:  req.ID(),
			Reason:  "metric not implemented",
		}
	}
}

// querySeries runs a query whose rows are (row_index, value, satisfied)
// and collects them into a series outcome.
func (a *Adapter) querySeries(ctx context.Context, query string, args ...any) (*metric.Outcome, error) {
	rows, err := a.ds.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("series query: %w", err)
	}
	defer rows.Close()

	out := &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: []int{},
		Series:  []bool{},
		Values:  []backend.Value{},
	}
	for rows.Next() {
		var (
			idx int64
			raw any
			ok  int
		)
		if err := rows.Scan(&idx, &raw, &ok); err != nil {
			return nil, fmt.Errorf("series scan: %w", err)
		}
		val, err := scanValue(raw)
		if err != nil {
			return nil, err
		}
		out.Indexes = append(out.Indexes, int(idx))
		out.Series = append(out.Series, ok != 0)
		out.Values = append(out.Values, val)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("series query: %w", err)
	}
	return out, nil
}

// monotonic compares each non-null value against its predecessor with a
// LAG window ordered by the row-index column. The first value of the
// chain has no predecessor and never violates.
func (a *Adapter) monotonic(ctx context.Context, req *metric.Request, increasing bool) (*metric.Outcome, error) {
	d := a.ds.dialect
	col := d.QuoteIdent(req.Columns[0])
	ri := d.QuoteIdent(a.ds.rowIndex)
	strict := req.BoolArg("strictly")

	var op string
	switch {
	case increasing && strict:
		op = ">"
	case increasing:
		op = ">="
	case strict:
		op = "<"
	default:
		op = "<="
	}

	query := fmt.Sprintf(`
SELECT idx, val, CASE WHEN prev IS NULL THEN 1 WHEN val %s prev THEN 1 ELSE 0 END
FROM (
	SELECT %s AS idx, %s AS val, LAG(%s) OVER (ORDER BY %s) AS prev
	FROM %s WHERE %s IS NOT NULL
) chain
ORDER BY idx`,
		op, ri, col, col, ri, d.QuoteIdent(a.ds.table), col)

	return a.querySeries(ctx, query)
}

// zScore computes the global mean and sample standard deviation with an
// aggregate query, then evaluates the threshold per row. A zero standard
// deviation means no finite z-score exists: every eligible row violates.
func (a *Adapter) zScore(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	d := a.ds.dialect
	col := d.QuoteIdent(req.Columns[0])
	ri := d.QuoteIdent(a.ds.rowIndex)
	tbl := d.QuoteIdent(a.ds.table)

	aggQuery := fmt.Sprintf(
		"SELECT COUNT(%[1]s), CAST(COALESCE(AVG(%[1]s), 0) AS DOUBLE PRECISION), CAST(%[2]s AS DOUBLE PRECISION) FROM %[3]s WHERE %[1]s IS NOT NULL",
		col, d.StddevExpr(col), tbl)

	var (
		n            int
		mean, stddev float64
	)
	if err := a.ds.db.QueryRowContext(ctx, aggQuery).Scan(&n, &mean, &stddev); err != nil {
		return nil, fmt.Errorf("z-score aggregate: %w", err)
	}

	if stddev == 0 {
		query := fmt.Sprintf(
			"SELECT %[1]s, %[2]s, 0 FROM %[3]s WHERE %[2]s IS NOT NULL ORDER BY %[1]s",
			ri, col, tbl)
		return a.querySeries(ctx, query)
	}

	zExpr := fmt.Sprintf("(%s - %s) / %s", col, d.Placeholder(1), d.Placeholder(2))
	if req.BoolArg("double_sided") {
		zExpr = "ABS(" + zExpr + ")"
	}
	query := fmt.Sprintf(
		"SELECT %[1]s, %[2]s, CASE WHEN %[4]s < %[5]s THEN 1 ELSE 0 END FROM %[3]s WHERE %[2]s IS NOT NULL ORDER BY %[1]s",
		ri, col, tbl, zExpr, d.Placeholder(3))

	return a.querySeries(ctx, query, mean, stddev, req.NumberArg("threshold"))
}

// regexMatch renders one predicate per pattern and joins them: OR for
// match-any, AND for match-all and for the negated family (a value matches
// none of the patterns when every negated predicate holds).
func (a *Adapter) regexMatch(ctx context.Context, req *metric.Request, matchAll, negate bool) (*metric.Outcome, error) {
	d := a.ds.dialect
	col := d.QuoteIdent(req.Columns[0])
	ri := d.QuoteIdent(a.ds.rowIndex)
	patterns := req.StringListArg("regex_list")

	preds := make([]string, len(patterns))
	args := make([]any, len(patterns))
	for i, pattern := range patterns {
		pred, err := d.RegexPredicate(col, d.Placeholder(i+1), negate)
		if err != nil {
			var unsupported *backend.UnsupportedError
			if errors.As(err, &unsupported) {
				return nil, &backend.UnsupportedError{
					Backend: unsupported.Backend,
					Metric:  req.ID(),
					Reason:  unsupported.Reason,
				}
			}
			return nil, err
		}
		preds[i] = pred
		args[i] = pattern
	}

	join := " OR "
	if matchAll || negate {
		join = " AND "
	}
	query := fmt.Sprintf(
		"SELECT %[1]s, %[2]s, CASE WHEN %[4]s THEN 1 ELSE 0 END FROM %[3]s WHERE %[2]s IS NOT NULL ORDER BY %[1]s",
		ri, col, d.QuoteIdent(a.ds.table), strings.Join(preds, join))

	return a.querySeries(ctx, query, args...)
}

// nullSeries keeps every row eligible; the null checks define their own
// missing-value semantics.
func (a *Adapter) nullSeries(ctx context.Context, req *metric.Request, wantNull bool) (*metric.Outcome, error) {
	d := a.ds.dialect
	col := d.QuoteIdent(req.Columns[0])
	ri := d.QuoteIdent(a.ds.rowIndex)

	cond := "IS NULL"
	if !wantNull {
		cond = "IS NOT NULL"
	}
	query := fmt.Sprintf(
		"SELECT %[1]s, %[2]s, CASE WHEN %[2]s %[4]s THEN 1 ELSE 0 END FROM %[3]s ORDER BY %[1]s",
		ri, col, d.QuoteIdent(a.ds.table), cond)

	return a.querySeries(ctx, query)
}

// pairGreater evaluates A > B row by row. The row policy becomes the WHERE
// clause; a surviving row with a null member never satisfies.
func (a *Adapter) pairGreater(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	d := a.ds.dialect
	colA := d.QuoteIdent(req.Columns[0])
	colB := d.QuoteIdent(req.Columns[1])
	ri := d.QuoteIdent(a.ds.rowIndex)

	exprA, exprB := colA, colB
	if req.BoolArg("parse_strings_as_datetimes") {
		var err error
		if exprA, err = d.TimestampExpr(colA); err == nil {
			exprB, err = d.TimestampExpr(colB)
		}
		if err != nil {
			var unsupported *backend.UnsupportedError
			if errors.As(err, &unsupported) {
				return nil, &backend.UnsupportedError{
					Backend: unsupported.Backend,
					Metric:  req.ID(),
					Reason:  unsupported.Reason,
				}
			}
			return nil, err
		}
	}

	op := ">"
	if req.BoolArg("or_equal") {
		op = ">="
	}

	var where string
	switch req.RowPolicy {
	case metric.IgnoreNever:
	case metric.IgnoreEitherMissing:
		where = fmt.Sprintf("WHERE %s IS NOT NULL AND %s IS NOT NULL", colA, colB)
	case metric.IgnoreBothMissing:
		where = fmt.Sprintf("WHERE NOT (%s IS NULL AND %s IS NULL)", colA, colB)
	default:
		return nil, fmt.Errorf("unknown row policy %q", req.RowPolicy)
	}

	// The comparison runs on the transformed expressions; only the null
	// guard looks at the raw columns.
	query := fmt.Sprintf(`
SELECT %[1]s, %[2]s, %[3]s,
	CASE WHEN %[4]s IS NULL OR %[5]s IS NULL THEN 0 WHEN %[2]s %[6]s %[3]s THEN 1 ELSE 0 END
FROM %[7]s %[8]s
ORDER BY %[1]s`,
		ri, exprA, exprB, colA, colB, op, d.QuoteIdent(a.ds.table), where)

	rows, err := a.ds.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pair query: %w", err)
	}
	defer rows.Close()

	out := &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: []int{},
		Series:  []bool{},
		Pairs:   [][2]backend.Value{},
	}
	for rows.Next() {
		var (
			idx        int64
			rawA, rawB any
			ok         int
		)
		if err := rows.Scan(&idx, &rawA, &rawB, &ok); err != nil {
			return nil, fmt.Errorf("pair scan: %w", err)
		}
		va, err := scanValue(rawA)
		if err != nil {
			return nil, err
		}
		vb, err := scanValue(rawB)
		if err != nil {
			return nil, err
		}
		out.Indexes = append(out.Indexes, int(idx))
		out.Series = append(out.Series, ok != 0)
		out.Pairs = append(out.Pairs, [2]backend.Value{va, vb})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pair query: %w", err)
	}
	return out, nil
}

func (a *Adapter) mean(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	d := a.ds.dialect
	col := d.QuoteIdent(req.Columns[0])

	query := fmt.Sprintf(
		"SELECT CAST(AVG(%[1]s) AS DOUBLE PRECISION) FROM %[2]s WHERE %[1]s IS NOT NULL",
		col, d.QuoteIdent(a.ds.table))

	var mean sql.NullFloat64
	if err := a.ds.db.QueryRowContext(ctx, query).Scan(&mean); err != nil {
		return nil, fmt.Errorf("mean query: %w", err)
	}
	if !mean.Valid {
		return &metric.Outcome{Shape: metric.ShapeScalar, Scalar: backend.Null()}, nil
	}
	return &metric.Outcome{Shape: metric.ShapeScalar, Scalar: backend.Float(mean.Float64)}, nil
}
