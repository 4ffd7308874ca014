package memtable

import (
	"context"
	"fmt"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/backend/columnar"
	"datakite-hq/kestrel/pkg/metric"
)

// BackendName identifies this adapter in conformance documents and
// capability errors.
const BackendName = "memtable"

// Adapter computes metrics over an in-memory Table.
type Adapter struct {
	table *Table
}

// NewAdapter wraps a table in a metric adapter.
func NewAdapter(table *Table) *Adapter {
	return &Adapter{table: table}
}

// Name returns the backend identifier.
func (a *Adapter) Name() string { return BackendName }

// Dataset returns the wrapped table.
func (a *Adapter) Dataset() backend.Dataset { return a.table }

// Compute evaluates a metric request against the table.
func (a *Adapter) Compute(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.ID() {
	case metric.ColumnValuesIncreasing:
		return a.monotonic(req, true)
	case metric.ColumnValuesDecreasing:
		return a.monotonic(req, false)
	case metric.ColumnValuesZScoreUnder:
		return a.zScore(req)
	case metric.ColumnValuesMatchRegexList:
		return a.regexMatch(req, req.StringArg("match_on") == "all", false)
	case metric.ColumnValuesNotMatchRegexList:
		return a.regexMatch(req, false, true)
	case metric.ColumnValuesNull:
		return a.nullSeries(req, true)
	case metric.ColumnValuesNotNull:
		return a.nullSeries(req, false)
	case metric.ColumnPairAGreaterThanB:
		return a.pairGreater(req)
	case metric.ColumnMean:
		return a.mean(req)
	case metric.TableRowCount:
		return &metric.Outcome{Shape: metric.ShapeCount, Count: a.table.rows}, nil
	default:
		return nil, &backend.UnsupportedError{
			Backend: BackendName,
			Metric:  req.ID(),
			Reason:  "metric not implemented",
		}
	}
}

func (a *Adapter) monotonic(req *metric.Request, increasing bool) (*metric.Outcome, error) {
	values, err := a.table.Column(req.Columns[0])
	if err != nil {
		return nil, err
	}

	idx := columnar.EligibleSingle(values)
	eligible := columnar.Gather(values, idx)
	series, err := columnar.MonotonicSeries(eligible, nil, increasing, req.BoolArg("strictly"))
	if err != nil {
		return nil, err
	}

	return &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: idx,
		Series:  series,
		Values:  eligible,
	}, nil
}

func (a *Adapter) zScore(req *metric.Request) (*metric.Outcome, error) {
	values, err := a.table.Column(req.Columns[0])
	if err != nil {
		return nil, err
	}

	idx := columnar.EligibleSingle(values)
	eligible := columnar.Gather(values, idx)
	stats, err := columnar.AccumulateStats(eligible)
	if err != nil {
		return nil, err
	}
	series, err := columnar.ZScoreSeries(eligible, stats.Mean(), stats.SampleStddev(),
		req.NumberArg("threshold"), req.BoolArg("double_sided"))
	if err != nil {
		return nil, err
	}

	return &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: idx,
		Series:  series,
		Values:  eligible,
	}, nil
}

func (a *Adapter) regexMatch(req *metric.Request, matchAll, negate bool) (*metric.Outcome, error) {
	values, err := a.table.Column(req.Columns[0])
	if err != nil {
		return nil, err
	}
	patterns, err := columnar.CompilePatterns(req.StringListArg("regex_list"))
	if err != nil {
		return nil, err
	}

	idx := columnar.EligibleSingle(values)
	eligible := columnar.Gather(values, idx)
	series, err := columnar.RegexMatchSeries(eligible, patterns, matchAll)
	if err != nil {
		return nil, err
	}
	if negate {
		for i := range series {
			series[i] = !series[i]
		}
	}

	return &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: idx,
		Series:  series,
		Values:  eligible,
	}, nil
}

func (a *Adapter) nullSeries(req *metric.Request, wantNull bool) (*metric.Outcome, error) {
	values, err := a.table.Column(req.Columns[0])
	if err != nil {
		return nil, err
	}

	// Every row is eligible: the metric's own semantics are about nulls.
	idx := columnar.EligibleAll(len(values))
	series := make([]bool, len(values))
	for i, v := range values {
		series[i] = v.IsNull() == wantNull
	}

	return &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: idx,
		Series:  series,
		Values:  values,
	}, nil
}

func (a *Adapter) pairGreater(req *metric.Request) (*metric.Outcome, error) {
	aValues, err := a.table.Column(req.Columns[0])
	if err != nil {
		return nil, err
	}
	bValues, err := a.table.Column(req.Columns[1])
	if err != nil {
		return nil, err
	}

	idx, err := columnar.EligiblePair(aValues, bValues, req.RowPolicy)
	if err != nil {
		return nil, err
	}
	series, pairs, err := columnar.PairGreaterSeries(
		columnar.Gather(aValues, idx), columnar.Gather(bValues, idx),
		req.BoolArg("or_equal"), req.BoolArg("parse_strings_as_datetimes"))
	if err != nil {
		return nil, err
	}

	return &metric.Outcome{
		Shape:   metric.ShapeSeries,
		Indexes: idx,
		Series:  series,
		Pairs:   pairs,
	}, nil
}

func (a *Adapter) mean(req *metric.Request) (*metric.Outcome, error) {
	values, err := a.table.Column(req.Columns[0])
	if err != nil {
		return nil, err
	}

	eligible := columnar.Gather(values, columnar.EligibleSingle(values))
	if len(eligible) == 0 {
		return &metric.Outcome{Shape: metric.ShapeScalar, Scalar: backend.Null()}, nil
	}
	stats, err := columnar.AccumulateStats(eligible)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", req.Columns[0], err)
	}

	return &metric.Outcome{
		Shape:  metric.ShapeScalar,
		Scalar: backend.Float(stats.Mean()),
	}, nil
}
