package gridframe

import (
	"context"
	"sync"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/backend/columnar"
	"datakite-hq/kestrel/pkg/metric"
)

// BackendName identifies this adapter in conformance documents and
// capability errors.
const BackendName = "gridframe"

// Adapter computes metrics over a partitioned Frame, fanning per-row work
// out to one goroutine per partition and merging in partition order.
type Adapter struct {
	frame *Frame
}

// NewAdapter wraps a frame in a metric adapter.
func NewAdapter(frame *Frame) *Adapter {
	return &Adapter{frame: frame}
}

// Name returns the backend identifier.
func (a *Adapter) Name() string { return BackendName }

// Dataset returns the wrapped frame.
func (a *Adapter) Dataset() backend.Dataset { return a.frame }

// partResult is one partition's share of a series outcome. Global indexes
// are already offset.
type partResult struct {
	idx    []int
	series []bool
	values []backend.Value
	pairs  [][2]backend.Value
	stats  columnar.Stats
}

// mapPartitions runs fn over every partition concurrently and returns the
// results in partition order. The first error wins.
func (a *Adapter) mapPartitions(ctx context.Context, fn func(p *partition) (*partResult, error)) ([]*partResult, error) {
	results := make([]*partResult, len(a.frame.parts))
	errs := make([]error, len(a.frame.parts))

	var wg sync.WaitGroup
	for i, part := range a.frame.parts {
		wg.Add(1)
		go func(i int, part *partition) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = fn(part)
		}(i, part)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// mergeSeries concatenates partition results into one outcome, preserving
// ascending global row order.
func mergeSeries(results []*partResult, withValues, withPairs bool) *metric.Outcome {
	out := &metric.Outcome{Shape: metric.ShapeSeries}
	for _, r := range results {
		out.Indexes = append(out.Indexes, r.idx...)
		out.Series = append(out.Series, r.series...)
		if withValues {
			out.Values = append(out.Values, r.values...)
		}
		if withPairs {
			out.Pairs = append(out.Pairs, r.pairs...)
		}
	}
	if out.Indexes == nil {
		out.Indexes = []int{}
		out.Series = []bool{}
	}
	if withValues && out.Values == nil {
		out.Values = []backend.Value{}
	}
	if withPairs && out.Pairs == nil {
		out.Pairs = [][2]backend.Value{}
	}
	return out
}

// Compute evaluates a metric request against the frame.
func (a *Adapter) Compute(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

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
		return &metric.Outcome{Shape: metric.ShapeCount, Count: a.frame.rows}, nil
	default:
		return nil, &backend.UnsupportedError{
			Backend: BackendName,
			Metric:  req.ID(),
			Reason:  "metric not implemented",
		}
	}
}

// monotonic evaluates the chain relation per partition, carrying the last
// non-null value of each partition across the boundary so the chain is
// unbroken. The carries are collected sequentially (cheap single pass);
// the comparisons then run in parallel.
func (a *Adapter) monotonic(ctx context.Context, req *metric.Request, increasing bool) (*metric.Outcome, error) {
	col := req.Columns[0]
	strict := req.BoolArg("strictly")

	// Boundary carry: carry[i] is the last non-null value before
	// partition i, nil when no such value exists.
	carries := make([]*backend.Value, len(a.frame.parts))
	var last *backend.Value
	for i, part := range a.frame.parts {
		carries[i] = last
		values, err := part.column(col)
		if err != nil {
			return nil, err
		}
		for j := len(values) - 1; j >= 0; j-- {
			if !values[j].IsNull() {
				v := values[j]
				last = &v
				break
			}
		}
	}

	// The closure reads the partition's carry by offset lookup.
	carryByOffset := make(map[int]*backend.Value, len(carries))
	for i, part := range a.frame.parts {
		carryByOffset[part.offset] = carries[i]
	}

	results, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		values, err := p.column(col)
		if err != nil {
			return nil, err
		}
		local := columnar.EligibleSingle(values)
		eligible := columnar.Gather(values, local)
		series, err := columnar.MonotonicSeries(eligible, carryByOffset[p.offset], increasing, strict)
		if err != nil {
			return nil, err
		}
		return &partResult{idx: globalize(local, p.offset), series: series, values: eligible}, nil
	})
	if err != nil {
		return nil, err
	}

	return mergeSeries(results, true, false), nil
}

// zScore uses two passes: a parallel statistics pass merged into global
// mean and sample stddev, then a parallel threshold pass.
func (a *Adapter) zScore(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	col := req.Columns[0]

	statResults, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		values, err := p.column(col)
		if err != nil {
			return nil, err
		}
		eligible := columnar.Gather(values, columnar.EligibleSingle(values))
		stats, err := columnar.AccumulateStats(eligible)
		if err != nil {
			return nil, err
		}
		return &partResult{stats: stats}, nil
	})
	if err != nil {
		return nil, err
	}

	var global columnar.Stats
	for _, r := range statResults {
		global.Merge(r.stats)
	}
	mean, stddev := global.Mean(), global.SampleStddev()
	threshold := req.NumberArg("threshold")
	doubleSided := req.BoolArg("double_sided")

	results, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		values, err := p.column(col)
		if err != nil {
			return nil, err
		}
		local := columnar.EligibleSingle(values)
		eligible := columnar.Gather(values, local)
		series, err := columnar.ZScoreSeries(eligible, mean, stddev, threshold, doubleSided)
		if err != nil {
			return nil, err
		}
		return &partResult{idx: globalize(local, p.offset), series: series, values: eligible}, nil
	})
	if err != nil {
		return nil, err
	}

	return mergeSeries(results, true, false), nil
}

func (a *Adapter) regexMatch(ctx context.Context, req *metric.Request, matchAll, negate bool) (*metric.Outcome, error) {
	col := req.Columns[0]
	patterns, err := columnar.CompilePatterns(req.StringListArg("regex_list"))
	if err != nil {
		return nil, err
	}

	results, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		values, err := p.column(col)
		if err != nil {
			return nil, err
		}
		local := columnar.EligibleSingle(values)
		eligible := columnar.Gather(values, local)
		series, err := columnar.RegexMatchSeries(eligible, patterns, matchAll)
		if err != nil {
			return nil, err
		}
		if negate {
			for i := range series {
				series[i] = !series[i]
			}
		}
		return &partResult{idx: globalize(local, p.offset), series: series, values: eligible}, nil
	})
	if err != nil {
		return nil, err
	}

	return mergeSeries(results, true, false), nil
}

func (a *Adapter) nullSeries(ctx context.Context, req *metric.Request, wantNull bool) (*metric.Outcome, error) {
	col := req.Columns[0]

	results, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		values, err := p.column(col)
		if err != nil {
			return nil, err
		}
		series := make([]bool, len(values))
		for i, v := range values {
			series[i] = v.IsNull() == wantNull
		}
		return &partResult{
			idx:    globalize(columnar.EligibleAll(len(values)), p.offset),
			series: series,
			values: values,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return mergeSeries(results, true, false), nil
}

func (a *Adapter) pairGreater(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	colA, colB := req.Columns[0], req.Columns[1]
	orEqual := req.BoolArg("or_equal")
	parseDatetimes := req.BoolArg("parse_strings_as_datetimes")
	policy := req.RowPolicy

	results, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		aValues, err := p.column(colA)
		if err != nil {
			return nil, err
		}
		bValues, err := p.column(colB)
		if err != nil {
			return nil, err
		}
		local, err := columnar.EligiblePair(aValues, bValues, policy)
		if err != nil {
			return nil, err
		}
		series, pairs, err := columnar.PairGreaterSeries(
			columnar.Gather(aValues, local), columnar.Gather(bValues, local),
			orEqual, parseDatetimes)
		if err != nil {
			return nil, err
		}
		return &partResult{idx: globalize(local, p.offset), series: series, pairs: pairs}, nil
	})
	if err != nil {
		return nil, err
	}

	return mergeSeries(results, false, true), nil
}

func (a *Adapter) mean(ctx context.Context, req *metric.Request) (*metric.Outcome, error) {
	col := req.Columns[0]

	results, err := a.mapPartitions(ctx, func(p *partition) (*partResult, error) {
		values, err := p.column(col)
		if err != nil {
			return nil, err
		}
		eligible := columnar.Gather(values, columnar.EligibleSingle(values))
		stats, err := columnar.AccumulateStats(eligible)
		if err != nil {
			return nil, err
		}
		return &partResult{stats: stats}, nil
	})
	if err != nil {
		return nil, err
	}

	var global columnar.Stats
	for _, r := range results {
		global.Merge(r.stats)
	}
	if global.N == 0 {
		return &metric.Outcome{Shape: metric.ShapeScalar, Scalar: backend.Null()}, nil
	}
	return &metric.Outcome{Shape: metric.ShapeScalar, Scalar: backend.Float(global.Mean())}, nil
}

// globalize shifts partition-local positions to global row indices.
func globalize(local []int, offset int) []int {
	global := make([]int, len(local))
	for i, pos := range local {
		global[i] = pos + offset
	}
	return global
}
