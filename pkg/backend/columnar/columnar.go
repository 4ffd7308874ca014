// Package columnar implements the shared per-row computation kernels used
// by the in-memory backends. Each kernel operates on a slice of eligible
// (row-filtered) values and returns a satisfaction series aligned with it.
package columnar

import (
	"fmt"
	"math"
	"regexp"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

// EligibleSingle returns the positions of non-null values, preserving
// original order. This is the default single-column row filter.
func EligibleSingle(values []backend.Value) []int {
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if !v.IsNull() {
			idx = append(idx, i)
		}
	}
	return idx
}

// EligibleAll returns every position. Used by metrics that define their own
// missing-value semantics (the null checks).
func EligibleAll(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// EligiblePair applies the ignore_row_if policy to a column pair and
// returns the surviving positions in original order.
func EligiblePair(a, b []backend.Value, policy metric.RowPolicy) ([]int, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("column length mismatch: %d vs %d", len(a), len(b))
	}
	idx := make([]int, 0, len(a))
	for i := range a {
		aNull, bNull := a[i].IsNull(), b[i].IsNull()
		switch policy {
		case metric.IgnoreNever:
		case metric.IgnoreEitherMissing:
			if aNull || bNull {
				continue
			}
		case metric.IgnoreBothMissing:
			if aNull && bNull {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown row policy %q", policy)
		}
		idx = append(idx, i)
	}
	return idx, nil
}

// Gather selects the values at the given positions.
func Gather(values []backend.Value, idx []int) []backend.Value {
	out := make([]backend.Value, len(idx))
	for i, pos := range idx {
		out[i] = values[pos]
	}
	return out
}

// MonotonicSeries evaluates the monotonicity relation between each eligible
// value and its predecessor. The values must already be row-filtered
// (non-null); a row with no preceding value never violates. prev seeds the
// chain for partitioned evaluation and is nil for the first partition.
func MonotonicSeries(values []backend.Value, prev *backend.Value, increasing, strict bool) ([]bool, error) {
	series := make([]bool, len(values))
	last := prev
	for i, v := range values {
		if last == nil {
			series[i] = true
		} else {
			cmp, err := v.Compare(*last)
			if err != nil {
				return nil, err
			}
			if !increasing {
				cmp = -cmp
			}
			if strict {
				series[i] = cmp > 0
			} else {
				series[i] = cmp >= 0
			}
		}
		val := v
		last = &val
	}
	return series, nil
}

// Stats accumulates the moments needed for mean and sample standard
// deviation, and merges across partitions.
type Stats struct {
	N     int
	Sum   float64
	SumSq float64
}

// Add folds one value into the accumulator.
func (s *Stats) Add(v float64) {
	s.N++
	s.Sum += v
	s.SumSq += v * v
}

// Merge folds another accumulator into this one.
func (s *Stats) Merge(other Stats) {
	s.N += other.N
	s.Sum += other.Sum
	s.SumSq += other.SumSq
}

// Mean returns the accumulated mean.
func (s Stats) Mean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// SampleStddev returns the sample standard deviation (n-1 denominator).
// It is 0 when fewer than two values were accumulated or when every value
// is identical: the degenerate zero-dispersion case.
func (s Stats) SampleStddev() float64 {
	if s.N < 2 {
		return 0
	}
	mean := s.Mean()
	variance := (s.SumSq - float64(s.N)*mean*mean) / float64(s.N-1)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// AccumulateStats folds the numeric values of a row-filtered slice into an
// accumulator. Non-numeric values are a type mismatch, not a skip.
func AccumulateStats(values []backend.Value) (Stats, error) {
	var stats Stats
	for _, v := range values {
		f, err := v.Float64()
		if err != nil {
			return Stats{}, err
		}
		stats.Add(f)
	}
	return stats, nil
}

// ZScoreSeries compares each value's z-score against the threshold. With
// doubleSided the absolute z-score is compared, otherwise only the upper
// tail. A zero standard deviation means no finite z-score exists: every
// row is reported as violating rather than raising an error.
func ZScoreSeries(values []backend.Value, mean, stddev, threshold float64, doubleSided bool) ([]bool, error) {
	series := make([]bool, len(values))
	if stddev == 0 {
		return series, nil
	}
	for i, v := range values {
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		z := (f - mean) / stddev
		if doubleSided {
			z = math.Abs(z)
		}
		series[i] = z < threshold
	}
	return series, nil
}

// CompilePatterns compiles a regex list. Patterns are validated at request
// construction, so failures here indicate a programming error upstream.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", p, err)
		}
		compiled[i] = re
	}
	return compiled, nil
}

// RegexMatchSeries reports, per row-filtered value, whether it matches the
// pattern list: any pattern with matchAll false, every pattern with
// matchAll true.
func RegexMatchSeries(values []backend.Value, patterns []*regexp.Regexp, matchAll bool) ([]bool, error) {
	series := make([]bool, len(values))
	for i, v := range values {
		s, err := v.Text()
		if err != nil {
			return nil, err
		}
		matched := matchAll
		for _, re := range patterns {
			if re.MatchString(s) != matchAll {
				matched = !matchAll
				break
			}
		}
		series[i] = matched
	}
	return series, nil
}

// PairGreaterSeries evaluates A > B (or A >= B with orEqual) over eligible
// pair rows and returns the series together with the compared value pairs.
// A pair containing a null never satisfies the comparison. With
// parseDatetimes both sides are parsed as timestamps before comparing, and
// the parsed values are what the pairs report.
func PairGreaterSeries(a, b []backend.Value, orEqual, parseDatetimes bool) ([]bool, [][2]backend.Value, error) {
	if len(a) != len(b) {
		return nil, nil, fmt.Errorf("column length mismatch: %d vs %d", len(a), len(b))
	}

	series := make([]bool, len(a))
	pairs := make([][2]backend.Value, len(a))
	for i := range a {
		av, bv := a[i], b[i]
		if parseDatetimes {
			var err error
			if av, err = av.ParseDatetime(); err != nil {
				return nil, nil, err
			}
			if bv, err = bv.ParseDatetime(); err != nil {
				return nil, nil, err
			}
		}
		pairs[i] = [2]backend.Value{av, bv}

		if av.IsNull() || bv.IsNull() {
			series[i] = false
			continue
		}
		cmp, err := av.Compare(bv)
		if err != nil {
			return nil, nil, err
		}
		if orEqual {
			series[i] = cmp >= 0
		} else {
			series[i] = cmp > 0
		}
	}
	return series, pairs, nil
}
