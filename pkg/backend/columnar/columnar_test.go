package columnar

import (
	"math"
	"reflect"
	"testing"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

func floats(fs ...float64) []backend.Value {
	values := make([]backend.Value, len(fs))
	for i, f := range fs {
		values[i] = backend.Float(f)
	}
	return values
}

func TestEligibleSingle(t *testing.T) {
	values := []backend.Value{backend.Int(1), backend.Null(), backend.Int(3), backend.Null()}
	if got := EligibleSingle(values); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("EligibleSingle = %v, want [0 2]", got)
	}
	if got := EligibleSingle(nil); len(got) != 0 {
		t.Errorf("EligibleSingle(nil) = %v, want empty", got)
	}
}

func TestEligiblePair(t *testing.T) {
	a := []backend.Value{backend.Int(1), backend.Null(), backend.Int(3), backend.Null()}
	b := []backend.Value{backend.Int(1), backend.Int(2), backend.Null(), backend.Null()}

	tests := []struct {
		policy metric.RowPolicy
		want   []int
	}{
		{metric.IgnoreNever, []int{0, 1, 2, 3}},
		{metric.IgnoreEitherMissing, []int{0}},
		{metric.IgnoreBothMissing, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			got, err := EligiblePair(a, b, tt.policy)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EligiblePair = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := EligiblePair(a, b[:2], metric.IgnoreNever); err == nil {
		t.Error("length mismatch accepted")
	}
	if _, err := EligiblePair(a, b, metric.RowPolicy("sometimes")); err == nil {
		t.Error("unknown policy accepted")
	}
}

func TestMonotonicSeries(t *testing.T) {
	tests := []struct {
		name       string
		values     []backend.Value
		prev       *backend.Value
		increasing bool
		strict     bool
		want       []bool
	}{
		{
			name:       "increasing with plateau",
			values:     floats(1, 2, 2, 3),
			increasing: true,
			want:       []bool{true, true, true, true},
		},
		{
			name:       "strictly increasing rejects plateau",
			values:     floats(1, 2, 2, 3),
			increasing: true,
			strict:     true,
			want:       []bool{true, true, false, true},
		},
		{
			name:       "decreasing",
			values:     floats(3, 2, 2, 4),
			increasing: false,
			want:       []bool{true, true, true, false},
		},
		{
			name:       "seeded chain",
			values:     floats(1, 2),
			prev:       &[]backend.Value{backend.Float(5)}[0],
			increasing: true,
			want:       []bool{false, true},
		},
		{
			name:       "empty",
			values:     nil,
			increasing: true,
			want:       []bool{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MonotonicSeries(tt.values, tt.prev, tt.increasing, tt.strict)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("series = %v, want %v", got, tt.want)
			}
		})
	}

	mixed := []backend.Value{backend.Int(1), backend.String("a")}
	if _, err := MonotonicSeries(mixed, nil, true, false); err == nil {
		t.Error("incomparable kinds accepted")
	}
}

func TestStatsMerge(t *testing.T) {
	var whole Stats
	for _, f := range []float64{1, 2, 3, 4, 5, 6} {
		whole.Add(f)
	}

	var left, right Stats
	for _, f := range []float64{1, 2, 3} {
		left.Add(f)
	}
	for _, f := range []float64{4, 5, 6} {
		right.Add(f)
	}
	left.Merge(right)

	if left.Mean() != whole.Mean() {
		t.Errorf("merged mean %v != whole mean %v", left.Mean(), whole.Mean())
	}
	if math.Abs(left.SampleStddev()-whole.SampleStddev()) > 1e-12 {
		t.Errorf("merged stddev %v != whole stddev %v", left.SampleStddev(), whole.SampleStddev())
	}
}

func TestSampleStddev(t *testing.T) {
	var s Stats
	for _, f := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(f)
	}
	// Sample variance of this classic set is 32/7.
	want := math.Sqrt(32.0 / 7.0)
	if got := s.SampleStddev(); math.Abs(got-want) > 1e-12 {
		t.Errorf("SampleStddev = %v, want %v", got, want)
	}

	var single Stats
	single.Add(3)
	if single.SampleStddev() != 0 {
		t.Error("single value should have zero stddev")
	}

	var constant Stats
	for i := 0; i < 5; i++ {
		constant.Add(2)
	}
	if constant.SampleStddev() != 0 {
		t.Error("constant values should have zero stddev")
	}
}

func TestAccumulateStatsRejectsNonNumeric(t *testing.T) {
	if _, err := AccumulateStats([]backend.Value{backend.Int(1), backend.String("x")}); err == nil {
		t.Error("non-numeric value accepted")
	}
}

func TestZScoreSeries(t *testing.T) {
	values := floats(1, 2, 3, 100)
	stats, err := AccumulateStats(values)
	if err != nil {
		t.Fatal(err)
	}

	series, err := ZScoreSeries(values, stats.Mean(), stats.SampleStddev(), 1.2, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, true, true, false}
	if !reflect.DeepEqual(series, want) {
		t.Errorf("series = %v, want %v", series, want)
	}
}

func TestZScoreSeriesDoubleSided(t *testing.T) {
	values := floats(-100, 0, 0, 0, 100)
	stats, err := AccumulateStats(values)
	if err != nil {
		t.Fatal(err)
	}

	// Single-sided misses the low outlier, double-sided catches both.
	single, err := ZScoreSeries(values, stats.Mean(), stats.SampleStddev(), 1.0, false)
	if err != nil {
		t.Fatal(err)
	}
	if !single[0] {
		t.Error("low outlier should pass a single-sided upper-tail check")
	}
	double, err := ZScoreSeries(values, stats.Mean(), stats.SampleStddev(), 1.0, true)
	if err != nil {
		t.Fatal(err)
	}
	if double[0] || double[4] {
		t.Errorf("double-sided series = %v, both outliers should violate", double)
	}
}

func TestZScoreZeroDispersionViolatesAll(t *testing.T) {
	values := floats(5, 5, 5)
	series, err := ZScoreSeries(values, 5, 0, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	for i, ok := range series {
		if ok {
			t.Errorf("row %d satisfied with zero dispersion", i)
		}
	}
}

func TestRegexMatchSeries(t *testing.T) {
	patterns, err := CompilePatterns([]string{`^[A-Z]+$`, `^.{3}$`})
	if err != nil {
		t.Fatal(err)
	}
	values := []backend.Value{
		backend.String("ABC"),  // matches both
		backend.String("AB"),   // matches first only
		backend.String("abc"),  // matches second only
		backend.String("abcd"), // matches neither
	}

	anyMatch, err := RegexMatchSeries(values, patterns, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, true, true, false}; !reflect.DeepEqual(anyMatch, want) {
		t.Errorf("any series = %v, want %v", anyMatch, want)
	}

	allMatch, err := RegexMatchSeries(values, patterns, true)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, false, false, false}; !reflect.DeepEqual(allMatch, want) {
		t.Errorf("all series = %v, want %v", allMatch, want)
	}

	if _, err := RegexMatchSeries([]backend.Value{backend.Int(1)}, patterns, false); err == nil {
		t.Error("non-string value accepted")
	}
}

func TestCompilePatternsRejectsInvalid(t *testing.T) {
	if _, err := CompilePatterns([]string{"[unclosed"}); err == nil {
		t.Error("invalid pattern accepted")
	}
}

func TestPairGreaterSeries(t *testing.T) {
	a := []backend.Value{backend.Int(2), backend.Int(1), backend.Int(3), backend.Null()}
	b := []backend.Value{backend.Int(1), backend.Int(1), backend.Null(), backend.Int(1)}

	series, pairs, err := PairGreaterSeries(a, b, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, false, false, false}; !reflect.DeepEqual(series, want) {
		t.Errorf("series = %v, want %v", series, want)
	}
	if len(pairs) != 4 {
		t.Fatalf("pairs length = %d, want 4", len(pairs))
	}

	// or_equal turns the tie into a satisfaction but leaves null rows failed.
	series, _, err = PairGreaterSeries(a, b, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, true, false, false}; !reflect.DeepEqual(series, want) {
		t.Errorf("or_equal series = %v, want %v", series, want)
	}
}

func TestPairGreaterSeriesDatetimes(t *testing.T) {
	a := []backend.Value{backend.String("2024-06-02"), backend.String("2024-06-01")}
	b := []backend.Value{backend.String("2024-06-01"), backend.String("2024-06-02")}

	series, pairs, err := PairGreaterSeries(a, b, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, false}; !reflect.DeepEqual(series, want) {
		t.Errorf("series = %v, want %v", series, want)
	}
	if pairs[0][0].Kind() != backend.KindTime {
		t.Errorf("pair kind = %s, want time (parsed values reported)", pairs[0][0].Kind())
	}

	bad := []backend.Value{backend.String("not a date")}
	if _, _, err := PairGreaterSeries(bad, bad, false, true); err == nil {
		t.Error("unparseable datetime accepted")
	}
}
