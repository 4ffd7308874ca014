package gridframe

import (
	"context"
	"errors"
	"testing"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

func mustFrame(t *testing.T, data map[string][]any, partitionSize int) *Frame {
	t.Helper()
	f, err := FromAny("test", data, partitionSize)
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	return f
}

func mustRequest(t *testing.T, id string, columns []string, args map[string]any) *metric.Request {
	t.Helper()
	req, err := metric.NewRequest(id, columns, args)
	if err != nil {
		t.Fatalf("NewRequest(%s): %v", id, err)
	}
	return req
}

func TestFramePartitioning(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {1, 2, 3, 4, 5, 6, 7}}, 3)
	if got := f.Partitions(); got != 3 {
		t.Fatalf("Partitions() = %d, want 3", got)
	}
	n, err := f.RowCount(context.Background())
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if n != 7 {
		t.Fatalf("RowCount = %d, want 7", n)
	}
}

func TestFrameEmpty(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {}}, 4)
	if got := f.Partitions(); got != 1 {
		t.Fatalf("Partitions() = %d, want 1", got)
	}
	n, _ := f.RowCount(context.Background())
	if n != 0 {
		t.Fatalf("RowCount = %d, want 0", n)
	}
}

// Monotonic chains must be continuous across partition boundaries: the last
// non-null value of one partition seeds the next.
func TestMonotonicAcrossPartitions(t *testing.T) {
	f := mustFrame(t, map[string][]any{
		"x": {1, 1, 1, 2, 2, 2, 3, 3, 3, 4},
	}, 3)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnValuesIncreasing, []string{"x"},
		map[string]any{"strictly": true})
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	wantViolations := []int{1, 2, 4, 5, 7, 8}
	var got []int
	for i, ok := range out.Series {
		if !ok {
			got = append(got, out.Indexes[i])
		}
	}
	if len(got) != len(wantViolations) {
		t.Fatalf("violations = %v, want %v", got, wantViolations)
	}
	for i := range got {
		if got[i] != wantViolations[i] {
			t.Fatalf("violations = %v, want %v", got, wantViolations)
		}
	}
}

// A null at a partition boundary must not break the chain: the carry skips
// it and compares against the last non-null value of the earlier partition.
func TestMonotonicNullAtBoundary(t *testing.T) {
	f := mustFrame(t, map[string][]any{
		"x": {1, 2, nil, nil, 3, 2},
	}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnValuesIncreasing, []string{"x"},
		map[string]any{"strictly": false})
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// Eligible rows are 0,1,4,5; only row 5 (2 after 3) violates.
	if len(out.Series) != 4 {
		t.Fatalf("series length = %d, want 4", len(out.Series))
	}
	for i, idx := range out.Indexes {
		wantOK := idx != 5
		if out.Series[i] != wantOK {
			t.Errorf("index %d: satisfied = %v, want %v", idx, out.Series[i], wantOK)
		}
	}
}

// Statistics for z-scores are global: the partitioned two-pass result must
// match the single-table computation.
func TestZScoreGlobalStats(t *testing.T) {
	f := mustFrame(t, map[string][]any{
		"x": {-100000000000, -1, 0, 1, 1},
	}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnValuesZScoreUnder, []string{"x"},
		map[string]any{"threshold": float64(1), "double_sided": true})
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// The outlier dominates the spread; its own |z| exceeds 1 while the
	// remaining values cluster under it.
	if out.Series[0] {
		t.Error("outlier row reported under threshold")
	}
	for i := 1; i < len(out.Series); i++ {
		if !out.Series[i] {
			t.Errorf("row %d reported over threshold", out.Indexes[i])
		}
	}
}

func TestZScoreZeroVariance(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {5, 5, 5, 5}}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnValuesZScoreUnder, []string{"x"},
		map[string]any{"threshold": float64(3), "double_sided": true})
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i, ok := range out.Series {
		if ok {
			t.Errorf("row %d satisfied with zero dispersion", out.Indexes[i])
		}
	}
}

func TestRegexMatchAcrossPartitions(t *testing.T) {
	f := mustFrame(t, map[string][]any{
		"w": {"aaa", "abb", "acc", "add", "bee", "bff", "bgg", "bhh", "hat"},
	}, 4)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnValuesMatchRegexList, []string{"w"},
		map[string]any{"regex_list": []string{"^a", "^b"}, "match_on": "any"})
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	for i, idx := range out.Indexes {
		wantOK := idx != 8
		if out.Series[i] != wantOK {
			t.Errorf("index %d: satisfied = %v, want %v", idx, out.Series[i], wantOK)
		}
	}
}

func TestNullSeriesKeepsAllRows(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {1, nil, 3, nil, 5}}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnValuesNotNull, []string{"x"}, nil)
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := out.EligibleCount(); got != 5 {
		t.Fatalf("eligible = %d, want 5 (nulls stay in the denominator)", got)
	}
	if got := out.SatisfiedCount(); got != 3 {
		t.Fatalf("satisfied = %d, want 3", got)
	}
}

func TestPairGreaterRowPolicy(t *testing.T) {
	f := mustFrame(t, map[string][]any{
		"a": {10, 5, nil, 7},
		"b": {3, 9, 1, nil},
	}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnPairAGreaterThanB, []string{"a", "b"}, nil)
	req.RowPolicy = metric.IgnoreEitherMissing
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := out.EligibleCount(); got != 2 {
		t.Fatalf("eligible = %d, want 2", got)
	}
	// Row 0: 10 > 3 holds. Row 1: 5 > 9 fails.
	if !out.Series[0] || out.Series[1] {
		t.Fatalf("series = %v, want [true false]", out.Series)
	}
}

func TestMeanMergesPartitions(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {1, 2, 3, 4, nil, 5}}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnMean, []string{"x"}, nil)
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	got, err := out.Scalar.Float64()
	if err != nil {
		t.Fatalf("Float64: %v", err)
	}
	if got != 3 {
		t.Fatalf("mean = %v, want 3", got)
	}
}

func TestMeanAllNull(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {nil, nil}}, 2)
	a := NewAdapter(f)

	req := mustRequest(t, metric.ColumnMean, []string{"x"}, nil)
	out, err := a.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !out.Scalar.IsNull() {
		t.Fatalf("mean over empty eligible set = %v, want null", out.Scalar)
	}
}

func TestComputeCancelled(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {1, 2, 3}}, 2)
	a := NewAdapter(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := mustRequest(t, metric.ColumnValuesIncreasing, []string{"x"}, nil)
	if _, err := a.Compute(ctx, req); !errors.Is(err, context.Canceled) {
		t.Fatalf("Compute with cancelled context: err = %v, want context.Canceled", err)
	}
}

func TestMatchesSingleTableResults(t *testing.T) {
	data := map[string][]any{
		"x": {1, 3, 2, nil, 5, 4, 6, nil, 8, 7, 9},
	}

	small := NewAdapter(mustFrame(t, data, 2))
	whole := NewAdapter(mustFrame(t, data, 100))

	for _, tc := range []struct {
		id   string
		args map[string]any
	}{
		{metric.ColumnValuesIncreasing, map[string]any{"strictly": true}},
		{metric.ColumnValuesDecreasing, nil},
		{metric.ColumnValuesNotNull, nil},
	} {
		req := mustRequest(t, tc.id, []string{"x"}, tc.args)

		a, err := small.Compute(context.Background(), req)
		if err != nil {
			t.Fatalf("%s small: %v", tc.id, err)
		}
		b, err := whole.Compute(context.Background(), req)
		if err != nil {
			t.Fatalf("%s whole: %v", tc.id, err)
		}

		if len(a.Series) != len(b.Series) {
			t.Fatalf("%s: series length %d vs %d", tc.id, len(a.Series), len(b.Series))
		}
		for i := range a.Series {
			if a.Series[i] != b.Series[i] || a.Indexes[i] != b.Indexes[i] {
				t.Errorf("%s: row %d diverges between partitionings", tc.id, i)
			}
		}
	}
}

func TestUnknownMetricUnsupported(t *testing.T) {
	f := mustFrame(t, map[string][]any{"x": {1}}, 0)
	a := NewAdapter(f)

	req := &metric.Request{
		Definition: &metric.Definition{ID: "column.median", Domain: metric.DomainColumn, Shape: metric.ShapeScalar},
		Columns:    []string{"x"},
	}
	_, err := a.Compute(context.Background(), req)
	var unsupported *backend.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want *backend.UnsupportedError", err)
	}
	if unsupported.Backend != BackendName {
		t.Fatalf("Backend = %q, want %q", unsupported.Backend, BackendName)
	}
}
