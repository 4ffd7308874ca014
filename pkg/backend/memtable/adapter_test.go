package memtable

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/metric"
)

func mustTable(t *testing.T, data map[string][]any) *Table {
	t.Helper()
	table, err := FromAny("t", data)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func mustRequest(t *testing.T, id string, columns []string, args map[string]any) *metric.Request {
	t.Helper()
	req, err := metric.NewRequest(id, columns, args)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestComputeMonotonic(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"seq": {1.0, nil, 2.0, 2.0, 1.5},
	}))

	req := mustRequest(t, metric.ColumnValuesIncreasing, []string{"seq"}, nil)
	out, err := adapter.Compute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Indexes, []int{0, 2, 3, 4}) {
		t.Errorf("indexes = %v, want nulls dropped", out.Indexes)
	}
	if want := []bool{true, true, true, false}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("series = %v, want %v", out.Series, want)
	}

	strict := mustRequest(t, metric.ColumnValuesIncreasing, []string{"seq"},
		map[string]any{"strictly": true})
	out, err = adapter.Compute(context.Background(), strict)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, true, false, false}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("strict series = %v, want %v", out.Series, want)
	}
}

func TestComputeZScore(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"v": {1.0, 2.0, 3.0, 4.0, 5.0, 1000.0},
	}))

	req := mustRequest(t, metric.ColumnValuesZScoreUnder, []string{"v"},
		map[string]any{"threshold": 2.0})
	out, err := adapter.Compute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if out.SatisfiedCount() != 5 {
		t.Errorf("satisfied = %d, want 5 (outlier violates)", out.SatisfiedCount())
	}
	if out.Series[5] {
		t.Error("outlier row reported satisfied")
	}
}

func TestComputeRegexList(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"code": {"AA", "ab", nil, "ZZ"},
	}))

	req := mustRequest(t, metric.ColumnValuesMatchRegexList, []string{"code"},
		map[string]any{"regex_list": []string{`^[A-Z]+$`}})
	out, err := adapter.Compute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Indexes, []int{0, 1, 3}) {
		t.Errorf("indexes = %v", out.Indexes)
	}
	if want := []bool{true, false, true}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("series = %v, want %v", out.Series, want)
	}

	negated := mustRequest(t, metric.ColumnValuesNotMatchRegexList, []string{"code"},
		map[string]any{"regex_list": []string{`^[A-Z]+$`}})
	out, err = adapter.Compute(context.Background(), negated)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{false, true, false}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("negated series = %v, want %v", out.Series, want)
	}
}

func TestComputeNullChecks(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"x": {1.0, nil, 3.0},
	}))

	null := mustRequest(t, metric.ColumnValuesNull, []string{"x"}, nil)
	out, err := adapter.Compute(context.Background(), null)
	if err != nil {
		t.Fatal(err)
	}
	if out.EligibleCount() != 3 {
		t.Errorf("eligible = %d, want every row", out.EligibleCount())
	}
	if want := []bool{false, true, false}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("null series = %v, want %v", out.Series, want)
	}

	notNull := mustRequest(t, metric.ColumnValuesNotNull, []string{"x"}, nil)
	out, err = adapter.Compute(context.Background(), notNull)
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, false, true}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("not-null series = %v, want %v", out.Series, want)
	}
}

func TestComputePairGreater(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"a": {2.0, 1.0, nil, nil, 5.0},
		"b": {1.0, 1.0, 2.0, nil, nil},
	}))

	// Default policy drops only both-missing rows; rows with one null
	// member stay eligible and never satisfy.
	req := mustRequest(t, metric.ColumnPairAGreaterThanB, []string{"a", "b"}, nil)
	out, err := adapter.Compute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Indexes, []int{0, 1, 2, 4}) {
		t.Errorf("indexes = %v, want both-missing row dropped", out.Indexes)
	}
	if want := []bool{true, false, false, false}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("series = %v, want %v", out.Series, want)
	}
	if out.Pairs == nil || out.Values != nil {
		t.Error("pair outcome must carry pairs, not values")
	}

	either := mustRequest(t, metric.ColumnPairAGreaterThanB, []string{"a", "b"},
		map[string]any{"or_equal": true})
	either.RowPolicy = metric.IgnoreEitherMissing
	out, err = adapter.Compute(context.Background(), either)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Indexes, []int{0, 1}) {
		t.Errorf("indexes = %v, want rows with any null dropped", out.Indexes)
	}
	if want := []bool{true, true}; !reflect.DeepEqual(out.Series, want) {
		t.Errorf("or_equal series = %v, want %v", out.Series, want)
	}
}

func TestComputeMean(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"v": {1.0, 2.0, nil, 3.0},
	}))

	req := mustRequest(t, metric.ColumnMean, []string{"v"}, nil)
	out, err := adapter.Compute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if out.Shape != metric.ShapeScalar {
		t.Fatalf("shape = %s", out.Shape)
	}
	if f, err := out.Scalar.Float64(); err != nil || f != 2.0 {
		t.Errorf("mean = %v, %v, want 2", f, err)
	}
}

func TestComputeMeanAllNull(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"v": {nil, nil},
	}))

	out, err := adapter.Compute(context.Background(),
		mustRequest(t, metric.ColumnMean, []string{"v"}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Scalar.IsNull() {
		t.Errorf("scalar = %v, want null for empty eligible set", out.Scalar)
	}
}

func TestComputeRowCount(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"v": {1.0, 2.0, 3.0},
	}))

	out, err := adapter.Compute(context.Background(),
		mustRequest(t, metric.TableRowCount, nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if out.Shape != metric.ShapeCount || out.Count != 3 {
		t.Errorf("outcome = %+v, want count 3", out)
	}
}

func TestComputeCancelled(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{"v": {1.0}}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.Compute(ctx, mustRequest(t, metric.TableRowCount, nil, nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestOutcomesSatisfyContract(t *testing.T) {
	adapter := NewAdapter(mustTable(t, map[string][]any{
		"a": {2.0, nil, 3.0},
		"b": {1.0, 1.0, nil},
	}))

	requests := []*metric.Request{
		mustRequest(t, metric.ColumnValuesIncreasing, []string{"a"}, nil),
		mustRequest(t, metric.ColumnValuesNull, []string{"a"}, nil),
		mustRequest(t, metric.ColumnPairAGreaterThanB, []string{"a", "b"}, nil),
		mustRequest(t, metric.ColumnMean, []string{"a"}, nil),
		mustRequest(t, metric.TableRowCount, nil, nil),
	}
	for _, req := range requests {
		out, err := adapter.Compute(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: %v", req.ID(), err)
		}
		if err := out.Validate(); err != nil {
			t.Errorf("%s: invalid outcome: %v", req.ID(), err)
		}
		if out.Shape != req.Definition.Shape {
			t.Errorf("%s: shape %s, want %s", req.ID(), out.Shape, req.Definition.Shape)
		}
	}
}

var _ backend.Dataset = (*Table)(nil)
var _ metric.Adapter = (*Adapter)(nil)
