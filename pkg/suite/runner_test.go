package suite

import (
	"context"
	"testing"

	"datakite-hq/kestrel/pkg/backend/memtable"
	"datakite-hq/kestrel/pkg/engine"
)

func newEvaluator(t *testing.T, data map[string][]any) *engine.Evaluator {
	t.Helper()
	table, err := memtable.FromAny("orders", data)
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	ev, err := engine.New(memtable.NewAdapter(table))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return ev
}

func TestRunMixedOutcomes(t *testing.T) {
	ev := newEvaluator(t, map[string][]any{
		"order_id": {1, 2, 3, 4, 5},
		"amount":   {10.0, 20.0, nil, 5.0, 8.0},
	})

	s := &Suite{
		Name: "orders-quality",
		Expectations: []engine.ExpectationRequest{
			// Holds.
			{Type: engine.ExpectColumnValuesToBeIncreasing,
				Kwargs: map[string]any{"column": "order_id", "strictly": true}},
			// Violated: one null out of five.
			{Type: engine.ExpectColumnValuesToNotBeNull,
				Kwargs: map[string]any{"column": "amount"}},
			// Errors at run time: the column does not exist.
			{Type: engine.ExpectColumnValuesToNotBeNull,
				Kwargs: map[string]any{"column": "missing"}},
		},
	}

	report, err := NewRunner(ev).Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.RunID == "" {
		t.Error("RunID is empty")
	}
	if report.Backend != "memtable" {
		t.Errorf("Backend = %q", report.Backend)
	}
	if report.Dataset != "orders" {
		t.Errorf("Dataset = %q", report.Dataset)
	}
	if report.SuccessCount != 1 || report.FailureCount != 1 || report.ErrorCount != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/1",
			report.SuccessCount, report.FailureCount, report.ErrorCount)
	}
	if report.Success {
		t.Error("report.Success = true despite failures and errors")
	}

	// The errored expectation carries no verdict.
	errored := report.Outcomes[2]
	if errored.Result != nil {
		t.Error("errored outcome has a result")
	}
	if errored.Error == "" {
		t.Error("errored outcome has no error message")
	}
}

func TestRunAllSuccess(t *testing.T) {
	ev := newEvaluator(t, map[string][]any{"order_id": {1, 2, 3}})

	s := &Suite{
		Name: "clean",
		Expectations: []engine.ExpectationRequest{
			{Type: engine.ExpectColumnValuesToNotBeNull,
				Kwargs: map[string]any{"column": "order_id"}},
			{Type: engine.ExpectTableRowCountToBeBetween,
				Kwargs: map[string]any{"min_value": 1, "max_value": 10}},
		},
	}

	report, err := NewRunner(ev).Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Success {
		t.Fatalf("Success = false: %+v", report)
	}
	if report.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", report.SuccessCount)
	}
}

func TestRunRejectsInvalidSuite(t *testing.T) {
	ev := newEvaluator(t, map[string][]any{"x": {1}})
	if _, err := NewRunner(ev).Run(context.Background(), &Suite{Name: "empty"}); err == nil {
		t.Fatal("Run accepted a suite with no expectations")
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	ev := newEvaluator(t, map[string][]any{"x": {1}})
	s := &Suite{
		Name: "one",
		Expectations: []engine.ExpectationRequest{
			{Type: engine.ExpectColumnValuesToNotBeNull, Kwargs: map[string]any{"column": "x"}},
		},
	}

	runner := NewRunner(ev)
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		report, err := runner.Run(context.Background(), s)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if seen[report.RunID] {
			t.Fatalf("duplicate run id %q", report.RunID)
		}
		seen[report.RunID] = true
	}
}

func TestRunCancelled(t *testing.T) {
	ev := newEvaluator(t, map[string][]any{"x": {1}})
	s := &Suite{
		Name: "one",
		Expectations: []engine.ExpectationRequest{
			{Type: engine.ExpectColumnValuesToNotBeNull, Kwargs: map[string]any{"column": "x"}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(ev).Run(ctx, s); err == nil {
		t.Fatal("Run succeeded with a cancelled context")
	}
}
