package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"datakite-hq/kestrel/pkg/engine"
	"datakite-hq/kestrel/pkg/suite"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "history.db"),
		MaxOpenConns: 2,
		WALMode:      true,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(runID, suiteName string, startedAt time.Time, success bool) *suite.Report {
	report := &suite.Report{
		RunID:     runID,
		Suite:     suiteName,
		Backend:   "memtable",
		Dataset:   "orders",
		StartedAt: startedAt,
		Duration:  42 * time.Millisecond,
		Outcomes: []suite.ExpectationOutcome{
			{
				Request: engine.ExpectationRequest{
					Type:   engine.ExpectColumnValuesToNotBeNull,
					Kwargs: map[string]any{"column": "order_id"},
				},
				Result: &engine.ValidationResult{
					ExpectationType: engine.ExpectColumnValuesToNotBeNull,
					Success:         success,
				},
			},
		},
		Success: success,
	}
	if success {
		report.SuccessCount = 1
	} else {
		report.FailureCount = 1
	}
	return report
}

func TestSaveAndGetRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	want := sampleReport("run-1", "orders-quality", time.Now().UTC().Truncate(time.Second), true)
	if err := store.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.RunID != want.RunID || got.Suite != want.Suite || got.Success != want.Success {
		t.Fatalf("GetRun = %+v, want %+v", got, want)
	}
	if len(got.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(got.Outcomes))
	}
	if got.Outcomes[0].Request.Type != engine.ExpectColumnValuesToNotBeNull {
		t.Errorf("outcome type = %q", got.Outcomes[0].Request.Type)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.GetRun(context.Background(), "absent")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestSaveRunRejectsDuplicateID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	report := sampleReport("run-1", "s", time.Now().UTC(), true)
	if err := store.SaveRun(ctx, report); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := store.SaveRun(ctx, report); err == nil {
		t.Fatal("SaveRun accepted a duplicate run id")
	}
}

func TestListRuns(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, run := range []struct {
		id    string
		suite string
		ok    bool
	}{
		{"run-1", "alpha", true},
		{"run-2", "beta", false},
		{"run-3", "alpha", true},
	} {
		report := sampleReport(run.id, run.suite, base.Add(time.Duration(i)*time.Minute), run.ok)
		if err := store.SaveRun(ctx, report); err != nil {
			t.Fatalf("SaveRun(%s): %v", run.id, err)
		}
	}

	all, err := store.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d runs, want 3", len(all))
	}
	// Newest first.
	if all[0].RunID != "run-3" {
		t.Errorf("first run = %q, want run-3", all[0].RunID)
	}

	alpha, err := store.ListRuns(ctx, "alpha", 0)
	if err != nil {
		t.Fatalf("ListRuns(alpha): %v", err)
	}
	if len(alpha) != 2 {
		t.Fatalf("listed %d alpha runs, want 2", len(alpha))
	}

	limited, err := store.ListRuns(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListRuns(limit): %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("listed %d runs, want 1", len(limited))
	}
}

func TestPruneBefore(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	old := sampleReport("run-old", "s", base.AddDate(0, 0, -30), true)
	recent := sampleReport("run-new", "s", base, true)
	for _, r := range []*suite.Report{old, recent} {
		if err := store.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	deleted, err := store.PruneBefore(ctx, base.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := store.GetRun(ctx, "run-old"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("old run still present: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-new"); err != nil {
		t.Fatalf("recent run missing: %v", err)
	}
}

func TestPrunerRespectsRetentionDays(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	old := sampleReport("run-old", "s", time.Now().UTC().AddDate(0, 0, -60), true)
	if err := store.SaveRun(ctx, old); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	// Disabled retention never deletes.
	deleted, err := NewPruner(store, RetentionConfig{}).Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("deleted = %d with retention disabled", deleted)
	}

	deleted, err = NewPruner(store, RetentionConfig{RetentionDays: 30}).Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
}

func TestSchedulerRequiresValidCron(t *testing.T) {
	store := newStore(t)
	pruner := NewPruner(store, RetentionConfig{RetentionDays: 7, PruneSchedule: "not a cron"})

	if err := NewScheduler(pruner).Start(context.Background()); err == nil {
		t.Fatal("Start accepted an invalid cron expression")
	}
}

func TestSchedulerNoScheduleIsNoop(t *testing.T) {
	store := newStore(t)
	pruner := NewPruner(store, RetentionConfig{RetentionDays: 7})

	s := NewScheduler(pruner)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
