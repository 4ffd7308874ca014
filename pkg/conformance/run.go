package conformance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"datakite-hq/kestrel/pkg/backend"
	"datakite-hq/kestrel/pkg/backend/gridframe"
	"datakite-hq/kestrel/pkg/backend/memtable"
	"datakite-hq/kestrel/pkg/backend/sqldataset"
	"datakite-hq/kestrel/pkg/engine"
	"datakite-hq/kestrel/pkg/metric"
)

// Backend identifiers accepted in only_for / suppress_test_for lists.
const (
	BackendMemtable  = "memtable"
	BackendGridframe = "gridframe"
	BackendSQLite    = "sqlite"
)

// DefaultBackends are the backends trials expand over when a harness does
// not choose its own set.
func DefaultBackends() []string {
	return []string{BackendMemtable, BackendGridframe, BackendSQLite}
}

// gridframePartitionSize is deliberately tiny so every multi-row fixture
// crosses partition boundaries.
const gridframePartitionSize = 3

// EvaluateTrial builds the trial's backend from the dataset, evaluates the
// expectation, and returns the result. The caller distinguishes capability
// mismatches via errors.As on *backend.UnsupportedError.
func EvaluateTrial(ctx context.Context, trial Trial) (*engine.ValidationResult, error) {
	adapter, cleanup, err := buildAdapter(ctx, trial.Backend, trial.Dataset)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ev, err := engine.New(adapter)
	if err != nil {
		return nil, err
	}
	return ev.Evaluate(ctx, engine.ExpectationRequest{
		Type:   trial.ExpectationType,
		Kwargs: trial.Case.In,
	})
}

// CheckResult compares an evaluation result against the case's expected
// output. With exact_match_out false only the fields named in out are
// compared; otherwise the full flattened result must match.
func CheckResult(result *engine.ValidationResult, c Case) error {
	got, err := flattenResult(result)
	if err != nil {
		return err
	}
	want, err := normalize(c.Out)
	if err != nil {
		return err
	}
	wantMap := want.(map[string]any)

	if c.ExactMatchOut {
		if !reflect.DeepEqual(got, wantMap) {
			return fmt.Errorf("result mismatch:\n  got  %v\n  want %v", got, wantMap)
		}
		return nil
	}

	var diffs []string
	for field, wantVal := range wantMap {
		gotVal, ok := got[field]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("missing field %q", field))
			continue
		}
		if !reflect.DeepEqual(gotVal, wantVal) {
			diffs = append(diffs, fmt.Sprintf("%s: got %v, want %v", field, gotVal, wantVal))
		}
	}
	if len(diffs) > 0 {
		return fmt.Errorf("result mismatch: %s", strings.Join(diffs, "; "))
	}
	return nil
}

// flattenResult merges success with the result detail fields into one map,
// normalized through JSON.
func flattenResult(result *engine.ValidationResult) (map[string]any, error) {
	detail, err := normalize(result.Result)
	if err != nil {
		return nil, err
	}
	flat := detail.(map[string]any)
	flat["success"] = result.Success
	return flat, nil
}

// normalize round-trips a value through JSON so that numbers, slices, and
// maps compare uniformly.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func buildAdapter(ctx context.Context, backendName string, ds Dataset) (metric.Adapter, func(), error) {
	switch backendName {
	case BackendMemtable:
		table, err := memtable.FromAny("conformance", ds.Data)
		if err != nil {
			return nil, nil, err
		}
		return memtable.NewAdapter(table), func() {}, nil

	case BackendGridframe:
		frame, err := gridframe.FromAny("conformance", ds.Data, gridframePartitionSize)
		if err != nil {
			return nil, nil, err
		}
		return gridframe.NewAdapter(frame), func() {}, nil

	case BackendSQLite:
		return buildSQLiteAdapter(ctx, ds.Data, ds.Schemas[BackendSQLite])

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backendName)
	}
}

// buildSQLiteAdapter materializes the dataset into an in-memory SQLite
// table with an explicit row_idx column. declared overrides inferred
// column types per the document's schemas section.
func buildSQLiteAdapter(ctx context.Context, data map[string][]any, declared map[string]string) (metric.Adapter, func(), error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)
	cleanup := func() { db.Close() }

	names := make([]string, 0, len(data))
	for col := range data {
		names = append(names, col)
	}
	sort.Strings(names)

	rows := 0
	defs := make([]string, 0, len(names)+1)
	defs = append(defs, `"row_idx" INTEGER PRIMARY KEY`)
	for _, col := range names {
		rows = len(data[col])
		sqlType := declared[col]
		if sqlType == "" {
			var err error
			sqlType, err = sqliteType(data[col])
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("column %q: %w", col, err)
			}
		}
		defs = append(defs, fmt.Sprintf("%q %s", col, sqlType))
	}

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf(`CREATE TABLE "conformance" (%s)`, strings.Join(defs, ", "))); err != nil {
		cleanup()
		return nil, nil, err
	}

	placeholders := make([]string, len(names)+1)
	quoted := make([]string, len(names)+1)
	quoted[0] = `"row_idx"`
	for i, col := range names {
		quoted[i+1] = fmt.Sprintf("%q", col)
	}
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf(`INSERT INTO "conformance" (%s) VALUES (%s)`,
		strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	for i := 0; i < rows; i++ {
		args := make([]any, 0, len(names)+1)
		args = append(args, i)
		for _, col := range names {
			args = append(args, data[col][i])
		}
		if _, err := db.ExecContext(ctx, insert, args...); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	ds, err := sqldataset.NewDataset(ctx, db, sqldataset.SQLiteDialect{}, "conformance", "row_idx")
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sqldataset.NewAdapter(ds), cleanup, nil
}

// sqliteType picks a declared type from the inferred logical column type.
func sqliteType(raw []any) (string, error) {
	values := make([]backend.Value, len(raw))
	for i, v := range raw {
		val, err := backend.FromAny(v)
		if err != nil {
			return "", err
		}
		values[i] = val
	}
	switch backend.InferColumnType(values) {
	case backend.TypeInt:
		return "INTEGER", nil
	case backend.TypeFloat:
		return "REAL", nil
	case backend.TypeBool:
		return "BOOLEAN", nil
	case backend.TypeTime:
		return "TIMESTAMP", nil
	default:
		return "TEXT", nil
	}
}
