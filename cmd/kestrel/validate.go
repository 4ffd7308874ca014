package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"datakite-hq/kestrel/pkg/backend/gridframe"
	"datakite-hq/kestrel/pkg/backend/memtable"
	"datakite-hq/kestrel/pkg/backend/sqldataset"
	"datakite-hq/kestrel/pkg/engine"
	"datakite-hq/kestrel/pkg/history"
	"datakite-hq/kestrel/pkg/metric"
	"datakite-hq/kestrel/pkg/suite"
	"datakite-hq/kestrel/pkg/telemetry/metrics"
)

var validateFlags struct {
	suiteFile     string
	suiteDir      string
	backendName   string
	csvFile       string
	dsn           string
	table         string
	rowIndex      string
	partitionSize int
	historyDB     string
	metricsAddr   string
	format        string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run expectation suites against a dataset",
	Long: `Run one or more expectation suites against a dataset and report the
results.

Examples:
  # Validate a CSV file in memory
  kestrel validate --suite orders.yaml --csv orders.csv

  # Validate with the partitioned dataframe backend
  kestrel validate --suite orders.yaml --csv orders.csv --backend gridframe

  # Validate a SQLite table (row-index column required)
  kestrel validate --suite orders.yaml --backend sqlite \
      --dsn orders.db --table orders --row-index row_idx

  # Validate a PostgreSQL table and record the run
  kestrel validate --suite orders.yaml --backend postgresql \
      --dsn "postgres://localhost/orders?sslmode=disable" \
      --table orders --row-index row_idx --history history.db

  # JSON output for CI
  kestrel validate --suite orders.yaml --csv orders.csv --format json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.suiteFile, "suite", "s", "", "suite file to run")
	validateCmd.Flags().StringVarP(&validateFlags.suiteDir, "dir", "d", "", "directory of suite files")
	validateCmd.Flags().StringVarP(&validateFlags.backendName, "backend", "b", "memtable", "backend: memtable, gridframe, sqlite, postgresql")
	validateCmd.Flags().StringVar(&validateFlags.csvFile, "csv", "", "CSV file (memtable and gridframe backends)")
	validateCmd.Flags().StringVar(&validateFlags.dsn, "dsn", "", "database path or connection string (SQL backends)")
	validateCmd.Flags().StringVar(&validateFlags.table, "table", "", "table name (SQL backends)")
	validateCmd.Flags().StringVar(&validateFlags.rowIndex, "row-index", "row_idx", "row-index column (SQL backends)")
	validateCmd.Flags().IntVar(&validateFlags.partitionSize, "partition-size", 0, "rows per partition (gridframe backend)")
	validateCmd.Flags().StringVar(&validateFlags.historyDB, "history", "", "record the run in this history database")
	validateCmd.Flags().StringVar(&validateFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	suites, err := loadSuites()
	if err != nil {
		return err
	}

	adapter, cleanup, err := buildAdapter(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ev, err := engine.New(adapter)
	if err != nil {
		return err
	}

	var runnerOpts []suite.RunnerOption
	if validateFlags.metricsAddr != "" {
		collector := metrics.NewCollector(metrics.Config{}, nil)
		runnerOpts = append(runnerOpts, suite.WithMetrics(collector.Validation()))

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: validateFlags.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "addr", validateFlags.metricsAddr, "error", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving metrics", "addr", validateFlags.metricsAddr)
	}
	runner := suite.NewRunner(ev, runnerOpts...)

	var store history.Store
	if validateFlags.historyDB != "" {
		sqlStore, err := history.NewSQLiteStore(&history.SQLiteConfig{
			Path:         validateFlags.historyDB,
			MaxOpenConns: 4,
			WALMode:      true,
		})
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	failed := false
	for _, s := range suites {
		report, err := runner.Run(ctx, s)
		if err != nil {
			return err
		}
		if store != nil {
			if err := store.SaveRun(ctx, report); err != nil {
				return err
			}
		}
		if err := printReport(report); err != nil {
			return err
		}
		if !report.Success {
			failed = true
		}
	}

	if failed {
		// Distinguish "expectations violated" from usage errors.
		os.Exit(1)
	}
	return nil
}

func loadSuites() ([]*suite.Suite, error) {
	loader := suite.NewLoader(nil)
	switch {
	case validateFlags.suiteFile != "" && validateFlags.suiteDir != "":
		return nil, fmt.Errorf("--suite and --dir are mutually exclusive")
	case validateFlags.suiteFile != "":
		s, err := loader.LoadFromFile(validateFlags.suiteFile)
		if err != nil {
			return nil, err
		}
		return []*suite.Suite{s}, nil
	case validateFlags.suiteDir != "":
		suites, err := loader.LoadFromDir(validateFlags.suiteDir)
		if err != nil {
			return nil, err
		}
		if len(suites) == 0 {
			return nil, fmt.Errorf("no suite files under %q", validateFlags.suiteDir)
		}
		return suites, nil
	default:
		return nil, fmt.Errorf("either --suite or --dir must be specified")
	}
}

func buildAdapter(ctx context.Context) (metric.Adapter, func(), error) {
	noop := func() {}
	switch validateFlags.backendName {
	case memtable.BackendName:
		table, err := loadCSVTable()
		if err != nil {
			return nil, nil, err
		}
		return memtable.NewAdapter(table), noop, nil

	case gridframe.BackendName:
		table, err := loadCSVTable()
		if err != nil {
			return nil, nil, err
		}
		frame, err := frameFromTable(table, validateFlags.partitionSize)
		if err != nil {
			return nil, nil, err
		}
		return gridframe.NewAdapter(frame), noop, nil

	case "sqlite":
		return openSQLAdapter(ctx, "sqlite", sqldataset.SQLiteDialect{})

	case "postgresql", "postgres":
		return openSQLAdapter(ctx, "postgres", sqldataset.PostgresDialect{})

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", validateFlags.backendName)
	}
}

func loadCSVTable() (*memtable.Table, error) {
	if validateFlags.csvFile == "" {
		return nil, fmt.Errorf("--csv is required for the %s backend", validateFlags.backendName)
	}
	f, err := os.Open(validateFlags.csvFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(validateFlags.csvFile), filepath.Ext(validateFlags.csvFile))
	return memtable.FromCSV(name, f)
}

// frameFromTable rebuilds a memtable as a partitioned frame.
func frameFromTable(table *memtable.Table, partitionSize int) (*gridframe.Frame, error) {
	names := table.Columns()
	columns := make([]gridframe.Column, 0, len(names))
	for _, name := range names {
		values, err := table.Column(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, gridframe.Column{Name: name, Values: values})
	}
	return gridframe.New(table.Name(), columns, partitionSize)
}

func openSQLAdapter(ctx context.Context, driver string, dialect sqldataset.Dialect) (metric.Adapter, func(), error) {
	if validateFlags.dsn == "" || validateFlags.table == "" {
		return nil, nil, fmt.Errorf("--dsn and --table are required for the %s backend", validateFlags.backendName)
	}
	db, err := sql.Open(driver, validateFlags.dsn)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { db.Close() }

	ds, err := sqldataset.NewDataset(ctx, db, dialect, validateFlags.table, validateFlags.rowIndex)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sqldataset.NewAdapter(ds), cleanup, nil
}

func printReport(report *suite.Report) error {
	if validateFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	status := "PASS"
	if !report.Success {
		status = "FAIL"
	}
	fmt.Printf("%s  suite=%s backend=%s dataset=%s run=%s\n",
		status, report.Suite, report.Backend, report.Dataset, report.RunID)
	fmt.Printf("      %d passed, %d failed, %d errored in %s\n",
		report.SuccessCount, report.FailureCount, report.ErrorCount, report.Duration)

	for _, outcome := range report.Outcomes {
		switch {
		case outcome.Error != "":
			fmt.Printf("  ERROR %s: %s\n", outcome.Request.Type, outcome.Error)
		case !outcome.Result.Success:
			detail := outcome.Result.Result
			fmt.Printf("  FAIL  %s: %d/%d unexpected (%.1f%%)\n",
				outcome.Request.Type, detail.UnexpectedCount, detail.ElementCount,
				detail.UnexpectedPercent)
			if detail.ObservedValue != nil {
				fmt.Printf("        observed: %v\n", detail.ObservedValue)
			}
		}
	}
	return nil
}
