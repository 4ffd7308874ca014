package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"datakite-hq/kestrel/pkg/telemetry/logging"
)

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Kestrel - expectation-based data quality engine",
	Long: `Kestrel evaluates declarative data-quality expectations against tabular
datasets. Suites of expectations are written in YAML and run unchanged on
any supported backend:

  - memtable    in-memory columnar tables (CSV files)
  - gridframe   partitioned in-memory dataframes
  - sqlite      SQLite tables
  - postgresql  PostgreSQL tables`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(logging.Config{
			Level:  rootFlags.logLevel,
			Format: rootFlags.logFormat,
		})
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "text", "log format: text, json")
}
