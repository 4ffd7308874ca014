package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"datakite-hq/kestrel/pkg/history"
)

var historyFlags struct {
	db            string
	suiteName     string
	limit         int
	runID         string
	retentionDays int
	schedule      string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded validation runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Example: `  kestrel history list --db history.db
  kestrel history list --db history.db --suite orders --limit 10`,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the full report for one run",
	Example: `  kestrel history show --db history.db --run 5f2b1c3e-...`,
	RunE: runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention window",
	Example: `  # One-shot prune
  kestrel history prune --db history.db --retention-days 30

  # Keep pruning on a cron schedule until interrupted
  kestrel history prune --db history.db --retention-days 30 --schedule "0 3 * * *"`,
	RunE: runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyPruneCmd)

	historyCmd.PersistentFlags().StringVar(&historyFlags.db, "db", "", "history database path")

	historyListCmd.Flags().StringVar(&historyFlags.suiteName, "suite", "", "filter by suite name")
	historyListCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum runs to list (0 for all)")

	historyShowCmd.Flags().StringVar(&historyFlags.runID, "run", "", "run id to show")

	historyPruneCmd.Flags().IntVar(&historyFlags.retentionDays, "retention-days", 30, "delete runs older than this many days")
	historyPruneCmd.Flags().StringVar(&historyFlags.schedule, "schedule", "", "cron expression; keep pruning on this schedule until interrupted")
}

func openHistoryStore() (history.Store, error) {
	if historyFlags.db == "" {
		return nil, fmt.Errorf("--db is required")
	}
	return history.NewSQLiteStore(&history.SQLiteConfig{
		Path:         historyFlags.db,
		MaxOpenConns: 4,
		WALMode:      true,
	})
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), historyFlags.suiteName, historyFlags.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSUITE\tBACKEND\tSTARTED\tSTATUS\tPASS\tFAIL\tERROR")
	for _, run := range runs {
		status := "PASS"
		if !run.Success {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.RunID, run.Suite, run.Backend,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			status, run.SuccessCount, run.FailureCount, run.ErrorCount)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if historyFlags.runID == "" {
		return fmt.Errorf("--run is required")
	}
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.GetRun(cmd.Context(), historyFlags.runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := history.NewPruner(store, history.RetentionConfig{
		RetentionDays: historyFlags.retentionDays,
		PruneSchedule: historyFlags.schedule,
	})
	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d runs\n", deleted)

	if historyFlags.schedule == "" {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := history.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	scheduler.Stop()
	return nil
}
