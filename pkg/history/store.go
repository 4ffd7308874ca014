package history

import (
	"context"
	"time"

	"datakite-hq/kestrel/pkg/suite"
)

// RunSummary is the indexed header of one stored run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Suite        string        `json:"suite"`
	Backend      string        `json:"backend"`
	Dataset      string        `json:"dataset"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	ErrorCount   int           `json:"error_count"`
}

// Store persists suite run reports.
type Store interface {
	// SaveRun stores one report.
	SaveRun(ctx context.Context, report *suite.Report) error

	// ListRuns returns run summaries, newest first. An empty suiteName
	// matches every suite; limit <= 0 means no limit.
	ListRuns(ctx context.Context, suiteName string, limit int) ([]RunSummary, error)

	// GetRun returns the full report for a run id, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*suite.Report, error)

	// PruneBefore deletes runs started before the cutoff and returns the
	// number deleted.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the store's resources.
	Close() error
}
