// Package history persists suite run reports. The SQLite store keeps one
// row per run with the full report as JSON plus indexed summary columns,
// and the retention pruner deletes old runs on a cron schedule.
package history
