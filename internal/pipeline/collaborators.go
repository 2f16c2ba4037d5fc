package pipeline

// collaborators.go defines the two run-level observers. Both are
// invoked exactly once per run, after every Job has settled, and
// neither can change the run's outcome: a collaborator error is logged
// and dropped.

import (
	"context"
	"log/slog"
)

// Reporter receives the final summary of a run. The default writes it
// to the structured log; alternative implementations can render files
// or push dashboards.
type Reporter interface {
	Report(ctx context.Context, summary *RunSummary) error
}

// Notifier announces a finished run to an external audience.
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
}

// LogReporter logs the run summary at INFO, with one WARN line per
// failed file so failures are greppable without parsing the summary.
type LogReporter struct{}

func (LogReporter) Report(_ context.Context, summary *RunSummary) error {
	slog.Info("run finished",
		"run_id", summary.RunID,
		"duration", summary.Duration,
		"discovered", summary.FilesDiscovered,
		"completed", summary.FilesCompleted,
		"failed", summary.FilesFailed,
		"skipped", summary.FilesSkipped,
		"valid_records", summary.ValidRecords,
		"invalid_records", summary.InvalidRecords,
		"duplicate_rows", summary.DuplicateRows,
		"anomalous_amounts", summary.AnomalousAmounts,
		"ledger_failure", summary.LedgerFailure,
	)
	for path, out := range summary.Outcomes {
		if out.Failed() {
			slog.Warn("file failed", "file", path, "reason", out.Reason, "error", out.Err)
		}
	}
	return nil
}

// NopNotifier is used when no notification transport is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *RunSummary) error { return nil }
