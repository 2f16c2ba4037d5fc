package pipeline

// orchestrator.go drives one run over an input directory: discover
// files in sorted order, skip identities the ledger already settled,
// dispatch the rest onto the worker pool, and merge per-Job outcomes
// into a RunSummary. Workers report over a channel, so the summary is
// the same regardless of completion order. Cancellation stops new
// dispatches but lets in-flight Jobs finish; a Job that started always
// writes its output and reaches the ledger.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"bankpipe/internal/anomaly"
	"bankpipe/internal/ledger"
	"bankpipe/internal/logging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunSummary aggregates everything one run did. Outcomes is keyed by
// input file path and holds the terminal Outcome of every dispatched
// Job; skipped files do not appear in it.
type RunSummary struct {
	RunID    uuid.UUID
	Started  time.Time
	Duration time.Duration

	FilesDiscovered int
	FilesCompleted  int
	FilesFailed     int
	FilesSkipped    int

	ValidRecords   int
	InvalidRecords int
	DuplicateRows  int

	// AnomalousAmounts counts valid amounts across the whole run whose
	// z-score exceeded the configured threshold.
	AnomalousAmounts int

	// LedgerFailure is set when any Job exhausted its ledger retries.
	// The run is then unhealthy even if every file processed cleanly,
	// because a rerun could silently double-process.
	LedgerFailure bool

	Outcomes map[string]Outcome
}

// Succeeded reports whether every dispatched Job completed and the
// ledger stayed healthy.
func (s *RunSummary) Succeeded() bool {
	return s.FilesFailed == 0 && !s.LedgerFailure
}

// ExitCode maps the summary onto a process exit code.
func (s *RunSummary) ExitCode() int {
	if s.Succeeded() {
		return 0
	}
	return 1
}

// Orchestrator runs the pipeline over a directory of input files.
type Orchestrator struct {
	inputDir string
	executor *Executor
	pool     *Pool
	ledger   ledger.Ledger

	anomalyThreshold float64

	reporter Reporter
	notifier Notifier
}

// NewOrchestrator wires an Orchestrator. A nil reporter defaults to
// LogReporter and a nil notifier to NopNotifier.
func NewOrchestrator(
	inputDir string,
	executor *Executor,
	pool *Pool,
	led ledger.Ledger,
	anomalyThreshold float64,
	reporter Reporter,
	notifier Notifier,
) *Orchestrator {
	if reporter == nil {
		reporter = LogReporter{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{
		inputDir:         inputDir,
		executor:         executor,
		pool:             pool,
		ledger:           led,
		anomalyThreshold: anomalyThreshold,
		reporter:         reporter,
		notifier:         notifier,
	}
}

type jobResult struct {
	path    string
	outcome Outcome
}

// Run executes one full pass over the input directory and returns its
// summary. The returned error covers setup problems only (unreadable
// directory, ledger failure during discovery); per-file processing
// failures are folded into the summary instead.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:    uuid.New(),
		Started:  time.Now(),
		Outcomes: make(map[string]Outcome),
	}
	ctx = logging.WithRunID(ctx, summary.RunID.String())
	log := logging.FromContext(ctx)

	jobs, unreadable, skipped, err := o.discover(log)
	if err != nil {
		return nil, err
	}
	summary.FilesDiscovered = len(jobs) + len(unreadable) + skipped
	summary.FilesSkipped = skipped
	for _, res := range unreadable {
		o.merge(summary, res)
	}

	log.Info("run started",
		"input_dir", o.inputDir,
		"files", len(jobs),
		"skipped", skipped,
		"workers", o.pool.Width(),
	)

	results := make(chan jobResult, len(jobs))
	for _, job := range jobs {
		job := job
		err := o.pool.Dispatch(ctx, func() {
			results <- jobResult{path: job.Path, outcome: o.executor.Process(ctx, job)}
		})
		if err != nil {
			// Cancelled before this Job started; it stays off the
			// ledger and will be rediscovered by the next run.
			log.Info("dispatch stopped", "reason", err, "pending", job.Path)
			break
		}
	}

	o.pool.Drain()
	close(results)

	for res := range results {
		o.merge(summary, res)
	}
	summary.AnomalousAmounts = o.scanAnomalies(summary, log)
	summary.Duration = time.Since(summary.Started)

	o.settle(ctx, summary, log)
	return summary, nil
}

// discover lists the input directory in sorted order, keeps files with
// a recognized format, and filters out identities the ledger has
// already settled. A file that cannot be hashed (vanished between
// listing and fingerprinting, dangling symlink) fails alone: it comes
// back as a pre-failed result instead of aborting the run, and since
// it has no identity it stays off the ledger and is rediscovered next
// run.
func (o *Orchestrator) discover(log *slog.Logger) ([]*Job, []jobResult, int, error) {
	entries, err := os.ReadDir(o.inputDir)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("list input directory: %w", err)
	}

	var jobs []*Job
	var unreadable []jobResult
	skipped := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, ok := DetectFormat(entry.Name())
		if !ok {
			continue
		}
		path := filepath.Join(o.inputDir, entry.Name())

		fingerprint, err := ledger.Fingerprint(path)
		if err != nil {
			log.Warn("cannot fingerprint file", "file", path, "error", err)
			unreadable = append(unreadable, jobResult{
				path:    path,
				outcome: Outcome{Status: JobFailed, Reason: ReasonReadError, Err: err.Error()},
			})
			continue
		}
		identity := ledger.FileIdentity{Path: path, Fingerprint: fingerprint}

		done, err := o.ledger.HasCompleted(identity)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("check ledger for %s: %w", path, err)
		}
		if done {
			skipped++
			log.Debug("skipping settled file", "file", path)
			continue
		}
		jobs = append(jobs, NewJob(path, format, identity))
	}
	return jobs, unreadable, skipped, nil
}

func (o *Orchestrator) merge(summary *RunSummary, res jobResult) {
	summary.Outcomes[res.path] = res.outcome
	if res.outcome.Failed() {
		summary.FilesFailed++
		if res.outcome.Reason == ReasonLedgerError {
			summary.LedgerFailure = true
		}
		return
	}
	summary.FilesCompleted++
	summary.ValidRecords += res.outcome.Counts.Valid
	summary.InvalidRecords += res.outcome.Counts.Invalid
	summary.DuplicateRows += res.outcome.Counts.Duplicates
}

// scanAnomalies pools the valid amounts of every completed file, in
// sorted path order so the statistic does not depend on which worker
// finished first, and counts the outliers.
func (o *Orchestrator) scanAnomalies(summary *RunSummary, log *slog.Logger) int {
	paths := make([]string, 0, len(summary.Outcomes))
	for path := range summary.Outcomes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var amounts []decimal.Decimal
	for _, path := range paths {
		out := summary.Outcomes[path]
		if !out.Failed() {
			amounts = append(amounts, out.ValidAmounts...)
		}
	}

	flagged := anomaly.Detect(amounts, o.anomalyThreshold)
	for _, i := range flagged {
		log.Warn("anomalous amount", "amount", amounts[i].String())
	}
	return len(flagged)
}

// settle invokes the collaborators exactly once. Their errors are
// logged, never propagated: reporting must not change a run's outcome.
func (o *Orchestrator) settle(ctx context.Context, summary *RunSummary, log *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if err := o.reporter.Report(ctx, summary); err != nil {
		log.Error("reporter failed", "error", err)
	}
	if err := o.notifier.Notify(ctx, summary); err != nil {
		log.Error("notifier failed", "error", err)
	}
}
