package pipeline

// executor.go wraps the processing of one file with a failure
// boundary: whatever goes wrong inside (unreadable input, a panic in
// a reader, a sink outage, a timeout) comes out as a typed Outcome,
// never as an error or panic crossing into the orchestrator.
//
// The one exception is the ledger. Losing the durability of a ledger
// append reopens the door to silent duplicate processing, so append
// failures are retried a bounded number of times and then surfaced as
// a LEDGER_ERROR outcome the orchestrator escalates to a run failure.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankpipe/internal/categorize"
	"bankpipe/internal/clean"
	"bankpipe/internal/ledger"
	"bankpipe/internal/logging"
	"bankpipe/internal/sink"
	"bankpipe/internal/validate"

	"github.com/shopspring/decimal"
)

// DefaultLedgerRetries is how many times a failed ledger append is
// retried before the run is declared unhealthy.
const DefaultLedgerRetries = 3

// ledgerRetryDelay spaces out ledger append retries.
var ledgerRetryDelay = 100 * time.Millisecond

// Executor processes one Job end to end: read, clean, validate,
// categorize, persist, record. It is safe for concurrent use; all
// shared state (rule set, classifier, sinks, ledger) is either
// read-only or internally synchronized.
type Executor struct {
	readers    ReaderRegistry
	rules      *validate.RuleSet
	classifier *categorize.Classifier
	output     sink.Sink
	quarantine sink.Sink
	ledger     ledger.Ledger

	jobTimeout    time.Duration
	ledgerRetries int
}

// NewExecutor wires an Executor. jobTimeout <= 0 disables per-Job
// timeouts; ledgerRetries <= 0 uses DefaultLedgerRetries.
func NewExecutor(
	readers ReaderRegistry,
	rules *validate.RuleSet,
	classifier *categorize.Classifier,
	output, quarantine sink.Sink,
	led ledger.Ledger,
	jobTimeout time.Duration,
	ledgerRetries int,
) *Executor {
	if ledgerRetries <= 0 {
		ledgerRetries = DefaultLedgerRetries
	}
	return &Executor{
		readers:       readers,
		rules:         rules,
		classifier:    classifier,
		output:        output,
		quarantine:    quarantine,
		ledger:        led,
		jobTimeout:    jobTimeout,
		ledgerRetries: ledgerRetries,
	}
}

// Process runs the Job to a terminal Outcome. It never returns an
// error and never lets a panic escape.
func (e *Executor) Process(ctx context.Context, job *Job) (outcome Outcome) {
	start := time.Now()
	job.Status = JobProcessing
	job.Attempts++

	log := logging.WithFields(ctx, "file", job.Path, "job_id", job.ID)

	// Run-level cancellation gates dispatch, not work in flight: a Job
	// that started runs to completion so its output lands and its
	// attempt reaches the ledger. Only the per-Job timeout can
	// interrupt it from here on.
	ctx = context.WithoutCancel(ctx)
	if e.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{
				Status: JobFailed,
				Reason: ReasonInternalError,
				Err:    fmt.Sprintf("panic: %v", r),
			}
			log.Error("job panicked", "panic", r)
		}

		outcome.Duration = time.Since(start)
		job.Status = outcome.Status

		// The attempt is recorded whatever its outcome, so a
		// permanently bad file is not rediscovered forever.
		if err := e.recordWithRetry(ctx, job.Identity, outcome.LedgerOutcome()); err != nil {
			log.Error("ledger append failed after retries", "error", err)
			outcome.Status = JobFailed
			outcome.Reason = ReasonLedgerError
			outcome.Err = err.Error()
			job.Status = JobFailed
		}
	}()

	outcome = e.process(ctx, job, log)
	return outcome
}

func (e *Executor) process(ctx context.Context, job *Job, log *slog.Logger) Outcome {
	reader, ok := e.readers[job.Format]
	if !ok {
		return Outcome{
			Status: JobFailed,
			Reason: ReasonUnsupportedFormat,
			Err:    fmt.Sprintf("no reader registered for format %q", job.Format),
		}
	}

	rows, err := reader.Read(job.Path)
	if err != nil {
		// No partial output: the failure happened before anything was
		// produced, and the sinks are never touched.
		log.Warn("read failed", "error", err)
		return Outcome{Status: JobFailed, Reason: ReasonReadError, Err: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return timeoutOutcome(err)
	}

	records, duplicates := clean.Clean(rows)
	valid, invalid := e.rules.Partition(records)

	for i := range valid {
		valid[i].Category = e.classifier.Classify(valid[i].Description)
	}

	amounts := make([]decimal.Decimal, 0, len(valid))
	for _, rec := range valid {
		if rec.Amount.Valid {
			amounts = append(amounts, rec.Amount.Decimal)
		}
	}

	// Output is written even when empty so a reprocessed identity
	// always replaces whatever an earlier attempt left behind.
	outAck, err := e.output.Write(ctx, job.Identity, valid)
	if err != nil {
		log.Warn("output write failed", "error", err)
		return writeFailure(ctx, err)
	}
	qAck, err := e.quarantine.Write(ctx, job.Identity, invalid)
	if err != nil {
		log.Warn("quarantine write failed", "error", err)
		return writeFailure(ctx, err)
	}

	log.Info("file processed",
		"valid", len(valid),
		"invalid", len(invalid),
		"duplicates_dropped", duplicates,
	)

	return Outcome{
		Status: JobCompleted,
		Counts: Counts{
			Valid:      len(valid),
			Invalid:    len(invalid),
			Duplicates: duplicates,
		},
		OutputLocation:     outAck.Location,
		QuarantineLocation: qAck.Location,
		ValidAmounts:       amounts,
	}
}

// timeoutOutcome distinguishes a per-Job deadline from run-level
// cancellation; both end the Job but only the former is a TIMEOUT.
func timeoutOutcome(err error) Outcome {
	reason := ReasonTimeout
	if !errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonInternalError
	}
	return Outcome{Status: JobFailed, Reason: reason, Err: err.Error()}
}

func writeFailure(ctx context.Context, err error) Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return timeoutOutcome(ctxErr)
	}
	return Outcome{Status: JobFailed, Reason: ReasonWriteError, Err: err.Error()}
}

// recordWithRetry appends the outcome to the ledger, retrying a
// bounded number of times. The append must survive even when the Job
// context is already done (the work itself finished), so it runs on a
// fresh context.
func (e *Executor) recordWithRetry(ctx context.Context, id ledger.FileIdentity, out ledger.Outcome) error {
	entry := ledger.Entry{Identity: id, Outcome: out, Timestamp: time.Now().UTC()}

	var lastErr error
	for attempt := 0; attempt < e.ledgerRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(ledgerRetryDelay)
		}
		if lastErr = e.ledger.RecordOutcome(context.WithoutCancel(ctx), entry); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("record outcome after %d attempts: %w", e.ledgerRetries, lastErr)
}
