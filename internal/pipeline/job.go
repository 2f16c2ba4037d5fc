package pipeline

// job.go defines the unit of work (one input file) and its terminal
// outcome. A Job never transitions backward within a run; while
// Processing it is owned exclusively by the worker executing it.

import (
	"time"

	"bankpipe/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Reason classifies why a Job failed. RuleViolations and coercion
// failures are data-quality classifications, not Job failures, and
// never appear here.
type Reason string

const (
	ReasonReadError         Reason = "READ_ERROR"
	ReasonWriteError        Reason = "WRITE_ERROR"
	ReasonTimeout           Reason = "TIMEOUT"
	ReasonInternalError     Reason = "INTERNAL_ERROR"
	ReasonLedgerError       Reason = "LEDGER_ERROR"
	ReasonUnsupportedFormat Reason = "UNSUPPORTED_FORMAT"
)

// Job is one input file scheduled for processing.
type Job struct {
	ID       uuid.UUID
	Path     string
	Format   Format
	Identity ledger.FileIdentity
	Status   JobStatus
	Attempts int
}

// NewJob creates a Pending Job for a discovered file.
func NewJob(path string, format Format, id ledger.FileIdentity) *Job {
	return &Job{
		ID:       uuid.New(),
		Path:     path,
		Format:   format,
		Identity: id,
		Status:   JobPending,
	}
}

// Counts summarizes the Records produced from one file.
type Counts struct {
	Valid      int
	Invalid    int
	Duplicates int
}

// Outcome is the terminal result of one Job. Failures at any stage are
// converted into an Outcome at the Job boundary instead of propagating,
// so one corrupt file never aborts the run.
type Outcome struct {
	Status JobStatus
	Reason Reason
	Err    string

	Counts             Counts
	OutputLocation     string
	QuarantineLocation string

	// ValidAmounts feeds the run-level anomaly scan.
	ValidAmounts []decimal.Decimal

	Duration time.Duration
}

// Failed reports whether the Job ended in failure.
func (o Outcome) Failed() bool {
	return o.Status == JobFailed
}

// LedgerOutcome maps the Job outcome onto the ledger's vocabulary.
func (o Outcome) LedgerOutcome() ledger.Outcome {
	if o.Failed() {
		return ledger.OutcomeFailed
	}
	return ledger.OutcomeCompleted
}
