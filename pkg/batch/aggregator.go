package batch

import (
	"fmt"
	"time"
)

// OutcomeStatus is the result of one identifier.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome records how one identifier ended. It is not modified after Record.
type Outcome struct {
	Identifier string
	Status     OutcomeStatus
	Step       string
	Reason     string
	Path       string
	Duration   time.Duration
}

// Succeeded returns an outcome for a delivered document.
func Succeeded(identifier, path string, d time.Duration) Outcome {
	return Outcome{Identifier: identifier, Status: OutcomeSuccess, Path: path, Duration: d}
}

// Failed returns an outcome for an identifier whose sequence failed.
func Failed(err *ItemProcessingError, d time.Duration) Outcome {
	return Outcome{
		Identifier: err.Identifier,
		Status:     OutcomeFailure,
		Step:       err.Step,
		Reason:     err.Error(),
		Duration:   d,
	}
}

// Failure describes one failed identifier in a report.
type Failure struct {
	Identifier string `json:"identifier"`
	Step       string `json:"step"`
	Reason     string `json:"reason"`
}

// Report is the result of a batch.
// SuccessCount + FailureCount == Attempted, and FailedItems holds exactly the
// failed identifiers in the order their failures occurred.
type Report struct {
	BatchID      string        `json:"batchId"`
	Message      string        `json:"message"`
	SuccessCount int           `json:"successCount"`
	FailureCount int           `json:"failureCount"`
	FailedItems  []string      `json:"failedItems"`
	Failures     []Failure     `json:"failures,omitempty"`
	Attempted    int           `json:"attempted"`
	Total        int           `json:"total"`
	Aborted      bool          `json:"aborted"`
	AbortReason  string        `json:"abortReason,omitempty"`
	Directory    string        `json:"directory"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
	Duration     time.Duration `json:"duration"`
}

// Aggregator accumulates outcomes into a Report. It performs no I/O.
type Aggregator struct {
	report Report
	now    func() time.Time
}

// NewAggregator starts a report for a batch of total identifiers.
func NewAggregator(batchID string, total int, now func() time.Time) *Aggregator {
	return &Aggregator{
		report: Report{
			BatchID:     batchID,
			Total:       total,
			FailedItems: make([]string, 0),
			StartedAt:   now(),
		},
		now: now,
	}
}

// Record adds one outcome.
func (a *Aggregator) Record(o Outcome) {
	a.report.Attempted++
	switch o.Status {
	case OutcomeSuccess:
		a.report.SuccessCount++
	default:
		a.report.FailureCount++
		a.report.FailedItems = append(a.report.FailedItems, o.Identifier)
		a.report.Failures = append(a.report.Failures, Failure{
			Identifier: o.Identifier,
			Step:       o.Step,
			Reason:     o.Reason,
		})
	}
}

// Finalize returns the report. A non-nil abort marks the batch as ended abnormally.
func (a *Aggregator) Finalize(dir string, abort error) Report {
	r := a.report
	r.Directory = dir
	r.FinishedAt = a.now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)

	r.FailedItems = append(make([]string, 0, len(r.FailedItems)), r.FailedItems...)
	r.Failures = append([]Failure(nil), r.Failures...)

	if abort != nil {
		r.Aborted = true
		r.AbortReason = abort.Error()
		r.Message = fmt.Sprintf("Process aborted after %d of %d items. %d generated, %d failed.",
			r.Attempted, r.Total, r.SuccessCount, r.FailureCount)
	} else {
		r.Message = fmt.Sprintf("Process completed. %d generated, %d failed.",
			r.SuccessCount, r.FailureCount)
	}
	return r
}
