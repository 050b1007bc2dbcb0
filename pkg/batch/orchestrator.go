package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entrhq/docfetch/pkg/storage"
)

// State is a stage of the batch lifecycle.
type State int

const (
	StateIdle State = iota
	StateSessionOpening
	StateReady
	StateItemProcessing
	StateRecovering
	StateFatalAbort
	StateClosing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionOpening:
		return "session_opening"
	case StateReady:
		return "ready"
	case StateItemProcessing:
		return "item_processing"
	case StateRecovering:
		return "recovering"
	case StateFatalAbort:
		return "fatal_abort"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateIdle:           {StateSessionOpening, StateFatalAbort},
	StateSessionOpening: {StateReady, StateFatalAbort},
	StateReady:          {StateItemProcessing, StateClosing, StateFatalAbort},
	StateItemProcessing: {StateReady, StateRecovering},
	StateRecovering:     {StateReady, StateFatalAbort},
	StateFatalAbort:     {StateClosing, StateDone},
	StateClosing:        {StateDone},
}

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Batch statuses reported to the Recorder.
const (
	StatusCompleted             = "completed"
	StatusCompletedWithFailures = "completed_with_failures"
	StatusAborted               = "aborted"
	StatusFailed                = "failed"
)

// Recorder receives batch measurements. *metrics.Metrics implements it.
type Recorder interface {
	BatchFinished(status string)
	ItemFinished(success bool, d time.Duration)
	RecoveryAttempted(ok bool)
	MirrorUploaded(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) BatchFinished(string)              {}
func (nopRecorder) ItemFinished(bool, time.Duration) {}
func (nopRecorder) RecoveryAttempted(bool)           {}
func (nopRecorder) MirrorUploaded(bool)              {}

// Sessions opens and closes portal sessions.
type Sessions interface {
	Open(ctx context.Context) (*Session, error)
	Close(s *Session) error
}

// Processor runs the per-identifier sequence.
type Processor interface {
	Process(ctx context.Context, s *Session, identifier, path string) error
}

// Recoverer returns a session to the known-good page.
type Recoverer interface {
	Recover(ctx context.Context, s *Session, failed string) error
}

// PathResolver prepares the dated output directory and names files in it.
type PathResolver interface {
	EnsureDir() (string, error)
	FilePath(dir, identifier string) (string, error)
}

// Orchestrator runs batches: one session, identifiers in input order, recovery
// after each failure, and a report at the end.
type Orchestrator struct {
	sessions  Sessions
	processor Processor
	recovery  Recoverer
	resolver  PathResolver

	validator *Validator
	mirror    storage.Mirror
	artifacts *ArtifactWriter
	recorder  Recorder
	now       func() time.Time

	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(sessions Sessions, processor Processor, recovery Recoverer, resolver PathResolver, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		processor: processor,
		recovery:  recovery,
		resolver:  resolver,
		recorder:  nopRecorder{},
		now:       time.Now,
		logger:    logger,
	}
}

// WithValidator applies batch limits before any work starts.
func (o *Orchestrator) WithValidator(v *Validator) *Orchestrator {
	o.validator = v
	return o
}

// WithMirror uploads every delivered document to m.
func (o *Orchestrator) WithMirror(m storage.Mirror) *Orchestrator {
	o.mirror = m
	return o
}

// WithArtifacts writes a report file pair after every batch.
func (o *Orchestrator) WithArtifacts(w *ArtifactWriter) *Orchestrator {
	o.artifacts = w
	return o
}

// WithRecorder sends batch measurements to r.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// WithClock replaces the time source. Used by tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run processes identifiers sequentially on a single session.
//
// Invalid input, an unusable output directory and a failed login return a nil
// report. A failed recovery or a cancelled ctx returns the partial report with
// Aborted set, together with the cause. Item failures never surface as errors;
// they are listed in the report.
//
// Cancellation of ctx is observed only between identifiers. A step in flight runs
// to completion or to its own timeout.
func (o *Orchestrator) Run(ctx context.Context, identifiers []string) (*Report, error) {
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("%w: no identifiers", ErrInvalidInput)
	}
	if o.validator != nil {
		if err := o.validator.Validate(identifiers); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batchID := uuid.New().String()
	logger := o.logger.With(zap.String("batch_id", batchID))
	lc := &lifecycle{state: StateIdle, logger: logger}

	dir, err := o.resolver.EnsureDir()
	if err != nil {
		logger.Error("output directory unavailable", zap.Error(err))
		lc.to(StateFatalAbort)
		lc.to(StateDone)
		o.recorder.BatchFinished(StatusFailed)
		return nil, err
	}

	work := context.WithoutCancel(ctx)

	lc.to(StateSessionOpening)
	session, err := o.sessions.Open(work)
	if err != nil {
		logger.Error("session could not be opened", zap.Error(err))
		lc.to(StateFatalAbort)
		lc.to(StateDone)
		o.recorder.BatchFinished(StatusFailed)
		return nil, err
	}
	lc.to(StateReady)

	logger = logger.With(zap.String("session_id", session.ID))
	logger.Info("batch started", zap.Int("items", len(identifiers)), zap.String("directory", dir))

	closed := false
	closeSession := func() {
		if closed {
			return
		}
		closed = true
		if err := o.sessions.Close(session); err != nil {
			logger.Warn("failed to close session", zap.Error(err))
		}
	}
	defer closeSession()

	agg := NewAggregator(batchID, len(identifiers), o.now)
	abort := o.loop(ctx, work, lc, session, dir, identifiers, agg, logger)
	if abort != nil {
		lc.to(StateFatalAbort)
	}

	lc.to(StateClosing)
	closeSession()
	lc.to(StateDone)

	report := agg.Finalize(dir, abort)
	o.writeArtifacts(&report, logger)

	status := batchStatus(&report)
	o.recorder.BatchFinished(status)
	logger.Info("batch finished",
		zap.String("status", status),
		zap.Int("success", report.SuccessCount),
		zap.Int("failed", report.FailureCount),
		zap.Duration("duration", report.Duration),
	)

	if abort != nil {
		return &report, abort
	}
	return &report, nil
}

func (o *Orchestrator) loop(
	ctx, work context.Context,
	lc *lifecycle,
	session *Session,
	dir string,
	identifiers []string,
	agg *Aggregator,
	logger *zap.Logger,
) error {
	for i, id := range identifiers {
		if err := ctx.Err(); err != nil {
			logger.Warn("batch cancelled", zap.Int("attempted", i), zap.Error(err))
			return fmt.Errorf("batch cancelled after %d of %d items: %w", i, len(identifiers), err)
		}

		lc.to(StateItemProcessing)
		outcome := o.processItem(work, session, dir, id, logger)
		agg.Record(outcome)
		o.recorder.ItemFinished(outcome.Status == OutcomeSuccess, outcome.Duration)

		if outcome.Status == OutcomeSuccess {
			lc.to(StateReady)
			continue
		}

		lc.to(StateRecovering)
		if err := o.recovery.Recover(work, session, id); err != nil {
			o.recorder.RecoveryAttempted(false)
			logger.Error("recovery failed, aborting batch", zap.String("identifier", id), zap.Error(err))
			return err
		}
		o.recorder.RecoveryAttempted(true)
		lc.to(StateReady)
	}
	return nil
}

func (o *Orchestrator) processItem(ctx context.Context, session *Session, dir, id string, logger *zap.Logger) Outcome {
	start := o.now()
	logger = logger.With(zap.String("identifier", id))

	path, err := o.resolver.FilePath(dir, id)
	if err != nil {
		itemErr := &ItemProcessingError{Identifier: id, Step: StepResolvePath, Err: err}
		logger.Warn("item failed", zap.String("step", itemErr.Step), zap.Error(err))
		return Failed(itemErr, o.now().Sub(start))
	}

	if err := o.processor.Process(ctx, session, id, path); err != nil {
		var itemErr *ItemProcessingError
		if !errors.As(err, &itemErr) {
			itemErr = &ItemProcessingError{Identifier: id, Step: "unknown", Err: err}
		}
		logger.Warn("item failed", zap.String("step", itemErr.Step), zap.Error(itemErr.Err))
		return Failed(itemErr, o.now().Sub(start))
	}

	o.mirrorDocument(ctx, path, logger)

	d := o.now().Sub(start)
	logger.Info("document generated", zap.String("path", path), zap.Duration("duration", d))
	return Succeeded(id, path, d)
}

func (o *Orchestrator) mirrorDocument(ctx context.Context, path string, logger *zap.Logger) {
	if o.mirror == nil {
		return
	}
	key := storage.PartitionKey(path)
	if err := o.mirror.Put(ctx, path, key); err != nil {
		o.recorder.MirrorUploaded(false)
		logger.Warn("mirror upload failed", zap.String("key", key), zap.Error(err))
		return
	}
	o.recorder.MirrorUploaded(true)
}

func (o *Orchestrator) writeArtifacts(report *Report, logger *zap.Logger) {
	if o.artifacts == nil {
		return
	}
	if err := o.artifacts.Write(report); err != nil {
		logger.Warn("failed to write batch report", zap.Error(err))
	}
}

func batchStatus(r *Report) string {
	switch {
	case r.Aborted:
		return StatusAborted
	case r.FailureCount > 0:
		return StatusCompletedWithFailures
	default:
		return StatusCompleted
	}
}

type lifecycle struct {
	state  State
	logger *zap.Logger
}

func (l *lifecycle) to(next State) {
	if !CanTransition(l.state, next) {
		l.logger.DPanic("invalid batch state transition",
			zap.Stringer("from", l.state),
			zap.Stringer("to", next),
		)
	}
	l.logger.Debug("batch state", zap.Stringer("from", l.state), zap.Stringer("to", next))
	l.state = next
}
