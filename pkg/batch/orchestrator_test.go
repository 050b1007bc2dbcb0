package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/docfetch/pkg/output"
)

func (h *harness) docPath(id string) string {
	return filepath.Join(h.root, "docs", "2026", "03", "07", id+".pdf")
}

func TestOrchestrator_OneSuccessOneFailure(t *testing.T) {
	h := newHarness(t)
	h.driver.noResult["A002"] = true

	report, err := h.orch.Run(context.Background(), []string{"A001", "A002"})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "Process completed. 1 generated, 1 failed.", report.Message)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.Equal(t, []string{"A002"}, report.FailedItems)
	assert.False(t, report.Aborted)
	assert.NotEmpty(t, report.BatchID)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, StepWaitResult, report.Failures[0].Step)

	assert.FileExists(t, h.docPath("A001"))
	assert.NoFileExists(t, h.docPath("A002"))

	assert.Equal(t, 1, h.launcher.launches)
	assert.Equal(t, 1, h.driver.closeCount())
	assert.Equal(t, 2, h.driver.navigations, "login plus one recovery")
}

func TestOrchestrator_AllSucceed(t *testing.T) {
	h := newHarness(t)

	report, err := h.orch.Run(context.Background(), []string{"A001", "A002", "A003"})
	require.NoError(t, err)

	assert.Equal(t, "Process completed. 3 generated, 0 failed.", report.Message)
	assert.Empty(t, report.FailedItems)
	assert.NotNil(t, report.FailedItems)
	assert.Equal(t, 1, h.driver.navigations, "no recovery without failures")
	assert.Equal(t, []string{"A001", "A002", "A003"}, h.driver.queried())
}

func TestOrchestrator_RecoveryLetsBatchContinue(t *testing.T) {
	h := newHarness(t)
	h.driver.exportErr["B"] = errors.New("print failed")

	report, err := h.orch.Run(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, h.driver.queried())
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, []string{"B"}, report.FailedItems)
	assert.Equal(t, StepExport, report.Failures[0].Step)
	assert.FileExists(t, h.docPath("C"))
}

func TestOrchestrator_FailedItemsKeepOccurrenceOrder(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"E", "B", "D"} {
		h.driver.noResult[id] = true
	}

	report, err := h.orch.Run(context.Background(), []string{"A", "B", "C", "D", "E"})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "D", "E"}, report.FailedItems)
	assert.Equal(t, report.Attempted, report.SuccessCount+report.FailureCount)
	assert.Equal(t, 5, report.Attempted)
}

func TestOrchestrator_DuplicateIdentifiersProcessedTwice(t *testing.T) {
	h := newHarness(t)

	report, err := h.orch.Run(context.Background(), []string{"A001", "A001"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, []string{"A001", "A001"}, h.driver.queried())
	assert.FileExists(t, h.docPath("A001"))
}

func TestOrchestrator_RecoveryFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.driver.noResult["A"] = true
	h.driver.navigateFailFrom = 2

	report, err := h.orch.Run(context.Background(), []string{"A", "B", "C"})
	require.Error(t, err)

	var recErr *RecoveryError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "A", recErr.Identifier)
	assert.Equal(t, StepReturnPortal, recErr.Step)
	assert.True(t, IsFatal(err))

	require.NotNil(t, report, "outcomes recorded before the abort are kept")
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, []string{"A"}, report.FailedItems)
	assert.Contains(t, report.Message, "Process aborted")

	assert.Equal(t, []string{"A"}, h.driver.queried())
	assert.Equal(t, 1, h.driver.closeCount())
}

func TestOrchestrator_RecoveryTimeoutAborts(t *testing.T) {
	h := newHarness(t)
	h.driver.noResult["A"] = true

	h.orch.recovery = recovererFunc(func(ctx context.Context, s *Session, failed string) error {
		return &RecoveryError{Identifier: failed, Step: StepWaitRecovered, Err: errTimeout}
	})

	report, err := h.orch.Run(context.Background(), []string{"A", "B"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errTimeout))
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, h.driver.closeCount())
}

type recovererFunc func(ctx context.Context, s *Session, failed string) error

func (f recovererFunc) Recover(ctx context.Context, s *Session, failed string) error {
	return f(ctx, s, failed)
}

func TestOrchestrator_DirectoryFailureStopsBeforeLogin(t *testing.T) {
	h := newHarness(t)

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	h.orch.resolver = output.NewResolver(blocker, []string{"docs"}, "pdf").WithClock(testClock)

	report, err := h.orch.Run(context.Background(), []string{"A001"})
	require.Error(t, err)
	assert.Nil(t, report)

	var dirErr *DirectoryCreationError
	assert.True(t, errors.As(err, &dirErr))
	assert.True(t, IsFatal(err))
	assert.Equal(t, 0, h.launcher.launches)
}

func TestOrchestrator_SessionFailure(t *testing.T) {
	t.Run("login never reaches ready page", func(t *testing.T) {
		h := newHarness(t)
		h.driver.waitErr[h.driver.sel.ReadyIndicator] = errTimeout

		report, err := h.orch.Run(context.Background(), []string{"A001"})
		require.Error(t, err)
		assert.Nil(t, report)

		var sessErr *SessionError
		require.True(t, errors.As(err, &sessErr))
		assert.Equal(t, StepWaitReady, sessErr.Step)
		assert.Empty(t, h.driver.queried(), "no identifier is processed")
		assert.Equal(t, 1, h.driver.closeCount(), "browser released after failed login")
	})

	t.Run("browser does not launch", func(t *testing.T) {
		h := newHarness(t)
		h.launcher.err = errors.New("chromium not found")

		_, err := h.orch.Run(context.Background(), []string{"A001"})

		var sessErr *SessionError
		require.True(t, errors.As(err, &sessErr))
		assert.Equal(t, StepLaunch, sessErr.Step)
		assert.Equal(t, 0, h.driver.closeCount())
	})
}

func TestOrchestrator_InvalidInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	v, err := NewValidator(2, []string{"A*"})
	require.NoError(t, err)
	h.orch.WithValidator(v)

	_, err = h.orch.Run(context.Background(), []string{"A1", "B1"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = h.orch.Run(context.Background(), []string{"A1", "A2", "A3"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	assert.Equal(t, 0, h.launcher.launches)
	assert.NoDirExists(t, filepath.Join(h.root, "docs"))
}

func TestOrchestrator_UnsafeIdentifierIsItemFailure(t *testing.T) {
	h := newHarness(t)

	report, err := h.orch.Run(context.Background(), []string{"..", "A001"})
	require.NoError(t, err)

	assert.Equal(t, []string{".."}, report.FailedItems)
	assert.Equal(t, StepResolvePath, report.Failures[0].Step)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, []string{"A001"}, h.driver.queried())
	assert.Equal(t, 2, h.driver.navigations)
}

func TestOrchestrator_CancellationObservedBetweenItems(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.driver.onExport = func(id string) {
		if id == "A" {
			cancel()
		}
	}

	report, err := h.orch.Run(ctx, []string{"A", "B"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, 1, report.SuccessCount, "the in-flight item completes")
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, []string{"A"}, h.driver.queried())
	assert.FileExists(t, h.docPath("A"))
	assert.Equal(t, 1, h.driver.closeCount())
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.orch.Run(ctx, []string{"A"})
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, h.launcher.launches)
}

func TestOrchestrator_MirrorFailureDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t)
	mirror := &recordingMirror{err: errors.New("bucket unreachable")}
	rec := &countingRecorder{}
	h.orch.WithMirror(mirror).WithRecorder(rec)

	report, err := h.orch.Run(context.Background(), []string{"A001"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, []string{"2026/03/07/A001.pdf"}, mirror.keys)
	assert.Equal(t, []bool{false}, rec.mirrors)
}

func TestOrchestrator_MirrorKeyFollowsBatchDirectory(t *testing.T) {
	h := newHarness(t)
	mirror := &recordingMirror{}
	// the directory was resolved on March 7; uploads happen after midnight
	h.orch.WithMirror(mirror).WithClock(func() time.Time {
		return testClock().Add(15 * time.Hour)
	})

	report, err := h.orch.Run(context.Background(), []string{"A001", "A002"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, []string{"2026/03/07/A001.pdf", "2026/03/07/A002.pdf"}, mirror.keys)
}

func TestOrchestrator_RecorderStatuses(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *harness)
		status string
	}{
		{name: "clean", setup: func(*harness) {}, status: StatusCompleted},
		{
			name:   "with failures",
			setup:  func(h *harness) { h.driver.noResult["A"] = true },
			status: StatusCompletedWithFailures,
		},
		{
			name: "aborted",
			setup: func(h *harness) {
				h.driver.noResult["A"] = true
				h.driver.navigateFailFrom = 2
			},
			status: StatusAborted,
		},
		{
			name:   "failed to start",
			setup:  func(h *harness) { h.launcher.err = errors.New("no browser") },
			status: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := &countingRecorder{}
			h.orch.WithRecorder(rec)
			tt.setup(h)

			_, _ = h.orch.Run(context.Background(), []string{"A", "B"})
			assert.Equal(t, []string{tt.status}, rec.statuses)
		})
	}
}

func TestOrchestrator_WritesArtifacts(t *testing.T) {
	h := newHarness(t)
	reports := t.TempDir()
	writer := NewArtifactWriter(reports)
	h.orch.WithArtifacts(writer)
	h.driver.noResult["B"] = true

	report, err := h.orch.Run(context.Background(), []string{"A", "B"})
	require.NoError(t, err)

	assert.FileExists(t, writer.JSONPath(report.BatchID))
	assert.FileExists(t, writer.MarkdownPath(report.BatchID))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateSessionOpening, true},
		{StateSessionOpening, StateReady, true},
		{StateReady, StateItemProcessing, true},
		{StateItemProcessing, StateRecovering, true},
		{StateRecovering, StateReady, true},
		{StateRecovering, StateFatalAbort, true},
		{StateFatalAbort, StateClosing, true},
		{StateClosing, StateDone, true},
		{StateIdle, StateItemProcessing, false},
		{StateItemProcessing, StateClosing, false},
		{StateDone, StateReady, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
