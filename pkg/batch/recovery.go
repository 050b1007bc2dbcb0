package batch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RecoveryController returns a session to the known-good page after an item failure.
// It does not log in again: the session is assumed to still be authenticated and
// only its navigation state to be broken.
type RecoveryController struct {
	portalURL string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRecoveryController creates a recovery controller.
func NewRecoveryController(portalURL string, timeout time.Duration, logger *zap.Logger) *RecoveryController {
	return &RecoveryController{
		portalURL: portalURL,
		timeout:   timeout,
		logger:    logger,
	}
}

// Recover navigates to the portal root and waits for the known-good page.
// failed is the identifier whose failure triggered recovery. A failure here is
// fatal for the batch and is returned as *RecoveryError.
func (c *RecoveryController) Recover(ctx context.Context, s *Session, failed string) error {
	c.logger.Info("recovering session", zap.String("after", failed))

	if err := s.Driver().Navigate(ctx, c.portalURL); err != nil {
		return &RecoveryError{Identifier: failed, Step: StepReturnPortal, Err: err}
	}
	if err := s.Ready(ctx, c.timeout); err != nil {
		return &RecoveryError{Identifier: failed, Step: StepWaitRecovered, Err: err}
	}

	c.logger.Info("session recovered", zap.String("after", failed))
	return nil
}
