package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entrhq/docfetch/pkg/browser"
	"github.com/entrhq/docfetch/pkg/config"
)

// Session is an authenticated navigation context against the portal.
// The orchestrator owns it; the item processor and recovery controller borrow it
// one call at a time and never close it.
type Session struct {
	ID string

	driver        browser.Driver
	readySelector string

	closeOnce sync.Once
	closeErr  error
}

// Driver returns the browser driver bound to this session.
func (s *Session) Driver() browser.Driver {
	return s.driver
}

// Ready waits until the known-good page is displayed.
func (s *Session) Ready(ctx context.Context, timeout time.Duration) error {
	return s.driver.WaitVisible(ctx, s.readySelector, timeout)
}

// SessionManager opens and closes portal sessions.
type SessionManager struct {
	launcher  browser.Launcher
	creds     config.Credentials
	selectors config.Selectors
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSessionManager creates a session manager. loginTimeout bounds each wait of
// the login sequence.
func NewSessionManager(
	launcher browser.Launcher,
	creds config.Credentials,
	selectors config.Selectors,
	loginTimeout time.Duration,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		launcher:  launcher,
		creds:     creds,
		selectors: selectors,
		timeout:   loginTimeout,
		logger:    logger,
	}
}

// Open launches a browser and logs in. It blocks until the known-good page is
// visible or a step fails; failures are returned as *SessionError and leave no
// browser running. Login is not retried.
func (m *SessionManager) Open(ctx context.Context) (*Session, error) {
	drv, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, &SessionError{Step: StepLaunch, Err: err}
	}

	session := &Session{
		ID:            uuid.New().String(),
		driver:        drv,
		readySelector: m.selectors.ReadyIndicator,
	}
	logger := m.logger.With(zap.String("session_id", session.ID))

	if step, err := m.login(ctx, drv); err != nil {
		logger.Error("login failed", zap.String("step", step), zap.Error(err))
		if cerr := m.Close(session); cerr != nil {
			logger.Warn("failed to close browser after login failure", zap.Error(cerr))
		}
		return nil, &SessionError{Step: step, Err: err}
	}

	logger.Info("login succeeded", zap.String("portal", m.creds.URL))
	return session, nil
}

func (m *SessionManager) login(ctx context.Context, drv browser.Driver) (string, error) {
	sel := m.selectors

	if err := drv.Navigate(ctx, m.creds.URL); err != nil {
		return StepOpenPortal, err
	}
	if err := drv.WaitVisible(ctx, sel.UsernameInput, m.timeout); err != nil {
		return StepWaitLogin, err
	}
	if err := drv.Type(ctx, sel.UsernameInput, m.creds.Username, 0); err != nil {
		return StepTypeUsername, err
	}
	if err := drv.Type(ctx, sel.PasswordInput, m.creds.Password, 0); err != nil {
		return StepTypePassword, err
	}
	if err := drv.Click(ctx, sel.LoginButton, 1); err != nil {
		return StepSubmitLogin, err
	}
	if err := drv.WaitVisible(ctx, sel.ReadyIndicator, m.timeout); err != nil {
		return StepWaitReady, err
	}
	return "", nil
}

// Close releases the session's browser. Only the first call does work;
// later calls return the same result.
func (m *SessionManager) Close(s *Session) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.driver.Close()
		m.logger.Debug("session closed", zap.String("session_id", s.ID), zap.Error(s.closeErr))
	})
	return s.closeErr
}
