package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/docfetch/pkg/config"
	"github.com/entrhq/docfetch/pkg/output"
)

// ErrInvalidInput marks a malformed batch request. It is raised before any
// directory or session work happens.
var ErrInvalidInput = errors.New("invalid input")

// DirectoryCreationError is returned when the output directory cannot be prepared.
type DirectoryCreationError = output.DirectoryCreationError

// Steps of the login, item and recovery sequences, used in errors and logs.
const (
	StepLaunch        = "launch"
	StepOpenPortal    = "open_portal"
	StepWaitLogin     = "wait_login_form"
	StepTypeUsername  = "type_username"
	StepTypePassword  = "type_password"
	StepSubmitLogin   = "submit_login"
	StepWaitReady     = "wait_ready"
	StepResolvePath   = "resolve_path"
	StepWaitSearch    = "wait_search_input"
	StepClearSearch   = "clear_search_input"
	StepTypeQuery     = "type_identifier"
	StepSubmitSearch  = "submit_search"
	StepWaitResult    = "wait_result"
	StepExport        = "export_document"
	StepValidate      = "validate_document"
	StepNavigateBack  = "navigate_back"
	StepReturnPortal  = "return_to_portal"
	StepWaitRecovered = "wait_recovered"
)

// SessionError reports a failed login sequence. It is fatal: no identifiers are processed.
type SessionError struct {
	Step string
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error at %s: %v", e.Step, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// ItemProcessingError reports that one identifier could not be processed.
// It never escapes the orchestrator; it becomes a failure outcome.
type ItemProcessingError struct {
	Identifier string
	Step       string
	Err        error
}

func (e *ItemProcessingError) Error() string {
	return fmt.Sprintf("item %q failed at %s: %v", e.Identifier, e.Step, e.Err)
}

func (e *ItemProcessingError) Unwrap() error {
	return e.Err
}

// RecoveryError reports that the session could not be returned to the known-good
// page after an item failure. The batch stops, keeping the outcomes recorded so far.
type RecoveryError struct {
	// Identifier is the item whose failure triggered the recovery
	Identifier string
	Step       string
	Err        error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery after %q failed at %s: %v", e.Identifier, e.Step, e.Err)
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ends a batch (or prevents it from starting).
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var (
		cfgErr  *config.ConfigurationError
		dirErr  *DirectoryCreationError
		sessErr *SessionError
		recErr  *RecoveryError
		itemErr *ItemProcessingError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &dirErr), errors.As(err, &sessErr), errors.As(err, &recErr):
		return true
	case errors.As(err, &itemErr):
		// step timeouts surface as deadline errors; they stay item-scoped
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
