package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/entrhq/docfetch/pkg/config"
)

// DocumentValidator checks an exported document and returns its page count.
type DocumentValidator interface {
	Validate(path string) (int, error)
}

// ItemProcessor drives one identifier through query, wait, export and back.
type ItemProcessor struct {
	selectors config.Selectors
	timeouts  config.TimeoutConfig
	typeDelay time.Duration
	validator DocumentValidator
	logger    *zap.Logger
}

// NewItemProcessor creates an item processor.
func NewItemProcessor(selectors config.Selectors, timeouts config.TimeoutConfig, typeDelay time.Duration, logger *zap.Logger) *ItemProcessor {
	return &ItemProcessor{
		selectors: selectors,
		timeouts:  timeouts,
		typeDelay: typeDelay,
		logger:    logger,
	}
}

// WithValidator checks every exported document with v before the item succeeds.
func (p *ItemProcessor) WithValidator(v DocumentValidator) *ItemProcessor {
	p.validator = v
	return p
}

// Process queries identifier on the portal and exports the result page to path.
// Any failing step returns *ItemProcessingError and leaves the session wherever
// that step left it; the caller is responsible for recovery. Nothing is retried.
func (p *ItemProcessor) Process(ctx context.Context, s *Session, identifier, path string) error {
	drv := s.Driver()
	sel := p.selectors

	fail := func(step string, err error) error {
		return &ItemProcessingError{Identifier: identifier, Step: step, Err: err}
	}

	if err := drv.WaitVisible(ctx, sel.SearchInput, p.timeouts.Element); err != nil {
		return fail(StepWaitSearch, err)
	}

	// Triple click selects whatever the previous query left in the box
	if err := drv.Click(ctx, sel.SearchInput, 3); err != nil {
		return fail(StepClearSearch, err)
	}
	if err := drv.Type(ctx, sel.SearchInput, identifier, p.typeDelay); err != nil {
		return fail(StepTypeQuery, err)
	}
	if err := drv.Click(ctx, sel.SearchButton, 1); err != nil {
		return fail(StepSubmitSearch, err)
	}
	if err := drv.WaitVisible(ctx, sel.ResultIndicator, p.timeouts.Result); err != nil {
		return fail(StepWaitResult, err)
	}

	if err := drv.ExportPage(ctx, path); err != nil {
		p.discard(path)
		return fail(StepExport, err)
	}

	if p.validator != nil {
		pages, err := p.validator.Validate(path)
		if err != nil {
			p.discard(path)
			return fail(StepValidate, err)
		}
		p.logger.Debug("document validated",
			zap.String("identifier", identifier),
			zap.String("path", path),
			zap.Int("pages", pages),
		)
	}

	if err := drv.GoBack(ctx); err != nil {
		return fail(StepNavigateBack, err)
	}
	if err := s.Ready(ctx, p.timeouts.Ready); err != nil {
		return fail(StepWaitReady, err)
	}

	return nil
}

// discard removes a document that was not delivered so the share only holds
// complete exports.
func (p *ItemProcessor) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("failed to remove undelivered document", zap.String("path", path), zap.Error(err))
	}
}
