// Package document checks exported documents before they are counted as delivered.
package document

import (
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrEmptyDocument is returned for a structurally valid PDF without pages.
var ErrEmptyDocument = errors.New("document has no pages")

// PDFValidator validates PDF files with pdfcpu.
type PDFValidator struct{}

// NewPDFValidator creates a new PDF validator.
func NewPDFValidator() *PDFValidator {
	return &PDFValidator{}
}

// Validate checks the file at path and returns its page count.
func (v *PDFValidator) Validate(path string) (int, error) {
	if err := api.ValidateFile(path, nil); err != nil {
		return 0, fmt.Errorf("invalid pdf %s: %w", path, err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", path, err)
	}
	if pages == 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrEmptyDocument)
	}

	return pages, nil
}
