// Package output resolves where exported documents are written.
//
// Documents land in a date-partitioned directory on the share:
//
//	<root>/<subpath...>/<YYYY>/<MM>/<DD>/<identifier>.<ext>
//
// Identifiers are reduced to their basename before they become part of a path.
package output

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsafeIdentifier is returned when an identifier has no usable basename.
var ErrUnsafeIdentifier = errors.New("identifier cannot be used as a file name")

// DirectoryCreationError reports that the output directory could not be prepared.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("failed to create output directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error {
	return e.Err
}

// Resolver computes destination directories and file names.
type Resolver struct {
	root      string
	subpath   []string
	extension string
	now       func() time.Time
}

// NewResolver creates a resolver rooted at the share root.
func NewResolver(root string, subpath []string, extension string) *Resolver {
	return &Resolver{
		root:      root,
		subpath:   subpath,
		extension: strings.TrimPrefix(extension, "."),
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Dir returns the directory for the current date.
func (r *Resolver) Dir() string {
	t := r.now()
	parts := make([]string, 0, len(r.subpath)+4)
	parts = append(parts, r.root)
	parts = append(parts, r.subpath...)
	parts = append(parts,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
	)
	return filepath.Join(parts...)
}

// EnsureDir creates the directory for the current date. It is idempotent.
func (r *Resolver) EnsureDir() (string, error) {
	dir := r.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &DirectoryCreationError{Path: dir, Err: err}
	}
	return dir, nil
}

// FilePath returns the document path for identifier inside dir.
func (r *Resolver) FilePath(dir, identifier string) (string, error) {
	name, err := Sanitize(identifier)
	if err != nil {
		return "", err
	}
	if r.extension != "" {
		name += "." + r.extension
	}
	return filepath.Join(dir, name), nil
}

// Sanitize reduces identifier to a basename that cannot leave its directory.
// Both slash and backslash count as separators.
func Sanitize(identifier string) (string, error) {
	cleaned := strings.ReplaceAll(identifier, "\x00", "")
	cleaned = strings.ReplaceAll(cleaned, `\`, "/")
	cleaned = strings.TrimSpace(cleaned)

	base := path.Base(cleaned)
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrUnsafeIdentifier, identifier)
	}
	return base, nil
}
