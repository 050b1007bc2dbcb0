package batch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gobwas/glob"
)

// Request is the body accepted by the batch endpoints.
type Request struct {
	Data json.RawMessage `json:"data"`
}

// ParseRequest decodes a batch request body into its ordered identifiers.
// data must be a non-empty array of strings; JSON numbers are accepted and kept
// as their literal text. Anything else is ErrInvalidInput.
func ParseRequest(body []byte) ([]string, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrInvalidInput, err)
	}

	raw := bytes.TrimSpace(req.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidInput)
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: data must be an array", ErrInvalidInput)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: data must be an array: %v", ErrInvalidInput, err)
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: data is empty", ErrInvalidInput)
	}

	ids := make([]string, 0, len(elems))
	for i, elem := range elems {
		id, err := identifier(elem)
		if err != nil {
			return nil, fmt.Errorf("%w: data[%d]: %v", ErrInvalidInput, i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func identifier(elem json.RawMessage) (string, error) {
	elem = bytes.TrimSpace(elem)
	if len(elem) == 0 {
		return "", fmt.Errorf("empty element")
	}

	switch elem[0] {
	case '"':
		var s string
		if err := json.Unmarshal(elem, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(elem, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("unsupported element %s", elem)
	}
}

// Validator applies batch-level limits before any work is started.
type Validator struct {
	maxItems int
	patterns []glob.Glob
}

// NewValidator compiles the identifier allowlist. A zero maxItems means no limit;
// no patterns means every identifier is allowed.
func NewValidator(maxItems int, patterns []string) (*Validator, error) {
	v := &Validator{maxItems: maxItems}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier pattern %q: %w", p, err)
		}
		v.patterns = append(v.patterns, g)
	}
	return v, nil
}

// Validate checks the batch size and that each identifier matches the allowlist.
func (v *Validator) Validate(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no identifiers", ErrInvalidInput)
	}
	if v.maxItems > 0 && len(ids) > v.maxItems {
		return fmt.Errorf("%w: %d identifiers exceeds the limit of %d", ErrInvalidInput, len(ids), v.maxItems)
	}
	if len(v.patterns) == 0 {
		return nil
	}

	for _, id := range ids {
		if !v.allowed(id) {
			return fmt.Errorf("%w: identifier %q is not allowed", ErrInvalidInput, id)
		}
	}
	return nil
}

func (v *Validator) allowed(id string) bool {
	for _, g := range v.patterns {
		if g.Match(id) {
			return true
		}
	}
	return false
}
