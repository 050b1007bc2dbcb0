package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{name: "strings", body: `{"data":["A001","A002"]}`, want: []string{"A001", "A002"}},
		{name: "numbers keep literal text", body: `{"data":[1001, 2.50]}`, want: []string{"1001", "2.50"}},
		{name: "order and duplicates kept", body: `{"data":["B","A","B"]}`, want: []string{"B", "A", "B"}},
		{name: "missing data", body: `{}`, wantErr: true},
		{name: "null data", body: `{"data":null}`, wantErr: true},
		{name: "object data", body: `{"data":{"id":"A"}}`, wantErr: true},
		{name: "string data", body: `{"data":"A001"}`, wantErr: true},
		{name: "empty array", body: `{"data":[]}`, wantErr: true},
		{name: "nested array", body: `{"data":[["A"]]}`, wantErr: true},
		{name: "boolean element", body: `{"data":["A", true]}`, wantErr: true},
		{name: "null element", body: `{"data":[null]}`, wantErr: true},
		{name: "not json", body: `data=A001`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidator(t *testing.T) {
	v, err := NewValidator(3, []string{"A[0-9][0-9][0-9]", "LEG-*"})
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]string{"A001", "LEG-77"}))
	assert.ErrorIs(t, v.Validate([]string{"A001", "B001"}), ErrInvalidInput)
	assert.ErrorIs(t, v.Validate([]string{"A001", "A002", "A003", "A004"}), ErrInvalidInput)
	assert.ErrorIs(t, v.Validate(nil), ErrInvalidInput)
}

func TestValidator_NoPatternsAllowsAll(t *testing.T) {
	v, err := NewValidator(0, nil)
	require.NoError(t, err)
	assert.NoError(t, v.Validate([]string{"anything", "../odd"}))
}

func TestNewValidator_BadPattern(t *testing.T) {
	_, err := NewValidator(0, []string{"[unterminated"})
	assert.Error(t, err)
}
