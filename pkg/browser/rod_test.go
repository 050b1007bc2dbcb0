package browser

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChrome struct {
	calls []string
}

func (p *fakeChrome) Kill()    { p.calls = append(p.calls, "kill") }
func (p *fakeChrome) Cleanup() { p.calls = append(p.calls, "cleanup") }

func TestRodDriver_CloseRemovesProfile(t *testing.T) {
	proc := &fakeChrome{}
	d := &RodDriver{proc: proc}

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"kill", "cleanup"}, proc.calls)
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, errors.New("stream closed by browser")
	}
	r.read = true
	return copy(p, r.data), nil
}

func TestWriteStream(t *testing.T) {
	tests := []struct {
		name    string
		reader  io.Reader
		wantErr bool
	}{
		{name: "complete", reader: strings.NewReader("%PDF-1.7 body")},
		{name: "broken mid copy", reader: &failingReader{data: "%PDF-1.7 partial"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "A001.pdf")

			err := writeStream(path, tt.reader)
			if tt.wantErr {
				require.Error(t, err)
				assert.NoFileExists(t, path)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.7 body", string(data))
		})
	}
}

func TestPrintOptions_A4(t *testing.T) {
	opts := printOptions()

	require.NotNil(t, opts.PaperWidth)
	require.NotNil(t, opts.PaperHeight)
	assert.InDelta(t, 8.27, *opts.PaperWidth, 0.001)
	assert.InDelta(t, 11.69, *opts.PaperHeight, 0.001)
	assert.True(t, opts.PrintBackground)
	assert.False(t, opts.Landscape)
}
