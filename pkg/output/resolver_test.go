package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 7, 15, 4, 5, 0, time.Local)
}

func TestResolver_Dir(t *testing.T) {
	r := NewResolver("/mnt/share", []string{"Compartida", "datos"}, "pdf").WithClock(fixedClock)
	assert.Equal(t, filepath.Join("/mnt/share", "Compartida", "datos", "2026", "03", "07"), r.Dir())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
		wantErr    bool
	}{
		{name: "plain identifier", identifier: "A001", want: "A001"},
		{name: "unix traversal", identifier: "../../etc/passwd", want: "passwd"},
		{name: "windows traversal", identifier: `..\..\windows\system32`, want: "system32"},
		{name: "absolute path", identifier: "/var/tmp/report", want: "report"},
		{name: "trailing separator", identifier: "folder/", want: "folder"},
		{name: "nul byte", identifier: "A0\x0001", want: "A001"},
		{name: "dots kept inside name", identifier: "2024.001", want: "2024.001"},
		{name: "empty", identifier: "", wantErr: true},
		{name: "parent only", identifier: "..", wantErr: true},
		{name: "separator only", identifier: "///", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.identifier)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsafeIdentifier))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/")
		})
	}
}

func TestResolver_FilePathStaysInsideDir(t *testing.T) {
	r := NewResolver(t.TempDir(), nil, ".pdf").WithClock(fixedClock)
	dir := r.Dir()

	path, err := r.FilePath(dir, "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "passwd.pdf"), path)
	assert.True(t, strings.HasPrefix(path, dir+string(filepath.Separator)))
}

func TestResolver_EnsureDirIdempotent(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root, []string{"docs"}, "pdf").WithClock(fixedClock)

	first, err := r.EnsureDir()
	require.NoError(t, err)
	second, err := r.EnsureDir()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Dir(first))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no duplicate day directories")
}

func TestResolver_EnsureDirFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	r := NewResolver(blocker, nil, "pdf").WithClock(fixedClock)
	_, err := r.EnsureDir()
	require.Error(t, err)

	var derr *DirectoryCreationError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, r.Dir(), derr.Path)
}
