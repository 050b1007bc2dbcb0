package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "docs/2026/01/02/A001.pdf", ObjectKey("/docs/", "2026/01/02/A001.pdf"))
	assert.Equal(t, "2026/01/02/A001.pdf", ObjectKey("", "/2026/01/02/A001.pdf"))
}

func TestPartitionKey(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "share with subpath", path: "/mnt/share/notices/2026/01/02/A001.pdf", want: "2026/01/02/A001.pdf"},
		{name: "share at root", path: "/2026/01/02/A001.pdf", want: "2026/01/02/A001.pdf"},
		{name: "relative", path: "out/2025/12/31/B.pdf", want: "2025/12/31/B.pdf"},
		{name: "short path", path: "A001.pdf", want: "A001.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionKey(tt.path))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("/tmp/A001.PDF"))
	assert.Equal(t, "application/octet-stream", contentType("/tmp/A001.bin"))
}

func TestNewS3Mirror_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing endpoint", cfg: Config{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}, wantErr: "endpoint"},
		{name: "missing bucket", cfg: Config{Endpoint: "localhost:9000", AccessKeyID: "a", SecretAccessKey: "s"}, wantErr: "bucket"},
		{name: "missing credentials", cfg: Config{Endpoint: "localhost:9000", Bucket: "b"}, wantErr: "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Mirror(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewS3Mirror_ParsesURLEndpoint(t *testing.T) {
	m, err := NewS3Mirror(Config{
		Endpoint:        "https://minio.internal:9000",
		Bucket:          "documents",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "minio.internal:9000", m.client.EndpointURL().Host)
	assert.Equal(t, "https", m.client.EndpointURL().Scheme)
}
