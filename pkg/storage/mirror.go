// Package storage mirrors exported documents to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror copies a local document to a secondary destination.
type Mirror interface {
	Put(ctx context.Context, localPath, key string) error
}

// Config holds the S3 connection settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	Prefix          string
	UseSSL          bool
}

// S3Mirror implements Mirror using the minio-go SDK.
type S3Mirror struct {
	client *minio.Client
	cfg    Config
}

// NewS3Mirror creates an S3 mirror from config.
func NewS3Mirror(cfg Config) (*S3Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("credentials are required")
	}

	// Accept both bare host:port and full URLs
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3Mirror{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (m *S3Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.cfg.Bucket, err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{
		Region: m.cfg.Region,
	}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Put uploads localPath under the configured prefix.
func (m *S3Mirror) Put(ctx context.Context, localPath, key string) error {
	objectName := ObjectKey(m.cfg.Prefix, key)
	_, err := m.client.FPutObject(ctx, m.cfg.Bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s/%s: %w", localPath, m.cfg.Bucket, objectName, err)
	}
	return nil
}

// PartitionKey builds the object key for a document stored in a
// <YYYY>/<MM>/<DD> directory, keeping the date partition of the local path.
func PartitionKey(localPath string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(localPath)), "/")
	if len(parts) > 4 {
		parts = parts[len(parts)-4:]
	}
	return strings.TrimLeft(path.Join(parts...), "/")
}

// ObjectKey joins prefix and key using forward slashes.
func ObjectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(filepath.ToSlash(key), "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}
