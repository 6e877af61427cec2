// Package minio provides the object storage implementation backed by a
// MinIO or S3-compatible bucket.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lumenhq/fable-api/internal/config"
	"github.com/lumenhq/fable-api/internal/storage"
)

// Client implements storage.ObjectStore backed by a MinIO bucket.
type Client struct {
	mc      *miniogo.Client
	bucket  string
	baseURL string
	logger  *slog.Logger
}

// Ensure Client implements storage.ObjectStore interface
var _ storage.ObjectStore = (*Client)(nil)

// New creates a storage client from configuration. The connection is lazy;
// call EnsureBucket during startup to verify reachability and create the
// bucket if it does not exist yet.
func New(cfg config.StorageConfig, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	mc, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Client{
		mc:      mc,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
		logger:  log.With(slog.String("component", "object_store")),
	}, nil
}

// EnsureBucket creates the configured bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.mc.MakeBucket(ctx, c.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", c.bucket, err)
	}
	c.logger.Info("created storage bucket", slog.String("bucket", c.bucket))
	return nil
}

// Put implements storage.ObjectStore.Put. Existing objects under the same
// key are overwritten.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// URL implements storage.ObjectStore.URL.
func (c *Client) URL(key string) string {
	return c.baseURL + "/" + strings.TrimPrefix(key, "/")
}

// publicBaseURL resolves the URL prefix for stored assets. An explicitly
// configured base (a CDN in front of the bucket) wins; otherwise the URL
// is derived from the endpoint and bucket.
func publicBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}
