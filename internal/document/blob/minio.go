package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docflow/internal/document/ports"
	"docflow/pkg/platform/sentinel"
)

// MinIOConfig locates the bucket holding attachments.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO stores attachments in an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

var _ ports.BlobStore = (*MinIO)(nil)

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w: %w", m.bucket, sentinel.ErrUnavailable, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another instance may have created it between the two calls.
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, name, mimeType string, size int64, r io.Reader) (string, error) {
	object := ObjectName(name, m.now())
	_, err := m.client.PutObject(ctx, m.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	return object, nil
}

// Delete treats a missing object as already deleted.
func (m *MinIO) Delete(ctx context.Context, path string) error {
	err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (m *MinIO) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, path, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("stat %s: %w", path, sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, path, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", path, err)
	}
	return u.String(), nil
}

// Health reports whether the bucket is reachable.
func (m *MinIO) Health(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return nil
}
