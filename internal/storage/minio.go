package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"postboard/internal/config"
)

// MinioStorage wraps the MinIO SDK client and bucket name.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStorage constructs a MinIO client from config.
// Public access is granted by bucket policy, so MakePublic is a no-op.
func NewMinioStorage(cfg *config.Config) (*MinioStorage, error) {
	if strings.TrimSpace(cfg.MinIOEndpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.MinIOAccessKey) == "" || strings.TrimSpace(cfg.MinIOSecretKey) == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicURL := cfg.PublicBaseURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MinIOUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.MinIOEndpoint, cfg.BucketName)
	}

	return &MinioStorage{
		client:    client,
		bucket:    cfg.BucketName,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// EnsureBucket ensures the configured bucket exists.
func (m *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

// Put uploads an object to the configured bucket.
func (m *MinioStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: DefaultCacheControl,
	})
	if err != nil {
		return fmt.Errorf("put minio object: %w", err)
	}
	return nil
}

func (m *MinioStorage) MakePublic(ctx context.Context, key string) error {
	return nil
}

func (m *MinioStorage) PublicURL(key string) string {
	return joinURL(m.publicURL, key)
}

// Delete removes an object from the configured bucket.
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// Bucket returns the configured bucket name.
func (m *MinioStorage) Bucket() string {
	return m.bucket
}
