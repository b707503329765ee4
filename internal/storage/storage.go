package storage

import (
	"context"
	"fmt"
	"io"

	"postboard/internal/config"
)

// DefaultCacheControl is attached to every uploaded object.
const DefaultCacheControl = "public, max-age=31536000"

// ObjectStorage defines common object operations across backends.
// Put blocks until the object is fully written.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// MakePublic grants anonymous read on key. Backends that serve a public
	// bucket domain treat it as a no-op.
	MakePublic(ctx context.Context, key string) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// New builds the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (ObjectStorage, error) {
	switch cfg.StorageBackend {
	case config.StorageR2:
		return NewR2Storage(ctx, cfg)
	case config.StorageS3:
		return NewS3Storage(ctx, cfg)
	case config.StorageGCS:
		return NewGCSStorage(ctx, cfg)
	case config.StorageFirebase:
		return NewFirebaseStorage(ctx, cfg)
	case config.StorageMinIO:
		return NewMinioStorage(cfg)
	case config.StorageMemory:
		return NewMemoryStorage(cfg.BucketName, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func joinURL(base, key string) string {
	return fmt.Sprintf("%s/%s", base, key)
}
