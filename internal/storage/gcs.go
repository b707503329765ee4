package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"postboard/internal/config"
)

// GCSStorage writes to a Google Cloud Storage bucket, either directly or
// through a Firebase app's default bucket.
type GCSStorage struct {
	bucket    *storage.BucketHandle
	name      string
	publicURL string
	newWriter func(ctx context.Context, key string) objectWriter
}

// objectWriter is the part of *storage.Writer that Put drives.
type objectWriter interface {
	io.WriteCloser
	SetContentType(string)
	SetCacheControl(string)
}

type gcsWriter struct {
	*storage.Writer
}

func (w gcsWriter) SetContentType(v string)  { w.ContentType = v }
func (w gcsWriter) SetCacheControl(v string) { w.CacheControl = v }

// NewGCSStorage constructs a GCS client from config.
func NewGCSStorage(ctx context.Context, cfg *config.Config) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.GCSCredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return newGCSStorage(client.Bucket(cfg.BucketName), cfg.BucketName, cfg.PublicBaseURL), nil
}

// NewFirebaseStorage resolves the bucket through a Firebase app, as Firebase
// projects do with their <project>.appspot.com bucket.
func NewFirebaseStorage(ctx context.Context, cfg *config.Config) (*GCSStorage, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("firebase storage bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.FirebaseCredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: cfg.BucketName}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase storage: %w", err)
	}

	bucket, err := client.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase default bucket: %w", err)
	}

	return newGCSStorage(bucket, cfg.BucketName, cfg.PublicBaseURL), nil
}

func newGCSStorage(bucket *storage.BucketHandle, name, publicURL string) *GCSStorage {
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + name
	}
	g := &GCSStorage{
		bucket:    bucket,
		name:      name,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
	g.newWriter = func(ctx context.Context, key string) objectWriter {
		return gcsWriter{g.bucket.Object(key).NewWriter(ctx)}
	}
	return g
}

// EnsureBucket checks the bucket is reachable.
func (g *GCSStorage) EnsureBucket(ctx context.Context) error {
	if _, err := g.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %s: %w", g.name, err)
	}
	return nil
}

// Put streams r into the object. The write is only committed by Close; a
// failed copy cancels the writer's context so no partial object is finalised.
func (g *GCSStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := g.newWriter(ctx, key)
	if strings.TrimSpace(contentType) != "" {
		writer.SetContentType(contentType)
	}
	writer.SetCacheControl(DefaultCacheControl)

	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		_ = writer.Close()
		return fmt.Errorf("write gcs object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize gcs object: %w", err)
	}
	return nil
}

func (g *GCSStorage) MakePublic(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return fmt.Errorf("make gcs object public: %w", err)
	}
	return nil
}

func (g *GCSStorage) PublicURL(key string) string {
	return joinURL(g.publicURL, key)
}

func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := g.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gcs object: %w", err)
	}
	return nil
}

func (g *GCSStorage) Bucket() string {
	return g.name
}
