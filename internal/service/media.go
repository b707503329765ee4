package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // registers the WebP decoder used by imaging.Decode

	"postboard/internal/model"
	"postboard/internal/queue"
	"postboard/internal/storage"
)

// MediaService uploads attachments to object storage and releases objects
// that no record references any more.
type MediaService struct {
	objects        storage.ObjectStorage
	publisher      queue.Publisher // nil: release deletes inline
	maxUploadBytes int64
	now            func() time.Time
}

func NewMediaService(objects storage.ObjectStorage, maxUploadBytes int64) *MediaService {
	return &MediaService{
		objects:        objects,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// SetPublisher routes releases through the media stream instead of deleting inline.
func (s *MediaService) SetPublisher(p queue.Publisher) {
	s.publisher = p
}

// UploadPostMedia stores a post attachment under posts/<unix-millis>-<owner>-<filename>.
// It returns once the object is written and public.
func (s *MediaService) UploadPostMedia(ctx context.Context, ownerID string, file *model.FileUpload) (*model.UploadResult, error) {
	data, contentType, err := readUpload(file, s.maxUploadBytes, model.IsAllowedPostMediaType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%d-%s-%s", model.PostMediaFolder, s.now().UnixMilli(), ownerID, sanitizeFilename(file.Filename))
	return s.store(ctx, key, data, contentType)
}

// UploadAvatar enforces size/type, normalizes to a 200x200 JPEG, and uploads it.
func (s *MediaService) UploadAvatar(ctx context.Context, userID string, file *model.FileUpload) (*model.UploadResult, error) {
	data, _, err := readUpload(file, model.MaxAvatarSizeBytes, model.IsAllowedImageType)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := resizeToJPEG(data, model.AvatarWidth, model.AvatarHeight, 85)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidImageType, err)
	}

	key := fmt.Sprintf("%s/%s-%s%s", model.AvatarFolder, userID, uuid.NewString(), model.AvatarExt)
	return s.store(ctx, key, jpegBytes, model.ContentTypeJPEG)
}

// store runs Put then MakePublic. A failed MakePublic removes the private object.
func (s *MediaService) store(ctx context.Context, key string, data []byte, contentType string) (*model.UploadResult, error) {
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		log.Printf("[MediaService] Put FAILED: key=%s err=%v", key, err)
		return nil, fmt.Errorf("%w: %v", model.ErrUploadFailed, err)
	}

	if err := s.objects.MakePublic(ctx, key); err != nil {
		log.Printf("[MediaService] MakePublic FAILED: key=%s err=%v", key, err)
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			log.Printf("[MediaService] cleanup FAILED: key=%s err=%v", key, delErr)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrUploadFailed, err)
	}

	log.Printf("[MediaService] Upload OK: key=%s bytes=%d type=%s", key, len(data), contentType)
	return &model.UploadResult{URL: s.objects.PublicURL(key), Key: key}, nil
}

// Release hands an unreferenced object to the media workers, or deletes it
// inline when no stream is configured. Failures are logged, never returned.
func (s *MediaService) Release(ctx context.Context, key, reason string) {
	if key == "" {
		return
	}

	if s.publisher != nil {
		event := queue.NewMediaOrphanedEvent(key, s.objects.Bucket(), reason)
		if _, err := s.publisher.Publish(ctx, event); err == nil {
			return
		}
		log.Printf("[MediaService] Release publish failed, deleting inline: key=%s", key)
	}

	if err := s.objects.Delete(ctx, key); err != nil {
		log.Printf("[MediaService] Release FAILED: key=%s reason=%s err=%v", key, reason, err)
	}
}

// readUpload loads the upload into memory with size and type checks.
func readUpload(file *model.FileUpload, maxSize int64, allowed func(string) bool) ([]byte, string, error) {
	if file == nil || file.File == nil {
		return nil, "", model.ErrNoFileAttached
	}
	if file.Size > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file.File, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	contentType := file.ContentType
	if (contentType == "" || contentType == "application/octet-stream") && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !allowed(contentType) {
		return nil, "", model.ErrInvalidImageType
	}

	return data, contentType, nil
}

// resizeToJPEG centers/crops to target size and encodes as JPEG.
func resizeToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "-"), "-.")
	if name == "" {
		return "upload"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
