package model

import (
	"errors"
	"io"
)

const (
	MaxAvatarSizeBytes = 5 * 1024 * 1024
	AvatarWidth        = 200
	AvatarHeight       = 200
	AvatarFolder       = "users"
	AvatarExt          = ".jpg"
)

// Supported content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
	ContentTypeMP4  = "video/mp4"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
	CodeNoFile           = "NO_FILE"
	CodeUploadFailed     = "UPLOAD_FAILED"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidImageType = errors.New("invalid image type")
	ErrUploadFailed     = errors.New("upload failed")
)

// FileUpload is an attached file as received from a multipart request.
type FileUpload struct {
	File        io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// UploadResult represents the uploaded object location.
// Key is the object key inside the bucket, kept for later deletes.
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// IsAllowedImageType reports if the provided content type is supported for avatars
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// IsAllowedPostMediaType reports if the content type may be attached to a post.
func IsAllowedPostMediaType(contentType string) bool {
	return IsAllowedImageType(contentType) || contentType == ContentTypeMP4
}
