package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"postboard/internal/httputil"
	"postboard/internal/model"
)

// formOverhead is allowed on top of the upload limit for the other multipart parts.
const formOverhead = 1 << 20

const uploadField = "file"

var errBadBody = errors.New("invalid request body")

// bindRequest decodes a JSON or multipart/form-data body into dst. For
// multipart bodies the text fields are mapped onto dst by their json names and
// the "file" part, when present, is returned. cleanup is never nil.
func bindRequest(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) (file *model.FileUpload, cleanup func(), err error) {
	cleanup = func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return nil, cleanup, bodyError(err)
		}
		return nil, cleanup, nil
	}

	if err := r.ParseMultipartForm(maxBytes + formOverhead); err != nil {
		return nil, cleanup, bodyError(err)
	}
	cleanup = func() { _ = r.MultipartForm.RemoveAll() }

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, cleanup, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, cleanup, bodyError(err)
	}

	f, header, err := r.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, bodyError(err)
	}

	removeForm := cleanup
	cleanup = func() {
		_ = f.Close()
		removeForm()
	}
	return &model.FileUpload{
		File:        f,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}, cleanup, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return model.ErrFileTooLarge
	}
	return fmt.Errorf("%w: %v", errBadBody, err)
}

// parsePage reads ?page= and ?limit=. Bad values fall back to the defaults.
func parsePage(r *http.Request) model.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return model.NewPage(number, limit)
}

// writeServiceError maps a service error onto the JSON error envelope.
// forbidden is the message used for ownership failures on this route.
func writeServiceError(w http.ResponseWriter, op string, err error, forbidden string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidationError(w, verr)
	case errors.Is(err, errBadBody):
		httputil.WriteBadRequest(w, "Invalid request body")
	case errors.Is(err, model.ErrUserExists):
		httputil.WriteBadRequestWithCode(w, model.CodeUserExists, "User already exists")
	case errors.Is(err, model.ErrInvalidCredentials):
		httputil.WriteBadRequest(w, "Incorrect Username Or Password")
	case errors.Is(err, model.ErrInvalidResetToken):
		httputil.WriteBadRequest(w, "Invalid or expired token")
	case errors.Is(err, model.ErrCannotFollowSelf):
		httputil.WriteBadRequest(w, "You cannot follow yourself")
	case errors.Is(err, model.ErrNoFileAttached):
		httputil.WriteBadRequestWithCode(w, model.CodeNoFile, "Please attach a file")
	case errors.Is(err, model.ErrFileTooLarge):
		httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "File exceeds the upload limit")
	case errors.Is(err, model.ErrInvalidImageType):
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported file type. Allowed: jpeg, png, gif, webp, mp4")
	case errors.Is(err, model.ErrCommentRequired):
		httputil.WriteBadRequest(w, "Comment is required")
	case errors.Is(err, model.ErrCommentTooLong):
		httputil.WriteBadRequest(w, fmt.Sprintf("Comment cannot exceed %d characters", model.MaxCommentLength))
	case errors.Is(err, model.ErrNotAccountOwner), errors.Is(err, model.ErrNotPostOwner):
		httputil.WriteForbidden(w, forbidden)
	case errors.Is(err, model.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	case errors.Is(err, model.ErrPostNotFound):
		httputil.WriteNotFound(w, "Post not found")
	case errors.Is(err, model.ErrUploadFailed):
		log.Printf("[Handler] %s FAILED: err=%v", op, err)
		httputil.WriteInternalErrorWithCode(w, model.CodeUploadFailed, "Failed to upload file")
	case errors.Is(err, model.ErrMailDelivery):
		log.Printf("[Handler] %s FAILED: err=%v", op, err)
		httputil.WriteInternalErrorWithCode(w, model.CodeMailFailed, "Error sending email")
	default:
		log.Printf("[Handler] %s FAILED: err=%v", op, err)
		httputil.WriteBadRequest(w, "An error occurred")
	}
}
