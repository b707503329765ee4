package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"postboard/internal/httputil"
	"postboard/internal/model"
)

func TestBindRequest_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"title":"New"}`))
	req.Header.Set("Content-Type", "application/json")

	var dst model.UpdatePostRequest
	file, cleanup, err := bindRequest(httptest.NewRecorder(), req, 1024, &dst)
	defer cleanup()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file != nil {
		t.Error("JSON body cannot carry a file")
	}
	if dst.Title == nil || *dst.Title != "New" || dst.Description != nil {
		t.Errorf("bound = %+v", dst)
	}
}

func TestBindRequest_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)

	var dst model.CreateCommentRequest
	_, cleanup, err := bindRequest(httptest.NewRecorder(), req, 0, &dst)
	defer cleanup()

	if err != nil {
		t.Errorf("empty body should bind to zero value, got %v", err)
	}
}

func TestBindRequest_Multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", "Sunset")
	mw.WriteField("unknown", "ignored")
	part, _ := mw.CreateFormFile("file", "sunset.png")
	part.Write([]byte("fake image bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var dst model.CreatePostRequest
	file, cleanup, err := bindRequest(httptest.NewRecorder(), req, 1024, &dst)
	defer cleanup()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Title != "Sunset" || dst.Description != "" {
		t.Errorf("bound = %+v", dst)
	}
	if file == nil || file.Filename != "sunset.png" || file.Size != int64(len("fake image bytes")) {
		t.Fatalf("file = %+v", file)
	}
	data, _ := io.ReadAll(file.File)
	if string(data) != "fake image bytes" {
		t.Errorf("file data = %q", data)
	}
}

func TestBindRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		maxSize int64
		wantErr error
	}{
		{"malformed json", `{"title":`, 1024, errBadBody},
		{"wrong type", `{"title": 5}`, 1024, errBadBody},
		{"too large", `{"title":"` + strings.Repeat("x", formOverhead+10) + `"}`, 0, model.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			var dst model.UpdatePostRequest
			_, cleanup, err := bindRequest(httptest.NewRecorder(), req, tt.maxSize, &dst)
			defer cleanup()

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 10},
		{"page=3&limit=20", 3, 20},
		{"page=abc&limit=-4", 1, 10},
		{"page=0&limit=1000", 1, model.MaxLimit},
		{"page=4611686018427387905", model.MaxPage, 10},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got := parsePage(req)
			if got.Number != tt.wantPage || got.Limit != tt.wantLimit {
				t.Errorf("parsePage(%q) = %+v, want %d/%d", tt.query, got, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"exists", model.ErrUserExists, http.StatusBadRequest, "User already exists"},
		{"bad credentials", model.ErrInvalidCredentials, http.StatusBadRequest, "Incorrect Username Or Password"},
		{"no file", model.ErrNoFileAttached, http.StatusBadRequest, "Please attach a file"},
		{"reset token", model.ErrInvalidResetToken, http.StatusBadRequest, "Invalid or expired token"},
		{"not owner", model.ErrNotPostOwner, http.StatusForbidden, "You are not authorized to update this post"},
		{"user missing", model.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"post missing wrapped", fmt.Errorf("load: %w", model.ErrPostNotFound), http.StatusNotFound, "Post not found"},
		{"mail", fmt.Errorf("%w: dial tcp", model.ErrMailDelivery), http.StatusInternalServerError, "Error sending email"},
		{"storage", fmt.Errorf("%w: timeout", model.ErrUploadFailed), http.StatusInternalServerError, "Failed to upload file"},
		{"unexpected", errors.New("boom"), http.StatusBadRequest, "An error occurred"},
		{
			"validation",
			&model.ValidationError{Fields: []model.FieldError{{Field: "email", Message: "Invalid email address"}}},
			http.StatusBadRequest,
			"Invalid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, "Test", tt.err, "You are not authorized to update this post")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body httputil.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Error.Message, tt.wantMessage)
			}
		})
	}
}
