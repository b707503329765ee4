package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"postboard/internal/httputil"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/internal/transport/http/middleware"
)

type PostHandler struct {
	postService  *service.PostService
	maxBodyBytes int64
}

func NewPostHandler(postService *service.PostService, maxUploadBytes int64) *PostHandler {
	return &PostHandler{
		postService:  postService,
		maxBodyBytes: maxUploadBytes,
	}
}

// Create handles POST /api/posts
// Multipart title, description and file. The file is mandatory.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreatePostRequest
	file, cleanup, err := bindRequest(w, r, h.maxBodyBytes, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "CreatePost", err, "")
		return
	}

	post, err := h.postService.Create(r.Context(), caller.ID, &req, file)
	if err != nil {
		writeServiceError(w, "CreatePost", err, "")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, model.PostEnvelope{
		Message: "Post created successfully",
		Post:    post,
	})
}

// GetByID handles GET /api/posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	post, err := h.postService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "GetPost", err, "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.PostEnvelope{
		Message: "Post retrieved successfully",
		Post:    post,
	})
}

// List handles GET /api/posts?page=&limit=&userId=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.postService.List(r.Context(), model.PostFilter{
		UserID: r.URL.Query().Get("userId"),
		Page:   parsePage(r),
	})
	if err != nil {
		writeServiceError(w, "ListPosts", err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Update handles PUT /api/posts/{id}
// Only the owner may update. Accepts JSON or multipart with an optional file.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdatePostRequest
	file, cleanup, err := bindRequest(w, r, h.maxBodyBytes, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "UpdatePost", err, "")
		return
	}

	post, err := h.postService.Update(r.Context(), caller.ID, chi.URLParam(r, "id"), &req, file)
	if err != nil {
		writeServiceError(w, "UpdatePost", err, "You are not authorized to update this post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.PostEnvelope{
		Message: "Post updated successfully",
		Post:    post,
	})
}

// Delete handles DELETE /api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.postService.Delete(r.Context(), caller.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "DeletePost", err, "You are not authorized to delete this post")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Post deleted successfully")
}

// ToggleLike handles POST /api/posts/{id}/toggleLike
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	res, err := h.postService.ToggleLike(r.Context(), chi.URLParam(r, "id"), caller.ID)
	if err != nil {
		writeServiceError(w, "ToggleLike", err, "")
		return
	}

	message := "Post unliked successfully"
	if res.Liked {
		message = "Post liked successfully"
	}
	httputil.WriteJSON(w, http.StatusOK, model.LikeToggleResponse{Message: message, LikeResult: res})
}
