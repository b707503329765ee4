package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"postboard/internal/httputil"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/internal/transport/http/middleware"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// Create handles POST /api/posts/{id}/comments (and the /comment alias)
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateCommentRequest
	_, cleanup, err := bindRequest(w, r, 0, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "CreateComment", err, "")
		return
	}

	comment, err := h.commentService.Create(r.Context(), chi.URLParam(r, "id"), caller.ID, &req)
	if err != nil {
		writeServiceError(w, "CreateComment", err, "")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, model.CommentEnvelope{
		Message: "Comment added successfully",
		Comment: comment,
	})
}

// List handles GET /api/posts/{id}/comments?page=&limit=
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.commentService.List(r.Context(), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeServiceError(w, "ListComments", err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
