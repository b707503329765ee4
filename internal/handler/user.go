package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"postboard/internal/httputil"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/internal/transport/http/middleware"
)

type UserHandler struct {
	userService  *service.UserService
	maxBodyBytes int64
}

func NewUserHandler(userService *service.UserService, maxUploadBytes int64) *UserHandler {
	return &UserHandler{
		userService:  userService,
		maxBodyBytes: maxUploadBytes,
	}
}

// Register handles POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	_, cleanup, err := bindRequest(w, r, 0, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "Register", err, "")
		return
	}

	user, token, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "Register", err, "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.AuthResponse{
		Message: "Your registration was successful",
		User:    user.Summary(),
		Token:   token,
	})
}

// Login handles POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	_, cleanup, err := bindRequest(w, r, 0, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "Login", err, "")
		return
	}

	user, token, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "Login", err, "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.AuthResponse{
		Message: "Login successful",
		User:    user.Summary(),
		Token:   token,
	})
}

// GetProfile handles GET /api/users/{id}
// Every successful read counts as a profile view.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "GetProfile", err, "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Update handles PUT /api/users/{id}
// Accepts JSON or multipart; a "file" part replaces the profile picture.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateUserRequest
	file, cleanup, err := bindRequest(w, r, h.maxBodyBytes, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "UpdateUser", err, "")
		return
	}

	user, err := h.userService.Update(r.Context(), caller.ID, chi.URLParam(r, "id"), &req, file)
	if err != nil {
		writeServiceError(w, "UpdateUser", err, "You are not authorized to update this profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.UserEnvelope{
		Message: "User updated successfully",
		User:    user.Summary(),
	})
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.userService.Delete(r.Context(), caller.ID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "DeleteUser", err, "You are not authorized to delete this profile")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "User deleted successfully")
}

// ToggleFollow handles POST /api/users/toggleFollow/{id}
func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	res, err := h.userService.ToggleFollow(r.Context(), caller.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "ToggleFollow", err, "")
		return
	}

	message := "User unfollowed successfully"
	if res.Following {
		message = "User followed successfully"
	}
	httputil.WriteJSON(w, http.StatusOK, model.FollowToggleResponse{
		Message:   message,
		Following: res.Following,
		User:      res.Target,
	})
}

// RequestPasswordReset handles POST /api/users/request-password-reset
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordResetRequest
	_, cleanup, err := bindRequest(w, r, 0, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "RequestPasswordReset", err, "")
		return
	}

	if err := h.userService.RequestPasswordReset(r.Context(), &req, r.Host); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteBadRequest(w, "User not found")
			return
		}
		writeServiceError(w, "RequestPasswordReset", err, "")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Password reset email sent")
}

// ResetPassword handles POST /api/users/reset-password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	_, cleanup, err := bindRequest(w, r, 0, &req)
	defer cleanup()
	if err != nil {
		writeServiceError(w, "ResetPassword", err, "")
		return
	}

	if err := h.userService.ResetPassword(r.Context(), &req); err != nil {
		writeServiceError(w, "ResetPassword", err, "")
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Password reset successful")
}
