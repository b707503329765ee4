package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postboard/internal/handler"
	"postboard/internal/httputil"
	authmw "postboard/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	UserHandler    *handler.UserHandler
	PostHandler    *handler.PostHandler
	CommentHandler *handler.CommentHandler
	Auth           authmw.Authenticator
}

// NewRouter mounts the API under /api. Everything except registration,
// login and the password reset pair requires a bearer token.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(authmw.RecoverJSON)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/users/register", cfg.UserHandler.Register)
		r.Post("/users/login", cfg.UserHandler.Login)
		r.Post("/users/request-password-reset", cfg.UserHandler.RequestPasswordReset)
		r.Post("/users/reset-password", cfg.UserHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.Auth))

			r.Post("/users/toggleFollow/{id}", cfg.UserHandler.ToggleFollow)
			r.Get("/users/{id}", cfg.UserHandler.GetProfile)
			r.Put("/users/{id}", cfg.UserHandler.Update)
			r.Delete("/users/{id}", cfg.UserHandler.Delete)

			r.Get("/posts", cfg.PostHandler.List)
			r.Post("/posts", cfg.PostHandler.Create)
			r.Get("/posts/{id}", cfg.PostHandler.GetByID)
			r.Put("/posts/{id}", cfg.PostHandler.Update)
			r.Delete("/posts/{id}", cfg.PostHandler.Delete)
			r.Post("/posts/{id}/toggleLike", cfg.PostHandler.ToggleLike)
			r.Get("/posts/{id}/comments", cfg.CommentHandler.List)
			r.Post("/posts/{id}/comments", cfg.CommentHandler.Create)
			r.Post("/posts/{id}/comment", cfg.CommentHandler.Create)
		})
	})

	return r
}
