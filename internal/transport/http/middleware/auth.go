package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"postboard/internal/httputil"
	"postboard/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// UserKey holds the authenticated *model.User.
const UserKey contextKey = "user"

// Authenticator resolves a bearer token to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// resolved user in the request context.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			user, err := auth.Authenticate(r.Context(), tokenString)
			if err != nil {
				switch {
				case errors.Is(err, model.ErrTokenExpired):
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
				case errors.Is(err, model.ErrTokenInvalid):
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				case errors.Is(err, model.ErrUserNotFound):
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "User no longer exists")
				default:
					log.Printf("[Auth] Authenticate FAILED: err=%v", err)
					httputil.WriteUnauthorized(w, "Authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetUserFromContext returns the user stored by AuthMiddleware.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserKey).(*model.User)
	return user, ok && user != nil
}
