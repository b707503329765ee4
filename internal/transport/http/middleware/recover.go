package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"postboard/internal/httputil"
)

// RecoverJSON turns a handler panic into a 500 with the JSON error body.
// http.ErrAbortHandler is re-raised so the server can drop the connection.
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Printf("[Recover] %s %s PANIC: request_id=%s err=%v\n%s",
				r.Method, r.URL.Path, middleware.GetReqID(r.Context()), rec, debug.Stack())
			if r.Header.Get("Connection") != "Upgrade" {
				httputil.WriteInternalError(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
