// Package recovery converts handler panics into 500 responses so one bad
// request cannot take the service down.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/medtrackhq/medtrack-server/internal/api/respond"
)

// Middleware intercepts panics from downstream handlers, logs the stack, and
// answers with the standard error body.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bytes("stack", debug.Stack()).
					Msg("http handler panic")
				respond.WriteInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
