// Package recovery converts downstream handler panics into clean 500s so
// one bad request cannot take the whole service down.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/lncworks/casebilling/internal/api/respond"
)

// Middleware recovers panics from the wrapped handler, logs the panic
// value and stack to the service logger, and answers with the standard
// JSON error envelope.
func Middleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")
					respond.WriteInternalError(w, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
