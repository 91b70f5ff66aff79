// Package middleware provides the gateway's HTTP middleware chain.
package middleware

import (
	"net/http"
	"runtime/debug"

	"steward/internal/gateway/handlers"
	"steward/pkg/logger"
)

// Recovery converts handler panics into 500 responses.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			logger.Error().
				Interface("error", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked")

			handlers.SendError(w, http.StatusInternalServerError,
				handlers.ErrCodeInternalError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
