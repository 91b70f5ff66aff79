package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"steward/internal/gateway/handlers"
)

// Auth returns a middleware that enforces a bearer token on API
// requests. An empty token disables authentication. The health
// endpoint and WebSocket upgrade are always allowed; WebSocket
// clients authenticate with a token query parameter instead because
// browsers cannot set headers on upgrade requests.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.URL.Path == "/api/v1/health" {
				next.ServeHTTP(w, r)
				return
			}

			presented := bearerToken(r)
			if presented == "" {
				presented = r.URL.Query().Get("token")
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "invalid or missing token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
