package server

import (
	"crypto/subtle"
	"net/http"
)

// authHeader carries the shared secret for mutating endpoints.
const authHeader = "X-AskChat-Token"

// requireToken rejects requests whose token does not match the configured
// shared secret. When no secret is configured the check is disabled, which
// is the expected mode for local development.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.config.Auth.Token
		if token != "" {
			got := r.Header.Get(authHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				s.respondError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
