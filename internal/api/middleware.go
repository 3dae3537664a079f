package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/readaloudhq/readaloud/internal/limiter"
)

// BearerAuth is middleware that validates requests against the skill API key.
// It checks Authorization: Bearer <key> first, then falls back to X-API-Key
// for backend-to-backend callers.
func BearerAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				key = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if key == "" {
				key = r.Header.Get("X-API-Key")
			}

			if key == "" {
				respondJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Missing API key. Provide Authorization: Bearer <key> or X-API-Key header",
				})
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				respondJSON(w, http.StatusForbidden, map[string]string{
					"error": "Invalid API key",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies the Redis fixed-window limiter per client address.
// A nil limiter disables limiting (no REDIS_URL configured).
func RateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !l.Allow(r.Context(), host) {
				respondJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "Rate limit exceeded, try again shortly",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
