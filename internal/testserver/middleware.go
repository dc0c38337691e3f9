package testserver

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userContextKey = contextKey("user")

// csrfMiddleware enforces the cookie/header double-submit on every
// non-read request, the way the real backend does.
func (s *Server) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("csrftoken")
		if err != nil || cookie.Value == "" || r.Header.Get("X-CSRFToken") != cookie.Value {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF verification failed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Token" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token header."})
			return
		}

		claims, err := verifyToken(headerParts[1], s.secret)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}

		s.mu.Lock()
		rec, ok := s.users[claims.UserID]
		active := ok && rec.IsActive
		s.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}
		if !active {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "User inactive or deleted."})
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUserID(ctx context.Context) int64 {
	if id, ok := ctx.Value(userContextKey).(int64); ok {
		return id
	}
	return 0
}
