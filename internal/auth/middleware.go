package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// APIKeyHeader is the request header carrying the admin API key
	APIKeyHeader = "X-API-Key"

	userContextKey contextKey = "user"
)

// UserInfo holds the identity extracted from a validated token
type UserInfo struct {
	ID       string
	Username string
}

// UserFromContext extracts user info from the request context
func UserFromContext(ctx context.Context) (*UserInfo, bool) {
	user, ok := ctx.Value(userContextKey).(*UserInfo)
	return user, ok
}

// RequireAdminKey guards admin routes behind a shared API key. When no
// admin key is configured the routes are rejected outright.
func RequireAdminKey(adminAPIKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminAPIKey == "" {
				writeAuthError(w, http.StatusForbidden, "admin API key not configured")
				return
			}
			key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if key == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminAPIKey)) != 1 {
				writeAuthError(w, http.StatusForbidden, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalJWT attaches user info from a Bearer token when one is present
// and valid. Requests without a token pass through anonymously.
func OptionalJWT(manager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || manager == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := manager.ValidateToken(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			user := &UserInfo{ID: claims.UserID, Username: claims.Username}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
