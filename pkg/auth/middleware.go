package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDFromContext は context から userID を取得する
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// WithUserID は context に userID をセットする
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Actor returns the reviewer identity recorded on moderation transitions.
func Actor(ctx context.Context) string {
	if id, ok := UserIDFromContext(ctx); ok && id != "" {
		return id
	}
	return "anonymous"
}

// sessionToken reads the session from the cookie, falling back to a bearer
// token for scripted admin clients.
func sessionToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(SessionCookieName()); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer "), true
	}
	return "", false
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// RequireAuth verifies the admin session and stores its email as the user id.
func RequireAuth(sessionSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := sessionToken(r)
			if !ok {
				unauthorized(w, "unauthorized")
				return
			}

			claims, err := VerifySessionToken(token, sessionSecret, time.Now())
			if errors.Is(err, ErrSessionExpired) {
				unauthorized(w, "session_expired")
				return
			}
			if err != nil {
				unauthorized(w, "invalid_session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Email)))
		})
	}
}

// DevUserID は開発用のダミー userID（AUTH_REQUIRED=false 時に使用）
const DevUserID = "dev@backy.local"

// DevAuth は開発用ミドルウェア。ダミー userID を context にセットする
func DevAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithUserID(r.Context(), DevUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
