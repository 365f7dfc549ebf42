package auth

import (
	"context"
	"net/http"
	"strings"
)

const isHostKey contextKey = "is_host"

// WithIsHost stores the host flag in the context.
func WithIsHost(ctx context.Context, isHost bool) context.Context {
	return context.WithValue(ctx, isHostKey, isHost)
}

// IsHostFromContext returns whether the authenticated user is a host.
// Returns false when not set.
func IsHostFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(isHostKey).(bool)
	return v
}

// EmailLookup resolves the email of an authenticated user.
type EmailLookup func(ctx context.Context, userID string) (string, error)

// SessionEmail treats the session subject as the email itself. Sessions are
// issued by the site editor for the signed-in account's address.
func SessionEmail(_ context.Context, userID string) (string, error) {
	return userID, nil
}

// ParseHostEmails は HOST_EMAILS（カンマ区切り）をパースする
func ParseHostEmails(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if e := strings.ToLower(strings.TrimSpace(part)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// HostMiddleware sets the host flag for users whose email is in hostEmails.
// It never rejects a request; handlers check the flag.
func HostMiddleware(hostEmails []string, lookup EmailLookup) func(http.Handler) http.Handler {
	hosts := make(map[string]struct{}, len(hostEmails))
	for _, e := range hostEmails {
		hosts[strings.ToLower(e)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isHost := false
			if userID, ok := UserIDFromContext(r.Context()); ok && len(hosts) > 0 {
				if email, err := lookup(r.Context(), userID); err == nil {
					_, isHost = hosts[strings.ToLower(strings.TrimSpace(email))]
				}
			}
			next.ServeHTTP(w, r.WithContext(WithIsHost(r.Context(), isHost)))
		})
	}
}
