package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Admin sessions are issued by the site editor, not by this service. A token
// is base64url(JSON claims) + "." + hex(HMAC-SHA256(claims)).

var (
	ErrMalformedSession = errors.New("auth: malformed session token")
	ErrBadSignature     = errors.New("auth: session signature mismatch")
	ErrSessionExpired   = errors.New("auth: session expired")
)

// SessionClaims is the signed payload of an admin session.
type SessionClaims struct {
	Email     string `json:"sub"`
	ExpiresAt int64  `json:"exp,omitempty"` // unix 秒。0 は無期限
}

// VerifySessionToken checks the signature and expiry and returns the
// normalized subject email.
func VerifySessionToken(token string, secret []byte, now time.Time) (SessionClaims, error) {
	payloadPart, sigPart, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || payloadPart == "" || sigPart == "" {
		return SessionClaims{}, ErrMalformedSession
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payloadPart, "="))
	if err != nil {
		return SessionClaims{}, ErrMalformedSession
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sigPart))) {
		return SessionClaims{}, ErrBadSignature
	}

	var claims SessionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return SessionClaims{}, ErrMalformedSession
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	if !strings.Contains(claims.Email, "@") {
		return SessionClaims{}, ErrMalformedSession
	}
	if claims.ExpiresAt != 0 && !now.Before(time.Unix(claims.ExpiresAt, 0)) {
		return SessionClaims{}, ErrSessionExpired
	}
	return claims, nil
}

const sessionCookieName = "backy_admin_session"
const minSecretLen = 32

// SessionCookieName はセッションクッキー名
func SessionCookieName() string {
	return sessionCookieName
}

// SessionSecretBytes pads short secrets with zero bytes up to 32 bytes.
func SessionSecretBytes(s string) []byte {
	b := []byte(s)
	if len(b) < minSecretLen {
		out := make([]byte, minSecretLen)
		copy(out, b)
		return out
	}
	return b
}
