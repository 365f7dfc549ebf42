package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SecurityHeaders adds security response headers (CSP, X-Frame-Options, etc.)
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-XSS-Protection", "0")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the real client IP, reading from the rightmost trusted
// proxy position in X-Forwarded-For to prevent spoofing.
func ClientIP(r *http.Request, trustedProxyCount int) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && trustedProxyCount > 0 {
		parts := strings.Split(xff, ",")
		// The rightmost entry added by our infrastructure is at
		// index len(parts) - trustedProxyCount.
		idx := len(parts) - trustedProxyCount
		if idx >= 0 && idx < len(parts) {
			return strings.TrimSpace(parts[idx])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPHasher turns client addresses into salted, non-reversible identities.
type IPHasher struct {
	salt              string
	trustedProxyCount int
}

// NewIPHasher assumes a single trusted reverse proxy when trustedProxyCount < 0.
func NewIPHasher(salt string, trustedProxyCount int) *IPHasher {
	if trustedProxyCount < 0 {
		trustedProxyCount = 1
	}
	return &IPHasher{salt: salt, trustedProxyCount: trustedProxyCount}
}

// Hash returns the hex SHA-256 of salt + ip, or "" for an empty ip.
func (h *IPHasher) Hash(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(h.salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}

// FromRequest hashes the request's client IP.
func (h *IPHasher) FromRequest(r *http.Request) string {
	return h.Hash(ClientIP(r, h.trustedProxyCount))
}

// throttleClients bounds how many per-IP limiters are kept; idle ones expire
// after two windows.
const (
	throttleClients = 65536
	throttleWindow  = time.Minute
	throttleIdleTTL = 2 * throttleWindow
)

// Throttle is a coarse per-IP sliding-window guard in front of the public
// intake routes. Moderation-level rate limiting happens in the classifier.
type Throttle struct {
	maxPerMinute      int64
	trustedProxyCount int
	mu                sync.Mutex
	clients           *expirable.LRU[string, *slidingwindow.Limiter]
}

// NewThrottle creates a throttle with the given requests-per-minute limit.
// A negative trustedProxyCount assumes a single reverse proxy.
func NewThrottle(maxPerMinute, trustedProxyCount int) *Throttle {
	if trustedProxyCount < 0 {
		trustedProxyCount = 1
	}
	return &Throttle{
		maxPerMinute:      int64(maxPerMinute),
		trustedProxyCount: trustedProxyCount,
		clients:           expirable.NewLRU[string, *slidingwindow.Limiter](throttleClients, nil, throttleIdleTTL),
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// limiter returns the client's limiter, creating it on first use. Each hit
// refreshes the entry's expiry.
func (t *Throttle) limiter(ip string) *slidingwindow.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if lim, ok := t.clients.Get(ip); ok {
		t.clients.Add(ip, lim)
		return lim
	}
	lim, _ := slidingwindow.NewLimiter(throttleWindow, t.maxPerMinute, windowFunc)
	t.clients.Add(ip, lim)
	return lim
}

// Middleware returns an http.Handler that enforces the limit.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if !t.limiter(ClientIP(r, t.trustedProxyCount)).AllowN(now, 1) {
			// 次のウィンドウ境界まで待たせる
			retryAfter := now.Truncate(throttleWindow).Add(throttleWindow).Sub(now)
			w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
