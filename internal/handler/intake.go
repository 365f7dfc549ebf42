package handler

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/backy/backend/internal/logging"
	"github.com/backy/backend/internal/service"
)

var errInvalidStartedAt = errors.New("invalid startedAt")

// parseStartedAt accepts epoch milliseconds (number or numeric string) or RFC 3339.
func parseStartedAt(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		t := time.UnixMilli(int64(ms)).UTC()
		return &t, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil, errInvalidStartedAt
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(n).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, errInvalidStartedAt
	}
	t = t.UTC()
	return &t, nil
}

// intakeGate decides which caller hints are trusted on public intake routes.
type intakeGate struct {
	ips           *IPHasher
	internalToken string
}

// bypass honors rateLimitBypass only for callers presenting the internal token.
func (g intakeGate) bypass(r *http.Request, requested bool) bool {
	if !requested || g.internalToken == "" {
		return false
	}
	token := r.Header.Get("X-Backy-Internal-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(g.internalToken)) == 1
}

func requestID(r *http.Request, fromBody string) string {
	if fromBody != "" && len(fromBody) <= 128 {
		return fromBody
	}
	return logging.RequestID(r.Context())
}

// writeSubmitResult maps the outcome onto 422 (validation or blocked) or 201.
func writeSubmitResult(w http.ResponseWriter, res *service.SubmitResult) {
	status := http.StatusCreated
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
