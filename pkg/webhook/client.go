// Package webhook delivers notification payloads to site-configured endpoints.
// Each call is a single POST attempt; callers decide what to do with failures.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

const userAgent = "backy-webhooks/1.0"

// Payload is the JSON body posted to a form's notification webhook.
type Payload struct {
	Kind          string         `json:"kind"` // "form-submission" | "contact-shared" | "contact-status"
	FormID        string         `json:"formId"`
	SiteID        string         `json:"siteId"`
	SubmissionID  string         `json:"submissionId,omitempty"`
	ContactID     string         `json:"contactId,omitempty"`
	ContactStatus string         `json:"contactStatus,omitempty"`
	Values        map[string]any `json:"values"`
	Timestamp     string         `json:"timestamp"` // RFC 3339
}

// Headers returns the x-backy-* headers for p. The submission id header is
// only sent on form-submission payloads.
func Headers(p Payload) map[string]string {
	h := map[string]string{
		"x-backy-event":   p.Kind,
		"x-backy-site-id": p.SiteID,
		"x-backy-form-id": p.FormID,
	}
	if p.Kind == "form-submission" && p.SubmissionID != "" {
		h["x-backy-submission-id"] = p.SubmissionID
	}
	return h
}

// ErrInvalidURL is returned for targets that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("webhook: invalid target url")

// DeliveryError reports a non-2xx response.
type DeliveryError struct {
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook: status %d: %s", e.StatusCode, e.Message)
}

// Client posts payloads to webhook targets.
type Client interface {
	// Post sends payload once. It returns the response status code when a
	// response was received, and a non-nil error for non-2xx or transport failures.
	Post(ctx context.Context, target string, payload Payload, headers map[string]string) (int, error)
}

// HTTPClient is the net/http implementation of Client.
type HTTPClient struct {
	httpClient *http.Client
}

// NewClient creates an HTTPClient whose requests time out after timeout.
func NewClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{httpClient: &http.Client{Timeout: timeout}}
}

var _ Client = (*HTTPClient)(nil)

// ValidTarget reports whether target is an absolute http or https URL.
func ValidTarget(target string) bool {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (c *HTTPClient) Post(ctx context.Context, target string, payload Payload, headers map[string]string) (int, error) {
	if !ValidTarget(target) {
		return 0, ErrInvalidURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(snippet)),
		}
	}
	return resp.StatusCode, nil
}
