package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backy/backend/internal/config"
)

const testSeed = `{
  "sites": [{"id": "demo", "name": "Demo", "comment_moderation": "manual", "comment_honeypot": true}],
  "forms": [{
    "id": "contact", "site_id": "demo", "name": "Contact", "moderation_mode": "manual",
    "enable_honeypot": true, "is_active": true,
    "fields": [
      {"key": "name", "type": "text", "required": true},
      {"key": "email", "type": "email", "required": true}
    ],
    "contact_share": {"enabled": true}
  }]
}`

func newTestServer(t *testing.T, opts ...func(*config.Config)) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(testSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	cfg := config.Default()
	cfg.SeedFile = path
	for _, opt := range opts {
		opt(cfg)
	}

	srv, err := newServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	t.Cleanup(func() {
		srv.tracker.Wait()
		srv.Close()
	})
	return srv.routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestServer_HealthAndMetrics(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id on every response")
	}

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestServer_FormSubmissionFlow(t *testing.T) {
	h := newTestServer(t)
	const submit = "/api/sites/demo/forms/contact/submissions"

	rec, body := do(t, h, http.MethodPost, submit, `{"values":{"name":"Ann","email":"ann@example.com"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid submission: %d %v", rec.Code, body)
	}
	if body["status"] != "pending" || body["ok"] != true {
		t.Errorf("unexpected result: %v", body)
	}
	id, _ := body["id"].(string)

	rec, body = do(t, h, http.MethodPost, submit, `{"values":{"name":"Bot","email":"bot@example.com"},"honeypot":"x"}`)
	if rec.Code != http.StatusCreated || body["status"] != "spam" {
		t.Errorf("honeypot submission: %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodPost, submit, `{"values":{"email":"nope"}}`)
	if rec.Code != http.StatusUnprocessableEntity || body["status"] != "rejected" {
		t.Errorf("invalid submission: %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/sites/demo/forms/missing/submissions", `{"values":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown form: expected 404, got %d", rec.Code)
	}

	rec, body = do(t, h, http.MethodGet, "/api/admin/sites/demo/submissions?status=pending", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: %d %v", rec.Code, body)
	}
	if subs, _ := body["submissions"].([]any); len(subs) != 1 {
		t.Errorf("expected 1 pending submission, got %v", body["submissions"])
	}

	rec, body = do(t, h, http.MethodPatch, "/api/admin/sites/demo/submissions/"+id+"/status", `{"status":"approved"}`)
	if rec.Code != http.StatusOK || body["status"] != "approved" {
		t.Errorf("approve: %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/admin/sites/demo/contacts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("contacts: %d", rec.Code)
	}
	if contacts, _ := body["contacts"].([]any); len(contacts) == 0 {
		t.Errorf("expected a shared contact, got %v", body)
	}

	rec, body = do(t, h, http.MethodGet, "/api/admin/sites/demo/audit-events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: %d", rec.Code)
	}
	if events, _ := body["events"].([]any); len(events) == 0 {
		t.Error("expected audit events")
	}
}

func TestServer_CommentFlow(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodPost, "/api/sites/demo/comments",
		`{"targetType":"post","targetId":"hello","authorName":"Ann","authorEmail":"ann@example.com","content":"First!"}`)
	if rec.Code != http.StatusCreated || body["status"] != "pending" {
		t.Fatalf("comment: %d %v", rec.Code, body)
	}
	id, _ := body["id"].(string)

	_, body = do(t, h, http.MethodGet, "/api/sites/demo/comments?targetType=post&targetId=hello", "")
	if comments, _ := body["comments"].([]any); len(comments) != 0 {
		t.Errorf("pending comment should not be public: %v", body)
	}

	rec, _ = do(t, h, http.MethodPatch, "/api/admin/sites/demo/comments/"+id+"/status", `{"status":"approved"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve comment: %d", rec.Code)
	}

	_, body = do(t, h, http.MethodGet, "/api/sites/demo/comments?targetType=post&targetId=hello", "")
	if comments, _ := body["comments"].([]any); len(comments) != 1 {
		t.Errorf("approved comment should be public: %v", body)
	}

	rec, body = do(t, h, http.MethodPost, "/api/sites/demo/comments/"+id+"/report", `{"reason":"spam"}`)
	if rec.Code != http.StatusOK || body["reportCount"] != float64(1) {
		t.Errorf("report: %d %v", rec.Code, body)
	}
}

func TestServer_BlocklistStopsComments(t *testing.T) {
	h := newTestServer(t)

	rec, _ := do(t, h, http.MethodPost, "/api/admin/sites/demo/blocklist", `{"email":"troll@example.com","reason":"abuse"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("block: %d", rec.Code)
	}

	rec, body := do(t, h, http.MethodPost, "/api/sites/demo/comments",
		`{"targetType":"page","targetId":"about","authorName":"T","authorEmail":"Troll@Example.com","content":"hi"}`)
	if rec.Code != http.StatusUnprocessableEntity || body["status"] != "blocked" {
		t.Errorf("blocked comment: %d %v", rec.Code, body)
	}
}

const testSessionSecret = "server-test-session-secret-0123456789"

// sessionFor signs an admin session for email the way the site editor does.
func sessionFor(email string) string {
	payload := []byte(`{"sub":"` + email + `"}`)
	mac := hmac.New(sha256.New, []byte(testSessionSecret))
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + hex.EncodeToString(mac.Sum(nil))
}

func TestServer_AdminRoutesRequireHostSession(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.AuthRequired = true
		c.SessionSecret = testSessionSecret
		c.HostEmails = []string{"moderator@backy.dev"}
	})

	tests := []struct {
		name   string
		bearer string
		want   int
	}{
		{name: "no session", want: http.StatusUnauthorized},
		{name: "forged session", bearer: "eyJzdWIiOiJ4QHkifQ.00", want: http.StatusUnauthorized},
		{name: "editor without host rights", bearer: sessionFor("writer@backy.dev"), want: http.StatusForbidden},
		{name: "allowlisted moderator", bearer: sessionFor("Moderator@backy.dev"), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/sites/demo/submissions", nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_DevUserIsHostOnlyWithoutAllowlist(t *testing.T) {
	open := newTestServer(t)
	if rec, _ := do(t, open, http.MethodGet, "/api/admin/sites/demo/contacts", ""); rec.Code != http.StatusOK {
		t.Errorf("expected dev user to be host without HOST_EMAILS, got %d", rec.Code)
	}

	listed := newTestServer(t, func(c *config.Config) {
		c.HostEmails = []string{"moderator@backy.dev"}
	})
	if rec, _ := do(t, listed, http.MethodGet, "/api/admin/sites/demo/contacts", ""); rec.Code != http.StatusForbidden {
		t.Errorf("expected dev user to lose host rights once HOST_EMAILS is set, got %d", rec.Code)
	}
}

func TestServer_EchoesIncomingRequestID(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sites/demo/forms/contact/submissions",
		strings.NewReader(`{"values":{"name":"Ada","email":"ada@example.com"}}`))
	req.Header.Set("X-Request-Id", "edge-7f3a")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "edge-7f3a" {
		t.Errorf("expected incoming request id echoed, got %q", got)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}
