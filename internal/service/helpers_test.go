package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/moderation"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/pkg/webhook"
)

// ---------------------------------------------------------------------------
// fakeWebhook — records posts instead of sending them
// ---------------------------------------------------------------------------

type fakeWebhook struct {
	mu       sync.Mutex
	payloads []webhook.Payload
	postFunc func(target string, payload webhook.Payload) (int, error)
}

func (f *fakeWebhook) Post(_ context.Context, target string, payload webhook.Payload, _ map[string]string) (int, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	if f.postFunc != nil {
		return f.postFunc(target, payload)
	}
	return 204, nil
}

func (f *fakeWebhook) sent() []webhook.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webhook.Payload(nil), f.payloads...)
}

// testEnv wires every service over a MemoryStore and in-memory moderation stores.
type testEnv struct {
	store      *repository.MemoryStore
	hook       *fakeWebhook
	tracker    *AuditTracker
	blocklist  *moderation.Blocklist
	classifier *moderation.Classifier
	now        time.Time

	forms    FormService
	comments CommentService
	contacts ContactService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store: repository.NewMemoryStore(),
		hook:  &fakeWebhook{},
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.tracker = NewAuditTracker(e.store.Audit(), e.hook)
	e.blocklist = moderation.NewBlocklist(moderation.NewMemBlocklistStore())
	windows := moderation.NewMemWindowStore()
	sigs := moderation.NewMemSignatureStore(1000, time.Hour, 8)
	e.classifier = moderation.NewClassifier(e.blocklist,
		moderation.Policy{
			Limiter:    moderation.NewRateLimiter(windows, 60*time.Second, 8),
			Duplicates: moderation.NewDuplicateDetector(sigs, 10*time.Minute),
		},
		moderation.Policy{
			Limiter:    moderation.NewRateLimiter(windows, 45*time.Second, 12),
			Duplicates: moderation.NewDuplicateDetector(sigs, 5*time.Minute),
		},
		moderation.Options{},
	)
	e.classifier.SetClock(func() time.Time { return e.now })

	e.contacts = NewContactService(e.store.Contacts(), e.store.Forms(), e.tracker)
	e.forms = NewFormService(e.store.Forms(), e.store.Submissions(), e.classifier, e.contacts, e.tracker)
	e.comments = NewCommentService(e.store.Sites(), e.store.Comments(), e.classifier, e.blocklist, e.tracker)

	e.store.PutSite(model.Site{ID: "site-1", Name: "Demo", CommentModeration: model.ModerationAutoApprove, CommentHoneypot: true})
	e.store.PutForm(contactForm())
	return e
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *testEnv) events(t *testing.T, kind model.AuditKind) []*model.AuditEvent {
	t.Helper()
	e.tracker.Wait()
	evs, err := e.tracker.List(context.Background(), model.AuditListOptions{SiteID: "site-1", Kind: kind, Limit: 100})
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	return evs
}

func contactForm() model.Form {
	return model.Form{
		ID:     "contact",
		SiteID: "site-1",
		Name:   "Contact",
		Fields: []model.FormField{
			{Key: "name", Label: "Name", Type: model.FieldText, Required: true},
			{Key: "email", Label: "Email", Type: model.FieldEmail, Required: true,
				Rules: []model.FieldRule{{Kind: model.RuleRequired}, {Kind: model.RuleEmail}}},
			{Key: "message", Label: "Message", Type: model.FieldTextarea, Required: true,
				Rules: []model.FieldRule{{Kind: model.RuleMinLength, Length: 10}}},
		},
		ModerationMode: model.ModerationManual,
		EnableHoneypot: true,
		IsActive:       true,
		ContactShare:   &model.ContactSharePolicy{Enabled: true},
	}
}

func validValues(email string) map[string]any {
	return map[string]any{
		"name":    "Ada",
		"email":   email,
		"message": "Hello there, please call me back.",
	}
}
