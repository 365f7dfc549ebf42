package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/pkg/webhook"
)

func submit(t *testing.T, e *testEnv, in FormSubmitInput) *SubmitResult {
	t.Helper()
	if in.SiteID == "" {
		in.SiteID = "site-1"
	}
	if in.FormID == "" {
		in.FormID = "contact"
	}
	res, err := e.forms.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return res
}

func TestFormService_Submit_ValidIsPendingAndSharesContact(t *testing.T) {
	e := newTestEnv(t)

	res := submit(t, e, FormSubmitInput{Values: validValues("ada@example.com"), IPHash: "ip-1"})

	if !res.OK || res.Status != model.StatusPending {
		t.Fatalf("expected ok pending, got ok=%v status=%s", res.OK, res.Status)
	}
	if len(res.SpamFlags) != 0 || len(res.Validation) != 0 {
		t.Errorf("expected no flags or violations, got %v %v", res.SpamFlags, res.Validation)
	}
	contacts, _ := e.contacts.List(context.Background(), model.ContactListOptions{SiteID: "site-1"})
	if len(contacts) != 1 || contacts[0].SourceSubmissionID != res.ID {
		t.Fatalf("expected one contact sourced from %s, got %+v", res.ID, contacts)
	}
	if got := e.events(t, model.AuditFormSubmission); len(got) != 1 || got[0].Status != model.DeliveryReceived {
		t.Errorf("expected one received form-submission event, got %+v", got)
	}
}

func TestFormService_Submit_ValidationFailureIsRecordedRejected(t *testing.T) {
	e := newTestEnv(t)

	res := submit(t, e, FormSubmitInput{Values: map[string]any{"name": "", "email": "bad", "message": "hi"}})

	if res.OK {
		t.Error("expected ok=false")
	}
	if res.Status != model.StatusRejected {
		t.Errorf("expected rejected, got %s", res.Status)
	}
	if len(res.Validation) != 3 {
		t.Fatalf("expected 3 violations, got %+v", res.Validation)
	}
	want := []string{"name", "email", "message"}
	for i, v := range res.Validation {
		if v.Field != want[i] {
			t.Errorf("violation %d: expected field %s, got %s", i, want[i], v.Field)
		}
	}

	stored, err := e.store.Submissions().FindByID(context.Background(), "site-1", res.ID)
	if err != nil {
		t.Fatalf("expected rejected submission to be stored: %v", err)
	}
	if stored.Status != model.StatusRejected || stored.SpamFlags[0] != model.FlagValidation {
		t.Errorf("expected rejected/validation, got %s %v", stored.Status, stored.SpamFlags)
	}
}

func TestFormService_Submit_HoneypotWinsOverValidation(t *testing.T) {
	e := newTestEnv(t)

	res := submit(t, e, FormSubmitInput{Values: map[string]any{"email": "bad"}, Honeypot: "http://spam"})

	if res.Status != model.StatusSpam {
		t.Fatalf("expected spam, got %s", res.Status)
	}
	if len(res.SpamFlags) != 1 || res.SpamFlags[0] != model.FlagHoneypot {
		t.Errorf("expected honeypot flag, got %v", res.SpamFlags)
	}
	if !res.OK {
		t.Error("expected spam to be accepted with ok=true")
	}
	if res.SpamMessage == "" {
		t.Error("expected spam message")
	}
}

func TestFormService_Submit_BypassOnManualFormIsPending(t *testing.T) {
	e := newTestEnv(t)
	started := e.now.Add(-10 * time.Millisecond)

	res := submit(t, e, FormSubmitInput{
		Values:          validValues("ada@example.com"),
		Honeypot:        "filled",
		StartedAt:       &started,
		RateLimitBypass: true,
	})

	if res.Status != model.StatusPending || len(res.SpamFlags) != 0 {
		t.Errorf("expected pending without flags, got %s %v", res.Status, res.SpamFlags)
	}
}

func TestFormService_Submit_BlockedSenderIsSpamAnd422(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.blocklist.Block(context.Background(), "site-1", "ada@example.com", "", "abuse", "admin", ""); err != nil {
		t.Fatal(err)
	}

	res := submit(t, e, FormSubmitInput{Values: validValues("ADA@example.com")})

	if res.OK {
		t.Error("expected ok=false for blocked sender")
	}
	if res.Status != model.StatusSpam || res.SpamFlags[0] != model.FlagBlockedActor {
		t.Errorf("expected spam/blocked-actor, got %s %v", res.Status, res.SpamFlags)
	}
	contacts, _ := e.contacts.List(context.Background(), model.ContactListOptions{SiteID: "site-1"})
	if len(contacts) != 0 {
		t.Errorf("expected no contact for blocked sender, got %d", len(contacts))
	}
}

func TestFormService_Submit_DuplicateWithinHorizon(t *testing.T) {
	e := newTestEnv(t)
	in := FormSubmitInput{Values: validValues("ada@example.com"), IPHash: "ip-1"}

	first := submit(t, e, in)
	e.advance(time.Minute)
	second := submit(t, e, in)
	e.advance(11 * time.Minute)
	third := submit(t, e, in)

	if first.Status != model.StatusPending {
		t.Errorf("first: expected pending, got %s", first.Status)
	}
	if second.Status != model.StatusSpam || second.SpamFlags[0] != model.FlagDuplicate {
		t.Errorf("second: expected spam/duplicate, got %s %v", second.Status, second.SpamFlags)
	}
	if third.Status != model.StatusPending {
		t.Errorf("third: expected pending after horizon, got %s %v", third.Status, third.SpamFlags)
	}
}

func TestFormService_Submit_NinthCallIsRateLimited(t *testing.T) {
	e := newTestEnv(t)

	var last *SubmitResult
	for i := 0; i < 9; i++ {
		last = submit(t, e, FormSubmitInput{Values: validValues(fmt.Sprintf("u%d@example.com", i)), IPHash: "ip-1"})
		if i < 8 && last.Status != model.StatusPending {
			t.Fatalf("call %d: expected pending, got %s %v", i+1, last.Status, last.SpamFlags)
		}
		e.advance(time.Second)
	}
	if last.Status != model.StatusSpam || last.SpamFlags[0] != model.FlagRateLimit {
		t.Errorf("expected 9th call spam/rate-limit, got %s %v", last.Status, last.SpamFlags)
	}

	e.advance(time.Minute)
	after := submit(t, e, FormSubmitInput{Values: validValues("late@example.com"), IPHash: "ip-1"})
	if after.Status != model.StatusPending {
		t.Errorf("expected pending after window reset, got %s %v", after.Status, after.SpamFlags)
	}
}

func TestFormService_Submit_UnknownOrInactiveForm(t *testing.T) {
	e := newTestEnv(t)
	inactive := contactForm()
	inactive.ID = "closed"
	inactive.IsActive = false
	e.store.PutForm(inactive)

	for _, formID := range []string{"missing", "closed"} {
		_, err := e.forms.Submit(context.Background(), FormSubmitInput{SiteID: "site-1", FormID: formID})
		if !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", formID, err)
		}
	}
}

func TestFormService_Submit_WebhookDelivery(t *testing.T) {
	e := newTestEnv(t)
	form := contactForm()
	form.NotificationWebhook = "https://hooks.example.com/backy"
	form.ContactShare = nil
	e.store.PutForm(form)

	res := submit(t, e, FormSubmitInput{Values: validValues("ada@example.com"), RequestID: "req-9"})

	events := e.events(t, model.AuditFormSubmission)
	if len(events) != 2 {
		t.Fatalf("expected queued + succeeded, got %+v", events)
	}
	if events[0].Status != model.DeliverySucceeded || events[1].Status != model.DeliveryQueued {
		t.Errorf("expected succeeded then queued (newest first), got %s, %s", events[0].Status, events[1].Status)
	}
	if events[0].StatusCode != 204 || events[0].RequestID != "req-9" {
		t.Errorf("expected status code 204 and request id, got %+v", events[0])
	}
	sent := e.hook.sent()
	if len(sent) != 1 || sent[0].SubmissionID != res.ID || sent[0].Kind != "form-submission" {
		t.Errorf("unexpected payloads: %+v", sent)
	}
}

func TestFormService_Submit_WebhookFailureDoesNotFailSubmission(t *testing.T) {
	e := newTestEnv(t)
	e.hook.postFunc = func(string, webhook.Payload) (int, error) {
		return 500, &webhook.DeliveryError{StatusCode: 500, Message: "boom"}
	}
	form := contactForm()
	form.NotificationWebhook = "https://hooks.example.com/backy"
	form.ContactShare = nil
	e.store.PutForm(form)

	res := submit(t, e, FormSubmitInput{Values: validValues("ada@example.com")})
	if !res.OK {
		t.Fatal("expected submission to succeed")
	}

	events := e.events(t, model.AuditFormSubmission)
	if events[0].Status != model.DeliveryFailed || events[0].StatusCode != 500 || events[0].Error == "" {
		t.Errorf("expected failed event with status code, got %+v", events[0])
	}
}

func TestFormService_Submit_SpamIsNotForwarded(t *testing.T) {
	e := newTestEnv(t)
	form := contactForm()
	form.NotificationWebhook = "https://hooks.example.com/backy"
	e.store.PutForm(form)

	submit(t, e, FormSubmitInput{Values: validValues("ada@example.com"), Honeypot: "x"})
	e.tracker.Wait()

	if sent := e.hook.sent(); len(sent) != 0 {
		t.Errorf("expected no webhook for spam, got %+v", sent)
	}
}

func TestFormService_UpdateSubmissionStatus_ReleasedSpamSharesContact(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := submit(t, e, FormSubmitInput{Values: validValues("ada@example.com"), Honeypot: "x"})

	sub, err := e.forms.UpdateSubmissionStatus(ctx, "site-1", res.ID, model.StatusApproved, "user-1")
	if err != nil {
		t.Fatalf("UpdateSubmissionStatus failed: %v", err)
	}
	if sub.ReviewedBy != "user-1" || sub.ReviewedAt == nil {
		t.Errorf("expected review stamp, got %+v", sub)
	}
	contacts, _ := e.contacts.List(ctx, model.ContactListOptions{SiteID: "site-1"})
	if len(contacts) != 1 {
		t.Errorf("expected contact after release, got %d", len(contacts))
	}

	var transitions int
	for _, ev := range e.events(t, model.AuditFormSubmission) {
		if ev.Metadata["transition"] == "status" {
			transitions++
		}
	}
	if transitions != 1 {
		t.Errorf("expected exactly one status event, got %d", transitions)
	}
}

func TestFormService_UpdateSubmissionStatus_InvalidStatus(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.forms.UpdateSubmissionStatus(context.Background(), "site-1", "x", model.StatusBlocked, "user-1")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestFormService_BulkUpdateSubmissionStatus_ReturnsMissing(t *testing.T) {
	e := newTestEnv(t)
	res := submit(t, e, FormSubmitInput{Values: validValues("ada@example.com")})

	missing, err := e.forms.BulkUpdateSubmissionStatus(context.Background(), "site-1",
		[]string{res.ID, "nope"}, model.StatusRejected, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 1 || missing[0] != "nope" {
		t.Errorf("expected [nope], got %v", missing)
	}
	stored, _ := e.store.Submissions().FindByID(context.Background(), "site-1", res.ID)
	if stored.Status != model.StatusRejected {
		t.Errorf("expected rejected, got %s", stored.Status)
	}
}
