package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/moderation"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/pkg/webhook"
)

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	repo    repository.ContactRepository
	forms   repository.FormRepository
	tracker *AuditTracker
	locks   *keyedLock
	now     func() time.Time
}

// NewContactService creates a ContactService backed by the given repositories.
func NewContactService(repo repository.ContactRepository, forms repository.FormRepository, tracker *AuditTracker) ContactService {
	return &contactServiceImpl{
		repo:    repo,
		forms:   forms,
		tracker: tracker,
		locks:   newKeyedLock(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// sharedFields is the identity extracted from a submission.
type sharedFields struct {
	name, email, phone, notes string
}

func (f sharedFields) empty() bool {
	return f.name == "" && f.email == "" && f.phone == ""
}

func extractShared(p *model.ContactSharePolicy, values map[string]any) sharedFields {
	pick := func(key, fallback string) string {
		if key == "" {
			key = fallback
		}
		switch v := values[key].(type) {
		case nil:
			return ""
		case string:
			return strings.TrimSpace(v)
		default:
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return sharedFields{
		name:  pick(p.NameField, "name"),
		email: pick(p.EmailField, "email"),
		phone: pick(p.PhoneField, "phone"),
		notes: pick(p.NotesField, "message"),
	}
}

func (s *contactServiceImpl) BuildContactShareFromSubmission(ctx context.Context, form *model.Form, sub *model.FormSubmission) (*model.Contact, error) {
	policy := form.ContactShare
	if policy == nil || !policy.Enabled {
		return nil, nil
	}
	fields := extractShared(policy, sub.Values)
	isSpam := sub.Status == model.StatusSpam || sub.Status == model.StatusBlocked
	email := moderation.NormalizeEmail(fields.email)

	if policy.Dedupe() && email != "" {
		unlock := s.locks.Lock(dedupeKey(sub.SiteID, sub.FormID, email))
		defer unlock()

		existing, err := s.repo.FindByEmail(ctx, sub.SiteID, sub.FormID, email)
		switch {
		case err == nil:
			if isSpam {
				return existing, nil
			}
			return s.merge(ctx, form, existing, fields, sub)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("find contact: %w", err)
		}
	}

	if isSpam || fields.empty() {
		return nil, nil
	}
	c := &model.Contact{
		SiteID:             sub.SiteID,
		FormID:             sub.FormID,
		Name:               fields.name,
		Email:              fields.email,
		Phone:              fields.phone,
		Notes:              fields.notes,
		SourceSubmissionID: sub.ID,
		Status:             model.ContactNew,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	s.emit(ctx, form, c, model.AuditContactShared, sub.RequestID, nil)
	return c, nil
}

func (s *contactServiceImpl) merge(ctx context.Context, form *model.Form, c *model.Contact, fields sharedFields, sub *model.FormSubmission) (*model.Contact, error) {
	switch {
	case fields.notes == "":
	case c.Notes == "":
		c.Notes = fields.notes
	default:
		c.Notes = c.Notes + "\n" + fields.notes
	}
	if c.Name == "" {
		c.Name = fields.name
	}
	if c.Phone == "" {
		c.Phone = fields.phone
	}
	c.SourceSubmissionID = sub.ID
	c.Status = model.ContactNew
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("merge contact: %w", err)
	}
	s.emit(ctx, form, c, model.AuditContactShared, sub.RequestID, nil)
	return c, nil
}

// emit records a contact event and forwards it to the form webhook when one is set.
func (s *contactServiceImpl) emit(ctx context.Context, form *model.Form, c *model.Contact, kind model.AuditKind, requestID string, extra map[string]any) {
	metadata := map[string]any{"contactStatus": string(c.Status)}
	for k, v := range extra {
		metadata[k] = v
	}
	ev := model.AuditEvent{
		SiteID:       c.SiteID,
		Kind:         kind,
		FormID:       c.FormID,
		SubmissionID: c.SourceSubmissionID,
		ContactID:    c.ID,
		Status:       model.DeliveryReceived,
		RequestID:    requestID,
		Metadata:     metadata,
	}
	if form == nil || form.NotificationWebhook == "" {
		s.tracker.Track(ctx, ev)
		return
	}
	s.tracker.Notify(ctx, ev, form.NotificationWebhook, webhook.Payload{
		Kind:          string(kind),
		FormID:        c.FormID,
		SiteID:        c.SiteID,
		SubmissionID:  c.SourceSubmissionID,
		ContactID:     c.ID,
		ContactStatus: string(c.Status),
		Values: map[string]any{
			"name":  c.Name,
			"email": c.Email,
			"phone": c.Phone,
			"notes": c.Notes,
		},
	})
}

// dedupeKey is the lock key shared by merges and status updates of one contact.
func dedupeKey(siteID, formID, email string) string {
	return siteID + "/" + formID + "/" + email
}

// lockContact loads the contact, takes its dedupe lock and re-reads it under
// that lock so a concurrent merge cannot be overwritten.
func (s *contactServiceImpl) lockContact(ctx context.Context, siteID, id string) (*model.Contact, func(), error) {
	c, err := s.repo.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, nil, err
	}
	key := siteID + "/id:" + id
	if email := moderation.NormalizeEmail(c.Email); email != "" {
		key = dedupeKey(c.SiteID, c.FormID, email)
	}
	unlock := s.locks.Lock(key)
	c, err = s.repo.FindByID(ctx, siteID, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return c, unlock, nil
}

// UpdateStatus changes the follow-up status of a contact.
func (s *contactServiceImpl) UpdateStatus(ctx context.Context, siteID, id string, status model.ContactStatus, actor string) (*model.Contact, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	c, unlock, err := s.lockContact(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	from := c.Status
	c.Status = status
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update contact status: %w", err)
	}

	form, err := s.forms.FindByID(ctx, c.SiteID, c.FormID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	s.emit(ctx, form, c, model.AuditContactStatus, "", map[string]any{
		"from":  string(from),
		"actor": actor,
	})
	return c, nil
}

// List returns contacts according to the given filter/pagination options.
func (s *contactServiceImpl) List(ctx context.Context, opts model.ContactListOptions) ([]*model.Contact, error) {
	return s.repo.List(ctx, opts)
}
