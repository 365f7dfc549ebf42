package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backy/backend/internal/logging"
	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/moderation"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/internal/validation"
	"github.com/backy/backend/pkg/webhook"
)

// formServiceImpl is the production implementation of FormService.
type formServiceImpl struct {
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	classifier  *moderation.Classifier
	contacts    ContactService
	tracker     *AuditTracker
	locks       *keyedLock
}

// NewFormService creates a FormService.
func NewFormService(
	forms repository.FormRepository,
	submissions repository.SubmissionRepository,
	classifier *moderation.Classifier,
	contacts ContactService,
	tracker *AuditTracker,
) FormService {
	return &formServiceImpl{
		forms:       forms,
		submissions: submissions,
		classifier:  classifier,
		contacts:    contacts,
		tracker:     tracker,
		locks:       newKeyedLock(),
	}
}

func (s *formServiceImpl) Submit(ctx context.Context, in FormSubmitInput) (*SubmitResult, error) {
	form, err := s.forms.FindByID(ctx, in.SiteID, in.FormID)
	if err != nil {
		return nil, err
	}
	if !form.IsActive {
		return nil, fmt.Errorf("%w: %w", repository.ErrNotFound, ErrFormInactive)
	}
	if in.Values == nil {
		in.Values = map[string]any{}
	}

	// 入力受付後はクライアント切断でも最後まで処理する
	ctx = context.WithoutCancel(ctx)

	sub := &model.FormSubmission{
		SiteID:    in.SiteID,
		FormID:    in.FormID,
		PageID:    in.PageID,
		PostID:    in.PostID,
		Values:    in.Values,
		IPHash:    in.IPHash,
		UserAgent: in.UserAgent,
		RequestID: in.RequestID,
	}
	res := newSubmitResult()

	violations := validation.Validate(form.Fields, in.Values)
	honeypotTripped := form.EnableHoneypot && strings.TrimSpace(in.Honeypot) != "" && !in.RateLimitBypass
	if len(violations) > 0 && !honeypotTripped {
		sub.Status = model.StatusRejected
		sub.SpamFlags = []string{model.FlagValidation}
		if err := s.submissions.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("create submission: %w", err)
		}
		s.trackSubmission(ctx, form, sub)
		res.ID = sub.ID
		res.Status = sub.Status
		res.Validation = violations
		res.SpamFlags = sub.SpamFlags
		return res, nil
	}

	verdict, err := s.classifier.Classify(ctx, moderation.Input{
		Kind:            model.SubjectForm,
		SiteID:          in.SiteID,
		TargetID:        in.FormID,
		Email:           form.EmailValue(in.Values),
		IPHash:          in.IPHash,
		Values:          in.Values,
		Honeypot:        in.Honeypot,
		HoneypotEnabled: form.EnableHoneypot,
		StartedAt:       in.StartedAt,
		RateLimitBypass: in.RateLimitBypass,
		Mode:            form.ModerationMode,
	})
	if err != nil {
		return nil, err
	}

	// submissions have no blocked state; a blocklisted sender is recorded as spam
	blocked := verdict.Status == model.StatusBlocked
	sub.Status = verdict.Status
	if blocked {
		sub.Status = model.StatusSpam
	}
	sub.SpamFlags = verdict.Flags
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.trackSubmission(ctx, form, sub)

	if form.ContactShare != nil && form.ContactShare.Enabled {
		if _, err := s.contacts.BuildContactShareFromSubmission(ctx, form, sub); err != nil {
			logging.FromContext(ctx).Error("contact share failed",
				"site_id", sub.SiteID, "form_id", sub.FormID, "submission_id", sub.ID, "error", err)
		}
	}

	res.OK = !blocked
	res.ID = sub.ID
	res.Status = sub.Status
	if len(sub.SpamFlags) > 0 {
		res.SpamFlags = sub.SpamFlags
	}
	if verdict.Spam() {
		res.SpamMessage = verdict.Message
	}
	return res, nil
}

// trackSubmission records the intake event. Only submissions that reach the
// moderation queue are forwarded to the form's webhook.
func (s *formServiceImpl) trackSubmission(ctx context.Context, form *model.Form, sub *model.FormSubmission) {
	ev := model.AuditEvent{
		SiteID:       sub.SiteID,
		Kind:         model.AuditFormSubmission,
		FormID:       sub.FormID,
		SubmissionID: sub.ID,
		Status:       model.DeliveryReceived,
		RequestID:    sub.RequestID,
		Metadata: map[string]any{
			"status":    string(sub.Status),
			"spamFlags": sub.SpamFlags,
		},
	}
	notify := sub.Status == model.StatusPending || sub.Status == model.StatusApproved
	if !notify || form.NotificationWebhook == "" {
		s.tracker.Track(ctx, ev)
		return
	}
	s.tracker.Notify(ctx, ev, form.NotificationWebhook, webhook.Payload{
		Kind:         string(model.AuditFormSubmission),
		FormID:       sub.FormID,
		SiteID:       sub.SiteID,
		SubmissionID: sub.ID,
		Values:       sub.Values,
		Timestamp:    sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *formServiceImpl) UpdateSubmissionStatus(ctx context.Context, siteID, id string, status model.Status, actor string) (*model.FormSubmission, error) {
	if !moderation.ValidSubmissionStatus(status) {
		return nil, ErrInvalidStatus
	}
	unlock := s.locks.Lock(siteID + "/" + id)
	defer unlock()

	sub, err := s.submissions.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	from, err := moderation.ApplySubmissionStatus(sub, status, actor, s.classifier.Now())
	if err != nil {
		return nil, err
	}
	if err := s.submissions.UpdateStatus(ctx, sub); err != nil {
		return nil, fmt.Errorf("update submission status: %w", err)
	}

	s.tracker.Track(ctx, model.AuditEvent{
		SiteID:       sub.SiteID,
		Kind:         model.AuditFormSubmission,
		FormID:       sub.FormID,
		SubmissionID: sub.ID,
		Status:       model.DeliveryReceived,
		Metadata: map[string]any{
			"transition": "status",
			"from":       string(from),
			"to":         string(status),
			"actor":      actor,
		},
	})

	if released(from, status) {
		s.shareReleased(ctx, sub)
	}
	return sub, nil
}

// released reports a move out of spam/rejected into the live queue.
func released(from, to model.Status) bool {
	wasNegative := from == model.StatusSpam || from == model.StatusRejected
	isLive := to == model.StatusPending || to == model.StatusApproved
	return wasNegative && isLive
}

func (s *formServiceImpl) shareReleased(ctx context.Context, sub *model.FormSubmission) {
	form, err := s.forms.FindByID(ctx, sub.SiteID, sub.FormID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logging.FromContext(ctx).Error("load form for contact share", "form_id", sub.FormID, "error", err)
		}
		return
	}
	if form.ContactShare == nil || !form.ContactShare.Enabled {
		return
	}
	if _, err := s.contacts.BuildContactShareFromSubmission(ctx, form, sub); err != nil {
		logging.FromContext(ctx).Error("contact share failed",
			"site_id", sub.SiteID, "submission_id", sub.ID, "error", err)
	}
}

func (s *formServiceImpl) BulkUpdateSubmissionStatus(ctx context.Context, siteID string, ids []string, status model.Status, actor string) ([]string, error) {
	if !moderation.ValidSubmissionStatus(status) {
		return nil, ErrInvalidStatus
	}
	missing := []string{}
	for _, id := range ids {
		_, err := s.UpdateSubmissionStatus(ctx, siteID, id, status, actor)
		if errors.Is(err, repository.ErrNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return missing, err
		}
	}
	return missing, nil
}

func (s *formServiceImpl) List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error) {
	return s.submissions.List(ctx, opts)
}
