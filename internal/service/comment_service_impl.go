package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/backy/backend/internal/logging"
	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/moderation"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/internal/validation"
)

const maxAuthorNameLength = 120

// commentServiceImpl is the production implementation of CommentService.
type commentServiceImpl struct {
	sites      repository.SiteRepository
	comments   repository.CommentRepository
	classifier *moderation.Classifier
	blocklist  *moderation.Blocklist
	tracker    *AuditTracker
	locks      *keyedLock
}

// NewCommentService creates a CommentService.
func NewCommentService(
	sites repository.SiteRepository,
	comments repository.CommentRepository,
	classifier *moderation.Classifier,
	blocklist *moderation.Blocklist,
	tracker *AuditTracker,
) CommentService {
	return &commentServiceImpl{
		sites:      sites,
		comments:   comments,
		classifier: classifier,
		blocklist:  blocklist,
		tracker:    tracker,
		locks:      newKeyedLock(),
	}
}

// validateComment checks what must hold before a comment can exist at all.
func (s *commentServiceImpl) validateComment(ctx context.Context, in CommentSubmitInput) ([]validation.Violation, error) {
	var out []validation.Violation
	if !in.TargetType.Valid() {
		out = append(out, validation.Violation{Field: "targetType", Message: "Target type must be page or post"})
	}
	if strings.TrimSpace(in.TargetID) == "" {
		out = append(out, validation.Violation{Field: "targetId", Message: "Target is required"})
	}
	name := strings.TrimSpace(in.AuthorName)
	switch {
	case name == "":
		out = append(out, validation.Violation{Field: "authorName", Message: "Name is required"})
	case utf8.RuneCountInString(name) > maxAuthorNameLength:
		out = append(out, validation.Violation{Field: "authorName", Message: fmt.Sprintf("Name must be at most %d characters", maxAuthorNameLength)})
	}
	if email := strings.TrimSpace(in.AuthorEmail); email != "" && !validation.IsEmail(email) {
		out = append(out, validation.Violation{Field: "authorEmail", Message: "must be a valid email address"})
	}
	if site := strings.TrimSpace(in.AuthorWebsite); site != "" {
		if u, err := url.Parse(site); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			out = append(out, validation.Violation{Field: "authorWebsite", Message: "must be an http(s) URL"})
		}
	}
	if in.ParentID != "" && len(out) == 0 {
		parent, err := s.comments.FindByID(ctx, in.SiteID, in.ParentID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			out = append(out, validation.Violation{Field: "parentId", Message: "Parent comment not found"})
		case err != nil:
			return nil, err
		case parent.TargetType != in.TargetType || parent.TargetID != in.TargetID:
			out = append(out, validation.Violation{Field: "parentId", Message: "Parent comment belongs to another thread"})
		}
	}
	return out, nil
}

func (s *commentServiceImpl) Submit(ctx context.Context, in CommentSubmitInput) (*SubmitResult, error) {
	site, err := s.sites.FindByID(ctx, in.SiteID)
	if err != nil {
		return nil, err
	}
	res := newSubmitResult()

	violations, err := s.validateComment(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		res.Status = model.StatusRejected
		res.Validation = violations
		return res, nil
	}

	ctx = context.WithoutCancel(ctx)

	c := &model.Comment{
		SiteID:        in.SiteID,
		TargetType:    in.TargetType,
		TargetID:      strings.TrimSpace(in.TargetID),
		AuthorName:    strings.TrimSpace(in.AuthorName),
		AuthorEmail:   strings.TrimSpace(in.AuthorEmail),
		AuthorWebsite: strings.TrimSpace(in.AuthorWebsite),
		IPHash:        in.IPHash,
		UserAgent:     in.UserAgent,
		RequestID:     in.RequestID,
		Content:       strings.TrimSpace(in.Content),
	}
	if in.ParentID != "" {
		parent := in.ParentID
		c.ParentID = &parent
	}

	verdict, err := s.classifier.Classify(ctx, moderation.Input{
		Kind:            model.SubjectComment,
		SiteID:          in.SiteID,
		TargetID:        c.TargetKey(),
		Email:           c.AuthorEmail,
		IPHash:          in.IPHash,
		Content:         c.Content,
		Honeypot:        in.Honeypot,
		HoneypotEnabled: site.CommentHoneypot,
		StartedAt:       in.StartedAt,
		RateLimitBypass: in.RateLimitBypass,
		Mode:            site.CommentModeration,
	})
	if err != nil {
		return nil, err
	}
	if verdict.Status == model.StatusRejected {
		res.Status = verdict.Status
		res.SpamFlags = verdict.Flags
		res.Validation = []validation.Violation{{Field: "content", Message: verdict.Message}}
		return res, nil
	}

	c.Status = verdict.Status
	c.SpamFlags = verdict.Flags
	if verdict.Entry != nil {
		now := s.classifier.Now()
		c.BlockReason = verdict.Entry.Reason
		c.BlockedBy = verdict.Entry.Actor
		c.BlockedAt = &now
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.tracker.Track(ctx, model.AuditEvent{
		SiteID:    c.SiteID,
		Kind:      model.AuditCommentSubmitted,
		CommentID: c.ID,
		Status:    model.DeliveryReceived,
		RequestID: c.RequestID,
		Metadata: map[string]any{
			"status":    string(c.Status),
			"spamFlags": c.SpamFlags,
			"target":    c.TargetKey(),
		},
	})

	res.OK = c.Status != model.StatusBlocked
	res.ID = c.ID
	res.Status = c.Status
	if len(c.SpamFlags) > 0 {
		res.SpamFlags = c.SpamFlags
	}
	if verdict.Spam() {
		res.SpamMessage = verdict.Message
	}
	return res, nil
}

func (s *commentServiceImpl) ListPublic(ctx context.Context, siteID string, targetType model.TargetType, targetID string, limit, offset int) ([]*model.Comment, error) {
	return s.comments.List(ctx, model.CommentListOptions{
		SiteID:     siteID,
		TargetType: targetType,
		TargetID:   targetID,
		Status:     model.StatusApproved,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *commentServiceImpl) List(ctx context.Context, opts model.CommentListOptions) ([]*model.Comment, error) {
	return s.comments.List(ctx, opts)
}

func (s *commentServiceImpl) UpdateStatus(ctx context.Context, siteID, id string, status model.Status, actor, reason string) (*model.Comment, error) {
	if !moderation.ValidCommentStatus(status) {
		return nil, ErrInvalidStatus
	}
	unlock := s.locks.Lock(siteID + "/" + id)
	defer unlock()

	c, err := s.comments.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	from, err := moderation.ApplyCommentStatus(c, status, actor, reason, s.classifier.Now())
	if err != nil {
		return nil, err
	}
	if status == model.StatusBlocked && (c.AuthorEmail != "" || c.IPHash != "") {
		if _, err := s.blocklist.Block(ctx, siteID, c.AuthorEmail, c.IPHash, c.BlockReason, actor, logging.RequestID(ctx)); err != nil {
			return nil, fmt.Errorf("blocklist author: %w", err)
		}
	}
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update comment status: %w", err)
	}

	s.trackStatus(ctx, c, from, actor)
	return c, nil
}

func (s *commentServiceImpl) trackStatus(ctx context.Context, c *model.Comment, from model.Status, actor string) {
	s.tracker.Track(ctx, model.AuditEvent{
		SiteID:    c.SiteID,
		Kind:      model.AuditCommentStatus,
		CommentID: c.ID,
		Status:    model.DeliveryReceived,
		Metadata: map[string]any{
			"from":  string(from),
			"to":    string(c.Status),
			"actor": actor,
		},
	})
}

func (s *commentServiceImpl) BulkUpdateStatus(ctx context.Context, siteID string, ids []string, status model.Status, actor, reason string) ([]string, error) {
	if !moderation.ValidCommentStatus(status) {
		return nil, ErrInvalidStatus
	}
	missing := []string{}
	for _, id := range ids {
		_, err := s.UpdateStatus(ctx, siteID, id, status, actor, reason)
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

func (s *commentServiceImpl) Report(ctx context.Context, siteID, id, reason string) (*model.Comment, error) {
	normalized := moderation.NormalizeReportReason(reason)

	unlock := s.locks.Lock(siteID + "/" + id)
	defer unlock()

	c, err := s.comments.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	escalated := moderation.ApplyReport(c, normalized, s.classifier.Now())
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("record report: %w", err)
	}

	s.tracker.Track(ctx, model.AuditEvent{
		SiteID:    c.SiteID,
		Kind:      model.AuditCommentReported,
		CommentID: c.ID,
		Status:    model.DeliveryReceived,
		Metadata: map[string]any{
			"reason":      string(normalized),
			"reportCount": c.ReportCount,
		},
	})
	if escalated {
		logging.FromContext(ctx).Info("comment escalated by reports",
			"site_id", c.SiteID, "comment_id", c.ID, "report_count", c.ReportCount)
		s.trackStatus(ctx, c, model.StatusApproved, moderation.EscalationActor)
	}
	return c, nil
}
