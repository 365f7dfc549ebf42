package moderation

import (
	"errors"
	"strings"
	"time"

	"github.com/backy/backend/internal/model"
)

// ErrInvalidStatus is returned for a status the subject cannot take.
var ErrInvalidStatus = errors.New("moderation: invalid status")

// ReportEscalationThreshold is the report count at which an approved comment becomes spam.
const ReportEscalationThreshold = 3

// EscalationActor is recorded as the reviewer of report-driven transitions.
const EscalationActor = "system:auto-escalation"

// ValidSubmissionStatus reports whether s is a form submission status.
func ValidSubmissionStatus(s model.Status) bool {
	switch s {
	case model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusSpam:
		return true
	}
	return false
}

// ValidCommentStatus reports whether s is a comment status.
func ValidCommentStatus(s model.Status) bool {
	return ValidSubmissionStatus(s) || s == model.StatusBlocked
}

// ApplySubmissionStatus moves s to status and stamps the review. It returns the previous status.
func ApplySubmissionStatus(s *model.FormSubmission, to model.Status, actor string, now time.Time) (model.Status, error) {
	if !ValidSubmissionStatus(to) {
		return "", ErrInvalidStatus
	}
	from := s.Status
	s.Status = to
	s.ReviewedBy = actor
	s.ReviewedAt = &now
	s.UpdatedAt = now
	return from, nil
}

// ApplyCommentStatus moves c to status and stamps the review. Entering
// blocked records the block; returning to pending or approved clears it;
// rejected and spam leave it untouched.
func ApplyCommentStatus(c *model.Comment, to model.Status, actor, reason string, now time.Time) (model.Status, error) {
	if !ValidCommentStatus(to) {
		return "", ErrInvalidStatus
	}
	from := c.Status
	switch to {
	case model.StatusBlocked:
		if reason == "" {
			reason = "blocked by moderator"
		}
		c.BlockReason = reason
		c.BlockedBy = actor
		c.BlockedAt = &now
	case model.StatusPending, model.StatusApproved:
		c.BlockReason = ""
		c.BlockedBy = ""
		c.BlockedAt = nil
	}
	c.Status = to
	c.ReviewedBy = actor
	c.ReviewedAt = &now
	c.UpdatedAt = now
	return from, nil
}

// NormalizeReportReason maps free-form input onto the known reasons; anything
// unrecognized becomes "other".
func NormalizeReportReason(s string) model.ReportReason {
	r := model.ReportReason(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case model.ReportSpam, model.ReportAbuse, model.ReportHarassment,
		model.ReportOffTopic, model.ReportMisinformation, model.ReportOther:
		return r
	case "offtopic", "off_topic":
		return model.ReportOffTopic
	}
	return model.ReportOther
}

// ApplyReport counts a report against c and escalates an approved comment to
// spam once the threshold is reached. It bypasses the classifier.
func ApplyReport(c *model.Comment, reason model.ReportReason, now time.Time) (escalated bool) {
	c.ReportCount++
	if !c.HasReason(reason) {
		c.ReportReasons = append(c.ReportReasons, reason)
	}
	c.UpdatedAt = now
	if c.Status == model.StatusApproved && c.ReportCount >= ReportEscalationThreshold {
		_, _ = ApplyCommentStatus(c, model.StatusSpam, EscalationActor, "", now)
		escalations.Inc()
		return true
	}
	return false
}
