package service

import (
	"context"
	"time"

	"github.com/backy/backend/internal/model"
)

// FormSubmitInput is one public form submission.
type FormSubmitInput struct {
	SiteID          string
	FormID          string
	PageID          string
	PostID          string
	Values          map[string]any
	Honeypot        string
	RequestID       string
	StartedAt       *time.Time
	RateLimitBypass bool
	IPHash          string
	UserAgent       string
}

// FormService owns the intake and moderation lifecycle of form submissions.
type FormService interface {
	// Submit validates, classifies and records a submission. A validation
	// failure is recorded as rejected; unknown or inactive forms return
	// repository.ErrNotFound.
	Submit(ctx context.Context, in FormSubmitInput) (*SubmitResult, error)

	UpdateSubmissionStatus(ctx context.Context, siteID, id string, status model.Status, actor string) (*model.FormSubmission, error)

	// BulkUpdateSubmissionStatus applies the transition to each id
	// independently and returns the ids that were not found.
	BulkUpdateSubmissionStatus(ctx context.Context, siteID string, ids []string, status model.Status, actor string) ([]string, error)

	List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error)
}
