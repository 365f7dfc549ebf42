package service

import (
	"context"
	"time"

	"github.com/backy/backend/internal/model"
)

// CommentSubmitInput is one public comment.
type CommentSubmitInput struct {
	SiteID          string
	TargetType      model.TargetType
	TargetID        string
	ParentID        string
	AuthorName      string
	AuthorEmail     string
	AuthorWebsite   string
	Content         string
	Honeypot        string
	RequestID       string
	StartedAt       *time.Time
	RateLimitBypass bool
	IPHash          string
	UserAgent       string
}

// CommentService owns the intake and moderation lifecycle of comments.
type CommentService interface {
	// Submit validates, classifies and records a comment. Comments failing
	// validation are not persisted.
	Submit(ctx context.Context, in CommentSubmitInput) (*SubmitResult, error)

	// ListPublic returns approved comments of one target, oldest first.
	ListPublic(ctx context.Context, siteID string, targetType model.TargetType, targetID string, limit, offset int) ([]*model.Comment, error)

	List(ctx context.Context, opts model.CommentListOptions) ([]*model.Comment, error)

	// UpdateStatus applies a moderator transition. Entering blocked also
	// blocklists the author's email and IP hash.
	UpdateStatus(ctx context.Context, siteID, id string, status model.Status, actor, reason string) (*model.Comment, error)

	// BulkUpdateStatus applies UpdateStatus to each id and returns the ids not found.
	BulkUpdateStatus(ctx context.Context, siteID string, ids []string, status model.Status, actor, reason string) ([]string, error)

	// Report counts a reader report; an approved comment reaching the report
	// threshold becomes spam.
	Report(ctx context.Context, siteID, id, reason string) (*model.Comment, error)
}
