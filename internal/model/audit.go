package model

import "time"

// AuditKind enumerates the actions recorded in the audit trail.
type AuditKind string

const (
	AuditFormSubmission   AuditKind = "form-submission"
	AuditContactShared    AuditKind = "contact-shared"
	AuditContactStatus    AuditKind = "contact-status"
	AuditCommentSubmitted AuditKind = "comment-submitted"
	AuditCommentStatus    AuditKind = "comment-status"
	AuditCommentReported  AuditKind = "comment-reported"
)

// DeliveryStatus is the notification state recorded on an audit event.
type DeliveryStatus string

const (
	DeliveryQueued    DeliveryStatus = "queued"
	DeliverySucceeded DeliveryStatus = "succeeded"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryReceived  DeliveryStatus = "received"
)

// AuditEvent is an append-only record of a moderation or notification action.
type AuditEvent struct {
	ID           string         `json:"id"`
	SiteID       string         `json:"site_id"`
	Kind         AuditKind      `json:"kind"`
	FormID       string         `json:"form_id,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	ContactID    string         `json:"contact_id,omitempty"`
	CommentID    string         `json:"comment_id,omitempty"`
	Status       DeliveryStatus `json:"status"`
	StatusCode   int            `json:"status_code,omitempty"`
	Error        string         `json:"error,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditListOptions carries filter and pagination parameters for listing audit events.
type AuditListOptions struct {
	SiteID string
	Kind   AuditKind // empty = all kinds
	Limit  int
	Offset int
}
