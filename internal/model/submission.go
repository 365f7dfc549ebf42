package model

import "time"

// FormSubmission is one accepted intake call against a form.
type FormSubmission struct {
	ID         string         `json:"id"`
	SiteID     string         `json:"site_id"`
	FormID     string         `json:"form_id"`
	PageID     string         `json:"page_id,omitempty"`
	PostID     string         `json:"post_id,omitempty"`
	Values     map[string]any `json:"values"`
	IPHash     string         `json:"ip_hash,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Status     Status         `json:"status"`
	SpamFlags  []string       `json:"spam_flags,omitempty"`
	ReviewedBy string         `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SubmissionListOptions carries filter and pagination parameters for listing submissions.
type SubmissionListOptions struct {
	SiteID string
	FormID string // empty = all forms of the site
	Status Status // empty = all
	Limit  int
	Offset int
}
