package model

import "time"

// TargetType is the kind of content a comment thread hangs off.
type TargetType string

const (
	TargetPage TargetType = "page"
	TargetPost TargetType = "post"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetPage || t == TargetPost
}

// ReportReason is an enumerated reason a reader gives when reporting a comment.
type ReportReason string

const (
	ReportSpam           ReportReason = "spam"
	ReportAbuse          ReportReason = "abuse"
	ReportHarassment     ReportReason = "harassment"
	ReportOffTopic       ReportReason = "off-topic"
	ReportMisinformation ReportReason = "misinformation"
	ReportOther          ReportReason = "other"
)

// Comment is a reader comment attached to a page or post. ParentID links
// replies into a tree.
type Comment struct {
	ID            string         `json:"id"`
	SiteID        string         `json:"site_id"`
	TargetType    TargetType     `json:"target_type"`
	TargetID      string         `json:"target_id"`
	ParentID      *string        `json:"parent_id,omitempty"`
	AuthorName    string         `json:"author_name"`
	AuthorEmail   string         `json:"author_email,omitempty"`
	AuthorWebsite string         `json:"author_website,omitempty"`
	IPHash        string         `json:"ip_hash,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Content       string         `json:"content"`
	Status        Status         `json:"status"`
	SpamFlags     []string       `json:"spam_flags,omitempty"`
	ReportCount   int            `json:"report_count"`
	ReportReasons []ReportReason `json:"report_reasons,omitempty"`
	BlockReason   string         `json:"block_reason,omitempty"`
	BlockedBy     string         `json:"blocked_by,omitempty"`
	BlockedAt     *time.Time     `json:"blocked_at,omitempty"`
	ReviewedBy    string         `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TargetKey identifies the thread a comment belongs to.
func (c *Comment) TargetKey() string {
	return string(c.TargetType) + ":" + c.TargetID
}

// HasReason reports whether reason is already recorded on the comment.
func (c *Comment) HasReason(reason ReportReason) bool {
	for _, r := range c.ReportReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// CommentListOptions carries filter and pagination parameters for listing comments.
type CommentListOptions struct {
	SiteID     string
	TargetType TargetType // empty = all targets
	TargetID   string
	Status     Status // empty = all
	Limit      int
	Offset     int
}
