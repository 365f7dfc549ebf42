package model

import "time"

// ContactStatus is the follow-up state of a shared contact.
type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactContacted ContactStatus = "contacted"
	ContactQualified ContactStatus = "qualified"
	ContactArchived  ContactStatus = "archived"
)

// Valid reports whether s is a known contact status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactContacted, ContactQualified, ContactArchived:
		return true
	}
	return false
}

// Contact is identity data shared from form submissions, deduplicated by
// normalized email within a (site, form).
type Contact struct {
	ID                 string        `json:"id"`
	SiteID             string        `json:"site_id"`
	FormID             string        `json:"form_id"`
	Name               string        `json:"name,omitempty"`
	Email              string        `json:"email,omitempty"`
	Phone              string        `json:"phone,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	SourceSubmissionID string        `json:"source_submission_id"`
	Status             ContactStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ContactListOptions carries filter and pagination parameters for listing contacts.
type ContactListOptions struct {
	SiteID string
	FormID string
	// Status filters by contact status: "", "all", "new", "contacted", ...
	// Empty string and "all" return all contacts.
	Status string
	Limit  int
	Offset int
}
