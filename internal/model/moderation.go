package model

// Status is the moderation state of a form submission or comment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSpam     Status = "spam"
	// StatusBlocked is only valid for comments.
	StatusBlocked Status = "blocked"
)

// ModerationMode decides the status of a submission that raised no spam signal.
type ModerationMode string

const (
	ModerationManual      ModerationMode = "manual"
	ModerationAutoApprove ModerationMode = "auto-approve"
)

// DefaultStatus returns approved for auto-approve and pending otherwise.
func (m ModerationMode) DefaultStatus() Status {
	if m == ModerationAutoApprove {
		return StatusApproved
	}
	return StatusPending
}

// Spam flags attached to a classification.
const (
	FlagValidation   = "validation"
	FlagBlockedActor = "blocked-actor"
	FlagHoneypot     = "honeypot"
	FlagTiming       = "timing"
	FlagRateLimit    = "rate-limit"
	FlagDuplicate    = "duplicate"
)

// SubjectKind distinguishes the two kinds of intake the pipeline handles.
type SubjectKind string

const (
	SubjectForm    SubjectKind = "form"
	SubjectComment SubjectKind = "comment"
)
