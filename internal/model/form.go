package model

import "time"

// FieldType は入力フィールドの種別
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldPhone    FieldType = "phone"
	FieldURL      FieldType = "url"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"
)

// RuleKind は検証ルールの種別
type RuleKind string

const (
	RuleRequired  RuleKind = "required"
	RuleMinLength RuleKind = "minLength"
	RuleMaxLength RuleKind = "maxLength"
	RulePattern   RuleKind = "pattern"
	RuleMin       RuleKind = "min"
	RuleMax       RuleKind = "max"
	RuleEmail     RuleKind = "email"
)

// FieldRule is one declared validation rule. Only the parameter matching Kind is read.
type FieldRule struct {
	Kind    RuleKind `json:"kind"`
	Length  int      `json:"length,omitempty"`  // minLength / maxLength
	Pattern string   `json:"pattern,omitempty"` // pattern
	Limit   float64  `json:"limit,omitempty"`   // min / max
	Message string   `json:"message,omitempty"` // overrides the default message
}

// FormField is a single input declared on a form.
type FormField struct {
	Key      string      `json:"key"`
	Label    string      `json:"label,omitempty"`
	Type     FieldType   `json:"type"`
	Required bool        `json:"required"`
	Rules    []FieldRule `json:"rules,omitempty"`
}

// ContactSharePolicy maps form fields onto contact identity fields.
// Empty field keys fall back to name / email / phone / message.
type ContactSharePolicy struct {
	Enabled       bool   `json:"enabled"`
	NameField     string `json:"name_field,omitempty"`
	EmailField    string `json:"email_field,omitempty"`
	PhoneField    string `json:"phone_field,omitempty"`
	NotesField    string `json:"notes_field,omitempty"`
	DedupeByEmail *bool  `json:"dedupe_by_email,omitempty"`
}

// Dedupe reports whether contacts are merged by normalized email (default true).
func (p *ContactSharePolicy) Dedupe() bool {
	if p == nil || p.DedupeByEmail == nil {
		return true
	}
	return *p.DedupeByEmail
}

// Form is the intake configuration of a site form.
type Form struct {
	ID                  string              `json:"id"`
	SiteID              string              `json:"site_id"`
	Name                string              `json:"name"`
	Fields              []FormField         `json:"fields"`
	ModerationMode      ModerationMode      `json:"moderation_mode"`
	EnableHoneypot      bool                `json:"enable_honeypot"`
	NotificationWebhook string              `json:"notification_webhook,omitempty"`
	ContactShare        *ContactSharePolicy `json:"contact_share,omitempty"`
	IsActive            bool                `json:"is_active"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// EmailValue returns the first non-empty value of an email-typed field, falling
// back to a field keyed "email". Used as the submitter identity.
func (f *Form) EmailValue(values map[string]any) string {
	for _, field := range f.Fields {
		if field.Type != FieldEmail {
			continue
		}
		if s, ok := values[field.Key].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := values["email"].(string); ok {
		return s
	}
	return ""
}

// Site carries the comment-thread policy of a site.
type Site struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	CommentModeration ModerationMode `json:"comment_moderation"`
	CommentHoneypot   bool           `json:"comment_honeypot"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
