package repository

import (
	"context"

	"github.com/backy/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// SiteRepository reads the comment policy of a site.
type SiteRepository interface {
	FindByID(ctx context.Context, id string) (*model.Site, error)
}

// FormRepository reads form definitions. Forms are authored in the editor; this
// service never writes them.
type FormRepository interface {
	FindByID(ctx context.Context, siteID, formID string) (*model.Form, error)
}

// SubmissionRepository persists form submissions. Submissions are never deleted.
type SubmissionRepository interface {
	Create(ctx context.Context, s *model.FormSubmission) error
	FindByID(ctx context.Context, siteID, id string) (*model.FormSubmission, error)
	// UpdateStatus writes status, reviewed_by, reviewed_at and updated_at.
	UpdateStatus(ctx context.Context, s *model.FormSubmission) error
	List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error)
}

// CommentRepository persists comments.
type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, siteID, id string) (*model.Comment, error)
	// Update writes the moderation state: status, reports, block and review fields.
	Update(ctx context.Context, c *model.Comment) error
	List(ctx context.Context, opts model.CommentListOptions) ([]*model.Comment, error)
}

// ContactRepository persists shared contacts.
type ContactRepository interface {
	Create(ctx context.Context, c *model.Contact) error
	Update(ctx context.Context, c *model.Contact) error
	FindByID(ctx context.Context, siteID, id string) (*model.Contact, error)
	// FindByEmail matches the normalized email within (site, form).
	FindByEmail(ctx context.Context, siteID, formID, email string) (*model.Contact, error)
	List(ctx context.Context, opts model.ContactListOptions) ([]*model.Contact, error)
}

// AuditRepository is the append-only audit trail.
type AuditRepository interface {
	Append(ctx context.Context, ev *model.AuditEvent) error
	// List returns events newest first.
	List(ctx context.Context, opts model.AuditListOptions) ([]*model.AuditEvent, error)
}
