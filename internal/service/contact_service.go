package service

import (
	"context"

	"github.com/backy/backend/internal/model"
)

// ContactService shares submitter identity into deduplicated contact records.
type ContactService interface {
	// BuildContactShareFromSubmission creates or merges the contact extracted
	// from sub using the form's share policy. It returns nil when nothing was
	// shared: sharing disabled, no identity fields, or a spam submission with
	// no existing contact.
	BuildContactShareFromSubmission(ctx context.Context, form *model.Form, sub *model.FormSubmission) (*model.Contact, error)

	UpdateStatus(ctx context.Context, siteID, id string, status model.ContactStatus, actor string) (*model.Contact, error)

	// List returns contacts according to the given options.
	List(ctx context.Context, opts model.ContactListOptions) ([]*model.Contact, error)
}
