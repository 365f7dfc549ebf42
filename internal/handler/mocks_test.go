package handler

import (
	"context"
	"net/http"

	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/service"
	"github.com/backy/backend/pkg/auth"
)

// ---------------------------------------------------------------------------
// Mock services shared by the handler tests
// ---------------------------------------------------------------------------

type mockFormService struct {
	submitFunc     func(ctx context.Context, in service.FormSubmitInput) (*service.SubmitResult, error)
	updateFunc     func(ctx context.Context, siteID, id string, status model.Status, actor string) (*model.FormSubmission, error)
	bulkUpdateFunc func(ctx context.Context, siteID string, ids []string, status model.Status, actor string) ([]string, error)
	listFunc       func(ctx context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error)
}

func (m *mockFormService) Submit(ctx context.Context, in service.FormSubmitInput) (*service.SubmitResult, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, in)
	}
	return &service.SubmitResult{OK: true, ID: "sub-1", Status: model.StatusPending}, nil
}

func (m *mockFormService) UpdateSubmissionStatus(ctx context.Context, siteID, id string, status model.Status, actor string) (*model.FormSubmission, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, siteID, id, status, actor)
	}
	return &model.FormSubmission{ID: id, SiteID: siteID, Status: status}, nil
}

func (m *mockFormService) BulkUpdateSubmissionStatus(ctx context.Context, siteID string, ids []string, status model.Status, actor string) ([]string, error) {
	if m.bulkUpdateFunc != nil {
		return m.bulkUpdateFunc(ctx, siteID, ids, status, actor)
	}
	return []string{}, nil
}

func (m *mockFormService) List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, opts)
	}
	return nil, nil
}

type mockCommentService struct {
	submitFunc     func(ctx context.Context, in service.CommentSubmitInput) (*service.SubmitResult, error)
	listPublicFunc func(ctx context.Context, siteID string, targetType model.TargetType, targetID string, limit, offset int) ([]*model.Comment, error)
	listFunc       func(ctx context.Context, opts model.CommentListOptions) ([]*model.Comment, error)
	updateFunc     func(ctx context.Context, siteID, id string, status model.Status, actor, reason string) (*model.Comment, error)
	bulkUpdateFunc func(ctx context.Context, siteID string, ids []string, status model.Status, actor, reason string) ([]string, error)
	reportFunc     func(ctx context.Context, siteID, id, reason string) (*model.Comment, error)
}

func (m *mockCommentService) Submit(ctx context.Context, in service.CommentSubmitInput) (*service.SubmitResult, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, in)
	}
	return &service.SubmitResult{OK: true, ID: "c-1", Status: model.StatusPending}, nil
}

func (m *mockCommentService) ListPublic(ctx context.Context, siteID string, targetType model.TargetType, targetID string, limit, offset int) ([]*model.Comment, error) {
	if m.listPublicFunc != nil {
		return m.listPublicFunc(ctx, siteID, targetType, targetID, limit, offset)
	}
	return nil, nil
}

func (m *mockCommentService) List(ctx context.Context, opts model.CommentListOptions) ([]*model.Comment, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, opts)
	}
	return nil, nil
}

func (m *mockCommentService) UpdateStatus(ctx context.Context, siteID, id string, status model.Status, actor, reason string) (*model.Comment, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, siteID, id, status, actor, reason)
	}
	return &model.Comment{ID: id, SiteID: siteID, Status: status}, nil
}

func (m *mockCommentService) BulkUpdateStatus(ctx context.Context, siteID string, ids []string, status model.Status, actor, reason string) ([]string, error) {
	if m.bulkUpdateFunc != nil {
		return m.bulkUpdateFunc(ctx, siteID, ids, status, actor, reason)
	}
	return []string{}, nil
}

func (m *mockCommentService) Report(ctx context.Context, siteID, id, reason string) (*model.Comment, error) {
	if m.reportFunc != nil {
		return m.reportFunc(ctx, siteID, id, reason)
	}
	return &model.Comment{ID: id, SiteID: siteID, Status: model.StatusApproved, ReportCount: 1}, nil
}

type mockContactService struct {
	updateFunc func(ctx context.Context, siteID, id string, status model.ContactStatus, actor string) (*model.Contact, error)
	listFunc   func(ctx context.Context, opts model.ContactListOptions) ([]*model.Contact, error)
}

func (m *mockContactService) BuildContactShareFromSubmission(context.Context, *model.Form, *model.FormSubmission) (*model.Contact, error) {
	return nil, nil
}

func (m *mockContactService) UpdateStatus(ctx context.Context, siteID, id string, status model.ContactStatus, actor string) (*model.Contact, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, siteID, id, status, actor)
	}
	return &model.Contact{ID: id, SiteID: siteID, Status: status}, nil
}

func (m *mockContactService) List(ctx context.Context, opts model.ContactListOptions) ([]*model.Contact, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, opts)
	}
	return nil, nil
}

// asHost marks req as coming from an authenticated host.
func asHost(req *http.Request) *http.Request {
	ctx := auth.WithUserID(req.Context(), "host@backy.dev")
	ctx = auth.WithIsHost(ctx, true)
	return req.WithContext(ctx)
}

// asUser marks req as an authenticated non-host.
func asUser(req *http.Request) *http.Request {
	ctx := auth.WithUserID(req.Context(), "reader@example.com")
	ctx = auth.WithIsHost(ctx, false)
	return req.WithContext(ctx)
}
