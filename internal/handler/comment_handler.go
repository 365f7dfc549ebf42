package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/repository"
	"github.com/backy/backend/internal/service"
	"github.com/backy/backend/pkg/auth"
)

// CommentHandler handles public comment threads, reader reports and comment moderation.
type CommentHandler struct {
	commentService service.CommentService
	gate           intakeGate
}

// NewCommentHandler creates a CommentHandler.
func NewCommentHandler(commentService service.CommentService, ips *IPHasher, internalToken string) *CommentHandler {
	return &CommentHandler{commentService: commentService, gate: intakeGate{ips: ips, internalToken: internalToken}}
}

type commentRequest struct {
	TargetType      string          `json:"targetType"`
	TargetID        string          `json:"targetId"`
	ParentID        string          `json:"parentId"`
	AuthorName      string          `json:"authorName"`
	AuthorEmail     string          `json:"authorEmail"`
	AuthorWebsite   string          `json:"authorWebsite"`
	Content         string          `json:"content"`
	Honeypot        string          `json:"honeypot"`
	RequestID       string          `json:"requestId"`
	StartedAt       json.RawMessage `json:"startedAt"`
	RateLimitBypass bool            `json:"rateLimitBypass"`
}

// Submit handles POST /api/sites/{siteId}/comments.
func (h *CommentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	startedAt, err := parseStartedAt(req.StartedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_started_at")
		return
	}

	res, err := h.commentService.Submit(r.Context(), service.CommentSubmitInput{
		SiteID:          r.PathValue("siteId"),
		TargetType:      model.TargetType(strings.TrimSpace(req.TargetType)),
		TargetID:        strings.TrimSpace(req.TargetID),
		ParentID:        strings.TrimSpace(req.ParentID),
		AuthorName:      req.AuthorName,
		AuthorEmail:     req.AuthorEmail,
		AuthorWebsite:   req.AuthorWebsite,
		Content:         req.Content,
		Honeypot:        req.Honeypot,
		RequestID:       requestID(r, req.RequestID),
		StartedAt:       startedAt,
		RateLimitBypass: h.gate.bypass(r, req.RateLimitBypass),
		IPHash:          h.gate.ips.FromRequest(r),
		UserAgent:       r.UserAgent(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		slog.Error("comment submission failed", "site_id", r.PathValue("siteId"), "error", err)
		writeError(w, http.StatusInternalServerError, "submit_failed")
		return
	}
	writeSubmitResult(w, res)
}

// ListPublic handles GET /api/sites/{siteId}/comments?targetType=&targetId=.
// Only approved comments are returned, oldest first.
func (h *CommentHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	targetType := model.TargetType(q.Get("targetType"))
	targetID := strings.TrimSpace(q.Get("targetId"))
	if !targetType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_target_type")
		return
	}
	if targetID == "" {
		writeError(w, http.StatusBadRequest, "target_id_required")
		return
	}
	limit, offset := pagination(r)

	comments, err := h.commentService.ListPublic(r.Context(), r.PathValue("siteId"), targetType, targetID, limit, offset)
	if err != nil {
		slog.Error("list public comments failed", "site_id", r.PathValue("siteId"), "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	// 公開一覧では連絡先を返さない
	public := make([]publicComment, 0, len(comments))
	for _, c := range comments {
		public = append(public, toPublicComment(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": public})
}

type publicComment struct {
	ID            string  `json:"id"`
	ParentID      *string `json:"parent_id,omitempty"`
	AuthorName    string  `json:"author_name"`
	AuthorWebsite string  `json:"author_website,omitempty"`
	Content       string  `json:"content"`
	CreatedAt     string  `json:"created_at"`
}

func toPublicComment(c *model.Comment) publicComment {
	return publicComment{
		ID:            c.ID,
		ParentID:      c.ParentID,
		AuthorName:    c.AuthorName,
		AuthorWebsite: c.AuthorWebsite,
		Content:       c.Content,
		CreatedAt:     c.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type reportRequest struct {
	Reason string `json:"reason"`
}

// Report handles POST /api/sites/{siteId}/comments/{id}/report.
func (h *CommentHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.commentService.Report(r.Context(), r.PathValue("siteId"), r.PathValue("id"), req.Reason)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		slog.Error("report comment failed", "comment_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"reportCount": c.ReportCount,
		"status":      c.Status,
	})
}

// AdminList handles GET /api/admin/sites/{siteId}/comments (host-only).
// Query params: targetType, targetId, status, limit, offset.
func (h *CommentHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	q := r.URL.Query()
	limit, offset := pagination(r)
	opts := model.CommentListOptions{
		SiteID:     r.PathValue("siteId"),
		TargetType: model.TargetType(q.Get("targetType")),
		TargetID:   q.Get("targetId"),
		Status:     model.Status(q.Get("status")),
		Limit:      limit,
		Offset:     offset,
	}
	if opts.Status == "all" {
		opts.Status = ""
	}

	comments, err := h.commentService.List(r.Context(), opts)
	if err != nil {
		slog.Error("list comments failed", "site_id", opts.SiteID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// UpdateStatus handles PATCH /api/admin/sites/{siteId}/comments/{id}/status (host-only).
func (h *CommentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.commentService.UpdateStatus(r.Context(), r.PathValue("siteId"), r.PathValue("id"),
		model.Status(strings.TrimSpace(req.Status)), auth.Actor(r.Context()), strings.TrimSpace(req.Reason))
	if writeModerationError(w, err, "update_failed") {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// BulkUpdateStatus handles POST /api/admin/sites/{siteId}/comments/bulk-status (host-only).
func (h *CommentHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	var req bulkStatusRequest
	if !decodeBody(w, r, &req) || !req.validate(w) {
		return
	}
	missing, err := h.commentService.BulkUpdateStatus(r.Context(), r.PathValue("siteId"), req.IDs,
		model.Status(strings.TrimSpace(req.Status)), auth.Actor(r.Context()), strings.TrimSpace(req.Reason))
	if writeModerationError(w, err, "update_failed") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"missing": missing})
}
