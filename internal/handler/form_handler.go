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

const maxBulkIDs = 200

// FormHandler handles public form submissions and their moderation.
type FormHandler struct {
	formService service.FormService
	gate        intakeGate
}

// NewFormHandler creates a FormHandler. rateLimitBypass is only honored for
// requests carrying internalToken.
func NewFormHandler(formService service.FormService, ips *IPHasher, internalToken string) *FormHandler {
	return &FormHandler{formService: formService, gate: intakeGate{ips: ips, internalToken: internalToken}}
}

// submissionRequest is the JSON body for POST /api/sites/{siteId}/forms/{formId}/submissions.
type submissionRequest struct {
	Values          map[string]any  `json:"values"`
	Honeypot        string          `json:"honeypot"`
	PageID          string          `json:"pageId"`
	PostID          string          `json:"postId"`
	RequestID       string          `json:"requestId"`
	StartedAt       json.RawMessage `json:"startedAt"`
	RateLimitBypass bool            `json:"rateLimitBypass"`
}

// Submit handles POST /api/sites/{siteId}/forms/{formId}/submissions.
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	startedAt, err := parseStartedAt(req.StartedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_started_at")
		return
	}

	res, err := h.formService.Submit(r.Context(), service.FormSubmitInput{
		SiteID:          r.PathValue("siteId"),
		FormID:          r.PathValue("formId"),
		PageID:          req.PageID,
		PostID:          req.PostID,
		Values:          req.Values,
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
		slog.Error("form submission failed", "site_id", r.PathValue("siteId"), "form_id", r.PathValue("formId"), "error", err)
		writeError(w, http.StatusInternalServerError, "submit_failed")
		return
	}
	writeSubmitResult(w, res)
}

// AdminList handles GET /api/admin/sites/{siteId}/submissions (host-only).
// Query params: formId, status, limit, offset.
func (h *FormHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	limit, offset := pagination(r)
	opts := model.SubmissionListOptions{
		SiteID: r.PathValue("siteId"),
		FormID: r.URL.Query().Get("formId"),
		Status: model.Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if opts.Status == "all" {
		opts.Status = ""
	}

	submissions, err := h.formService.List(r.Context(), opts)
	if err != nil {
		slog.Error("list submissions failed", "site_id", opts.SiteID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	// Return [] not null for empty lists
	if submissions == nil {
		submissions = []*model.FormSubmission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": submissions})
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UpdateStatus handles PATCH /api/admin/sites/{siteId}/submissions/{id}/status (host-only).
func (h *FormHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := h.formService.UpdateSubmissionStatus(r.Context(), r.PathValue("siteId"), r.PathValue("id"),
		model.Status(strings.TrimSpace(req.Status)), auth.Actor(r.Context()))
	if writeModerationError(w, err, "update_failed") {
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
	Reason string   `json:"reason"`
}

func (req bulkStatusRequest) validate(w http.ResponseWriter) bool {
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids_required")
		return false
	}
	if len(req.IDs) > maxBulkIDs {
		writeError(w, http.StatusBadRequest, "too_many_ids")
		return false
	}
	return true
}

// BulkUpdateStatus handles POST /api/admin/sites/{siteId}/submissions/bulk-status (host-only).
// The response lists the ids that were not found.
func (h *FormHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	var req bulkStatusRequest
	if !decodeBody(w, r, &req) || !req.validate(w) {
		return
	}
	missing, err := h.formService.BulkUpdateSubmissionStatus(r.Context(), r.PathValue("siteId"), req.IDs,
		model.Status(strings.TrimSpace(req.Status)), auth.Actor(r.Context()))
	if writeModerationError(w, err, "update_failed") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"missing": missing})
}

// writeModerationError maps service errors onto 400/404/500 and reports
// whether a response was written.
func writeModerationError(w http.ResponseWriter, err error, code string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		slog.Error("moderation update failed", "error", err)
		writeError(w, http.StatusInternalServerError, code)
	}
	return true
}
