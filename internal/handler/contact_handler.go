package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/internal/service"
	"github.com/backy/backend/pkg/auth"
)

// ContactHandler handles the admin view of shared contacts.
type ContactHandler struct {
	contactService service.ContactService
}

// NewContactHandler creates a ContactHandler with the given service.
func NewContactHandler(contactService service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// adminListResponse is the JSON response for GET /api/admin/sites/{siteId}/contacts.
type adminListResponse struct {
	Contacts []*model.Contact `json:"contacts"`
}

// AdminList handles GET /api/admin/sites/{siteId}/contacts (host-only).
// Supports query params: formId, status (all/new/contacted/qualified/archived), limit, offset.
func (h *ContactHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	limit, offset := pagination(r)
	opts := model.ContactListOptions{
		SiteID: r.PathValue("siteId"),
		FormID: r.URL.Query().Get("formId"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}

	contacts, err := h.contactService.List(r.Context(), opts)
	if err != nil {
		slog.Error("list contacts failed", "site_id", opts.SiteID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}

	// Return [] not null for empty lists
	if contacts == nil {
		contacts = []*model.Contact{}
	}
	writeJSON(w, http.StatusOK, adminListResponse{Contacts: contacts})
}

// UpdateStatus handles PATCH /api/admin/sites/{siteId}/contacts/{id}/status (host-only).
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.contactService.UpdateStatus(r.Context(), r.PathValue("siteId"), r.PathValue("id"),
		model.ContactStatus(strings.TrimSpace(req.Status)), auth.Actor(r.Context()))
	if writeModerationError(w, err, "update_failed") {
		return
	}
	writeJSON(w, http.StatusOK, c)
}
