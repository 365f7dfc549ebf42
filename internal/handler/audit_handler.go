package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/backy/backend/internal/model"
)

// AuditLister is the read side of the audit trail.
type AuditLister interface {
	List(ctx context.Context, opts model.AuditListOptions) ([]*model.AuditEvent, error)
}

// AuditHandler exposes the audit trail to hosts.
type AuditHandler struct {
	audit AuditLister
}

func NewAuditHandler(audit AuditLister) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /api/admin/sites/{siteId}/audit?kind=&limit=&offset= (host-only).
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	limit, offset := pagination(r)
	opts := model.AuditListOptions{
		SiteID: r.PathValue("siteId"),
		Kind:   model.AuditKind(r.URL.Query().Get("kind")),
		Limit:  limit,
		Offset: offset,
	}
	events, err := h.audit.List(r.Context(), opts)
	if err != nil {
		slog.Error("list audit events failed", "site_id", opts.SiteID, "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if events == nil {
		events = []*model.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
