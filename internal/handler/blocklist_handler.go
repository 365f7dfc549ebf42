package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/backy/backend/internal/logging"
	"github.com/backy/backend/internal/model"
	"github.com/backy/backend/pkg/auth"
)

// Blocker is satisfied by *moderation.Blocklist.
type Blocker interface {
	Block(ctx context.Context, siteID, email, ipHash, reason, actor, requestID string) ([]*model.BlocklistEntry, error)
	List(ctx context.Context, siteID string) ([]*model.BlocklistEntry, error)
}

// BlocklistHandler lets hosts inspect and extend a site's blocklist.
type BlocklistHandler struct {
	blocklist Blocker
	ips       *IPHasher
}

func NewBlocklistHandler(blocklist Blocker, ips *IPHasher) *BlocklistHandler {
	return &BlocklistHandler{blocklist: blocklist, ips: ips}
}

// List handles GET /api/admin/sites/{siteId}/blocklist (host-only).
func (h *BlocklistHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	entries, err := h.blocklist.List(r.Context(), r.PathValue("siteId"))
	if err != nil {
		slog.Error("list blocklist failed", "site_id", r.PathValue("siteId"), "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if entries == nil {
		entries = []*model.BlocklistEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// blockRequest accepts either a pre-hashed ipHash or a raw ip, which is
// hashed with the server salt before it is stored.
type blockRequest struct {
	Email  string `json:"email"`
	IPHash string `json:"ipHash"`
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

// Block handles POST /api/admin/sites/{siteId}/blocklist (host-only).
func (h *BlocklistHandler) Block(w http.ResponseWriter, r *http.Request) {
	if !requireHost(w, r) {
		return
	}
	var req blockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ipHash := strings.TrimSpace(req.IPHash)
	if ipHash == "" && strings.TrimSpace(req.IP) != "" {
		ipHash = h.ips.Hash(strings.TrimSpace(req.IP))
	}
	if strings.TrimSpace(req.Email) == "" && ipHash == "" {
		writeError(w, http.StatusBadRequest, "identity_required")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "blocked by moderator"
	}

	entries, err := h.blocklist.Block(r.Context(), r.PathValue("siteId"), req.Email, ipHash, reason,
		auth.Actor(r.Context()), logging.RequestID(r.Context()))
	if err != nil {
		slog.Error("block identity failed", "site_id", r.PathValue("siteId"), "error", err)
		writeError(w, http.StatusInternalServerError, "block_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": entries})
}
