// Task 5.9: history endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/domain/history"
)

type HistoryHandler struct {
	service *history.Service
	audit   *audit.Service
	log     zerolog.Logger
}

func NewHistoryHandler(service *history.Service, auditSvc *audit.Service, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{service: service, audit: auditSvc, log: log}
}

// ListHistory handles GET /api/v1/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)
	items, total, svcErr := h.service.List(r.Context(), history.ListInput{
		Target:       r.URL.Query().Get("target"),
		FavoriteOnly: r.URL.Query().Get("favorite") == "true",
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list history: %v", svcErr))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": Meta{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}

// GetHistory handles GET /api/v1/history/{id}
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, svcErr := h.service.Get(r.Context(), id)
	if errors.Is(svcErr, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get history entry: %v", svcErr))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteHistory handles DELETE /api/v1/history/{id}
func (h *HistoryHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	svcErr := h.service.Delete(r.Context(), id)
	if errors.Is(svcErr, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete history entry: %v", svcErr))
		return
	}
	h.recordAudit(r, audit.ActionHistoryDelete, id)
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory handles DELETE /api/v1/history
func (h *HistoryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, svcErr := h.service.Clear(r.Context())
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to clear history: %v", svcErr))
		return
	}
	h.recordAudit(r, audit.ActionHistoryClear, "")
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

type FavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite handles PUT /api/v1/history/{id}/favorite
func (h *HistoryHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req FavoriteRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, svcErr := h.service.SetFavorite(r.Context(), id, req.Favorite)
	if errors.Is(svcErr, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to set favorite: %v", svcErr))
		return
	}
	h.recordAudit(r, audit.ActionHistoryFavorite, id)
	writeJSON(w, http.StatusOK, out)
}

// HistoryStats handles GET /api/v1/history/stats
func (h *HistoryHandler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, svcErr := h.service.Stats(r.Context())
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to compute stats: %v", svcErr))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HistoryHandler) recordAudit(r *http.Request, action, id string) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(r.Context(), actorFrom(r.Context()), action, "history", id, nil, audit.OutcomeSuccess)
	if err != nil {
		h.log.Warn().Err(err).Msg("audit record failed")
	}
}
