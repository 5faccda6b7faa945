// Task 5.10: audit listing endpoint.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/svidal/promptforge/internal/domain/audit"
)

type AuditHandler struct {
	service *audit.Service
}

func NewAuditHandler(service *audit.Service) *AuditHandler {
	return &AuditHandler{service: service}
}

// ListAudit handles GET /api/v1/audit
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)
	events, total, svcErr := h.service.List(r.Context(), r.URL.Query().Get("action"), page.Limit, page.Offset)
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", svcErr))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": events,
		"meta": Meta{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}
