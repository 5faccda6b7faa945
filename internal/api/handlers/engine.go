// Task 5.7: engine lifecycle endpoints.
// Initialize and release are explicit so callers control when the ~1.5 GB
// model occupies memory, rather than only relying on auto-load.
package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/infra/llm"
)

type EngineHandler struct {
	engine *llm.Engine
	audit  *audit.Service
	log    zerolog.Logger
}

func NewEngineHandler(engine *llm.Engine, auditSvc *audit.Service, log zerolog.Logger) *EngineHandler {
	return &EngineHandler{engine: engine, audit: auditSvc, log: log}
}

// Initialize handles POST /api/v1/engine/initialize
func (h *EngineHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Initialize(r.Context()); err != nil {
		h.recordAudit(r, audit.ActionEngineInit, audit.OutcomeFailure)
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrModelAssetMissing) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "engine initialize failed: "+err.Error())
		return
	}
	h.recordAudit(r, audit.ActionEngineInit, audit.OutcomeSuccess)
	writeJSON(w, http.StatusOK, h.engine.State())
}

// Release handles POST /api/v1/engine/release
func (h *EngineHandler) Release(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Release(r.Context()); err != nil {
		h.recordAudit(r, audit.ActionEngineRelease, audit.OutcomeFailure)
		writeError(w, http.StatusInternalServerError, "engine release failed: "+err.Error())
		return
	}
	h.recordAudit(r, audit.ActionEngineRelease, audit.OutcomeSuccess)
	writeJSON(w, http.StatusOK, h.engine.State())
}

func (h *EngineHandler) recordAudit(r *http.Request, action string, outcome audit.Outcome) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(r.Context(), actorFrom(r.Context()), action, "engine", "", nil, outcome)
	if err != nil {
		h.log.Warn().Err(err).Msg("audit record failed")
	}
}
