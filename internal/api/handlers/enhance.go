// Task 5.5: enhancement endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/internal/domain/history"
	"github.com/svidal/promptforge/internal/domain/template"
	"github.com/svidal/promptforge/internal/infra/llm"
)

type EnhanceHandler struct {
	orchestrator *enhance.Orchestrator
	history      *history.Service
	templates    *template.Service
	audit        *audit.Service
	log          zerolog.Logger
}

func NewEnhanceHandler(orchestrator *enhance.Orchestrator, historySvc *history.Service, templateSvc *template.Service, auditSvc *audit.Service, log zerolog.Logger) *EnhanceHandler {
	return &EnhanceHandler{
		orchestrator: orchestrator,
		history:      historySvc,
		templates:    templateSvc,
		audit:        auditSvc,
		log:          log,
	}
}

type EnhanceRequest struct {
	OriginalPrompt    string `json:"original_prompt"`
	Target            string `json:"target,omitempty"`
	Level             string `json:"level,omitempty"`
	TemplateID        string `json:"template_id,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
	SourceApp         string `json:"source_app,omitempty"`
	// SkipHistory opts the request out of persistence (keyboard overlay
	// sends ephemeral requests).
	SkipHistory bool `json:"skip_history,omitempty"`
}

type QuickEnhanceRequest struct {
	Prompt string `json:"prompt"`
}

type QuickEnhanceResponse struct {
	EnhancedPrompt string `json:"enhanced_prompt"`
}

// Enhance handles POST /api/v1/enhance
func (h *EnhanceHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EnhanceRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.orchestrator.Enhance(ctx, enhance.Request{
		OriginalPrompt:    req.OriginalPrompt,
		Target:            enhance.ParseTarget(req.Target),
		Level:             enhance.ParseLevel(req.Level),
		TemplateID:        req.TemplateID,
		AdditionalContext: req.AdditionalContext,
		SourceApp:         req.SourceApp,
	})
	if err != nil {
		h.recordAudit(r, audit.ActionEnhance, "", audit.OutcomeFailure)
		writeEnhanceError(w, err)
		return
	}

	entry := &history.Entry{Result: res}
	if !req.SkipHistory {
		saved, saveErr := h.history.Save(ctx, res)
		if saveErr != nil {
			// The enhancement succeeded; losing the history row should not
			// fail the request.
			h.log.Warn().Err(saveErr).Str("id", res.ID).Msg("history save failed")
		} else {
			entry = saved
		}
	}
	// res.TemplateID is cleared by the orchestrator when the id did not
	// resolve, so only applied templates count.
	if res.TemplateID != "" {
		if usageErr := h.templates.IncrementUsage(ctx, res.TemplateID); usageErr != nil {
			h.log.Warn().Err(usageErr).Str("template_id", res.TemplateID).Msg("usage count failed")
		}
	}
	h.recordAudit(r, audit.ActionEnhance, res.ID, audit.OutcomeSuccess)

	writeJSON(w, http.StatusOK, entry)
}

// QuickEnhance handles POST /api/v1/enhance/quick
func (h *EnhanceHandler) QuickEnhance(w http.ResponseWriter, r *http.Request) {
	var req QuickEnhanceRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	enhanced, err := h.orchestrator.QuickEnhance(r.Context(), req.Prompt)
	if err != nil {
		h.recordAudit(r, audit.ActionQuickEnhance, "", audit.OutcomeFailure)
		writeEnhanceError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionQuickEnhance, "", audit.OutcomeSuccess)

	writeJSON(w, http.StatusOK, QuickEnhanceResponse{EnhancedPrompt: enhanced})
}

func (h *EnhanceHandler) recordAudit(r *http.Request, action, entityID string, outcome audit.Outcome) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(r.Context(), actorFrom(r.Context()), action, "enhancement", entityID, nil, outcome)
	if err != nil {
		h.log.Warn().Err(err).Msg("audit record failed")
	}
}

// writeEnhanceError maps enhancement failures to HTTP statuses.
func writeEnhanceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enhance.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "original prompt must not be empty")
	case errors.Is(err, enhance.ErrBackendNotReady):
		writeError(w, http.StatusServiceUnavailable, "inference backend not ready: "+err.Error())
	case errors.Is(err, llm.ErrInferenceFailed):
		writeError(w, http.StatusBadGateway, "inference failed: "+err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
