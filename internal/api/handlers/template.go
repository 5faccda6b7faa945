// Task 5.8: template endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/domain/template"
)

type TemplateHandler struct {
	service *template.Service
	audit   *audit.Service
	log     zerolog.Logger
}

func NewTemplateHandler(service *template.Service, auditSvc *audit.Service, log zerolog.Logger) *TemplateHandler {
	return &TemplateHandler{service: service, audit: auditSvc, log: log}
}

type TemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	BasePrompt  string `json:"base_prompt"`
}

// CreateTemplate handles POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.BasePrompt == "" {
		writeError(w, http.StatusBadRequest, "name and base_prompt are required")
		return
	}

	out, svcErr := h.service.Create(r.Context(), template.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		BasePrompt:  req.BasePrompt,
	})
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create template: %v", svcErr))
		return
	}
	h.recordAudit(r, audit.ActionTemplateCreate, out.ID)
	writeJSON(w, http.StatusCreated, out)
}

// GetTemplate handles GET /api/v1/templates/{id}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, svcErr := h.service.Get(r.Context(), id)
	if errors.Is(svcErr, template.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get template: %v", svcErr))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTemplates handles GET /api/v1/templates
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)
	items, total, svcErr := h.service.List(r.Context(), template.ListInput{
		Category: r.URL.Query().Get("category"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list templates: %v", svcErr))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": Meta{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}

// UpdateTemplate handles PUT /api/v1/templates/{id}
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req TemplateRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, svcErr := h.service.Update(r.Context(), id, template.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		BasePrompt:  req.BasePrompt,
	})
	if errors.Is(svcErr, template.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if errors.Is(svcErr, template.ErrBuiltIn) {
		writeError(w, http.StatusForbidden, "built-in templates cannot be modified")
		return
	}
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to update template: %v", svcErr))
		return
	}
	h.recordAudit(r, audit.ActionTemplateUpdate, id)
	writeJSON(w, http.StatusOK, out)
}

// DeleteTemplate handles DELETE /api/v1/templates/{id}
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	svcErr := h.service.Delete(r.Context(), id)
	if errors.Is(svcErr, template.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if errors.Is(svcErr, template.ErrBuiltIn) {
		writeError(w, http.StatusForbidden, "built-in templates cannot be deleted")
		return
	}
	if svcErr != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete template: %v", svcErr))
		return
	}
	h.recordAudit(r, audit.ActionTemplateDelete, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) recordAudit(r *http.Request, action, id string) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(r.Context(), actorFrom(r.Context()), action, "template", id, nil, audit.OutcomeSuccess)
	if err != nil {
		h.log.Warn().Err(err).Msg("audit record failed")
	}
}
