// Task 5.6: status endpoints.
// GET /status returns a point-in-time snapshot; GET /status/stream pushes
// engine state transitions over SSE so UI surfaces can reflect
// loading/ready/error without polling.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/internal/infra/eventbus"
	"github.com/svidal/promptforge/internal/infra/llm"
	"github.com/svidal/promptforge/internal/version"
)

type StatusHandler struct {
	engine       *llm.Engine
	orchestrator *enhance.Orchestrator
	bus          eventbus.EventBus
}

func NewStatusHandler(engine *llm.Engine, orchestrator *enhance.Orchestrator, bus eventbus.EventBus) *StatusHandler {
	return &StatusHandler{engine: engine, orchestrator: orchestrator, bus: bus}
}

type StatusResponse struct {
	Version           string            `json:"version"`
	Service           enhance.Snapshot  `json:"service"`
	Engine            llm.StateSnapshot `json:"engine"`
	Model             llm.ModelMeta     `json:"model"`
	MemoryFootprintMB int64             `json:"memory_footprint_mb"`
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Version:           version.Version,
		Service:           h.orchestrator.State(),
		Engine:            h.engine.State(),
		Model:             h.engine.ModelInfo(),
		MemoryFootprintMB: h.engine.MemoryFootprintMB(),
	})
}

// Stream handles GET /api/v1/status/stream (server-sent events).
// Sends the current engine state immediately, then one event per
// transition until the client disconnects.
func (h *StatusHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.bus.Subscribe(eventbus.TopicEngineState)
	defer h.bus.Unsubscribe(eventbus.TopicEngineState, events)

	writeSSE(w, "engine_state", h.engine.State())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-events:
			writeSSE(w, "engine_state", evt.Payload)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data) //nolint:errcheck
}
