package audit

import (
	"encoding/json"
	"time"
)

// Outcome of the audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Well-known actions recorded by the service surfaces.
const (
	ActionEnhance         = "enhance"
	ActionQuickEnhance    = "quick_enhance"
	ActionEngineInit      = "engine_initialize"
	ActionEngineRelease   = "engine_release"
	ActionTemplateCreate  = "template_create"
	ActionTemplateUpdate  = "template_update"
	ActionTemplateDelete  = "template_delete"
	ActionHistoryDelete   = "history_delete"
	ActionHistoryClear    = "history_clear"
	ActionHistoryFavorite = "history_favorite"
)

// Event is one append-only audit record. Events are never updated or
// deleted.
type Event struct {
	ID         string          `json:"id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	Outcome    Outcome         `json:"outcome"`
	CreatedAt  time.Time       `json:"created_at"`
}
