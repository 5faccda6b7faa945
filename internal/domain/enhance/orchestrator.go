// Task 3.4: enhancement orchestrator.
// The façade that sequences composer → inference backend → post-processor.
// One instance per running service; all UI-facing surfaces call Enhance or
// QuickEnhance and observe the orchestrator state as an immutable snapshot.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/infra/llm"
	"github.com/svidal/promptforge/pkg/uuid"
)

// State is the orchestrator lifecycle state visible to observers.
type State string

const (
	StateStarting   State = "starting"
	StateReady      State = "ready"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// Snapshot is an immutable view of the orchestrator state. Err is set only
// when State is StateError.
type Snapshot struct {
	State State  `json:"state"`
	Err   string `json:"error,omitempty"`
}

// InferenceBackend is the slice of the engine the orchestrator drives.
type InferenceBackend interface {
	Initialize(ctx context.Context) error
	GenerateTimed(ctx context.Context, prompt string) (llm.TimedResult, error)
	IsReady() bool
}

// TemplateLookup resolves a template id to a template. A nil template with a
// nil error means "not found".
type TemplateLookup interface {
	GetTemplate(ctx context.Context, id string) (*Template, error)
}

// Orchestrator coordinates the enhancement flow.
type Orchestrator struct {
	backend   InferenceBackend
	templates TemplateLookup
	log       zerolog.Logger

	mu       sync.RWMutex
	state    State
	errMsg   string
	inFlight int
}

// NewOrchestrator creates an Orchestrator in the Starting state. templates
// may be nil when no template store is wired; requests carrying a template
// id then run without one.
func NewOrchestrator(backend InferenceBackend, templates TemplateLookup, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		backend:   backend,
		templates: templates,
		log:       log.With().Str("component", "orchestrator").Logger(),
		state:     StateStarting,
	}
}

// Start warms up the backend and moves the orchestrator to Ready, or to
// Error when the backend cannot load. A failed Start does not poison the
// instance: a later Enhance retries initialization through the backend.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.backend.Initialize(ctx); err != nil {
		o.setError(err)
		return fmt.Errorf("%w: %v", ErrBackendNotReady, err)
	}
	o.setState(StateReady)
	return nil
}

// State returns the current lifecycle snapshot.
func (o *Orchestrator) State() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Snapshot{State: o.state, Err: o.errMsg}
}

// Enhance runs one enhancement request end to end.
//
// An unresolvable template id is treated as "no template", not a failure;
// the returned Result then carries no template id.
// Backend failures surface as ErrBackendNotReady (load problems) or the
// engine's inference error; no retries happen here — callers re-invoke.
func (o *Orchestrator) Enhance(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.OriginalPrompt) == "" {
		return Result{}, ErrEmptyPrompt
	}
	req = req.Normalize()

	tmpl := o.resolveTemplate(ctx, req.TemplateID)
	if tmpl == nil {
		// The result must only reference a template that was actually
		// applied — callers persist the reference, and a dangling id would
		// break the history foreign key.
		req.TemplateID = ""
	}
	fullPrompt := Compose(req, tmpl)

	o.beginProcessing()
	timed, err := o.backend.GenerateTimed(ctx, fullPrompt)
	if err != nil {
		o.endProcessing(err)
		return Result{}, o.mapBackendError(err)
	}
	o.endProcessing(nil)

	enhanced := Clean(timed.Text, req.Target)
	improvements := AnalyzeImprovements(req.OriginalPrompt, enhanced)

	res := Result{
		ID:             uuid.NewV7().String(),
		OriginalPrompt: req.OriginalPrompt,
		EnhancedPrompt: enhanced,
		Target:         req.Target,
		Level:          req.Level,
		TemplateID:     req.TemplateID,
		InferenceMs:    timed.ElapsedMs,
		Tokens:         timed.Tokens,
		Improvements:   improvements,
		SourceApp:      req.SourceApp,
		CreatedAt:      time.Now().UTC(),
	}

	o.log.Debug().
		Str("target", string(req.Target)).
		Str("level", string(req.Level)).
		Int64("inference_ms", res.InferenceMs).
		Int("tokens", res.Tokens).
		Msg("enhancement completed")

	return res, nil
}

// QuickEnhance enhances text with the default target and level and returns
// only the enhanced prompt.
func (o *Orchestrator) QuickEnhance(ctx context.Context, promptText string) (string, error) {
	res, err := o.Enhance(ctx, Request{OriginalPrompt: promptText})
	if err != nil {
		return "", err
	}
	return res.EnhancedPrompt, nil
}

// ===== INTERNALS =====

func (o *Orchestrator) resolveTemplate(ctx context.Context, id string) *Template {
	if id == "" || o.templates == nil {
		return nil
	}
	tmpl, err := o.templates.GetTemplate(ctx, id)
	if err != nil {
		// Degrade to no template rather than failing the request.
		o.log.Warn().Err(err).Str("template_id", id).Msg("template lookup failed")
		return nil
	}
	return tmpl
}

func (o *Orchestrator) mapBackendError(err error) error {
	if errors.Is(err, llm.ErrModelNotLoaded) ||
		errors.Is(err, llm.ErrModelAssetMissing) ||
		errors.Is(err, llm.ErrModelLoadFailed) {
		return fmt.Errorf("%w: %v", ErrBackendNotReady, err)
	}
	return err
}

// beginProcessing moves to Processing; nested calls share the state via a
// counter so concurrent requests do not flap it.
func (o *Orchestrator) beginProcessing() {
	o.mu.Lock()
	o.inFlight++
	o.state = StateProcessing
	o.errMsg = ""
	o.mu.Unlock()
}

func (o *Orchestrator) endProcessing(err error) {
	o.mu.Lock()
	o.inFlight--
	if err != nil {
		o.state = StateError
		o.errMsg = err.Error()
	} else if o.inFlight == 0 {
		o.state = StateReady
		o.errMsg = ""
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.errMsg = ""
	o.mu.Unlock()
}

func (o *Orchestrator) setError(err error) {
	o.mu.Lock()
	o.state = StateError
	o.errMsg = err.Error()
	o.mu.Unlock()
}
