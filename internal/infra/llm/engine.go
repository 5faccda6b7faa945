// Package llm — Engine: single owner of the heavyweight model resource.
//
// The Engine serializes every call that touches the model (Initialize,
// Generate, GenerateTimed, Release) behind one mutex. Concurrent callers
// queue rather than fail — dropping a user's enhancement request to report
// "busy" is worse than making it wait. State reads never block on that
// mutex; observers get a snapshot guarded by a separate RWMutex.
//
// Lifecycle: NotLoaded → Loading → Ready, with Error(reason) reachable from
// any state. Initialize is idempotent and Generate auto-initializes, so a
// cold engine services its first request at the cost of the load time.
// Cancellation is advisory: a caller that stops waiting abandons the result,
// the in-flight runtime call completes on its own.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/infra/eventbus"
)

// loadedFootprintMB is a static estimate of the resident model size.
// Not a live measurement — the runtime does not report one.
const loadedFootprintMB = 1500

// Engine drives a Provider with serialized access and explicit lifecycle.
type Engine struct {
	provider Provider
	store    ModelStore
	bus      eventbus.EventBus
	log      zerolog.Logger

	// mu serializes Initialize/Generate/GenerateTimed/Release.
	// The model resource is not reentrant; callers queue FIFO here.
	mu sync.Mutex

	stateMu  sync.RWMutex
	snapshot StateSnapshot
}

// NewEngine creates an Engine in the NotLoaded state. bus may be nil when no
// observer cares about state transitions (tests).
func NewEngine(provider Provider, store ModelStore, bus eventbus.EventBus, log zerolog.Logger) *Engine {
	return &Engine{
		provider: provider,
		store:    store,
		bus:      bus,
		log:      log,
		snapshot: StateSnapshot{State: StateNotLoaded},
	}
}

// State returns a non-blocking snapshot of the current engine state.
func (e *Engine) State() StateSnapshot {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.snapshot
}

// IsReady reports whether the model is loaded and ready for inference.
func (e *Engine) IsReady() bool {
	return e.State().State == StateReady
}

// MemoryFootprintMB returns the estimated resident size of the model when
// loaded, 0 otherwise.
func (e *Engine) MemoryFootprintMB() int64 {
	if e.IsReady() {
		return loadedFootprintMB
	}
	return 0
}

// ModelInfo exposes the provider's static model metadata.
func (e *Engine) ModelInfo() ModelMeta {
	return e.provider.ModelInfo()
}

// Initialize loads the model. Idempotent: an already-Ready engine returns
// immediately without reloading. Only one load is ever in flight; concurrent
// callers queue behind the mutex and observe the Ready state on entry.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initializeLocked(ctx)
}

// Generate runs a completion, auto-initializing a cold engine first.
// A load failure propagates as the initialize error; an inference failure
// wraps ErrInferenceFailed and leaves the engine Ready (the model is still
// loaded — the next request may succeed).
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generateLocked(ctx, prompt)
}

// GenerateTimed is Generate plus wall-clock measurement and a token estimate.
func (e *Engine) GenerateTimed(ctx context.Context, prompt string) (TimedResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	text, err := e.generateLocked(ctx, prompt)
	if err != nil {
		return TimedResult{}, err
	}

	return TimedResult{
		Text:      text,
		ElapsedMs: time.Since(start).Milliseconds(),
		Tokens:    estimateTokens(text),
	}, nil
}

// Release evicts the model and resets the engine to NotLoaded. Idempotent —
// releasing an unloaded engine is a no-op. The state is reset even when the
// runtime eviction call fails, so a wedged runtime cannot pin the engine in
// Ready; the eviction error is still reported.
func (e *Engine) Release(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State().State == StateNotLoaded {
		return nil
	}

	err := e.provider.Unload(ctx)
	e.setState(StateSnapshot{State: StateNotLoaded})
	e.log.Info().Msg("engine released")

	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

// ===== INTERNAL (MU HELD) =====

func (e *Engine) initializeLocked(ctx context.Context) error {
	if e.State().State == StateReady {
		return nil
	}

	e.setState(StateSnapshot{State: StateLoading})
	e.log.Info().Msg("engine loading model")

	path, err := e.store.EnsureModel(ctx)
	if err != nil {
		e.setState(StateSnapshot{State: StateError, Err: err.Error()})
		return err
	}

	if err := e.provider.Load(ctx, path); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrModelLoadFailed, err)
		e.setState(StateSnapshot{State: StateError, Err: wrapped.Error()})
		return wrapped
	}

	e.setState(StateSnapshot{State: StateReady})
	e.log.Info().Str("model", e.provider.ModelInfo().ID).Msg("engine ready")
	return nil
}

func (e *Engine) generateLocked(ctx context.Context, prompt string) (string, error) {
	if e.State().State != StateReady {
		if err := e.initializeLocked(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
		}
	}

	text, err := e.provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	return text, nil
}

// setState swaps the snapshot and notifies observers.
func (e *Engine) setState(s StateSnapshot) {
	e.stateMu.Lock()
	e.snapshot = s
	e.stateMu.Unlock()

	if e.bus != nil {
		e.bus.Publish(eventbus.TopicEngineState, s)
	}
}
