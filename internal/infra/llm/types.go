// Package llm owns the local language-model backend: the runtime provider
// abstraction, the model payload store, and the Engine that serializes all
// access to the loaded model. All types shared between them live here.
package llm

import "errors"

// EngineState is the lifecycle state of the model resource.
type EngineState string

const (
	StateNotLoaded EngineState = "not_loaded"
	StateLoading   EngineState = "loading"
	StateReady     EngineState = "ready"
	StateError     EngineState = "error"
)

// StateSnapshot is an immutable view of the engine state handed to observers.
type StateSnapshot struct {
	State EngineState `json:"state"`
	// Err carries the failure reason when State == StateError, empty otherwise.
	Err string `json:"error,omitempty"`
}

// Typed failures surfaced by the Engine. Callers match with errors.Is.
var (
	// ErrModelNotLoaded means generation was attempted and the implicit
	// initialize could not bring the model up.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrModelAssetMissing means the bundled model payload could not be found.
	ErrModelAssetMissing = errors.New("model asset missing")

	// ErrModelLoadFailed wraps a runtime failure while loading the model
	// (corrupt payload, insufficient memory, runtime unreachable).
	ErrModelLoadFailed = errors.New("model load failed")

	// ErrInferenceFailed wraps any failure from the underlying model call.
	ErrInferenceFailed = errors.New("inference failed")
)

// TimedResult is the outcome of a single timed inference call.
// Token count is an approximation: 1 token ≈ 4 characters of output, floor 1.
type TimedResult struct {
	Text      string
	ElapsedMs int64
	Tokens    int
}

// TokensPerSecond derives throughput from the measured elapsed time.
// Returns 0 when the elapsed time is zero (sub-millisecond or failed clock).
func (r TimedResult) TokensPerSecond() float64 {
	if r.ElapsedMs <= 0 {
		return 0
	}
	return float64(r.Tokens) * 1000 / float64(r.ElapsedMs)
}

// estimateTokens approximates the generated token count from output length.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
