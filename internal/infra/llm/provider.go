// Package llm — runtime provider interface.
// Adapters (Ollama today, llama-server later) implement this interface so the
// Engine is never coupled to a specific local runtime.
package llm

import "context"

// Provider is the runtime-agnostic interface for the local model process.
// The Engine is the only caller; it serializes access, so implementations do
// not need to be safe for concurrent Generate calls.
type Provider interface {
	// Load makes the model resident in the runtime. modelPath points at the
	// materialized payload on local storage; implementations that address
	// models by name may import the payload on first load.
	Load(ctx context.Context, modelPath string) error

	// Generate performs a non-streaming completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Unload evicts the model from runtime memory. Idempotent.
	Unload(ctx context.Context) error

	// Health returns nil if the runtime is reachable and operational.
	Health(ctx context.Context) error

	// ModelInfo returns static metadata about the runtime/model.
	ModelInfo() ModelMeta
}

// ModelMeta describes the model / runtime identity.
type ModelMeta struct {
	ID        string // e.g. "gemma3:1b"
	Runtime   string // e.g. "ollama"
	MaxTokens int    // maximum context window size
}
