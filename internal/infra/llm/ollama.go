// Package llm — Ollama HTTP runtime adapter.
// OllamaProvider drives a local Ollama instance using stdlib net/http.
// Endpoints used:
//   - GET  /api/tags     — health check + model presence
//   - POST /api/create   — import the bundled GGUF payload on first load
//   - POST /api/generate — non-streaming completion; also used with an empty
//     prompt to pin the model in memory (keep_alive) and to evict it
//     (keep_alive=0), which is Ollama's documented load/unload idiom.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	// keepAliveResident pins the model in runtime memory until evicted.
	keepAliveResident = -1
)

// OllamaProvider implements Provider against a running Ollama instance.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider. The client timeout is generous:
// a cold generate on a small local model can take tens of seconds.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// ===== INTERNAL OLLAMA JSON TYPES =====

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaCreateRequest struct {
	Name      string `json:"name"`
	Modelfile string `json:"modelfile"`
	Stream    bool   `json:"stream"`
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	// KeepAlive is a pointer: 0 ("evict now") must survive encoding, so
	// omitempty can only apply to the unset case.
	KeepAlive *int           `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// ===== PROVIDER IMPLEMENTATION =====

// Load makes the model resident. If the model is not known to the runtime yet,
// the payload at modelPath is imported first via /api/create, then an empty
// warm-up generate pins it in memory.
func (p *OllamaProvider) Load(ctx context.Context, modelPath string) error {
	present, err := p.modelPresent(ctx)
	if err != nil {
		return fmt.Errorf("ollama load: %w", err)
	}

	if !present {
		if createErr := p.createModel(ctx, modelPath); createErr != nil {
			return fmt.Errorf("ollama load: %w", createErr)
		}
	}

	// Warm-up: empty prompt with keep_alive makes Ollama load the weights
	// into memory without generating anything.
	resident := keepAliveResident
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:     p.model,
		Prompt:    "",
		Stream:    false,
		KeepAlive: &resident,
	})
	if err != nil {
		return err
	}
	respBody, postErr := p.doPost(ctx, "/api/generate", body)
	if postErr != nil {
		return fmt.Errorf("ollama load: warm-up: %w", postErr)
	}
	respBody.Close() //nolint:errcheck
	return nil
}

// Generate performs a non-streaming completion via POST /api/generate.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	respBody, postErr := p.doPost(ctx, "/api/generate", body)
	if postErr != nil {
		return "", postErr
	}
	defer respBody.Close()

	var resp ollamaGenerateResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return "", fmt.Errorf("decode generate response: %w", decodeErr)
	}
	return resp.Response, nil
}

// Unload evicts the model from runtime memory (keep_alive=0). A runtime that
// never loaded the model returns success — the call is idempotent.
func (p *OllamaProvider) Unload(ctx context.Context) error {
	evict := 0
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:     p.model,
		Prompt:    "",
		Stream:    false,
		KeepAlive: &evict,
	})
	if err != nil {
		return err
	}
	respBody, err := p.doPost(ctx, "/api/generate", body)
	if err != nil {
		return fmt.Errorf("ollama unload: %w", err)
	}
	respBody.Close() //nolint:errcheck
	return nil
}

// Health calls GET /api/tags — returns nil if Ollama is reachable.
func (p *OllamaProvider) Health(ctx context.Context) error {
	url := p.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ModelInfo returns static metadata for this runtime/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.model,
		Runtime:   "ollama",
		MaxTokens: 8192,
	}
}

// ===== HELPERS =====

// modelPresent checks /api/tags for the configured model name.
func (p *OllamaProvider) modelPresent(ctx context.Context) (bool, error) {
	url := p.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("list models: status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&tags); decodeErr != nil {
		return false, fmt.Errorf("decode tags response: %w", decodeErr)
	}
	for _, m := range tags.Models {
		if m.Name == p.model {
			return true, nil
		}
	}
	return false, nil
}

// createModel imports the materialized payload into the runtime under the
// configured model name.
func (p *OllamaProvider) createModel(ctx context.Context, modelPath string) error {
	body, err := json.Marshal(ollamaCreateRequest{
		Name:      p.model,
		Modelfile: "FROM " + modelPath,
		Stream:    false,
	})
	if err != nil {
		return err
	}
	respBody, postErr := p.doPost(ctx, "/api/create", body)
	if postErr != nil {
		return fmt.Errorf("create model: %w", postErr)
	}
	respBody.Close() //nolint:errcheck
	return nil
}

// doPost sends a POST request to baseURL+path and returns the response body.
// Caller is responsible for closing the returned ReadCloser.
func (p *OllamaProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("ollama post %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}
