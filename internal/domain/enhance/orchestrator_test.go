package enhance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/infra/llm"
)

// echoBackend is a fake InferenceBackend returning a fixed response.
type echoBackend struct {
	response string
	err      error
	initErr  error

	lastPrompt string
}

func (b *echoBackend) Initialize(ctx context.Context) error { return b.initErr }

func (b *echoBackend) GenerateTimed(ctx context.Context, prompt string) (llm.TimedResult, error) {
	b.lastPrompt = prompt
	if b.err != nil {
		return llm.TimedResult{}, b.err
	}
	return llm.TimedResult{Text: b.response, ElapsedMs: 120, Tokens: 30}, nil
}

func (b *echoBackend) IsReady() bool { return b.initErr == nil }

// mapLookup is a fake TemplateLookup over a fixed map.
type mapLookup struct {
	templates map[string]*Template
	err       error
}

func (m *mapLookup) GetTemplate(ctx context.Context, id string) (*Template, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.templates[id], nil
}

func newTestOrchestrator(b InferenceBackend, tl TemplateLookup) *Orchestrator {
	return NewOrchestrator(b, tl, zerolog.Nop())
}

func TestOrchestrator_Enhance_EmptyPrompt(t *testing.T) {
	t.Parallel()

	backend := &echoBackend{response: "x"}
	o := newTestOrchestrator(backend, nil)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		_, err := o.Enhance(context.Background(), Request{OriginalPrompt: prompt})
		if !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("Enhance(%q) error = %v; want ErrEmptyPrompt", prompt, err)
		}
	}
	// Validation rejects before the backend is touched.
	if backend.lastPrompt != "" {
		t.Error("backend invoked for an empty prompt")
	}
}

func TestOrchestrator_Enhance_EndToEnd(t *testing.T) {
	t.Parallel()

	const echo = "BLOG POST: dogs are great. You must include examples."
	o := newTestOrchestrator(&echoBackend{response: echo}, nil)

	res, err := o.Enhance(context.Background(), Request{
		OriginalPrompt: "write a blog post about dogs",
		Target:         TargetGeneric,
		Level:          LevelBalanced,
	})
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}

	if res.EnhancedPrompt != echo {
		t.Errorf("EnhancedPrompt = %q; want backend echo unchanged", res.EnhancedPrompt)
	}
	if !containsTag(res.Improvements, tagConstraints) {
		t.Errorf("Improvements = %v; want %q", res.Improvements, tagConstraints)
	}
	if !containsTag(res.Improvements, tagExamples) {
		t.Errorf("Improvements = %v; want %q", res.Improvements, tagExamples)
	}
	if res.InferenceMs != 120 || res.Tokens != 30 {
		t.Errorf("timing = (%d ms, %d tokens); want (120, 30)", res.InferenceMs, res.Tokens)
	}
	if res.ID == "" {
		t.Error("result ID is empty")
	}
	if res.CreatedAt.IsZero() {
		t.Error("result CreatedAt is zero")
	}
	if got := o.State().State; got != StateReady {
		t.Errorf("state after success = %q; want %q", got, StateReady)
	}
}

func TestOrchestrator_Enhance_CleansRawOutput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&echoBackend{response: `Enhanced prompt: "Do X."`}, nil)

	res, err := o.Enhance(context.Background(), Request{OriginalPrompt: "do something"})
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	if res.EnhancedPrompt != "Do X." {
		t.Errorf("EnhancedPrompt = %q; want %q", res.EnhancedPrompt, "Do X.")
	}
}

func TestOrchestrator_Enhance_ResolvesTemplate(t *testing.T) {
	t.Parallel()

	lookup := &mapLookup{templates: map[string]*Template{
		"tpl-1": {ID: "tpl-1", Name: "Code Review", BasePrompt: "Review the code below."},
	}}
	backend := &echoBackend{response: "out"}
	o := newTestOrchestrator(backend, lookup)

	if _, err := o.Enhance(context.Background(), Request{
		OriginalPrompt: "check my function",
		TemplateID:     "tpl-1",
	}); err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	if !strings.Contains(backend.lastPrompt, "TEMPLATE: Code Review") {
		t.Error("resolved template missing from composed prompt")
	}
}

func TestOrchestrator_Enhance_UnresolvableTemplateIsNoTemplate(t *testing.T) {
	t.Parallel()

	backend := &echoBackend{response: "out"}
	o := newTestOrchestrator(backend, &mapLookup{}) // empty store

	res, err := o.Enhance(context.Background(), Request{
		OriginalPrompt: "check my function",
		TemplateID:     "missing",
	})
	if err != nil {
		t.Fatalf("Enhance() error = %v; want unresolvable template to degrade, not fail", err)
	}
	if strings.Contains(backend.lastPrompt, "TEMPLATE:") {
		t.Error("prompt contains a template section for an unresolvable id")
	}
	if res.TemplateID != "" {
		t.Errorf("TemplateID = %q; want empty when the id did not resolve", res.TemplateID)
	}
}

func TestOrchestrator_Enhance_TemplateLookupFailureDegrades(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&echoBackend{response: "out"}, &mapLookup{err: errors.New("db closed")})

	if _, err := o.Enhance(context.Background(), Request{
		OriginalPrompt: "check my function",
		TemplateID:     "tpl-1",
	}); err != nil {
		t.Errorf("Enhance() error = %v; want lookup failure to degrade to no template", err)
	}
}

func TestOrchestrator_Enhance_LoadFailureIsBackendNotReady(t *testing.T) {
	t.Parallel()

	backend := &echoBackend{err: llm.ErrModelNotLoaded}
	o := newTestOrchestrator(backend, nil)

	_, err := o.Enhance(context.Background(), Request{OriginalPrompt: "x"})
	if !errors.Is(err, ErrBackendNotReady) {
		t.Fatalf("Enhance() error = %v; want ErrBackendNotReady", err)
	}
	if got := o.State().State; got != StateError {
		t.Errorf("state after backend failure = %q; want %q", got, StateError)
	}
}

func TestOrchestrator_Enhance_InferenceFailurePropagates(t *testing.T) {
	t.Parallel()

	cause := errors.New("oom")
	backend := &echoBackend{err: errors.Join(llm.ErrInferenceFailed, cause)}
	o := newTestOrchestrator(backend, nil)

	_, err := o.Enhance(context.Background(), Request{OriginalPrompt: "x"})
	if !errors.Is(err, llm.ErrInferenceFailed) {
		t.Fatalf("Enhance() error = %v; want ErrInferenceFailed", err)
	}

	snap := o.State()
	if snap.State != StateError || snap.Err == "" {
		t.Errorf("state = %+v; want error state with a reason", snap)
	}

	// A retry after the failure succeeds and clears the error state.
	backend.err = nil
	backend.response = "recovered"
	if _, err := o.Enhance(context.Background(), Request{OriginalPrompt: "x"}); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if got := o.State().State; got != StateReady {
		t.Errorf("state after retry = %q; want %q", got, StateReady)
	}
}

func TestOrchestrator_Start(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&echoBackend{}, nil)
	if got := o.State().State; got != StateStarting {
		t.Errorf("initial state = %q; want %q", got, StateStarting)
	}

	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := o.State().State; got != StateReady {
		t.Errorf("state after Start = %q; want %q", got, StateReady)
	}
}

func TestOrchestrator_Start_BackendFailure(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&echoBackend{initErr: llm.ErrModelAssetMissing}, nil)

	err := o.Start(context.Background())
	if !errors.Is(err, ErrBackendNotReady) {
		t.Fatalf("Start() error = %v; want ErrBackendNotReady", err)
	}
	if got := o.State().State; got != StateError {
		t.Errorf("state = %q; want %q", got, StateError)
	}
}

func TestOrchestrator_QuickEnhance(t *testing.T) {
	t.Parallel()

	backend := &echoBackend{response: "better prompt"}
	o := newTestOrchestrator(backend, nil)

	got, err := o.QuickEnhance(context.Background(), "rough prompt")
	if err != nil {
		t.Fatalf("QuickEnhance() error = %v", err)
	}
	if got != "better prompt" {
		t.Errorf("QuickEnhance() = %q; want %q", got, "better prompt")
	}
	// Defaults applied: generic target, balanced level.
	if !strings.Contains(backend.lastPrompt, "TARGET: Generic") {
		t.Error("quick enhance did not default to the generic target")
	}
	if !strings.Contains(backend.lastPrompt, LevelBalanced.Instructions()) {
		t.Error("quick enhance did not default to the balanced level")
	}
}

// countingProvider drives a real engine under the orchestrator to assert the
// whole pipeline serializes inference.
type countingProvider struct {
	inFlight    int32
	maxInFlight int32
}

func (p *countingProvider) Load(ctx context.Context, modelPath string) error { return nil }

func (p *countingProvider) Generate(ctx context.Context, prompt string) (string, error) {
	cur := atomic.AddInt32(&p.inFlight, 1)
	for {
		max := atomic.LoadInt32(&p.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&p.maxInFlight, max, cur) {
			break
		}
	}
	atomic.AddInt32(&p.inFlight, -1)
	return "output", nil
}

func (p *countingProvider) Unload(ctx context.Context) error { return nil }
func (p *countingProvider) Health(ctx context.Context) error { return nil }
func (p *countingProvider) ModelInfo() llm.ModelMeta {
	return llm.ModelMeta{ID: "fake", Runtime: "fake"}
}

type staticStore struct{}

func (staticStore) EnsureModel(ctx context.Context) (string, error) { return "/tmp/m.gguf", nil }

func TestOrchestrator_ConcurrentEnhance_SerializedInference(t *testing.T) {
	t.Parallel()

	const n = 12
	provider := &countingProvider{}
	engine := llm.NewEngine(provider, staticStore{}, nil, zerolog.Nop())
	o := newTestOrchestrator(engine, nil)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Enhance(context.Background(), Request{OriginalPrompt: "p"}); err != nil {
				t.Errorf("Enhance() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if max := atomic.LoadInt32(&provider.maxInFlight); max > 1 {
		t.Errorf("max in-flight inference calls = %d; want 1", max)
	}
	if got := o.State().State; got != StateReady {
		t.Errorf("state after all requests = %q; want %q", got, StateReady)
	}
}
