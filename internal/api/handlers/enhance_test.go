package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/internal/domain/history"
	"github.com/svidal/promptforge/internal/domain/template"
	"github.com/svidal/promptforge/internal/infra/llm"
	"github.com/svidal/promptforge/internal/infra/sqlite"
)

// ===== HELPERS =====

func mustOpenDBWithMigrations(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB error = %v", err)
	}
	// IMPORTANT: :memory: databases are per-connection in SQLite.
	// Force a single connection so migrations and subsequent queries
	// always run against the same in-memory DB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { db.Close() })

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp error = %v", err)
	}

	return db
}

// echoBackend returns the composed prompt (or a fixed response) without a
// real runtime behind it.
type echoBackend struct {
	response string
	genErr   error
	initErr  error
}

func (b *echoBackend) Initialize(ctx context.Context) error { return b.initErr }

func (b *echoBackend) GenerateTimed(ctx context.Context, prompt string) (llm.TimedResult, error) {
	if b.genErr != nil {
		return llm.TimedResult{}, b.genErr
	}
	text := b.response
	if text == "" {
		text = prompt
	}
	return llm.TimedResult{Text: text, ElapsedMs: 40, Tokens: 12}, nil
}

func (b *echoBackend) IsReady() bool { return b.initErr == nil }

type enhanceEnv struct {
	handler   *EnhanceHandler
	history   *history.Service
	templates *template.Service
}

func newEnhanceEnv(t *testing.T, backend enhance.InferenceBackend) enhanceEnv {
	t.Helper()
	db := mustOpenDBWithMigrations(t)
	templateSvc := template.NewService(db)
	historySvc := history.NewService(db, nil)
	orch := enhance.NewOrchestrator(backend, templateSvc, zerolog.Nop())
	return enhanceEnv{
		handler:   NewEnhanceHandler(orch, historySvc, templateSvc, audit.NewService(db), zerolog.Nop()),
		history:   historySvc,
		templates: templateSvc,
	}
}

func postJSON(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// ===== TESTS: ENHANCE =====

func TestEnhanceHandler_Enhance_Success_PersistsHistory(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{response: `Enhanced prompt: "Write a detailed blog post about dogs."`})

	req := postJSON("/api/v1/enhance", `{"original_prompt":"write about dogs","target":"claude","source_app":"mobile"}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var entry history.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected a generated id")
	}
	if entry.EnhancedPrompt != "Write a detailed blog post about dogs." {
		t.Errorf("expected cleaned output, got %q", entry.EnhancedPrompt)
	}
	if entry.OriginalPrompt != "write about dogs" {
		t.Errorf("original prompt not preserved: %q", entry.OriginalPrompt)
	}
	if entry.SourceApp != "mobile" {
		t.Errorf("expected source_app mobile, got %q", entry.SourceApp)
	}

	_, total, err := env.history.List(context.Background(), history.ListInput{})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 history row, got %d", total)
	}
}

func TestEnhanceHandler_Enhance_SkipHistory_DoesNotPersist(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{response: "Fixed."})

	req := postJSON("/api/v1/enhance", `{"original_prompt":"fix this","skip_history":true}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	_, total, err := env.history.List(context.Background(), history.ListInput{})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if total != 0 {
		t.Errorf("expected no history rows, got %d", total)
	}
}

func TestEnhanceHandler_Enhance_EmptyPrompt_Returns400(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{})

	req := postJSON("/api/v1/enhance", `{"original_prompt":"   "}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEnhanceHandler_Enhance_InvalidBody_Returns400(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{})

	req := postJSON("/api/v1/enhance", `{not json`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEnhanceHandler_Enhance_BackendNotReady_Returns503(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{
		genErr: fmt.Errorf("load model: %w", llm.ErrModelNotLoaded),
	})

	req := postJSON("/api/v1/enhance", `{"original_prompt":"hello"}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestEnhanceHandler_Enhance_InferenceFailed_Returns502(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{
		genErr: fmt.Errorf("%w: runtime connection reset", llm.ErrInferenceFailed),
	})

	req := postJSON("/api/v1/enhance", `{"original_prompt":"hello"}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (%s)", rr.Code, rr.Body.String())
	}
}

func TestEnhanceHandler_Enhance_WithTemplate_IncrementsUsage(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{response: "Reviewed."})

	tmpl, err := env.templates.Create(context.Background(), template.CreateInput{
		Name:       "Code Review",
		BasePrompt: "Review the following code for correctness.",
	})
	if err != nil {
		t.Fatalf("Create template error = %v", err)
	}

	body := fmt.Sprintf(`{"original_prompt":"review this","template_id":%q}`, tmpl.ID)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, postJSON("/api/v1/enhance", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	got, err := env.templates.Get(context.Background(), tmpl.ID)
	if err != nil {
		t.Fatalf("Get template error = %v", err)
	}
	if got.UsageCount != 1 {
		t.Errorf("expected usage_count 1, got %d", got.UsageCount)
	}
}

func TestEnhanceHandler_Enhance_UnresolvableTemplate_StillPersistsHistory(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{response: "Rewritten."})

	// history.template_id is a foreign key; a dangling id must never reach
	// the insert.
	req := postJSON("/api/v1/enhance", `{"original_prompt":"review this","template_id":"does-not-exist"}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var entry history.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if entry.TemplateID != "" {
		t.Errorf("expected no template reference, got %q", entry.TemplateID)
	}

	items, total, err := env.history.List(context.Background(), history.ListInput{})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if total != 1 {
		t.Fatalf("expected the history row to be persisted, got %d rows", total)
	}
	if items[0].TemplateID != "" {
		t.Errorf("persisted row references unresolved template: %q", items[0].TemplateID)
	}
}

// ===== TESTS: QUICK ENHANCE =====

func TestEnhanceHandler_QuickEnhance_Success(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{response: `"Summarize the document in three bullet points."`})

	req := postJSON("/api/v1/enhance/quick", `{"prompt":"summarize doc"}`)
	rr := httptest.NewRecorder()
	env.handler.QuickEnhance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var resp QuickEnhanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.EnhancedPrompt != "Summarize the document in three bullet points." {
		t.Errorf("unexpected enhanced prompt: %q", resp.EnhancedPrompt)
	}

	_, total, err := env.history.List(context.Background(), history.ListInput{})
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if total != 0 {
		t.Errorf("quick enhance must not persist history, got %d rows", total)
	}
}

func TestEnhanceHandler_QuickEnhance_EmptyPrompt_Returns400(t *testing.T) {
	t.Parallel()

	env := newEnhanceEnv(t, &echoBackend{})

	rr := httptest.NewRecorder()
	env.handler.QuickEnhance(rr, postJSON("/api/v1/enhance/quick", `{"prompt":""}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEnhanceHandler_Enhance_ComposedPromptReachesBackend(t *testing.T) {
	t.Parallel()

	backend := &echoBackend{}
	env := newEnhanceEnv(t, backend)

	req := postJSON("/api/v1/enhance", `{"original_prompt":"name some fruits","target":"gpt","level":"maximum"}`)
	rr := httptest.NewRecorder()
	env.handler.Enhance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var entry history.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	// The echo backend returns the composed prompt, so the stored output
	// must carry the original text and the closing instruction.
	if !strings.Contains(entry.EnhancedPrompt, "name some fruits") {
		t.Errorf("composed prompt missing original text: %q", entry.EnhancedPrompt)
	}
	if entry.Target != enhance.TargetGPT {
		t.Errorf("expected target gpt, got %q", entry.Target)
	}
	if entry.Level != enhance.LevelMaximum {
		t.Errorf("expected level maximum, got %q", entry.Level)
	}
}
