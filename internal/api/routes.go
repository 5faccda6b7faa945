// Task 5.11: route registration and go-chi router setup.
// Public routes (/health) vs protected routes (/api/v1/*). Protection is a
// no-op when no JWT secret is configured — a local single-user deployment
// runs open.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/svidal/promptforge/internal/api/handlers"
	apmiddleware "github.com/svidal/promptforge/internal/api/middleware"
	"github.com/svidal/promptforge/internal/domain/audit"
	"github.com/svidal/promptforge/internal/domain/enhance"
	"github.com/svidal/promptforge/internal/domain/history"
	"github.com/svidal/promptforge/internal/domain/template"
	"github.com/svidal/promptforge/internal/infra/eventbus"
	"github.com/svidal/promptforge/internal/infra/llm"
)

// Deps carries the shared application services the router wires into
// handlers. Everything is constructed once in cmd and passed down.
type Deps struct {
	DB           *sql.DB
	Log          zerolog.Logger
	Bus          eventbus.EventBus
	Engine       *llm.Engine
	Orchestrator *enhance.Orchestrator
	Templates    *template.Service
	History      *history.Service
	Audit        *audit.Service
	JWTSecret    []byte
}

// NewRouter creates and configures a chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.Logger(deps.Log))
	r.Use(middleware.Recoverer)

	// Health check — unauthenticated, used by probes.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	enhanceHandler := handlers.NewEnhanceHandler(deps.Orchestrator, deps.History, deps.Templates, deps.Audit, deps.Log)
	statusHandler := handlers.NewStatusHandler(deps.Engine, deps.Orchestrator, deps.Bus)
	engineHandler := handlers.NewEngineHandler(deps.Engine, deps.Audit, deps.Log)
	templateHandler := handlers.NewTemplateHandler(deps.Templates, deps.Audit, deps.Log)
	historyHandler := handlers.NewHistoryHandler(deps.History, deps.Audit, deps.Log)
	auditHandler := handlers.NewAuditHandler(deps.Audit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.Auth(deps.JWTSecret))

		r.Post("/enhance", enhanceHandler.Enhance)            // POST /api/v1/enhance
		r.Post("/enhance/quick", enhanceHandler.QuickEnhance) // POST /api/v1/enhance/quick

		r.Get("/status", statusHandler.Status)        // GET /api/v1/status
		r.Get("/status/stream", statusHandler.Stream) // GET /api/v1/status/stream

		r.Route("/engine", func(r chi.Router) {
			r.Post("/initialize", engineHandler.Initialize) // POST /api/v1/engine/initialize
			r.Post("/release", engineHandler.Release)       // POST /api/v1/engine/release
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", templateHandler.CreateTemplate)       // POST /api/v1/templates
			r.Get("/", templateHandler.ListTemplates)         // GET /api/v1/templates
			r.Get("/{id}", templateHandler.GetTemplate)       // GET /api/v1/templates/{id}
			r.Put("/{id}", templateHandler.UpdateTemplate)    // PUT /api/v1/templates/{id}
			r.Delete("/{id}", templateHandler.DeleteTemplate) // DELETE /api/v1/templates/{id}
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", historyHandler.ListHistory)              // GET /api/v1/history
			r.Delete("/", historyHandler.ClearHistory)          // DELETE /api/v1/history
			r.Get("/stats", historyHandler.HistoryStats)        // GET /api/v1/history/stats
			r.Get("/{id}", historyHandler.GetHistory)           // GET /api/v1/history/{id}
			r.Delete("/{id}", historyHandler.DeleteHistory)     // DELETE /api/v1/history/{id}
			r.Put("/{id}/favorite", historyHandler.SetFavorite) // PUT /api/v1/history/{id}/favorite
		})

		r.Get("/audit", auditHandler.ListAudit) // GET /api/v1/audit
	})

	return r
}
