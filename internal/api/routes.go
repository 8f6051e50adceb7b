package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/matiasleandrokruk/codeassist/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/codeassist/internal/api/middleware"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
)

// RouterDeps are the services the HTTP surface is built from.
type RouterDeps struct {
	Assistant       handlers.AssistantService
	Registry        *provider.Registry
	DefaultProvider provider.ProviderID
	Usage           handlers.UsageSource
	AllowedOrigins  []string
	Logger          *slog.Logger
}

// NewRouter creates and configures a chi router with all routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	if deps.Registry == nil {
		deps.Registry = provider.DefaultRegistry()
	}
	if deps.DefaultProvider == "" {
		deps.DefaultProvider = provider.DefaultProvider
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	// Health check, used by load balancers and the frontend's status badge
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	llmHandler := handlers.NewLLMHandler(deps.Assistant, deps.Registry, deps.DefaultProvider, deps.Logger)
	r.Route("/api/llm", func(r chi.Router) {
		r.Get("/providers", llmHandler.Providers)               // GET /api/llm/providers
		r.Get("/models", llmHandler.Models)                     // GET /api/llm/models?provider=
		r.Post("/analyze", llmHandler.Analyze)                  // POST /api/llm/analyze
		r.Post("/analyze-multiple", llmHandler.AnalyzeMultiple) // POST /api/llm/analyze-multiple
		r.Post("/chat", llmHandler.Chat)                        // POST /api/llm/chat
		r.Post("/test-connection", llmHandler.TestConnection)   // POST /api/llm/test-connection

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", llmHandler.Sessions)                  // GET /api/llm/sessions
			r.Get("/{id}/history", llmHandler.History)       // GET /api/llm/sessions/{id}/history
			r.Delete("/{id}/clear", llmHandler.ClearSession) // DELETE /api/llm/sessions/{id}/clear
		})

		if deps.Usage != nil {
			r.Get("/usage", handlers.NewUsageHandler(deps.Usage).Get) // GET /api/llm/usage
		}
	})

	return r
}
