package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/codeassist/internal/domain/assistant"
	"github.com/matiasleandrokruk/codeassist/internal/domain/memory"
	"github.com/matiasleandrokruk/codeassist/internal/domain/prompt"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
	"github.com/matiasleandrokruk/codeassist/internal/infra/logging"
)

// AssistantService is the orchestration surface the LLM endpoints call.
type AssistantService interface {
	Analyze(ctx context.Context, req assistant.AnalysisRequest) (*assistant.AnalysisResult, error)
	AnalyzeFiles(ctx context.Context, req assistant.FilesRequest) (*assistant.AnalysisResult, error)
	Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.ChatResult, error)
	TestConnection(ctx context.Context, req assistant.ConnectionRequest) (*assistant.ConnectionResult, error)
	Sessions(ctx context.Context) ([]memory.SessionSummary, error)
	History(ctx context.Context, sessionID string) ([]memory.Turn, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
}

type LLMHandler struct {
	svc             AssistantService
	registry        *provider.Registry
	defaultProvider provider.ProviderID
	logger          *slog.Logger
}

func NewLLMHandler(svc AssistantService, registry *provider.Registry, defaultProvider provider.ProviderID, logger *slog.Logger) *LLMHandler {
	logger = logging.OrDiscard(logger)
	return &LLMHandler{svc: svc, registry: registry, defaultProvider: defaultProvider, logger: logger}
}

// llmRequest is the shared JSON body of the POST endpoints.
type llmRequest struct {
	Code             string        `json:"code"`
	Files            []prompt.File `json:"files"`
	Message          string        `json:"message"`
	Type             string        `json:"type"`
	SessionID        string        `json:"session_id"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	APIKey           string        `json:"api_key"`
	BaseURL          string        `json:"base_url"`
	Temperature      *float64      `json:"temperature"`
	MaxTokens        *int          `json:"max_tokens"`
	TopP             *float64      `json:"top_p"`
	FrequencyPenalty *float64      `json:"frequency_penalty"`
	PresencePenalty  *float64      `json:"presence_penalty"`
}

func (h *LLMHandler) overrides(req llmRequest) assistant.Overrides {
	p := req.Provider
	if p == "" {
		p = string(h.defaultProvider)
	}
	return assistant.Overrides{
		Provider:         p,
		Model:            req.Model,
		APIKey:           req.APIKey,
		BaseURL:          req.BaseURL,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
}

func (h *LLMHandler) decode(w http.ResponseWriter, r *http.Request) (llmRequest, bool) {
	var req llmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func (h *LLMHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	f := writeFailure(w, err)
	level := slog.LevelWarn
	if f.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, op+" failed", "type", f.Category, "status", f.Status, "error", err)
}

// ─── catalog ─────────────────────────────────────────────────────────────────

// Providers handles GET /api/llm/providers.
func (h *LLMHandler) Providers(w http.ResponseWriter, r *http.Request) {
	all := h.registry.All()
	out := make(map[provider.ProviderID]provider.Config, len(all))
	for _, c := range all {
		out[c.ID] = c
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers":        out,
		"default_provider": h.defaultProvider,
	})
}

// Models handles GET /api/llm/models?provider=.
func (h *LLMHandler) Models(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("provider")
	if raw == "" {
		raw = string(h.defaultProvider)
	}
	c := h.registry.Lookup(raw)
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":      c.ID,
		"models":        c.Models,
		"default_model": c.DefaultModel,
	})
}

// ─── orchestration ───────────────────────────────────────────────────────────

// Analyze handles POST /api/llm/analyze.
func (h *LLMHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Analyze(r.Context(), assistant.AnalysisRequest{
		Code:      req.Code,
		Kind:      req.Type,
		SessionID: req.SessionID,
		Overrides: h.overrides(req),
	})
	if err != nil {
		h.fail(w, r, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AnalyzeMultiple handles POST /api/llm/analyze-multiple.
func (h *LLMHandler) AnalyzeMultiple(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.svc.AnalyzeFiles(r.Context(), assistant.FilesRequest{
		Files:     req.Files,
		SessionID: req.SessionID,
		Overrides: h.overrides(req),
	})
	if err != nil {
		h.fail(w, r, "analyze-multiple", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Chat handles POST /api/llm/chat.
func (h *LLMHandler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Chat(r.Context(), assistant.ChatRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		Overrides: h.overrides(req),
	})
	if err != nil {
		h.fail(w, r, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TestConnection handles POST /api/llm/test-connection.
func (h *LLMHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.svc.TestConnection(r.Context(), assistant.ConnectionRequest{Overrides: h.overrides(req)})
	if err != nil {
		h.fail(w, r, "test-connection", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── sessions ────────────────────────────────────────────────────────────────

// Sessions handles GET /api/llm/sessions.
func (h *LLMHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.Sessions(r.Context())
	if err != nil {
		h.logger.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// History handles GET /api/llm/sessions/{id}/history.
func (h *LLMHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.logger.Error("load history failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": turns})
}

// ClearSession handles DELETE /api/llm/sessions/{id}/clear.
func (h *LLMHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := h.svc.ClearSession(r.Context(), id)
	if err != nil {
		h.logger.Error("clear session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Session %s cleared successfully", id),
		"cleared": existed,
	})
}
