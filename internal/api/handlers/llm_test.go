package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/codeassist/internal/domain/assistant"
	"github.com/matiasleandrokruk/codeassist/internal/domain/classify"
	"github.com/matiasleandrokruk/codeassist/internal/domain/memory"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
	"github.com/matiasleandrokruk/codeassist/internal/domain/usage"
)

type stubAssistant struct {
	analyzeReq assistant.AnalysisRequest
	filesReq   assistant.FilesRequest
	chatReq    assistant.ChatRequest
	connReq    assistant.ConnectionRequest
	err        error
	turns      []memory.Turn
	cleared    bool
}

func (s *stubAssistant) Analyze(_ context.Context, req assistant.AnalysisRequest) (*assistant.AnalysisResult, error) {
	s.analyzeReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &assistant.AnalysisResult{Analysis: "looks fine", Type: req.Kind, SessionID: "default"}, nil
}

func (s *stubAssistant) AnalyzeFiles(_ context.Context, req assistant.FilesRequest) (*assistant.AnalysisResult, error) {
	s.filesReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &assistant.AnalysisResult{Analysis: "files ok", FilesAnalyzed: len(req.Files)}, nil
}

func (s *stubAssistant) Chat(_ context.Context, req assistant.ChatRequest) (*assistant.ChatResult, error) {
	s.chatReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &assistant.ChatResult{Response: "hi"}, nil
}

func (s *stubAssistant) TestConnection(_ context.Context, req assistant.ConnectionRequest) (*assistant.ConnectionResult, error) {
	s.connReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &assistant.ConnectionResult{Success: true}, nil
}

func (s *stubAssistant) Sessions(context.Context) ([]memory.SessionSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []memory.SessionSummary{{SessionID: "a", MessageCount: 2}}, nil
}

func (s *stubAssistant) History(context.Context, string) ([]memory.Turn, error) {
	return s.turns, s.err
}

func (s *stubAssistant) ClearSession(context.Context, string) (bool, error) {
	return s.cleared, s.err
}

func newTestLLMHandler(svc AssistantService) *LLMHandler {
	return NewLLMHandler(svc, provider.DefaultRegistry(), provider.OpenAI, nil)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return out
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestLLMHandler_Providers(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{})

	rr := httptest.NewRecorder()
	h.Providers(rr, httptest.NewRequest(http.MethodGet, "/api/llm/providers", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["default_provider"] != "openai" {
		t.Errorf("default_provider = %v; want openai", body["default_provider"])
	}
	providers, ok := body["providers"].(map[string]any)
	if !ok {
		t.Fatalf("providers = %T; want object", body["providers"])
	}
	for _, id := range []string{"openai", "anthropic", "azure", "ollama", "custom"} {
		if _, ok := providers[id]; !ok {
			t.Errorf("providers missing %q", id)
		}
	}
}

func TestLLMHandler_Models(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{})

	tests := []struct {
		query        string
		wantProvider string
	}{
		{"?provider=anthropic", "anthropic"},
		{"", "openai"},
		{"?provider=nope", "openai"},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		h.Models(rr, httptest.NewRequest(http.MethodGet, "/api/llm/models"+tc.query, nil))
		body := decodeBody(t, rr)
		if body["provider"] != tc.wantProvider {
			t.Errorf("%q: provider = %v; want %s", tc.query, body["provider"], tc.wantProvider)
		}
		if models, ok := body["models"].([]any); !ok || len(models) == 0 {
			t.Errorf("%q: models = %v; want non-empty list", tc.query, body["models"])
		}
		if body["default_model"] == "" {
			t.Errorf("%q: default_model is empty", tc.query)
		}
	}
}

func TestLLMHandler_Analyze_PassesOverrides(t *testing.T) {
	t.Parallel()
	svc := &stubAssistant{}
	h := newTestLLMHandler(svc)

	body := `{"code":"x := 1","type":"security","session_id":"s1","provider":"anthropic","model":"claude-3-haiku-20240307","temperature":0.2,"top_p":0.9}`
	rr := httptest.NewRecorder()
	h.Analyze(rr, httptest.NewRequest(http.MethodPost, "/api/llm/analyze", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rr.Code, rr.Body.String())
	}
	got := svc.analyzeReq
	if got.Code != "x := 1" || got.Kind != "security" || got.SessionID != "s1" {
		t.Errorf("request = %+v", got)
	}
	if got.Overrides.Provider != "anthropic" || got.Overrides.Model != "claude-3-haiku-20240307" {
		t.Errorf("overrides = %+v", got.Overrides)
	}
	if got.Overrides.Temperature == nil || *got.Overrides.Temperature != 0.2 {
		t.Errorf("temperature = %v; want 0.2", got.Overrides.Temperature)
	}
	if got.Overrides.TopP == nil || *got.Overrides.TopP != 0.9 {
		t.Errorf("top_p = %v; want 0.9", got.Overrides.TopP)
	}
	if got.Overrides.MaxTokens != nil {
		t.Errorf("max_tokens = %v; want nil", *got.Overrides.MaxTokens)
	}
	if decodeBody(t, rr)["analysis"] != "looks fine" {
		t.Error("analysis missing from response")
	}
}

func TestLLMHandler_Analyze_DefaultProvider(t *testing.T) {
	t.Parallel()
	svc := &stubAssistant{}
	h := NewLLMHandler(svc, provider.DefaultRegistry(), provider.Ollama, nil)

	rr := httptest.NewRecorder()
	h.Analyze(rr, httptest.NewRequest(http.MethodPost, "/api/llm/analyze", strings.NewReader(`{"code":"a"}`)))

	if svc.analyzeReq.Overrides.Provider != "ollama" {
		t.Errorf("provider = %q; want ollama", svc.analyzeReq.Overrides.Provider)
	}
}

func TestLLMHandler_Analyze_InvalidJSON(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{})

	rr := httptest.NewRecorder()
	h.Analyze(rr, httptest.NewRequest(http.MethodPost, "/api/llm/analyze", strings.NewReader(`{bad`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rr.Code)
	}
}

func TestLLMHandler_Analyze_ClassifiedErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   classify.Category
	}{
		{"input", &classify.InvalidInputError{Message: "Code content required"}, http.StatusBadRequest, classify.InvalidInput},
		{"credential", &provider.MissingCredentialError{Provider: "openai", EnvVar: "OPENAI_API_KEY"}, http.StatusBadRequest, classify.MissingCredential},
		{"rate limit", errors.New("openai chat: rate limit exceeded (status 429)"), http.StatusTooManyRequests, classify.RateLimit},
		{"general", errors.New("boom"), http.StatusInternalServerError, classify.General},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newTestLLMHandler(&stubAssistant{err: tc.err})
			rr := httptest.NewRecorder()
			h.Analyze(rr, httptest.NewRequest(http.MethodPost, "/api/llm/analyze", strings.NewReader(`{}`)))

			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d; want %d", rr.Code, tc.wantStatus)
			}
			body := decodeBody(t, rr)
			if body["type"] != string(tc.wantType) {
				t.Errorf("type = %v; want %s", body["type"], tc.wantType)
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestLLMHandler_AnalyzeMultiple(t *testing.T) {
	t.Parallel()
	svc := &stubAssistant{}
	h := newTestLLMHandler(svc)

	body := `{"files":[{"path":"a.go","content":"package a"},{"path":"b.go","content":"package b"}]}`
	rr := httptest.NewRecorder()
	h.AnalyzeMultiple(rr, httptest.NewRequest(http.MethodPost, "/api/llm/analyze-multiple", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rr.Code)
	}
	if len(svc.filesReq.Files) != 2 || svc.filesReq.Files[1].Path != "b.go" {
		t.Errorf("files = %+v", svc.filesReq.Files)
	}
	if decodeBody(t, rr)["files_analyzed"] != float64(2) {
		t.Error("files_analyzed != 2")
	}
}

func TestLLMHandler_Chat(t *testing.T) {
	t.Parallel()
	svc := &stubAssistant{}
	h := newTestLLMHandler(svc)

	rr := httptest.NewRecorder()
	h.Chat(rr, httptest.NewRequest(http.MethodPost, "/api/llm/chat", strings.NewReader(`{"message":"why?","session_id":"s"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rr.Code)
	}
	if svc.chatReq.Message != "why?" || svc.chatReq.SessionID != "s" {
		t.Errorf("chat request = %+v", svc.chatReq)
	}
}

func TestLLMHandler_TestConnection(t *testing.T) {
	t.Parallel()
	svc := &stubAssistant{}
	h := newTestLLMHandler(svc)

	rr := httptest.NewRecorder()
	h.TestConnection(rr, httptest.NewRequest(http.MethodPost, "/api/llm/test-connection", strings.NewReader(`{"provider":"azure","base_url":"https://x.openai.azure.com"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rr.Code)
	}
	if svc.connReq.Overrides.Provider != "azure" || svc.connReq.Overrides.BaseURL != "https://x.openai.azure.com" {
		t.Errorf("overrides = %+v", svc.connReq.Overrides)
	}
}

func TestLLMHandler_Sessions(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{})

	rr := httptest.NewRecorder()
	h.Sessions(rr, httptest.NewRequest(http.MethodGet, "/api/llm/sessions", nil))

	sessions, ok := decodeBody(t, rr)["sessions"].([]any)
	if !ok || len(sessions) != 1 {
		t.Fatalf("sessions = %v; want one entry", sessions)
	}
	if sessions[0].(map[string]any)["session_id"] != "a" {
		t.Errorf("session = %v", sessions[0])
	}
}

func TestLLMHandler_History(t *testing.T) {
	t.Parallel()
	svc := &stubAssistant{turns: []memory.Turn{
		{Role: memory.RoleUser, Content: "q", CreatedAt: time.Now()},
		{Role: memory.RoleAssistant, Content: "a", CreatedAt: time.Now()},
	}}
	h := newTestLLMHandler(svc)

	rr := httptest.NewRecorder()
	h.History(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/api/llm/sessions/s1/history", nil), "id", "s1"))

	body := decodeBody(t, rr)
	if body["session_id"] != "s1" {
		t.Errorf("session_id = %v", body["session_id"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v; want 2", msgs)
	}
	if msgs[0].(map[string]any)["type"] != "user" {
		t.Errorf("first message = %v", msgs[0])
	}
}

func TestLLMHandler_History_EmptyIsArray(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{})

	rr := httptest.NewRecorder()
	h.History(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "new"))

	if !strings.Contains(rr.Body.String(), `"messages":[]`) {
		t.Errorf("body = %s; want empty messages array", rr.Body.String())
	}
}

func TestLLMHandler_ClearSession(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{cleared: true})

	rr := httptest.NewRecorder()
	h.ClearSession(rr, withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", "s9"))

	body := decodeBody(t, rr)
	if body["message"] != "Session s9 cleared successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if body["cleared"] != true {
		t.Errorf("cleared = %v; want true", body["cleared"])
	}
}

func TestLLMHandler_Sessions_StoreError(t *testing.T) {
	t.Parallel()
	h := newTestLLMHandler(&stubAssistant{err: errors.New("disk")})

	rr := httptest.NewRecorder()
	h.Sessions(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d; want 500", rr.Code)
	}
}

type stubUsage []usage.ModelUsage

func (s stubUsage) Snapshot() []usage.ModelUsage { return s }

func TestUsageHandler_Get(t *testing.T) {
	t.Parallel()
	h := NewUsageHandler(stubUsage{{Provider: "openai", Model: "gpt-4", Requests: 3}})

	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/llm/usage", nil))

	entries, _ := decodeBody(t, rr)["usage"].([]any)
	if len(entries) != 1 {
		t.Fatalf("usage = %v; want one entry", entries)
	}
}
