// Package assistant orchestrates analysis, chat and connection tests:
// resolve a provider connection, render the prompt, keep it inside the
// context budget, invoke the model and record the exchange in memory.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matiasleandrokruk/codeassist/internal/domain/budget"
	"github.com/matiasleandrokruk/codeassist/internal/domain/classify"
	"github.com/matiasleandrokruk/codeassist/internal/domain/memory"
	"github.com/matiasleandrokruk/codeassist/internal/domain/prompt"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
	"github.com/matiasleandrokruk/codeassist/internal/domain/usage"
	"github.com/matiasleandrokruk/codeassist/internal/infra/eventbus"
	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

const (
	// DefaultSessionID is used when a request names no session.
	DefaultSessionID = "default"
	// MultipleFilesType is the result type of a multi-file analysis.
	MultipleFilesType = "multiple_files"
	// ConnectionTestTemperature is used by TestConnection unless overridden.
	ConnectionTestTemperature = 0.1
	// ConnectionTestMessage is reported on a successful connection test.
	ConnectionTestMessage = "Connection test successful"
)

// ConnectionResolver produces a ready client for one request.
type ConnectionResolver interface {
	Resolve(in provider.ResolveInput) (*provider.Connection, error)
}

// Overrides are the optional provider settings every request may carry.
type Overrides struct {
	Provider         string
	Model            string
	APIKey           string
	BaseURL          string
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

func (o Overrides) resolveInput() provider.ResolveInput {
	return provider.ResolveInput{
		Provider:         o.Provider,
		Model:            o.Model,
		Credential:       o.APIKey,
		Endpoint:         o.BaseURL,
		Temperature:      o.Temperature,
		MaxTokens:        o.MaxTokens,
		TopP:             o.TopP,
		FrequencyPenalty: o.FrequencyPenalty,
		PresencePenalty:  o.PresencePenalty,
	}
}

type AnalysisRequest struct {
	Code      string
	Kind      string
	SessionID string
	Overrides
}

type FilesRequest struct {
	Files     []prompt.File
	SessionID string
	Overrides
}

type ChatRequest struct {
	Message   string
	SessionID string
	Overrides
}

type ConnectionRequest struct {
	Overrides
}

// AnalysisResult is returned by Analyze and AnalyzeFiles.
type AnalysisResult struct {
	Analysis      string `json:"analysis"`
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	TokensUsed    int    `json:"tokens_used,omitempty"`
	ContextLimit  int    `json:"context_limit,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	FilesAnalyzed int    `json:"files_analyzed,omitempty"`
}

type ChatResult struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

type ConnectionResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response string `json:"response"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Service is safe for concurrent use.
type Service struct {
	resolver ConnectionResolver
	prompts  *prompt.Builder
	budget   *budget.Budgeter
	store    memory.Store
	bus      eventbus.EventBus
	logger   *slog.Logger
}

type Option func(*Service)

// WithEventBus publishes a usage.Completion on usage.Topic after every call.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(r ConnectionResolver, p *prompt.Builder, b *budget.Budgeter, store memory.Store, opts ...Option) *Service {
	s := &Service{
		resolver: r,
		prompts:  p,
		budget:   b,
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalysisMaxTokens is the output budget for an analysis when the request
// sets none: 4000 above 5000 characters of code, 3000 above 2000, else 2000.
func AnalysisMaxTokens(codeChars int) int {
	switch {
	case codeChars > 5000:
		return 4000
	case codeChars > 2000:
		return 3000
	default:
		return 2000
	}
}

// Analyze runs a single-file analysis. A provider context-length failure is
// retried once with the original code cut in half.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, &classify.InvalidInputError{Message: "Code content required"}
	}
	kind, _ := prompt.ParseKind(req.Kind)
	sessionID := sessionOrDefault(req.SessionID)

	in := req.resolveInput()
	if in.MaxTokens == nil {
		n := AnalysisMaxTokens(utf8.RuneCountInString(req.Code))
		in.MaxTokens = &n
	}
	conn, err := s.resolver.Resolve(in)
	if err != nil {
		return nil, err
	}

	render := func(code string) []llm.Message {
		return s.prompts.Build(kind, code).Messages()
	}
	fit := s.budget.Fit(render, conn.Model, req.Code)
	if fit.Truncated {
		s.logger.Info("code truncated to fit context window",
			"session_id", sessionID, "model", conn.Model, "context_limit", fit.ContextLimit)
	}

	start := time.Now()
	ev := usage.Completion{
		Operation:       "analyze",
		Provider:        string(conn.Provider),
		Model:           conn.Model,
		EstimatedTokens: fit.EstimatedTokens,
		Truncated:       fit.Truncated,
	}

	resp, err := conn.Client.ChatCompletion(ctx, llm.ChatRequest{Messages: fit.Messages})
	if err != nil && budget.IsContextOverflow(err) {
		s.logger.Warn("context length exceeded, retrying with halved code",
			"session_id", sessionID, "model", conn.Model, "error", err)
		ev.Retried, ev.Truncated = true, true
		fit.Truncated = true
		retry := render(s.budget.Shrink(req.Code))
		fit.EstimatedTokens = s.budget.Estimator.Estimate(retry)
		ev.EstimatedTokens = fit.EstimatedTokens
		resp, err = conn.Client.ChatCompletion(ctx, llm.ChatRequest{Messages: retry})
	}
	ev.Duration = time.Since(start)
	if err != nil {
		ev.Failed = true
		s.publish(ev)
		return nil, fmt.Errorf("analyze: %w", err)
	}
	ev.ProviderTokens = resp.Tokens
	s.publish(ev)

	userTurn := fmt.Sprintf("Analyze this %s code: %s", kind, memory.Clip(req.Code, memory.UserCodeClip))
	if err := s.remember(ctx, sessionID, userTurn, resp.Content); err != nil {
		return nil, err
	}

	return &AnalysisResult{
		Analysis:     resp.Content,
		Type:         string(kind),
		SessionID:    sessionID,
		Provider:     string(conn.Provider),
		Model:        conn.Model,
		TokensUsed:   fit.EstimatedTokens,
		ContextLimit: fit.ContextLimit,
		Truncated:    fit.Truncated,
	}, nil
}

// AnalyzeFiles analyzes up to prompt.MaxFiles files in one prompt.
func (s *Service) AnalyzeFiles(ctx context.Context, req FilesRequest) (*AnalysisResult, error) {
	if len(req.Files) == 0 {
		return nil, &classify.InvalidInputError{Message: "Files array required"}
	}
	sessionID := sessionOrDefault(req.SessionID)

	conn, err := s.resolver.Resolve(req.resolveInput())
	if err != nil {
		return nil, err
	}

	msgs := s.prompts.BuildFiles(req.Files).Messages()
	ev := usage.Completion{
		Operation:       "analyze_files",
		Provider:        string(conn.Provider),
		Model:           conn.Model,
		EstimatedTokens: s.budget.Estimator.Estimate(msgs),
	}
	resp, err := s.invoke(ctx, conn, msgs, &ev)
	if err != nil {
		return nil, fmt.Errorf("analyze files: %w", err)
	}

	userTurn := fmt.Sprintf("Analyze %d files from codebase", len(req.Files))
	if err := s.remember(ctx, sessionID, userTurn, resp.Content); err != nil {
		return nil, err
	}

	return &AnalysisResult{
		Analysis:      resp.Content,
		Type:          MultipleFilesType,
		SessionID:     sessionID,
		Provider:      string(conn.Provider),
		Model:         conn.Model,
		TokensUsed:    ev.EstimatedTokens,
		ContextLimit:  s.budget.ContextLimit(conn.Model),
		FilesAnalyzed: len(req.Files),
	}, nil
}

// Chat answers a follow-up question using the session's recent turns as
// context.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &classify.InvalidInputError{Message: "Message required"}
	}
	sessionID := sessionOrDefault(req.SessionID)

	conn, err := s.resolver.Resolve(req.resolveInput())
	if err != nil {
		return nil, err
	}

	turns, err := s.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: load session: %w", err)
	}
	msgs := s.prompts.BuildChat(memory.ContextBlock(turns), req.Message).Messages()

	ev := usage.Completion{
		Operation:       "chat",
		Provider:        string(conn.Provider),
		Model:           conn.Model,
		EstimatedTokens: s.budget.Estimator.Estimate(msgs),
	}
	resp, err := s.invoke(ctx, conn, msgs, &ev)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	if err := s.remember(ctx, sessionID, req.Message, resp.Content); err != nil {
		return nil, err
	}

	return &ChatResult{
		Response:  resp.Content,
		SessionID: sessionID,
		Provider:  string(conn.Provider),
		Model:     conn.Model,
	}, nil
}

// TestConnection sends a fixed probe prompt. Nothing is stored.
func (s *Service) TestConnection(ctx context.Context, req ConnectionRequest) (*ConnectionResult, error) {
	in := req.resolveInput()
	if in.Temperature == nil {
		t := ConnectionTestTemperature
		in.Temperature = &t
	}
	conn, err := s.resolver.Resolve(in)
	if err != nil {
		return nil, err
	}

	msgs := s.prompts.ConnectionTest().Messages()
	ev := usage.Completion{Operation: "test_connection", Provider: string(conn.Provider), Model: conn.Model}
	resp, err := s.invoke(ctx, conn, msgs, &ev)
	if err != nil {
		return nil, fmt.Errorf("test connection: %w", err)
	}
	return &ConnectionResult{
		Success:  true,
		Message:  ConnectionTestMessage,
		Response: resp.Content,
		Provider: string(conn.Provider),
		Model:    conn.Model,
	}, nil
}

// Sessions lists known sessions.
func (s *Service) Sessions(ctx context.Context) ([]memory.SessionSummary, error) {
	return s.store.ListSessions(ctx)
}

// History returns a session's stored turns.
func (s *Service) History(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	return s.store.History(ctx, sessionID)
}

// ClearSession deletes a session and reports whether it existed.
func (s *Service) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	return s.store.Clear(ctx, sessionID)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// invoke performs a single provider call and publishes its usage event.
func (s *Service) invoke(ctx context.Context, conn *provider.Connection, msgs []llm.Message, ev *usage.Completion) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := conn.Client.ChatCompletion(ctx, llm.ChatRequest{Messages: msgs})
	ev.Duration = time.Since(start)
	if err != nil {
		ev.Failed = true
	} else {
		ev.ProviderTokens = resp.Tokens
	}
	s.publish(*ev)
	return resp, err
}

// remember stores the user turn as given and the reply clipped to
// memory.AssistantClip.
func (s *Service) remember(ctx context.Context, sessionID, userTurn, reply string) error {
	if err := s.store.Append(ctx, sessionID, memory.RoleUser, userTurn); err != nil {
		return fmt.Errorf("store user turn: %w", err)
	}
	if err := s.store.Append(ctx, sessionID, memory.RoleAssistant, memory.Clip(reply, memory.AssistantClip)); err != nil {
		return fmt.Errorf("store assistant turn: %w", err)
	}
	return nil
}

func (s *Service) publish(ev usage.Completion) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(usage.Topic, ev)
}

func sessionOrDefault(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return DefaultSessionID
}
