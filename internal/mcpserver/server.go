// Package mcpserver exposes the assistant operations as Model Context Protocol
// tools so editors and agents can call them over stdio.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/codeassist/internal/domain/assistant"
	"github.com/matiasleandrokruk/codeassist/internal/domain/classify"
	"github.com/matiasleandrokruk/codeassist/internal/domain/memory"
	"github.com/matiasleandrokruk/codeassist/internal/domain/prompt"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
	"github.com/matiasleandrokruk/codeassist/internal/infra/logging"
	"github.com/matiasleandrokruk/codeassist/internal/version"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "codeassist"

// Assistant is the subset of the orchestration service the tools call.
type Assistant interface {
	Analyze(ctx context.Context, req assistant.AnalysisRequest) (*assistant.AnalysisResult, error)
	AnalyzeFiles(ctx context.Context, req assistant.FilesRequest) (*assistant.AnalysisResult, error)
	Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.ChatResult, error)
	TestConnection(ctx context.Context, req assistant.ConnectionRequest) (*assistant.ConnectionResult, error)
	History(ctx context.Context, sessionID string) ([]memory.Turn, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
}

// ConnectionArgs are the per-call provider overrides shared by every tool.
// The tool argument structs embed it so its fields sit at the top level of
// each input schema, as in the HTTP request bodies.
type ConnectionArgs struct {
	Provider         string   `json:"provider,omitempty" jsonschema:"provider id: openai, anthropic, azure, ollama or custom"`
	Model            string   `json:"model,omitempty" jsonschema:"model id, defaults to the provider default"`
	APIKey           string   `json:"api_key,omitempty" jsonschema:"credential, defaults to the provider environment variable"`
	BaseURL          string   `json:"base_url,omitempty" jsonschema:"endpoint override"`
	Temperature      *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature"`
	MaxTokens        *int     `json:"max_tokens,omitempty" jsonschema:"output token budget"`
	TopP             *float64 `json:"top_p,omitempty" jsonschema:"nucleus sampling mass"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" jsonschema:"penalty for frequent tokens"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" jsonschema:"penalty for tokens already present"`
}

type AnalyzeArgs struct {
	ConnectionArgs
	Code      string `json:"code" jsonschema:"source code to analyze"`
	Type      string `json:"type,omitempty" jsonschema:"analysis kind: general, debug, improve, correct, security, performance, smart_suggestions, contextual_hints or code_improvement"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation session, defaults to default"`
}

type AnalyzeFilesArgs struct {
	ConnectionArgs
	Files     []prompt.File `json:"files" jsonschema:"files to analyze together, at most ten are used"`
	SessionID string        `json:"session_id,omitempty" jsonschema:"conversation session, defaults to default"`
}

type ChatArgs struct {
	ConnectionArgs
	Message   string `json:"message" jsonschema:"question about previously analyzed code"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation session, defaults to default"`
}

type SessionArgs struct {
	SessionID string `json:"session_id" jsonschema:"conversation session id"`
}

// HistoryTurn is a stored turn with its timestamp rendered as RFC 3339.
type HistoryTurn struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type HistoryResult struct {
	SessionID string        `json:"session_id"`
	Messages  []HistoryTurn `json:"messages"`
}

type ClearResult struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

type ProvidersResult struct {
	Providers       []provider.Config   `json:"providers"`
	DefaultProvider provider.ProviderID `json:"default_provider"`
}

// New builds an MCP server with one tool per assistant operation.
func New(svc Assistant, registry *provider.Registry, defaultProvider provider.ProviderID, logger *slog.Logger) *mcp.Server {
	t := &tools{svc: svc, registry: registry, defaultProvider: defaultProvider, logger: logging.OrDiscard(logger)}

	s := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)
	mcp.AddTool(s, &mcp.Tool{Name: "analyze_code", Description: "Analyze a code snippet for bugs, security, performance, style and more."}, t.analyze)
	mcp.AddTool(s, &mcp.Tool{Name: "analyze_files", Description: "Analyze several files together for architecture and cross-file issues."}, t.analyzeFiles)
	mcp.AddTool(s, &mcp.Tool{Name: "chat", Description: "Ask a follow-up question within a session."}, t.chat)
	mcp.AddTool(s, &mcp.Tool{Name: "test_connection", Description: "Check that a provider connection works."}, t.testConnection)
	mcp.AddTool(s, &mcp.Tool{Name: "list_providers", Description: "List supported providers and their models."}, t.providers)
	mcp.AddTool(s, &mcp.Tool{Name: "session_history", Description: "Return the stored turns of a session."}, t.history)
	mcp.AddTool(s, &mcp.Tool{Name: "clear_session", Description: "Delete the stored turns of a session."}, t.clear)
	return s
}

type tools struct {
	svc             Assistant
	registry        *provider.Registry
	defaultProvider provider.ProviderID
	logger          *slog.Logger
}

func (t *tools) overrides(a ConnectionArgs) assistant.Overrides {
	p := a.Provider
	if p == "" {
		p = string(t.defaultProvider)
	}
	return assistant.Overrides{
		Provider:         p,
		Model:            a.Model,
		APIKey:           a.APIKey,
		BaseURL:          a.BaseURL,
		Temperature:      a.Temperature,
		MaxTokens:        a.MaxTokens,
		TopP:             a.TopP,
		FrequencyPenalty: a.FrequencyPenalty,
		PresencePenalty:  a.PresencePenalty,
	}
}

// toolError turns a service failure into the classified user-facing message.
// The SDK reports it to the client as a tool error result.
func (t *tools) toolError(tool string, err error) error {
	f := classify.Classify(err)
	t.logger.Warn("mcp tool failed", "tool", tool, "type", f.Category, "error", err)
	return errors.New(string(f.Category) + ": " + f.Message)
}

func (t *tools) analyze(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeArgs) (*mcp.CallToolResult, assistant.AnalysisResult, error) {
	res, err := t.svc.Analyze(ctx, assistant.AnalysisRequest{
		Code: in.Code, Kind: in.Type, SessionID: in.SessionID, Overrides: t.overrides(in.ConnectionArgs),
	})
	if err != nil {
		return nil, assistant.AnalysisResult{}, t.toolError("analyze_code", err)
	}
	return nil, *res, nil
}

func (t *tools) analyzeFiles(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeFilesArgs) (*mcp.CallToolResult, assistant.AnalysisResult, error) {
	res, err := t.svc.AnalyzeFiles(ctx, assistant.FilesRequest{
		Files: in.Files, SessionID: in.SessionID, Overrides: t.overrides(in.ConnectionArgs),
	})
	if err != nil {
		return nil, assistant.AnalysisResult{}, t.toolError("analyze_files", err)
	}
	return nil, *res, nil
}

func (t *tools) chat(ctx context.Context, _ *mcp.CallToolRequest, in ChatArgs) (*mcp.CallToolResult, assistant.ChatResult, error) {
	res, err := t.svc.Chat(ctx, assistant.ChatRequest{
		Message: in.Message, SessionID: in.SessionID, Overrides: t.overrides(in.ConnectionArgs),
	})
	if err != nil {
		return nil, assistant.ChatResult{}, t.toolError("chat", err)
	}
	return nil, *res, nil
}

func (t *tools) testConnection(ctx context.Context, _ *mcp.CallToolRequest, in ConnectionArgs) (*mcp.CallToolResult, assistant.ConnectionResult, error) {
	res, err := t.svc.TestConnection(ctx, assistant.ConnectionRequest{Overrides: t.overrides(in)})
	if err != nil {
		return nil, assistant.ConnectionResult{}, t.toolError("test_connection", err)
	}
	return nil, *res, nil
}

func (t *tools) providers(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, ProvidersResult, error) {
	return nil, ProvidersResult{Providers: t.registry.All(), DefaultProvider: t.defaultProvider}, nil
}

func (t *tools) history(ctx context.Context, _ *mcp.CallToolRequest, in SessionArgs) (*mcp.CallToolResult, HistoryResult, error) {
	turns, err := t.svc.History(ctx, in.SessionID)
	if err != nil {
		return nil, HistoryResult{}, t.toolError("session_history", err)
	}
	out := HistoryResult{SessionID: in.SessionID, Messages: make([]HistoryTurn, 0, len(turns))}
	for _, turn := range turns {
		out.Messages = append(out.Messages, HistoryTurn{
			Type:      string(turn.Role),
			Content:   turn.Content,
			Timestamp: turn.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return nil, out, nil
}

func (t *tools) clear(ctx context.Context, _ *mcp.CallToolRequest, in SessionArgs) (*mcp.CallToolResult, ClearResult, error) {
	cleared, err := t.svc.ClearSession(ctx, in.SessionID)
	if err != nil {
		return nil, ClearResult{}, t.toolError("clear_session", err)
	}
	return nil, ClearResult{SessionID: in.SessionID, Cleared: cleared}, nil
}
