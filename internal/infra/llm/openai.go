package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	// AzureAPIVersion is the api-version query parameter sent to Azure OpenAI.
	AzureAPIVersion = "2024-02-15-preview"

	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 64 << 10
)

// ChatClient calls an OpenAI-compatible chat-completions endpoint.
// Endpoints used:
//   - POST {base}/chat/completions — OpenAI, Anthropic compat, Ollama /v1, custom
//   - POST {endpoint}/openai/deployments/{model}/chat/completions — Azure
type ChatClient struct {
	provider   string
	flavor     Flavor
	baseURL    string
	apiKey     string
	model      string
	sampling   Sampling
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ─── wire types ──────────────────────────────────────────────────────────────

type chatCompletionRequest struct {
	Model            string    `json:"model,omitempty"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	Stream           bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ─── LLMProvider implementation ─────────────────────────────────────────────

// ChatCompletion sends the messages with the client's sampling parameters.
func (c *ChatClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s chat: rate limiter: %w", c.provider, err)
		}
	}

	payload := chatCompletionRequest{
		Messages:         req.Messages,
		Temperature:      c.sampling.Temperature,
		MaxTokens:        c.sampling.MaxTokens,
		TopP:             c.sampling.TopP,
		FrequencyPenalty: c.sampling.FrequencyPenalty,
		PresencePenalty:  c.sampling.PresencePenalty,
	}
	// Azure addresses the model through the deployment path.
	if c.flavor != FlavorAzure {
		payload.Model = model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s chat: encode request: %w", c.provider, err)
	}

	respBody, err := c.doPost(ctx, c.completionsURL(model), body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var out chatCompletionResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("%s chat: decode response: %w", c.provider, decodeErr)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s chat: no choices in response", c.provider)
	}
	return &ChatResponse{
		Content:    out.Choices[0].Message.Content,
		StopReason: out.Choices[0].FinishReason,
		Tokens:     out.Usage.TotalTokens,
	}, nil
}

// ModelInfo returns static metadata for this client.
func (c *ChatClient) ModelInfo() ModelMeta {
	return ModelMeta{ID: c.model, Provider: c.provider, Endpoint: c.baseURL}
}

// Sampling exposes the parameters the client was built with.
func (c *ChatClient) Sampling() Sampling {
	return c.sampling
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (c *ChatClient) completionsURL(model string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if c.flavor == FlavorAzure {
		return base + "/openai/deployments/" + url.PathEscape(model) +
			"/chat/completions?api-version=" + AzureAPIVersion
	}
	return base + "/chat/completions"
}

// doPost sends the request and returns the body of a 2xx response.
// Caller is responsible for closing the returned ReadCloser.
func (c *ChatClient) doPost(ctx context.Context, endpoint string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s chat: build request: %w", c.provider, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	if c.flavor == FlavorAzure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		return nil, &StatusError{
			Provider: c.provider,
			Status:   resp.StatusCode,
			Message:  readErrorMessage(resp.Body),
		}
	}
	return resp.Body, nil
}

// readErrorMessage extracts error.message from an OpenAI-style error body,
// falling back to the trimmed raw body.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
