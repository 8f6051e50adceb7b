package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// LLMProvider is the invocable client handle produced for one resolved
// connection. Adapters implement it so the orchestration code is never coupled
// to a vendor.
type LLMProvider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ModelInfo returns the identity the client was built for.
	ModelInfo() ModelMeta
}

// ErrUnsupportedParameter is returned by Factory.New when the options carry an
// optional sampling parameter the target model or flavor does not accept.
var ErrUnsupportedParameter = errors.New("unsupported sampling parameter")

// StatusError is a non-2xx provider response. Its text starts with a
// canonical phrase for the status so keyword classification stays stable
// whatever the provider puts in its body.
type StatusError struct {
	Provider string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s chat: %s (status %d): %s", e.Provider, statusPhrase(e.Status), e.Status, msg)
}

func statusPhrase(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication failed"
	case http.StatusPaymentRequired:
		return "quota exceeded"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusRequestEntityTooLarge:
		return "context length exceeded"
	default:
		return "provider error"
	}
}
