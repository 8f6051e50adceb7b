// Package classify maps orchestration failures onto user-facing categories
// with an HTTP status. Matching is keyword based on the lower-cased error text
// and the first matching category wins.
package classify

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/matiasleandrokruk/codeassist/internal/domain/budget"
	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
)

// Category is the "type" reported to clients.
type Category string

const (
	InvalidInput      Category = "invalid_input"
	MissingCredential Category = "missing_credential"
	MissingEndpoint   Category = "missing_endpoint"
	Network           Category = "network_error"
	Timeout           Category = "timeout_error"
	RateLimit         Category = "rate_limit"
	Auth              Category = "auth_error"
	Quota             Category = "quota_error"
	ContextLimit      Category = "context_limit"
	General           Category = "general_error"
)

// Failure is a classified error.
type Failure struct {
	Category Category `json:"type"`
	Message  string   `json:"error"`
	Status   int      `json:"-"`
}

// InvalidInputError is returned before any provider call when the request is
// missing its code, message or file list.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

type rule struct {
	category Category
	status   int
	message  string
	keywords []string
}

// rules are checked in order. Network keywords name connection failures
// rather than the bare word "connection", which provider rate-limit messages
// also use.
var rules = []rule{
	{Network, http.StatusServiceUnavailable,
		"Network connection error. Please check your internet connection and try again.",
		[]string{"connection refused", "connection reset", "connection error", "connection aborted",
			"connectionerror", "failed to connect", "could not connect", "network", "no such host", "dial tcp"}},
	{Timeout, http.StatusGatewayTimeout,
		"Request timeout. The analysis is taking too long. Try with shorter code.",
		[]string{"timeout", "timed out", "deadline exceeded"}},
	{RateLimit, http.StatusTooManyRequests,
		"Rate limit exceeded. Please wait a moment and try again.",
		[]string{"rate limit", "rate_limit", "too many requests"}},
	{Auth, http.StatusUnauthorized,
		"Invalid API key. Please check your API key configuration.",
		[]string{"api key", "api_key", "authentication", "unauthorized", "invalid_api_key"}},
	{Quota, http.StatusPaymentRequired,
		"API quota exceeded or billing issue. Please check your account.",
		[]string{"quota", "billing", "insufficient_quota"}},
}

// Classify maps err to a Failure. Input errors keep their own message and map
// to 400; provider failures are matched against rules; an unrecovered
// context-length failure maps to 413; anything else is a 500 that carries the
// original text.
func Classify(err error) Failure {
	if err == nil {
		return Failure{Category: General, Status: http.StatusInternalServerError, Message: "Analysis failed: unknown error"}
	}

	var inputErr *InvalidInputError
	if errors.As(err, &inputErr) {
		return Failure{Category: InvalidInput, Status: http.StatusBadRequest, Message: inputErr.Message}
	}
	var credErr *provider.MissingCredentialError
	if errors.As(err, &credErr) {
		return Failure{Category: MissingCredential, Status: http.StatusBadRequest, Message: credErr.Error()}
	}
	var endpointErr *provider.MissingEndpointError
	if errors.As(err, &endpointErr) {
		return Failure{Category: MissingEndpoint, Status: http.StatusBadRequest, Message: endpointErr.Error()}
	}
	text := strings.ToLower(err.Error())
	for _, r := range rules {
		if slices.ContainsFunc(r.keywords, func(kw string) bool { return strings.Contains(text, kw) }) {
			return fromRule(r)
		}
	}
	if budget.IsContextOverflow(err) {
		return Failure{
			Category: ContextLimit,
			Status:   http.StatusRequestEntityTooLarge,
			Message:  "Code exceeds the model's context length even after truncation. Try with shorter code.",
		}
	}
	return Failure{Category: General, Status: http.StatusInternalServerError, Message: "Analysis failed: " + err.Error()}
}

func fromRule(r rule) Failure {
	return Failure{Category: r.category, Status: r.status, Message: r.message}
}
