package llm

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultOpenAIBaseURL is used when a connection resolves without an endpoint.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// Flavor selects wire-format variations of the chat-completions protocol.
type Flavor int

const (
	// FlavorOpenAI is the plain OpenAI protocol (also Ollama /v1 and custom gateways).
	FlavorOpenAI Flavor = iota
	// FlavorAzure uses deployment-scoped URLs and the api-key header.
	FlavorAzure
	// FlavorAnthropic is Anthropic's OpenAI-compatible endpoint, which does
	// not take frequency/presence penalties.
	FlavorAnthropic
)

// ClientOptions is everything needed to build one client.
type ClientOptions struct {
	Provider string
	Flavor   Flavor
	Model    string
	APIKey   string
	BaseURL  string
	Sampling Sampling
}

// Basic returns the reduced tier: same connection, no optional sampling parameters.
func (o ClientOptions) Basic() ClientOptions {
	o.Sampling = o.Sampling.Basic()
	return o
}

// Factory builds ChatClients that share one HTTP client and, optionally, one
// outbound rate limiter.
type Factory struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewFactory returns a Factory whose clients time out after timeout.
// requestsPerSecond > 0 enables a shared token-bucket limiter.
func NewFactory(timeout time.Duration, requestsPerSecond float64) *Factory {
	f := &Factory{httpClient: &http.Client{Timeout: timeout}}
	if requestsPerSecond > 0 {
		burst := int(math.Ceil(requestsPerSecond))
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return f
}

// New validates opts and returns a client. Optional sampling parameters the
// target does not accept yield an error wrapping ErrUnsupportedParameter.
func (f *Factory) New(opts ClientOptions) (LLMProvider, error) {
	if opts.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: %s: api key is required", opts.Provider)
	}
	if err := checkSampling(opts); err != nil {
		return nil, err
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		if opts.Flavor == FlavorAzure {
			return nil, fmt.Errorf("llm: %s: endpoint is required", opts.Provider)
		}
		baseURL = DefaultOpenAIBaseURL
	}

	return &ChatClient{
		provider:   opts.Provider,
		flavor:     opts.Flavor,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		sampling:   opts.Sampling,
		httpClient: f.httpClient,
		limiter:    f.limiter,
	}, nil
}

func checkSampling(opts ClientOptions) error {
	s := opts.Sampling
	if !s.HasAdvanced() {
		return nil
	}
	if isReasoningModel(opts.Model) {
		return fmt.Errorf("llm: %s does not accept top_p or penalties: %w", opts.Model, ErrUnsupportedParameter)
	}
	if opts.Flavor == FlavorAnthropic && (s.FrequencyPenalty != nil || s.PresencePenalty != nil) {
		return fmt.Errorf("llm: %s does not accept frequency/presence penalties: %w", opts.Provider, ErrUnsupportedParameter)
	}
	if s.TopP != nil && (*s.TopP <= 0 || *s.TopP > 1) {
		return fmt.Errorf("llm: top_p %v outside (0, 1]: %w", *s.TopP, ErrUnsupportedParameter)
	}
	for name, p := range map[string]*float64{"frequency_penalty": s.FrequencyPenalty, "presence_penalty": s.PresencePenalty} {
		if p != nil && (*p < -2 || *p > 2) {
			return fmt.Errorf("llm: %s %v outside [-2, 2]: %w", name, *p, ErrUnsupportedParameter)
		}
	}
	return nil
}

// isReasoningModel matches the o1/o3 families, which reject nucleus sampling
// and penalties.
func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3")
}
