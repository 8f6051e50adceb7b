package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

// DefaultTemperature is used when the request carries none.
const DefaultTemperature = 0.7

// MissingCredentialError means no credential was supplied and the provider's
// environment variable is unset.
type MissingCredentialError struct {
	Provider ProviderID
	EnvVar   string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("API key not found for %s. Please set %s environment variable or provide api_key parameter", e.Provider, e.EnvVar)
}

// MissingEndpointError means a provider that needs an endpoint has none.
type MissingEndpointError struct {
	Provider ProviderID
	EnvVar   string
}

func (e *MissingEndpointError) Error() string {
	return fmt.Sprintf("%s endpoint not found. Please set %s environment variable or provide base_url", e.Provider, e.EnvVar)
}

// ClientFactory builds an invocable client from fully resolved options.
type ClientFactory interface {
	New(opts llm.ClientOptions) (llm.LLMProvider, error)
}

// ResolveInput carries the per-request overrides. Nil or empty means "use the
// default".
type ResolveInput struct {
	Provider         string
	Model            string
	Credential       string
	Endpoint         string
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Connection is the resolved provider connection for one request.
type Connection struct {
	Provider   ProviderID
	Model      string
	Credential string
	Endpoint   string
	Sampling   llm.Sampling
	Client     llm.LLMProvider
	// Degraded is set when optional sampling parameters were dropped because
	// the target rejected them.
	Degraded bool
}

// Resolver applies defaults and environment fallbacks, then builds the client.
type Resolver struct {
	registry *Registry
	factory  ClientFactory
	getenv   func(string) string
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGetenv replaces os.Getenv for credential and endpoint lookups.
func WithGetenv(fn func(string) string) ResolverOption {
	return func(r *Resolver) { r.getenv = fn }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(registry *Registry, factory ClientFactory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		factory:  factory,
		getenv:   os.Getenv,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the catalog the resolver reads from.
func (r *Resolver) Registry() *Registry { return r.registry }

// Resolve turns in into a Connection. It fails only for a missing credential
// or endpoint, or when even the reduced client options are rejected.
func (r *Resolver) Resolve(in ResolveInput) (*Connection, error) {
	cfg := r.registry.Lookup(in.Provider)

	credential, err := r.credential(cfg, in.Credential)
	if err != nil {
		return nil, err
	}
	endpoint, err := r.endpoint(cfg, in.Endpoint)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = cfg.DefaultModel
	}

	sampling := llm.Sampling{
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens(model),
		TopP:             in.TopP,
		FrequencyPenalty: in.FrequencyPenalty,
		PresencePenalty:  in.PresencePenalty,
	}
	if in.Temperature != nil {
		sampling.Temperature = *in.Temperature
	}
	if in.MaxTokens != nil && *in.MaxTokens > 0 {
		sampling.MaxTokens = *in.MaxTokens
	}

	opts := llm.ClientOptions{
		Provider: string(cfg.ID),
		Flavor:   flavorFor(cfg.ID),
		Model:    model,
		APIKey:   credential,
		BaseURL:  endpoint,
		Sampling: sampling,
	}

	conn := &Connection{
		Provider:   cfg.ID,
		Model:      model,
		Credential: credential,
		Endpoint:   endpoint,
	}

	client, err := r.factory.New(opts)
	if errors.Is(err, llm.ErrUnsupportedParameter) && opts.Sampling.HasAdvanced() {
		r.logger.Warn("advanced sampling parameters rejected, retrying without them",
			"provider", cfg.ID, "model", model, "error", err)
		opts = opts.Basic()
		client, err = r.factory.New(opts)
		conn.Degraded = true
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.ID, err)
	}

	conn.Sampling = opts.Sampling
	conn.Client = client
	return conn, nil
}

func (r *Resolver) credential(cfg Config, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	if cfg.ID == Ollama || !cfg.RequiresCredential() {
		return OllamaPlaceholderKey, nil
	}
	if v := r.getenv(cfg.CredentialEnvVar); v != "" {
		return v, nil
	}
	return "", &MissingCredentialError{Provider: cfg.ID, EnvVar: cfg.CredentialEnvVar}
}

func (r *Resolver) endpoint(cfg Config, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	if cfg.ID == Azure {
		if v := r.getenv(AzureEndpointEnv); v != "" {
			return v, nil
		}
		return "", &MissingEndpointError{Provider: cfg.ID, EnvVar: AzureEndpointEnv}
	}
	return cfg.DefaultEndpoint, nil
}

// DefaultMaxTokens is the output budget for a model when the request sets
// none: 4000 for gpt-4 and claude families, 2000 for gpt-3.5, 1500 otherwise.
func DefaultMaxTokens(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt-4"), strings.Contains(m, "claude"):
		return 4000
	case strings.Contains(m, "gpt-3.5"):
		return 2000
	default:
		return 1500
	}
}

func flavorFor(id ProviderID) llm.Flavor {
	switch id {
	case Azure:
		return llm.FlavorAzure
	case Anthropic:
		return llm.FlavorAnthropic
	default:
		return llm.FlavorOpenAI
	}
}
