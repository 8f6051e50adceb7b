// Package provider holds the static LLM provider catalog, the model context
// table and the resolver that turns request overrides into a ready client.
package provider

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ProviderID is the closed set of supported providers.
type ProviderID string

const (
	OpenAI    ProviderID = "openai"
	Anthropic ProviderID = "anthropic"
	Azure     ProviderID = "azure"
	Ollama    ProviderID = "ollama"
	Custom    ProviderID = "custom"
)

// DefaultProvider is used for empty or unrecognized provider ids.
const DefaultProvider = OpenAI

// ErrInvalidCatalog is returned by Validate when an entry breaks an invariant.
var ErrInvalidCatalog = errors.New("invalid provider catalog")

// ParseProviderID maps a request value onto the closed set. The second
// result is false when the input was not recognized and DefaultProvider was
// substituted.
func ParseProviderID(s string) (ProviderID, bool) {
	switch id := ProviderID(strings.ToLower(strings.TrimSpace(s))); id {
	case OpenAI, Anthropic, Azure, Ollama, Custom:
		return id, true
	default:
		return DefaultProvider, false
	}
}

// Config describes one provider. Entries are built once and never mutated.
type Config struct {
	ID               ProviderID `json:"id"`
	DisplayName      string     `json:"name"`
	Models           []string   `json:"models"`
	DefaultModel     string     `json:"default_model"`
	CredentialEnvVar string     `json:"api_key_env,omitempty"`
	DefaultEndpoint  string     `json:"base_url,omitempty"`
	CloudAvailable   bool       `json:"cloud_available"`
	AllowCustom      bool       `json:"allow_custom"`
}

// RequiresCredential reports whether the provider reads a credential from the
// environment when none is supplied.
func (c Config) RequiresCredential() bool {
	return c.CredentialEnvVar != ""
}

// AzureEndpointEnv names the variable holding the Azure OpenAI resource URL.
const AzureEndpointEnv = "AZURE_OPENAI_ENDPOINT"

// OllamaPlaceholderKey is sent to local Ollama, which ignores credentials.
const OllamaPlaceholderKey = "ollama-local"

// Registry is the ordered provider catalog.
type Registry struct {
	order   []ProviderID
	configs map[ProviderID]Config
}

// NewRegistry builds a registry from configs in the given order.
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{configs: make(map[ProviderID]Config, len(configs))}
	for _, c := range configs {
		if _, dup := r.configs[c.ID]; !dup {
			r.order = append(r.order, c.ID)
		}
		r.configs[c.ID] = c
	}
	return r
}

// DefaultRegistry returns the built-in catalog.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Config{
			ID:               OpenAI,
			DisplayName:      "OpenAI",
			Models:           []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo", "o1-preview", "o1-mini"},
			DefaultModel:     "gpt-4o-mini",
			CredentialEnvVar: "OPENAI_API_KEY",
			CloudAvailable:   true,
			AllowCustom:      true,
		},
		Config{
			ID:               Anthropic,
			DisplayName:      "Anthropic",
			Models:           []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", "claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307"},
			DefaultModel:     "claude-3-5-sonnet-20241022",
			CredentialEnvVar: "ANTHROPIC_API_KEY",
			DefaultEndpoint:  "https://api.anthropic.com/v1",
			CloudAvailable:   true,
			AllowCustom:      true,
		},
		Config{
			ID:               Azure,
			DisplayName:      "Azure OpenAI",
			Models:           []string{"gpt-4o", "gpt-4-turbo", "gpt-4", "gpt-35-turbo"},
			DefaultModel:     "gpt-4o",
			CredentialEnvVar: "AZURE_OPENAI_API_KEY",
			CloudAvailable:   true,
			AllowCustom:      true,
		},
		Config{
			ID:          Ollama,
			DisplayName: "Ollama (Local)",
			Models: []string{"llama3.2:3b", "llama3.2:1b", "llama3.1:8b", "llama3.1:70b", "codellama:7b",
				"codellama:13b", "mistral:7b", "phi3:mini", "qwen2.5:7b", "deepseek-coder:6.7b"},
			DefaultModel:    "llama3.2:3b",
			DefaultEndpoint: "http://localhost:11434/v1",
			CloudAvailable:  false,
			AllowCustom:     true,
		},
		Config{
			ID:          Custom,
			DisplayName: "Custom Provider",
			Models: []string{"gpt-3.5-turbo", "gpt-4", "llama-2-7b-chat", "llama-2-13b-chat",
				"codellama-7b-instruct", "mistral-7b-instruct"},
			DefaultModel:     "gpt-3.5-turbo",
			CredentialEnvVar: "CUSTOM_API_KEY",
			CloudAvailable:   true,
			AllowCustom:      true,
		},
	)
}

// Get returns the config for id.
func (r *Registry) Get(id ProviderID) (Config, bool) {
	c, ok := r.configs[id]
	return c, ok
}

// Lookup resolves a raw provider string, falling back to DefaultProvider.
func (r *Registry) Lookup(raw string) Config {
	id, _ := ParseProviderID(raw)
	if c, ok := r.configs[id]; ok {
		return c
	}
	return r.configs[DefaultProvider]
}

// All returns the catalog in registration order.
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.configs[id])
	}
	return out
}

// Validate checks every entry's invariants and that the default provider is present.
func (r *Registry) Validate() error {
	if _, ok := r.configs[DefaultProvider]; !ok {
		return fmt.Errorf("%w: default provider %q missing", ErrInvalidCatalog, DefaultProvider)
	}
	for _, id := range r.order {
		c := r.configs[id]
		if len(c.Models) == 0 {
			return fmt.Errorf("%w: %s has no models", ErrInvalidCatalog, id)
		}
		if !slices.Contains(c.Models, c.DefaultModel) {
			return fmt.Errorf("%w: %s default model %q not in models", ErrInvalidCatalog, id, c.DefaultModel)
		}
	}
	return nil
}
