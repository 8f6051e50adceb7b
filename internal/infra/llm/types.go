// Package llm is the model-agnostic chat-completion client layer. Every
// supported provider speaks the OpenAI chat-completions wire format; the
// differences (URL shape, auth header, accepted sampling fields) are captured
// by Flavor.
package llm

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Sampling holds generation parameters. Temperature and MaxTokens are always
// sent; the pointer fields are sent only when non-nil.
type Sampling struct {
	Temperature      float64
	MaxTokens        int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// HasAdvanced reports whether any optional parameter is set.
func (s Sampling) HasAdvanced() bool {
	return s.TopP != nil || s.FrequencyPenalty != nil || s.PresencePenalty != nil
}

// Basic returns a copy without the optional parameters.
func (s Sampling) Basic() Sampling {
	return Sampling{Temperature: s.Temperature, MaxTokens: s.MaxTokens}
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the client's model when non-empty.
	Model    string
	Messages []Message
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string // "stop" | "length" | ...
	Tokens     int    // Total tokens reported by the provider, 0 when absent.
}

// ModelMeta describes the model / provider identity of a client.
type ModelMeta struct {
	ID       string // e.g. "gpt-4o-mini", "llama3.2:3b"
	Provider string // e.g. "openai", "ollama"
	Endpoint string // resolved base URL
}
