// Package budget keeps rendered prompts inside a model's context window by
// estimating their token count and truncating the submitted code.
package budget

import (
	"fmt"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"

	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

// Estimator approximates the token count of a rendered prompt.
type Estimator interface {
	Estimate(messages []llm.Message) int
	Name() string
}

// Estimator names accepted by NewEstimator.
const (
	EstimatorChars    = "chars"
	EstimatorTiktoken = "tiktoken"
)

// CharsPerToken is the ratio used by CharEstimator.
const CharsPerToken = 4

// NewEstimator returns the estimator registered under name. An empty name
// selects CharEstimator.
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case "", EstimatorChars:
		return CharEstimator{}, nil
	case EstimatorTiktoken:
		return NewTiktokenEstimator()
	default:
		return nil, fmt.Errorf("unknown token estimator %q", name)
	}
}

// CharEstimator counts characters of the serialized prompt (role plus content
// of every message) and divides by CharsPerToken.
type CharEstimator struct{}

func (CharEstimator) Estimate(messages []llm.Message) int {
	return serializedChars(messages) / CharsPerToken
}

func (CharEstimator) Name() string { return EstimatorChars }

func serializedChars(messages []llm.Message) int {
	n := 0
	for _, m := range messages {
		n += utf8.RuneCountInString(m.Role) + utf8.RuneCountInString(m.Content)
	}
	return n
}

// per-message framing overhead of the chat format, in tokens.
const (
	tokensPerMessage = 4
	tokensPerReply   = 3
)

// TiktokenEstimator counts cl100k_base tokens.
type TiktokenEstimator struct {
	codec tokenizer.Codec
}

func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base: %w", err)
	}
	return &TiktokenEstimator{codec: codec}, nil
}

func (e *TiktokenEstimator) Estimate(messages []llm.Message) int {
	total := tokensPerReply
	for _, m := range messages {
		ids, _, err := e.codec.Encode(m.Content)
		if err != nil {
			total += (utf8.RuneCountInString(m.Content) / CharsPerToken) + tokensPerMessage
			continue
		}
		total += len(ids) + tokensPerMessage
	}
	return total
}

func (e *TiktokenEstimator) Name() string { return EstimatorTiktoken }
