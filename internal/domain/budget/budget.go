package budget

import (
	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

const (
	// DefaultThreshold is the share of the context window a prompt may use.
	DefaultThreshold = 0.7
	// DefaultReserveTokens is kept back for the non-code part of the prompt.
	DefaultReserveTokens = 1000

	// LengthMarker is appended when Fit truncates code.
	LengthMarker = "\n\n... [Code truncated due to length limits] ..."
	// ContextMarker is appended when Shrink halves code after a provider
	// context-length failure.
	ContextMarker = "\n\n... [Code truncated due to context length limits] ..."
)

// Renderer builds the prompt messages for a given code body.
type Renderer func(code string) []llm.Message

// FitResult is the prompt that will be sent.
type FitResult struct {
	Messages        []llm.Message
	Code            string
	EstimatedTokens int
	ContextLimit    int
	Truncated       bool
}

// Budgeter applies the truncation rule. Threshold and ReserveTokens may be
// tuned; zero values fall back to the defaults.
type Budgeter struct {
	Estimator     Estimator
	Threshold     float64
	ReserveTokens int
	// ContextLimit maps a model name to its window in tokens.
	ContextLimit func(model string) int
}

// New returns a Budgeter with default threshold and reserve.
func New(est Estimator, limit func(model string) int) *Budgeter {
	if est == nil {
		est = CharEstimator{}
	}
	return &Budgeter{
		Estimator:     est,
		Threshold:     DefaultThreshold,
		ReserveTokens: DefaultReserveTokens,
		ContextLimit:  limit,
	}
}

// Fit renders code and, when the estimate exceeds Threshold·limit, truncates
// the code to (Threshold·limit − ReserveTokens)·CharsPerToken characters,
// appends LengthMarker and renders again.
func (b *Budgeter) Fit(render Renderer, model, code string) FitResult {
	limit := b.ContextLimit(model)
	msgs := render(code)
	est := b.Estimator.Estimate(msgs)

	allowed := b.threshold() * float64(limit)
	if float64(est) <= allowed {
		return FitResult{Messages: msgs, Code: code, EstimatedTokens: est, ContextLimit: limit}
	}

	maxChars := int((allowed - float64(b.reserve())) * CharsPerToken)
	truncated := head(code, max(maxChars, 0)) + LengthMarker
	msgs = render(truncated)
	return FitResult{
		Messages:        msgs,
		Code:            truncated,
		EstimatedTokens: b.Estimator.Estimate(msgs),
		ContextLimit:    limit,
		Truncated:       true,
	}
}

// Shrink returns the first half of the original code followed by ContextMarker.
func (b *Budgeter) Shrink(code string) string {
	r := []rune(code)
	return string(r[:len(r)/2]) + ContextMarker
}

func (b *Budgeter) threshold() float64 {
	if b.Threshold <= 0 {
		return DefaultThreshold
	}
	return b.Threshold
}

func (b *Budgeter) reserve() int {
	if b.ReserveTokens <= 0 {
		return DefaultReserveTokens
	}
	return b.ReserveTokens
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
