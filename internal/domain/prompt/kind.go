package prompt

import "strings"

// Kind selects the analysis prompt pair.
type Kind string

const (
	General          Kind = "general"
	Debug            Kind = "debug"
	Improve          Kind = "improve"
	Correct          Kind = "correct"
	Security         Kind = "security"
	Performance      Kind = "performance"
	SmartSuggestions Kind = "smart_suggestions"
	ContextualHints  Kind = "contextual_hints"
	CodeImprovement  Kind = "code_improvement"
)

// Kinds lists every analysis kind.
func Kinds() []Kind {
	return []Kind{General, Debug, Improve, Correct, Security, Performance, SmartSuggestions, ContextualHints, CodeImprovement}
}

// ParseKind maps a request value onto the closed set. Unrecognized values
// yield General and false.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case General, Debug, Improve, Correct, Security, Performance, SmartSuggestions, ContextualHints, CodeImprovement:
		return k, true
	default:
		return General, false
	}
}
