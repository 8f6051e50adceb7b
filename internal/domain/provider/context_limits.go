package provider

// DefaultContextLimit applies to models missing from the table.
const DefaultContextLimit = 4096

var contextLimits = map[string]int{
	"gpt-4":           8192,
	"gpt-4-turbo":     128000,
	"gpt-4o":          128000,
	"gpt-3.5-turbo":   4096,
	"claude-3-sonnet": 200000,
	"claude-3-opus":   200000,
	"claude-3-haiku":  200000,
}

// ContextLimit returns the maximum context size in tokens for model, by exact
// name match.
func ContextLimit(model string) int {
	if n, ok := contextLimits[model]; ok {
		return n
	}
	return DefaultContextLimit
}
