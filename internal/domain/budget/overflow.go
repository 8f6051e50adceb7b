package budget

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

// overflowPatterns match provider errors raised when the prompt exceeds the
// model's context window.
var overflowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)context[_ ]length`),
	regexp.MustCompile(`(?i)token[_ ]limit`),
	regexp.MustCompile(`(?i)prompt is too long`),
	regexp.MustCompile(`(?i)exceed.*context window`),
	regexp.MustCompile(`(?i)maximum context length is \d+ tokens`),
	regexp.MustCompile(`(?i)reduce the length of the messages`),
	regexp.MustCompile(`(?i)too many tokens`),
}

// IsContextOverflow reports whether err is a provider context/token-limit
// failure, the only failure retried with shorter code.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	var se *llm.StatusError
	if errors.As(err, &se) && se.Status == http.StatusRequestEntityTooLarge {
		return true
	}
	msg := err.Error()
	for _, re := range overflowPatterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}
