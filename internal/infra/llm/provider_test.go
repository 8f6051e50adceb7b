package llm

import (
	"net/http"
	"strings"
	"testing"
)

// Compile-time check: *ChatClient must implement LLMProvider.
var _ LLMProvider = (*ChatClient)(nil)

func TestStatusError_CanonicalPhrase(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   string
	}{
		{http.StatusTooManyRequests, "rate limit exceeded"},
		{http.StatusUnauthorized, "authentication failed"},
		{http.StatusForbidden, "authentication failed"},
		{http.StatusPaymentRequired, "quota exceeded"},
		{http.StatusGatewayTimeout, "timeout"},
		{http.StatusRequestEntityTooLarge, "context length exceeded"},
		{http.StatusInternalServerError, "provider error"},
	}
	for _, tc := range cases {
		err := &StatusError{Provider: "openai", Status: tc.status, Message: "boom"}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("status %d: %q does not contain %q", tc.status, err.Error(), tc.want)
		}
	}
}

func TestStatusError_EmptyMessageUsesStatusText(t *testing.T) {
	t.Parallel()

	err := &StatusError{Provider: "azure", Status: http.StatusBadGateway}
	if !strings.HasSuffix(err.Error(), http.StatusText(http.StatusBadGateway)) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSampling_BasicDropsOptional(t *testing.T) {
	t.Parallel()

	p := 0.9
	s := Sampling{Temperature: 0.3, MaxTokens: 100, TopP: &p, PresencePenalty: &p}
	if !s.HasAdvanced() {
		t.Fatal("HasAdvanced() = false with top_p set")
	}
	b := s.Basic()
	if b.HasAdvanced() {
		t.Error("Basic() kept optional parameters")
	}
	if b.Temperature != 0.3 || b.MaxTokens != 100 {
		t.Errorf("Basic() = %+v; want temperature and max tokens preserved", b)
	}
}
