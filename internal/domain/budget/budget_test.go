package budget

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/matiasleandrokruk/codeassist/internal/infra/llm"
)

const testPreamble = "Review the following code and report problems.\n\n```\n"

func testRender(code string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "You are a reviewer."},
		{Role: "user", Content: testPreamble + code + "\n```"},
	}
}

func fixedLimit(n int) func(string) int {
	return func(string) int { return n }
}

func TestFit_UnderThreshold_Unmodified(t *testing.T) {
	t.Parallel()

	b := New(CharEstimator{}, fixedLimit(4096))
	// well under 0.3 * 4096 tokens
	code := strings.Repeat("x", 1000)
	res := b.Fit(testRender, "gpt-3.5-turbo", code)

	if res.Truncated {
		t.Error("Truncated = true for short code")
	}
	if res.Code != code {
		t.Error("code modified")
	}
	if res.ContextLimit != 4096 {
		t.Errorf("ContextLimit = %d", res.ContextLimit)
	}
}

func TestFit_OverThreshold_TruncatesWithMarker(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{4096, 8192, 128000} {
		b := New(CharEstimator{}, fixedLimit(limit))
		code := strings.Repeat("a", limit*4)
		res := b.Fit(testRender, "m", code)

		if !res.Truncated {
			t.Fatalf("limit %d: Truncated = false", limit)
		}
		if !strings.HasSuffix(res.Code, LengthMarker) {
			t.Errorf("limit %d: marker missing", limit)
		}
		if !strings.Contains(res.Messages[1].Content, LengthMarker) {
			t.Errorf("limit %d: rendered prompt lacks marker", limit)
		}
		if float64(res.EstimatedTokens) > DefaultThreshold*float64(limit) {
			t.Errorf("limit %d: estimate %d exceeds %.0f", limit, res.EstimatedTokens, DefaultThreshold*float64(limit))
		}
		wantChars := int((DefaultThreshold*float64(limit) - DefaultReserveTokens) * CharsPerToken)
		if got := len(strings.TrimSuffix(res.Code, LengthMarker)); got != wantChars {
			t.Errorf("limit %d: kept %d chars; want %d", limit, got, wantChars)
		}
	}
}

func TestFit_TinyLimit_KeepsOnlyMarker(t *testing.T) {
	t.Parallel()

	b := New(CharEstimator{}, fixedLimit(1000))
	res := b.Fit(testRender, "m", strings.Repeat("z", 10000))
	if res.Code != LengthMarker {
		t.Errorf("Code = %q; want marker only", res.Code)
	}
}

func TestFit_TunableThreshold(t *testing.T) {
	t.Parallel()

	b := New(CharEstimator{}, fixedLimit(10000))
	code := strings.Repeat("q", 20000) // ~5000 tokens

	if res := b.Fit(testRender, "m", code); res.Truncated {
		t.Error("default threshold should accept ~5000 of 10000 tokens")
	}
	b.Threshold = 0.4
	b.ReserveTokens = 500
	res := b.Fit(testRender, "m", code)
	if !res.Truncated {
		t.Fatal("threshold 0.4 should truncate")
	}
	if got := len(strings.TrimSuffix(res.Code, LengthMarker)); got != (4000-500)*4 {
		t.Errorf("kept %d chars", got)
	}
}

func TestShrink_HalvesOriginal(t *testing.T) {
	t.Parallel()

	b := New(nil, fixedLimit(4096))
	got := b.Shrink(strings.Repeat("ab", 50))
	if got != strings.Repeat("ab", 25)+ContextMarker {
		t.Errorf("Shrink = %q", got)
	}
}

func TestShrink_MultibyteSafe(t *testing.T) {
	t.Parallel()

	got := New(nil, fixedLimit(1)).Shrink("ééééé")
	if got != "éé"+ContextMarker {
		t.Errorf("Shrink = %q", got)
	}
}

func TestCharEstimator(t *testing.T) {
	t.Parallel()

	msgs := []llm.Message{{Role: "user", Content: strings.Repeat("x", 396)}}
	if got := (CharEstimator{}).Estimate(msgs); got != 100 {
		t.Errorf("Estimate = %d; want 100", got)
	}
}

func TestNewEstimator(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", EstimatorChars} {
		e, err := NewEstimator(name)
		if err != nil || e.Name() != EstimatorChars {
			t.Errorf("NewEstimator(%q) = %v, %v", name, e, err)
		}
	}
	if _, err := NewEstimator("bpe-9000"); err == nil {
		t.Error("expected error for unknown estimator")
	}
}

func TestTiktokenEstimator(t *testing.T) {
	t.Parallel()

	e, err := NewEstimator(EstimatorTiktoken)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	short := e.Estimate([]llm.Message{{Role: "user", Content: "hello world"}})
	long := e.Estimate([]llm.Message{{Role: "user", Content: strings.Repeat("hello world ", 200)}})
	if short <= 0 || long <= short {
		t.Errorf("short=%d long=%d", short, long)
	}

	b := New(e, fixedLimit(4096))
	res := b.Fit(testRender, "m", strings.Repeat("func f() { return 1 }\n", 2000))
	if !res.Truncated {
		t.Error("expected truncation with tiktoken estimator")
	}
}

func TestIsContextOverflow(t *testing.T) {
	t.Parallel()

	yes := []error{
		errors.New("This model's maximum context length is 8192 tokens"),
		errors.New("prompt is too long: 210000 tokens > 200000 maximum"),
		errors.New("Token limit reached"),
		fmt.Errorf("wrapped: %w", errors.New("context_length_exceeded")),
		&llm.StatusError{Provider: "openai", Status: http.StatusRequestEntityTooLarge},
	}
	for _, err := range yes {
		if !IsContextOverflow(err) {
			t.Errorf("IsContextOverflow(%q) = false", err)
		}
	}
	no := []error{
		nil,
		errors.New("rate limit exceeded"),
		&llm.StatusError{Provider: "openai", Status: http.StatusUnauthorized, Message: "bad key"},
	}
	for _, err := range no {
		if IsContextOverflow(err) {
			t.Errorf("IsContextOverflow(%v) = true", err)
		}
	}
}
