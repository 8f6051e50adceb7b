package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessLog_RecordsStatusAndAction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/llm/analyze-multiple", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d; want 429", rr.Code)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["action"] != "post_analyze_multiple" {
		t.Errorf("action = %v", line["action"])
	}
	if line["status_code"] != float64(429) {
		t.Errorf("status_code = %v", line["status_code"])
	}
	if line["outcome"] != string(OutcomeClientError) {
		t.Errorf("outcome = %v", line["outcome"])
	}
	if line["level"] != "INFO" {
		t.Errorf("level = %v; want INFO", line["level"])
	}
}

func TestAccessLog_ServerErrorLogsAtError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/llm/sessions", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "ERROR" {
		t.Errorf("level = %v; want ERROR", line["level"])
	}
}

func TestAccessLog_NilLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	called := false
	h := AccessLog(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if !called {
		t.Error("next handler not called")
	}
}

func TestActionFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/llm/analyze", "post_analyze"},
		{http.MethodPost, "/api/llm/test-connection", "post_test_connection"},
		{http.MethodGet, "/api/llm/sessions", "get_sessions"},
		{http.MethodGet, "/api/llm/sessions/abc/history", "get_session_history"},
		{http.MethodDelete, "/api/llm/sessions/abc/clear", "delete_session_clear"},
		{http.MethodGet, "/health", "get_request"},
	}
	for _, tc := range tests {
		if got := actionFromRequest(tc.method, tc.path); got != tc.want {
			t.Errorf("actionFromRequest(%s, %s) = %q; want %q", tc.method, tc.path, got, tc.want)
		}
	}
}
