// Package middleware holds HTTP middleware shared by every route.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Outcome summarizes a response status for logs.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeClientError Outcome = "client_error"
	OutcomeError       Outcome = "error"
)

// AccessLog writes one structured line per request. Expected order in router:
// RequestID -> RealIP -> AccessLog -> Recoverer -> handlers.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			outcome := outcomeFromStatus(recorder.statusCode)
			level := slog.LevelInfo
			if outcome == OutcomeError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"action", actionFromRequest(r.Method, r.URL.Path),
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", recorder.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"outcome", outcome,
				"request_id", chimw.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func outcomeFromStatus(statusCode int) Outcome {
	switch {
	case statusCode < 400:
		return OutcomeSuccess
	case statusCode < 500:
		return OutcomeClientError
	default:
		return OutcomeError
	}
}

// actionFromRequest names a request after its /api/llm resource, e.g.
// "post_analyze", "get_session_history", "delete_session_clear".
func actionFromRequest(method, path string) string {
	m := strings.ToLower(method)
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "llm" {
		return m + "_request"
	}

	resource := strings.ReplaceAll(segments[2], "-", "_")
	switch {
	case resource == "sessions" && len(segments) == 5:
		return m + "_session_" + segments[4]
	case len(segments) == 3:
		return m + "_" + resource
	default:
		return m + "_request"
	}
}
