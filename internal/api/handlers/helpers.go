package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/matiasleandrokruk/codeassist/internal/domain/classify"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	// maxBodyBytes bounds request bodies; multi-file payloads are the largest.
	maxBodyBytes = 8 << 20
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}

// writeFailure classifies err and writes {"error", "type"} with the mapped status.
func writeFailure(w http.ResponseWriter, err error) classify.Failure {
	f := classify.Classify(err)
	writeJSON(w, f.Status, f)
	return f
}

// decodeJSON reads a size-limited JSON body into dst. An empty body leaves
// dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
