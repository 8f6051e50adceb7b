package handlers

import (
	"net/http"

	"github.com/matiasleandrokruk/codeassist/internal/domain/usage"
)

// UsageSource exposes aggregated provider usage.
type UsageSource interface {
	Snapshot() []usage.ModelUsage
}

type UsageHandler struct {
	source UsageSource
}

func NewUsageHandler(source UsageSource) *UsageHandler {
	return &UsageHandler{source: source}
}

// Get handles GET /api/llm/usage.
func (h *UsageHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"usage": h.source.Snapshot()})
}
