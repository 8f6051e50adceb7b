// Package usage aggregates per provider/model request counters from the
// completion events published on the event bus.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matiasleandrokruk/codeassist/internal/infra/eventbus"
)

// Topic is the event-bus topic carrying Completion payloads.
const Topic = "llm.completion"

// Completion describes one orchestrated provider call.
type Completion struct {
	Operation       string // analyze | analyze_files | chat | test_connection
	Provider        string
	Model           string
	EstimatedTokens int
	ProviderTokens  int
	Retried         bool
	Truncated       bool
	Failed          bool
	Duration        time.Duration
}

// ModelUsage is the running total for one provider/model pair.
type ModelUsage struct {
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	Requests        int       `json:"requests"`
	Failures        int       `json:"failures"`
	Retries         int       `json:"retries"`
	Truncations     int       `json:"truncations"`
	EstimatedTokens int       `json:"estimated_tokens"`
	ProviderTokens  int       `json:"provider_tokens"`
	TotalLatencyMS  int64     `json:"total_latency_ms"`
	LastUsed        time.Time `json:"last_used"`
}

type key struct{ provider, model string }

// Recorder keeps in-process counters. Totals reset on restart.
type Recorder struct {
	mu     sync.RWMutex
	usage  map[key]ModelUsage
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{usage: make(map[key]ModelUsage), logger: logger}
}

// Record adds one completion to the totals.
func (r *Recorder) Record(c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{c.Provider, c.Model}
	u, ok := r.usage[k]
	if !ok {
		u = ModelUsage{Provider: c.Provider, Model: c.Model}
	}
	u.Requests++
	if c.Failed {
		u.Failures++
	}
	if c.Retried {
		u.Retries++
	}
	if c.Truncated {
		u.Truncations++
	}
	u.EstimatedTokens += c.EstimatedTokens
	u.ProviderTokens += c.ProviderTokens
	u.TotalLatencyMS += c.Duration.Milliseconds()
	u.LastUsed = time.Now().UTC()
	r.usage[k] = u
}

// Get returns the totals for one provider/model pair, zero-valued if unseen.
func (r *Recorder) Get(provider, model string) ModelUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.usage[key{provider, model}]; ok {
		return u
	}
	return ModelUsage{Provider: provider, Model: model}
}

// Snapshot returns all totals ordered by provider then model.
func (r *Recorder) Snapshot() []ModelUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelUsage, 0, len(r.usage))
	for _, u := range r.usage {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b ModelUsage) int {
		if c := strings.Compare(a.Provider, b.Provider); c != 0 {
			return c
		}
		return strings.Compare(a.Model, b.Model)
	})
	return out
}

// Run consumes Completion events from bus until ctx is done or the bus is
// closed.
func (r *Recorder) Run(ctx context.Context, bus eventbus.EventBus) {
	ch := bus.Subscribe(Topic)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			c, ok := evt.Payload.(Completion)
			if !ok {
				r.logger.Warn("unexpected usage event payload", "event_id", evt.ID, "type", fmt.Sprintf("%T", evt.Payload))
				continue
			}
			r.Record(c)
		}
	}
}
