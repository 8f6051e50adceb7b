// Package memory stores per-session conversation turns. Sessions are created
// lazily, only ever appended to, and removed as a whole.
package memory

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Storage and context-window caps, in characters.
const (
	UserCodeClip    = 200
	AssistantClip   = 1000
	ContextTurns    = 6
	ContextTurnClip = 300
	ClipMarker      = "..."
)

// ErrInvalidRole is returned by Append for roles other than user and assistant.
var ErrInvalidRole = errors.New("invalid turn role")

// Turn is one stored message.
type Turn struct {
	Role      Role      `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// SessionSummary describes one session for listings.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

// Store is the conversation memory contract. Each Append is atomic and
// visible to later reads; concurrent appends to one session all land, in
// undefined relative order.
type Store interface {
	// GetOrCreate returns the session's turns, creating an empty session if absent.
	GetOrCreate(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, role Role, content string) error
	// Clear deletes the session and reports whether it existed.
	Clear(ctx context.Context, sessionID string) (bool, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	// History returns the session's turns in append order.
	History(ctx context.Context, sessionID string) ([]Turn, error)
}

func validRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant
}

// Clip returns s unchanged when it has at most n characters, otherwise its
// first n characters followed by ClipMarker.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ClipMarker
}

// ContextBlock renders the last ContextTurns turns, each clipped to
// ContextTurnClip characters, as the preamble of a follow-up question.
// It is empty when there are no turns.
func ContextBlock(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > ContextTurns {
		turns = turns[len(turns)-ContextTurns:]
	}
	var sb strings.Builder
	sb.WriteString("Previous conversation context:\n")
	for _, t := range turns {
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(Clip(t.Content, ContextTurnClip))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
