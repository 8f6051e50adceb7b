package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

type session struct {
	turns        []Turn
	lastActivity time.Time
}

// InMemoryStore keeps sessions in a map for the life of the process. There
// is no eviction.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

func (s *InMemoryStore) GetOrCreate(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn{}, s.getOrCreateLocked(sessionID).turns...), nil
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, role Role, content string) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(sessionID)
	now := s.now()
	sess.turns = append(sess.turns, Turn{Role: role, Content: content, CreatedAt: now})
	sess.lastActivity = now
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionSummary, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, SessionSummary{SessionID: id, MessageCount: len(sess.turns), LastActivity: sess.lastActivity})
	}
	slices.SortFunc(out, func(a, b SessionSummary) int { return strings.Compare(a.SessionID, b.SessionID) })
	return out, nil
}

func (s *InMemoryStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	return s.GetOrCreate(ctx, sessionID)
}

// getOrCreateLocked requires s.mu held for writing.
func (s *InMemoryStore) getOrCreateLocked(sessionID string) *session {
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{lastActivity: s.now()}
		s.sessions[sessionID] = sess
	}
	return sess
}
