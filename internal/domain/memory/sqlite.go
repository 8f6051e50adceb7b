package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matiasleandrokruk/codeassist/pkg/uuid"
)

// SQLiteStore persists sessions in the conversation_session and
// conversation_turn tables. The schema is applied by sqlite.MigrateUp.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

const timeLayout = time.RFC3339Nano

func (s *SQLiteStore) GetOrCreate(ctx context.Context, sessionID string) ([]Turn, error) {
	ts := s.now().UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_session (session_id, created_at, last_activity)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING`, sessionID, ts, ts); err != nil {
		return nil, fmt.Errorf("memory: create session: %w", err)
	}
	return s.turns(ctx, sessionID)
}

// Append upserts the session and inserts the turn with the next sequence
// number in one transaction. The upsert takes the write lock first, so the
// MAX(seq) read that follows is serialized with other writers.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, role Role, content string) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	ts := s.now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_session (session_id, created_at, last_activity)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET last_activity = excluded.last_activity`,
		sessionID, ts, ts); err != nil {
		return fmt.Errorf("memory: upsert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_turn (id, session_id, seq, role, content, created_at)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM conversation_turn WHERE session_id = ?`,
		uuid.NewString(), sessionID, string(role), content, ts, sessionID); err != nil {
		return fmt.Errorf("memory: insert turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_session WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("memory: clear session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("memory: clear session: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.last_activity, COUNT(t.id)
		FROM conversation_session s
		LEFT JOIN conversation_turn t ON t.session_id = s.session_id
		GROUP BY s.session_id, s.last_activity
		ORDER BY s.session_id`)
	if err != nil {
		return nil, fmt.Errorf("memory: list sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		var last string
		if err := rows.Scan(&sum.SessionID, &last, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("memory: scan session: %w", err)
		}
		sum.LastActivity = parseTime(last)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	return s.GetOrCreate(ctx, sessionID)
}

func (s *SQLiteStore) turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM conversation_turn
		WHERE session_id = ?
		ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: load turns: %w", err)
	}
	defer rows.Close()

	out := []Turn{}
	for rows.Next() {
		var t Turn
		var role, created string
		if err := rows.Scan(&role, &t.Content, &created); err != nil {
			return nil, fmt.Errorf("memory: scan turn: %w", err)
		}
		t.Role = Role(role)
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
