package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kishika1sei/askdesk/internal/model"
)

// SQLChatStore persists chat sessions and messages. Meta maps and citations
// are stored as JSON text.
type SQLChatStore struct {
	db *DB
}

var _ model.ChatStore = (*SQLChatStore)(nil)

// NewChatStore creates a chat store on the shared handle.
func NewChatStore(db *DB) *SQLChatStore {
	return &SQLChatStore{db: db}
}

// CreateSession inserts a session row.
func (s *SQLChatStore) CreateSession(ctx context.Context, sess *model.ChatSession) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, answer_department_id, title, created_at, updated_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.AnswerDepartmentID, sess.Title,
		sess.CreatedAt, sess.UpdatedAt, nullableTime(sess.EndedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetOpenSession returns the newest session of userID with no end time, or
// sql.ErrNoRows.
func (s *SQLChatStore) GetOpenSession(ctx context.Context, userID string) (*model.ChatSession, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, answer_department_id, title, created_at, updated_at, ended_at
		 FROM chat_sessions
		 WHERE user_id = ? AND ended_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, userID)

	var sess model.ChatSession
	var endedAt sql.NullTime
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.AnswerDepartmentID, &sess.Title,
		&sess.CreatedAt, &sess.UpdatedAt, &endedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}

// EndSession closes a session.
func (s *SQLChatStore) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE chat_sessions SET ended_at = ?, updated_at = ? WHERE id = ?`,
		endedAt, endedAt, sessionID)
	if err != nil {
		return fmt.Errorf("end session %s: %w", sessionID, err)
	}
	return nil
}

// UpdateSessionDepartment records the department the session's answers are
// scoped to.
func (s *SQLChatStore) UpdateSessionDepartment(ctx context.Context, sessionID, departmentID string) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE chat_sessions SET answer_department_id = ?, updated_at = ? WHERE id = ?`,
		departmentID, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("update session department: %w", err)
	}
	return nil
}

// AppendMessage inserts one message and bumps the session's updated_at.
func (s *SQLChatStore) AppendMessage(ctx context.Context, m *model.ChatMessage) error {
	routing, err := marshalNullable(m.RoutingMeta)
	if err != nil {
		return fmt.Errorf("marshal routing meta: %w", err)
	}
	retrieval, err := marshalNullable(m.RetrievalMeta)
	if err != nil {
		return fmt.Errorf("marshal retrieval meta: %w", err)
	}
	var citations any
	if m.Citations != nil {
		data, err := json.Marshal(m.Citations)
		if err != nil {
			return fmt.Errorf("marshal citations: %w", err)
		}
		citations = string(data)
	}

	conn := s.db.conn(ctx)
	_, err = conn.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, routing_meta, retrieval_meta, citations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Role), m.Content, routing, retrieval, citations, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	_, err = conn.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.SessionID)
	return err
}

// RecentMessages returns the newest limit user and assistant messages of the
// session in chronological order.
func (s *SQLChatStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, session_id, role, content, routing_meta, retrieval_meta, citations, created_at
		 FROM chat_messages
		 WHERE session_id = ? AND role IN ('user', 'assistant')
		 ORDER BY created_at DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var role string
		var routing, retrieval, citations sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content,
			&routing, &retrieval, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = model.ChatRole(role)
		if routing.Valid {
			if err := json.Unmarshal([]byte(routing.String), &m.RoutingMeta); err != nil {
				return nil, fmt.Errorf("unmarshal routing meta: %w", err)
			}
		}
		if retrieval.Valid {
			if err := json.Unmarshal([]byte(retrieval.String), &m.RetrievalMeta); err != nil {
				return nil, fmt.Errorf("unmarshal retrieval meta: %w", err)
			}
		}
		if citations.Valid {
			if err := json.Unmarshal([]byte(citations.String), &m.Citations); err != nil {
				return nil, fmt.Errorf("unmarshal citations: %w", err)
			}
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func marshalNullable(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
