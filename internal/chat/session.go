package chat

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/kishika1sei/askdesk/internal/errors"
	"github.com/kishika1sei/askdesk/internal/model"
)

// SessionManager maintains at most one open session per owner.
type SessionManager struct {
	store model.ChatStore
}

// NewSessionManager creates the session manager.
func NewSessionManager(store model.ChatStore) *SessionManager {
	return &SessionManager{store: store}
}

// GetOrCreateOpenSession returns the owner's open session, creating one when
// none exists. userID may be empty for anonymous owners.
func (m *SessionManager) GetOrCreateOpenSession(ctx context.Context, userID string) (*model.ChatSession, error) {
	session, err := m.store.GetOpenSession(ctx, userID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	session = &model.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ResetSession closes the owner's open session so the next turn starts a
// fresh one. A missing open session is not an error.
func (m *SessionManager) ResetSession(ctx context.Context, userID string) error {
	session, err := m.store.GetOpenSession(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.store.EndSession(ctx, session.ID, time.Now().UTC())
}
