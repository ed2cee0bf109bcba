package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_CreatesWhenNoneOpen(t *testing.T) {
	store := newFakeChatStore()
	m := NewSessionManager(store)

	session, err := m.GetOrCreateOpenSession(context.Background(), "u1")

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "u1", session.UserID)
	assert.Nil(t, session.EndedAt)
}

func TestSessionManager_ReusesOpenSession(t *testing.T) {
	store := newFakeChatStore()
	m := NewSessionManager(store)

	first, err := m.GetOrCreateOpenSession(context.Background(), "u1")
	require.NoError(t, err)
	second, err := m.GetOrCreateOpenSession(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestSessionManager_ResetEndsOpenSession(t *testing.T) {
	store := newFakeChatStore()
	m := NewSessionManager(store)

	first, err := m.GetOrCreateOpenSession(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, m.ResetSession(context.Background(), "u1"))

	// The next turn starts a fresh session.
	next, err := m.GetOrCreateOpenSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.NotNil(t, first.EndedAt)
}

func TestSessionManager_ResetWithoutOpenSessionIsNoop(t *testing.T) {
	m := NewSessionManager(newFakeChatStore())

	assert.NoError(t, m.ResetSession(context.Background(), "u1"))
}

func TestSessionManager_SessionsAreScopedPerOwner(t *testing.T) {
	store := newFakeChatStore()
	m := NewSessionManager(store)

	a, err := m.GetOrCreateOpenSession(context.Background(), "alice")
	require.NoError(t, err)
	b, err := m.GetOrCreateOpenSession(context.Background(), "bob")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}
