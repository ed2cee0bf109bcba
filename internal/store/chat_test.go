package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kishika1sei/askdesk/internal/model"
)

func sessionFixture(id, userID string, createdAt time.Time) *model.ChatSession {
	return &model.ChatSession{
		ID:        id,
		UserID:    userID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestChatStore_GetOpenSessionReturnsNewestOpen(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s1", "u1", base)))
	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s2", "u1", base.Add(time.Hour))))

	open, err := chats.GetOpenSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s2", open.ID)
	assert.Nil(t, open.EndedAt)
}

func TestChatStore_GetOpenSessionMissingIsErrNoRows(t *testing.T) {
	db := openTestDB(t)

	_, err := NewChatStore(db).GetOpenSession(context.Background(), "u1")

	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestChatStore_EndSessionClosesIt(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)
	ctx := context.Background()

	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s1", "u1", created)))

	require.NoError(t, chats.EndSession(ctx, "s1", created.Add(time.Hour)))

	_, err := chats.GetOpenSession(ctx, "u1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestChatStore_UpdateSessionDepartment(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)
	ctx := context.Background()
	dep := seedDepartment(t, db, "hr")

	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s1", "u1", time.Now().UTC())))

	require.NoError(t, chats.UpdateSessionDepartment(ctx, "s1", dep.ID))

	open, err := chats.GetOpenSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, dep.ID, open.AnswerDepartmentID)
}

func messageFixture(id, sessionID string, role model.ChatRole, content string, at time.Time) *model.ChatMessage {
	return &model.ChatMessage{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}

func TestChatStore_AppendMessageRoundTripsMeta(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)
	ctx := context.Background()

	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s1", "u1", at)))

	user := messageFixture("m1", "s1", model.ChatRoleUser, "経費精算の締切は?", at)
	user.RoutingMeta = map[string]any{"primary_department": "finance"}
	require.NoError(t, chats.AppendMessage(ctx, user))

	assistant := messageFixture("m2", "s1", model.ChatRoleAssistant, "毎月5日です。", at.Add(time.Second))
	assistant.RetrievalMeta = map[string]any{"scope_used": "finance", "fallback": false}
	assistant.Citations = []model.Citation{{
		DocumentID: "d1",
		Title:      "経費規程",
		Locator:    model.Locator{Type: "page_set", Pages: []int{2, 5}},
	}}
	require.NoError(t, chats.AppendMessage(ctx, assistant))

	msgs, err := chats.RecentMessages(ctx, "s1", 10)
	require.NoError(t, err)

	// Chronological order, metadata intact after the JSON round trip.
	require.Len(t, msgs, 2)
	assert.Equal(t, model.ChatRoleUser, msgs[0].Role)
	assert.Equal(t, "finance", msgs[0].RoutingMeta["primary_department"])
	assert.Nil(t, msgs[0].RetrievalMeta)
	assert.Nil(t, msgs[0].Citations)

	assert.Equal(t, model.ChatRoleAssistant, msgs[1].Role)
	assert.Equal(t, "finance", msgs[1].RetrievalMeta["scope_used"])
	assert.Equal(t, false, msgs[1].RetrievalMeta["fallback"])
	require.Len(t, msgs[1].Citations, 1)
	assert.Equal(t, "経費規程", msgs[1].Citations[0].Title)
	assert.Equal(t, []int{2, 5}, msgs[1].Citations[0].Locator.Pages)
}

func TestChatStore_AppendMessageBumpsSessionUpdatedAt(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)
	ctx := context.Background()

	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s1", "u1", created)))

	later := created.Add(time.Hour)
	require.NoError(t, chats.AppendMessage(ctx,
		messageFixture("m1", "s1", model.ChatRoleUser, "質問です", later)))

	open, err := chats.GetOpenSession(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, open.UpdatedAt.Equal(later), "updated_at %v, want %v", open.UpdatedAt, later)
}

func TestChatStore_RecentMessagesHonoursLimitKeepingNewest(t *testing.T) {
	db := openTestDB(t)
	chats := NewChatStore(db)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, chats.CreateSession(ctx, sessionFixture("s1", "u1", base)))
	for i := 0; i < 5; i++ {
		require.NoError(t, chats.AppendMessage(ctx, messageFixture(
			fmt.Sprintf("m%d", i), "s1", model.ChatRoleUser,
			fmt.Sprintf("質問 %d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	msgs, err := chats.RecentMessages(ctx, "s1", 2)
	require.NoError(t, err)

	// The window keeps the newest two, still oldest first.
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m4", msgs[1].ID)
}
