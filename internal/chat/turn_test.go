package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kishika1sei/askdesk/internal/model"
)

func TestTurn_PersistsMessagePair(t *testing.T) {
	fx := newRAGFixture(t, businessDecision(t, "hr"), []float32{1, 0, 0, 0})

	result, err := fx.rag.Turn(context.Background(), fx.session, "有給休暇の繰越上限は?")
	require.NoError(t, err)

	// Two consecutive rows: the user turn then the assistant turn.
	require.Len(t, fx.store.appended, 2)
	userMsg, assistantMsg := fx.store.appended[0], fx.store.appended[1]

	assert.Equal(t, model.ChatRoleUser, userMsg.Role)
	assert.Equal(t, "有給休暇の繰越上限は?", userMsg.Content)
	assert.Equal(t, fx.session.ID, userMsg.SessionID)
	assert.Equal(t, "hr", userMsg.RoutingMeta["primary_department"])
	assert.Nil(t, userMsg.RetrievalMeta)

	assert.Equal(t, model.ChatRoleAssistant, assistantMsg.Role)
	assert.Equal(t, result.Answer, assistantMsg.Content)
	assert.Equal(t, "hr", assistantMsg.RetrievalMeta["scope_used"])
	assert.Equal(t, result.Citations, assistantMsg.Citations)
	assert.True(t, assistantMsg.CreatedAt.After(userMsg.CreatedAt))
}

func TestTurn_RecordsAnswerDepartment(t *testing.T) {
	fx := newRAGFixture(t, businessDecision(t, "hr"), []float32{1, 0, 0, 0})

	_, err := fx.rag.Turn(context.Background(), fx.session, "有給休暇の繰越上限は?")
	require.NoError(t, err)

	assert.Equal(t, "dep-hr", fx.store.deptUpdates["sess-1"])
	assert.Equal(t, "dep-hr", fx.session.AnswerDepartmentID)
}

func TestTurn_ShortCircuitLeavesSessionDepartment(t *testing.T) {
	client := &fakeLLM{structured: decisionJSON(t, RoutingDecision{
		IsBusiness:         false,
		BusinessConfidence: 0.9,
	})}
	fx := newRAGFixture(t, client, []float32{1, 0, 0, 0})

	_, err := fx.rag.Turn(context.Background(), fx.session, "今日の天気は?")
	require.NoError(t, err)

	assert.Empty(t, fx.store.deptUpdates)
	assert.Empty(t, fx.session.AnswerDepartmentID)
}

func TestTurn_RecordsShortCircuitReason(t *testing.T) {
	client := &fakeLLM{structured: decisionJSON(t, RoutingDecision{
		IsBusiness:           true,
		PrimaryDepartment:    "unknown",
		NeedsClarification:   true,
		ClarifyingQuestion:   "どの制度の話ですか?",
		SecondaryDepartments: []string{},
	})}
	fx := newRAGFixture(t, client, []float32{1, 0, 0, 0})

	_, err := fx.rag.Turn(context.Background(), fx.session, "あれの件")
	require.NoError(t, err)

	require.Len(t, fx.store.appended, 2)
	assistantMsg := fx.store.appended[1]
	assert.Equal(t, "どの制度の話ですか?", assistantMsg.Content)
	assert.Equal(t, "needs_clarification", assistantMsg.RetrievalMeta["reason"])
}
