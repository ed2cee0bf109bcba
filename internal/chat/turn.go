package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kishika1sei/askdesk/internal/model"
)

// Turn runs one chat turn and persists the message pair: the user turn with
// its routing metadata, then the assistant reply with retrieval metadata
// and citations, as consecutive rows.
func (s *RAGService) Turn(ctx context.Context, session *model.ChatSession, userMessage string) (*TurnResult, error) {
	result, err := s.Chat(ctx, session, userMessage)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	userMsg := &model.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		Role:        model.ChatRoleUser,
		Content:     userMessage,
		RoutingMeta: result.RoutingMeta,
		CreatedAt:   now,
	}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	retrievalMeta := result.RetrievalMeta
	if result.Reason != "" {
		if retrievalMeta == nil {
			retrievalMeta = map[string]any{}
		}
		retrievalMeta["reason"] = result.Reason
	}

	assistantMsg := &model.ChatMessage{
		ID:            uuid.NewString(),
		SessionID:     session.ID,
		Role:          model.ChatRoleAssistant,
		Content:       result.Answer,
		RetrievalMeta: retrievalMeta,
		Citations:     result.Citations,
		CreatedAt:     now.Add(time.Millisecond),
	}
	if err := s.messages.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	// An answered turn pins the session to the department that grounded it,
	// so resumed conversations keep their scope.
	if result.Reason == "" {
		if code, _ := result.RoutingMeta["primary_department"].(string); code != "" && code != "unknown" {
			if dep, err := s.departments.GetByCode(ctx, code); err == nil {
				if err := s.messages.UpdateSessionDepartment(ctx, session.ID, dep.ID); err != nil {
					s.logger.Warn("session_department_update_failed",
						slog.String("session_id", session.ID),
						slog.String("error", err.Error()))
				} else {
					session.AnswerDepartmentID = dep.ID
				}
			}
		}
	}

	return result, nil
}
