package contract

import (
	"context"

	"ai-shopping-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	// FindAllBySession returns messages in creation order.
	FindAllBySession(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error)
	// FindOneInSession returns (nil, nil) when the message is not part of the
	// session.
	FindOneInSession(ctx context.Context, id, sessionId uuid.UUID) (*entity.ChatMessage, error)
	// FindLastAssistantTurnRef returns the turn ref of the latest assistant
	// message carrying one, or nil.
	FindLastAssistantTurnRef(ctx context.Context, sessionId uuid.UUID) (*string, error)
}
