package contract

import (
	"context"

	"ai-shopping-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	// FindByIdForUser returns (nil, nil) when the session does not exist or
	// belongs to another user.
	FindByIdForUser(ctx context.Context, id, userId uuid.UUID) (*entity.ChatSession, error)
	// FindAllByUser lists the user's sessions, newest first.
	FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error)
}
