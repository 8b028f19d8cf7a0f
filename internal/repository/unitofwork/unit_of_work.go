package unitofwork

import (
	"context"

	"ai-shopping-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	PendingActionRepository() contract.PendingActionRepository
	CatalogRepository() contract.CatalogRepository
}
