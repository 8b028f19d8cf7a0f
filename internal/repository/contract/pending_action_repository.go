package contract

import (
	"context"
	"time"

	"ai-shopping-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ExecutionClaimTTL bounds how long a crashed execution can block retries.
const ExecutionClaimTTL = 10 * time.Minute

type PendingActionRepository interface {
	// CreateIdempotent inserts the action unless one with the same
	// (chat_message_id, action_type) exists. created reports whether a row
	// was written.
	CreateIdempotent(ctx context.Context, action *entity.PendingAction) (created bool, err error)
	FindById(ctx context.Context, id uuid.UUID) (*entity.PendingAction, error)
	// FindConfirmable returns the action only while it is unconfirmed.
	FindConfirmable(ctx context.Context, id uuid.UUID) (*entity.PendingAction, error)
	FindByMessageIds(ctx context.Context, messageIds []uuid.UUID) ([]*entity.PendingAction, error)

	// MarkConfirmed sets confirmed_at and takes the execution claim in one
	// conditional update. It reports false when the action was already
	// confirmed.
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ClaimExecution takes the execution claim of a confirmed, unexecuted
	// action that is unclaimed or whose claim is older than ExecutionClaimTTL.
	ClaimExecution(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ReleaseExecution drops the claim and records why the execution failed.
	ReleaseExecution(ctx context.Context, id uuid.UUID, lastError string) error
	MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error
}
