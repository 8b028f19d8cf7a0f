package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PendingAction struct {
	Id                 uuid.UUID
	ChatMessageId      uuid.UUID
	ActionType         string
	Payload            json.RawMessage
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	ExecutionClaimedAt *time.Time
	ExecutedAt         *time.Time
	LastError          *string
}

func (a *PendingAction) IsConfirmed() bool {
	return a.ConfirmedAt != nil
}

func (a *PendingAction) IsExecuted() bool {
	return a.ExecutedAt != nil
}
