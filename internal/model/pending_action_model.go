package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PendingAction is unique per (chat_message_id, action_type). ConfirmedAt goes
// from NULL to a value exactly once. ExecutionClaimedAt is held while an
// execution runs and cleared again when it fails.
type PendingAction struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatMessageId      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_pending_actions_message_type,priority:1"`
	ActionType         string         `gorm:"type:varchar(64);not null;uniqueIndex:uq_pending_actions_message_type,priority:2"`
	Payload            datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	ConfirmedAt        *time.Time     `gorm:"type:timestamptz"`
	ExecutionClaimedAt *time.Time     `gorm:"type:timestamptz"`
	ExecutedAt         *time.Time     `gorm:"type:timestamptz"`
	LastError          *string        `gorm:"type:text"`

	ChatMessage *ChatMessage `gorm:"foreignKey:ChatMessageId;constraint:OnDelete:CASCADE"`
}

func (PendingAction) TableName() string {
	return "pending_actions"
}
