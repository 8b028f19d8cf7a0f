package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage rows are append-only. created_at order is the conversation order.
type ChatMessage struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId   uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_messages_session_created,priority:1"`
	Content         string    `gorm:"type:text;not null"`
	Sender          string    `gorm:"type:varchar(16);not null"`
	MessageType     string    `gorm:"type:varchar(32);not null;default:'text'"`
	ProviderTurnRef *string   `gorm:"type:text"` // assistant messages only
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_chat_messages_session_created,priority:2"`

	ChatSession *ChatSession `gorm:"foreignKey:ChatSessionId;constraint:OnDelete:CASCADE"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
