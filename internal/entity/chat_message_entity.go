package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id              uuid.UUID
	ChatSessionId   uuid.UUID
	Content         string
	Sender          string
	MessageType     string
	ProviderTurnRef *string
	CreatedAt       time.Time
}
