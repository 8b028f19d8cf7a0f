package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"` // Owner; sessions of other users are invisible
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
