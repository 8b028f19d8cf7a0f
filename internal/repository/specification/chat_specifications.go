package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type BySender struct {
	Sender string
}

func (s BySender) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sender = ?", s.Sender)
}

// HasTurnRef keeps messages that carry a provider continuity handle.
type HasTurnRef struct{}

func (s HasTurnRef) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("provider_turn_ref IS NOT NULL")
}

type ByChatMessageIDs struct {
	IDs []uuid.UUID
}

func (s ByChatMessageIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_message_id IN ?", s.IDs)
}

type Unconfirmed struct{}

func (s Unconfirmed) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("confirmed_at IS NULL")
}

// Claimable matches confirmed, unexecuted actions without a live execution
// claim. Claims taken before StaleBefore count as abandoned.
type Claimable struct {
	StaleBefore time.Time
}

func (s Claimable) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("confirmed_at IS NOT NULL AND executed_at IS NULL").
		Where("execution_claimed_at IS NULL OR execution_claimed_at < ?", s.StaleBefore)
}
