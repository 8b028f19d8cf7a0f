package dto

import (
	"encoding/json"
	"time"

	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type SessionResponse struct {
	Id        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,notblank,max=4000"`
}

type ChatMessageResponse struct {
	Id          uuid.UUID       `json:"id"`
	Content     string          `json:"content"`
	Sender      string          `json:"sender"`
	MessageType string          `json:"message_type"`
	CreatedAt   time.Time       `json:"created_at"`
	Action      *ActionResponse `json:"action,omitempty"`
}

type ActionResponse struct {
	Id          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	ConfirmedAt *time.Time      `json:"confirmed_at"`
	ExecutedAt  *time.Time      `json:"executed_at"`
	LastError   *string         `json:"last_error,omitempty"`
}

type SessionDetailResponse struct {
	Id        uuid.UUID             `json:"id"`
	CreatedAt time.Time             `json:"created_at"`
	Messages  []ChatMessageResponse `json:"messages"`
}

type ActionResultResponse struct {
	ActionId uuid.UUID               `json:"action_id"`
	Type     string                  `json:"type"`
	Carts    []shopping.CartProposal `json:"carts"`
}
