package service

import (
	"context"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/events"
	"ai-shopping-assistant-be/pkg/llm"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ai-shopping-assistant-be/internal/service")

// laterThan returns now, nudged forward so it sorts after prev even at the
// database's microsecond precision.
func laterThan(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func publishEvent(ctx context.Context, publisher events.Publisher, log logger.ILogger, module, eventType string, data map[string]interface{}) {
	if err := publisher.Publish(ctx, events.New(eventType, data)); err != nil {
		log.Warn(module, "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

func toHistory(messages []*entity.ChatMessage) []llm.Message {
	history := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		role := llm.RoleUser
		if m.Sender == constant.ChatMessageSenderAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content, TurnRef: m.ProviderTurnRef})
	}
	return history
}

func toMessageResponse(m *entity.ChatMessage, action *entity.PendingAction) *dto.ChatMessageResponse {
	res := &dto.ChatMessageResponse{
		Id:          m.Id,
		Content:     m.Content,
		Sender:      m.Sender,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
	if action != nil {
		res.Action = &dto.ActionResponse{
			Id:          action.Id,
			Type:        action.ActionType,
			Payload:     action.Payload,
			ConfirmedAt: action.ConfirmedAt,
			ExecutedAt:  action.ExecutedAt,
			LastError:   action.LastError,
		}
	}
	return res
}
