package mapper

import (
	"encoding/json"

	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/model"

	"gorm.io/datatypes"
)

type PendingActionMapper struct{}

func NewPendingActionMapper() *PendingActionMapper {
	return &PendingActionMapper{}
}

func (m *PendingActionMapper) ToEntity(a *model.PendingAction) *entity.PendingAction {
	if a == nil {
		return nil
	}

	return &entity.PendingAction{
		Id:                 a.Id,
		ChatMessageId:      a.ChatMessageId,
		ActionType:         a.ActionType,
		Payload:            json.RawMessage(a.Payload),
		CreatedAt:          a.CreatedAt,
		ConfirmedAt:        a.ConfirmedAt,
		ExecutionClaimedAt: a.ExecutionClaimedAt,
		ExecutedAt:         a.ExecutedAt,
		LastError:          a.LastError,
	}
}

func (m *PendingActionMapper) ToModel(a *entity.PendingAction) *model.PendingAction {
	if a == nil {
		return nil
	}

	return &model.PendingAction{
		Id:                 a.Id,
		ChatMessageId:      a.ChatMessageId,
		ActionType:         a.ActionType,
		Payload:            datatypes.JSON(a.Payload),
		CreatedAt:          a.CreatedAt,
		ConfirmedAt:        a.ConfirmedAt,
		ExecutionClaimedAt: a.ExecutionClaimedAt,
		ExecutedAt:         a.ExecutedAt,
		LastError:          a.LastError,
	}
}

func (m *PendingActionMapper) ToEntities(actions []*model.PendingAction) []*entity.PendingAction {
	entities := make([]*entity.PendingAction, len(actions))
	for i, a := range actions {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
