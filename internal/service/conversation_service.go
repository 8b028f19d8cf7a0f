package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/pkg/events"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const conversationModule = "CONVERSATION"

type IConversationService interface {
	CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error)
	ListSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error)
	GetSession(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionDetailResponse, error)
	SendMessage(ctx context.Context, userId, sessionId uuid.UUID, request *dto.SendMessageRequest) (*dto.ChatMessageResponse, error)
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   llm.Provider
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	provider llm.Provider,
	publisher events.Publisher,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		provider:   provider,
		publisher:  publisher,
		logger:     log,
	}
}

func (s *conversationService) CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session := &entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		CreatedAt: time.Now().UTC(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, apperror.Internal("failed to create chat session", err)
	}

	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (s *conversationService) ListSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAllByUser(ctx, userId)
	if err != nil {
		return nil, apperror.Internal("failed to list chat sessions", err)
	}

	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		res = append(res, &dto.SessionResponse{Id: session.Id, CreatedAt: session.CreatedAt})
	}
	return res, nil
}

// GetSession returns the session with its messages in creation order. Each
// message carries its pending action, if one was proposed with it.
func (s *conversationService) GetSession(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindByIdForUser(ctx, sessionId, userId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("chat session not found")
	}

	messages, err := uow.ChatMessageRepository().FindAllBySession(ctx, sessionId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat messages", err)
	}

	messageIds := make([]uuid.UUID, 0, len(messages))
	for _, m := range messages {
		messageIds = append(messageIds, m.Id)
	}
	actions, err := uow.PendingActionRepository().FindByMessageIds(ctx, messageIds)
	if err != nil {
		return nil, apperror.Internal("failed to load pending actions", err)
	}
	actionByMessage := make(map[uuid.UUID]*entity.PendingAction, len(actions))
	for _, a := range actions {
		actionByMessage[a.ChatMessageId] = a
	}

	res := &dto.SessionDetailResponse{
		Id:        session.Id,
		CreatedAt: session.CreatedAt,
		Messages:  make([]dto.ChatMessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, *toMessageResponse(m, actionByMessage[m.Id]))
	}
	return res, nil
}

// SendMessage runs one turn and returns the stored user message. When the
// provider fails the user message stays and no assistant message is written.
func (s *conversationService) SendMessage(ctx context.Context, userId, sessionId uuid.UUID, request *dto.SendMessageRequest) (*dto.ChatMessageResponse, error) {
	ctx, span := tracer.Start(ctx, "conversation.SendMessage")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionId.String()))

	text := strings.TrimSpace(request.Content)
	if text == "" {
		return nil, apperror.Validation("message content must not be empty")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindByIdForUser(ctx, sessionId, userId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("chat session not found")
	}

	turnRef, err := uow.ChatMessageRepository().FindLastAssistantTurnRef(ctx, sessionId)
	if err != nil {
		return nil, apperror.Internal("failed to load continuity handle", err)
	}
	prior, err := uow.ChatMessageRepository().FindAllBySession(ctx, sessionId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat history", err)
	}

	var last time.Time
	if len(prior) > 0 {
		last = prior[len(prior)-1].CreatedAt
	}
	userMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Content:       text,
		Sender:        constant.ChatMessageSenderUser,
		MessageType:   constant.ChatMessageTypeText,
		CreatedAt:     laterThan(last),
	}
	if err := uow.ChatMessageRepository().Create(ctx, userMessage); err != nil {
		return nil, apperror.Internal("failed to store user message", err)
	}

	// From here on the caller going away must not cut the turn short.
	ctx = context.WithoutCancel(ctx)

	result, err := s.provider.CompleteTurn(ctx, llm.TurnRequest{
		Message:      text,
		PriorTurnRef: turnRef,
		History:      toHistory(prior),
	})
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		span.RecordError(err)
		s.logger.Warn(conversationModule, "Turn completion failed", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return nil, apperror.Gateway("language model provider failed", err)
	}

	reply := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Content:       result.Reply,
		Sender:        constant.ChatMessageSenderAssistant,
		MessageType:   constant.ChatMessageTypeText,
		CreatedAt:     laterThan(userMessage.CreatedAt),
	}
	if result.TurnRef != "" {
		ref := result.TurnRef
		reply.ProviderTurnRef = &ref
	}

	if err := s.storeReply(ctx, uow, reply, result.Action); err != nil {
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	metrics.TurnsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	publishEvent(ctx, s.publisher, s.logger, conversationModule, events.TypeMessageSent, map[string]interface{}{
		"session_id":      sessionId.String(),
		"user_message_id": userMessage.Id.String(),
		"reply_id":        reply.Id.String(),
		"proposed_action": result.Action != nil,
	})

	return toMessageResponse(userMessage, nil), nil
}

// storeReply writes the assistant message and its proposed action together.
func (s *conversationService) storeReply(ctx context.Context, uow unitofwork.UnitOfWork, reply *entity.ChatMessage, proposed *llm.ProposedAction) error {
	if err := uow.Begin(ctx); err != nil {
		return apperror.Internal("failed to begin transaction", err)
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().Create(ctx, reply); err != nil {
		return apperror.Internal("failed to store assistant reply", err)
	}

	if proposed != nil {
		if !isKnownAction(proposed.Type) {
			s.logger.Warn(conversationModule, "Ignoring unrecognized proposed action", map[string]interface{}{
				"message_id":  reply.Id.String(),
				"action_type": proposed.Type,
			})
		} else {
			action := &entity.PendingAction{
				Id:            uuid.New(),
				ChatMessageId: reply.Id,
				ActionType:    proposed.Type,
				Payload:       json.RawMessage(proposed.Payload),
				CreatedAt:     reply.CreatedAt,
			}
			created, err := uow.PendingActionRepository().CreateIdempotent(ctx, action)
			if err != nil {
				return apperror.Internal("failed to store pending action", err)
			}
			if !created {
				s.logger.Info(conversationModule, "Pending action already exists", map[string]interface{}{
					"message_id":  reply.Id.String(),
					"action_type": proposed.Type,
				})
			}
		}
	}

	if err := uow.Commit(); err != nil {
		return apperror.Internal("failed to commit assistant reply", err)
	}
	return nil
}

func isKnownAction(actionType string) bool {
	return actionType == constant.ActionTypeSuggestCarts
}
