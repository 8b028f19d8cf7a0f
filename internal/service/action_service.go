package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/pkg/events"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/llm/schema"
	"ai-shopping-assistant-be/pkg/metrics"
	"ai-shopping-assistant-be/pkg/retrieval"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const actionModule = "ACTION"

type IActionService interface {
	// Confirm confirms an unconfirmed action exactly once and executes it.
	Confirm(ctx context.Context, userId, sessionId, actionId uuid.UUID) (*dto.ActionResultResponse, error)
	// Retry executes a confirmed action whose previous execution failed.
	Retry(ctx context.Context, userId, sessionId, actionId uuid.UUID) (*dto.ActionResultResponse, error)
}

type actionService struct {
	uowFactory unitofwork.RepositoryFactory
	provider   llm.Provider
	engine     *retrieval.Engine
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewActionService(
	uowFactory unitofwork.RepositoryFactory,
	provider llm.Provider,
	engine *retrieval.Engine,
	publisher events.Publisher,
	log logger.ILogger,
) IActionService {
	return &actionService{
		uowFactory: uowFactory,
		provider:   provider,
		engine:     engine,
		publisher:  publisher,
		logger:     log,
	}
}

// loadAction returns the action only when its message belongs to a session
// the user owns.
func (s *actionService) loadAction(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId, actionId uuid.UUID) (*entity.PendingAction, error) {
	session, err := uow.ChatSessionRepository().FindByIdForUser(ctx, sessionId, userId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("chat session not found")
	}

	action, err := uow.PendingActionRepository().FindById(ctx, actionId)
	if err != nil {
		return nil, apperror.Internal("failed to load pending action", err)
	}
	if action == nil {
		return nil, apperror.NotFound("pending action not found")
	}

	message, err := uow.ChatMessageRepository().FindOneInSession(ctx, action.ChatMessageId, sessionId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat message", err)
	}
	if message == nil {
		return nil, apperror.NotFound("pending action not found")
	}
	return action, nil
}

func (s *actionService) Confirm(ctx context.Context, userId, sessionId, actionId uuid.UUID) (*dto.ActionResultResponse, error) {
	ctx, span := tracer.Start(ctx, "action.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("action.id", actionId.String()))

	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindByIdForUser(ctx, sessionId, userId)
	if err != nil {
		return nil, apperror.Internal("failed to load chat session", err)
	}
	if session == nil {
		return nil, apperror.NotFound("chat session not found")
	}

	confirmable, err := uow.PendingActionRepository().FindConfirmable(ctx, actionId)
	if err != nil {
		return nil, apperror.Internal("failed to load pending action", err)
	}
	if confirmable == nil {
		// Tell an already confirmed action apart from a missing one.
		if _, err := s.loadAction(ctx, uow, userId, sessionId, actionId); err != nil {
			return nil, err
		}
		metrics.ActionOutcomes.WithLabelValues("unknown", metrics.OutcomeConflict).Inc()
		return nil, apperror.Conflict("action was already confirmed")
	}

	action, err := s.loadAction(ctx, uow, userId, sessionId, actionId)
	if err != nil {
		return nil, err
	}

	ok, err := uow.PendingActionRepository().MarkConfirmed(ctx, action.Id, time.Now().UTC())
	if err != nil {
		return nil, apperror.Internal("failed to confirm action", err)
	}
	if !ok {
		metrics.ActionOutcomes.WithLabelValues(action.ActionType, metrics.OutcomeConflict).Inc()
		return nil, apperror.Conflict("action was already confirmed")
	}

	ctx = context.WithoutCancel(ctx)
	publishEvent(ctx, s.publisher, s.logger, actionModule, events.TypeActionConfirmed, map[string]interface{}{
		"session_id":  sessionId.String(),
		"action_id":   action.Id.String(),
		"action_type": action.ActionType,
	})

	return s.execute(ctx, uow, sessionId, action)
}

func (s *actionService) Retry(ctx context.Context, userId, sessionId, actionId uuid.UUID) (*dto.ActionResultResponse, error) {
	ctx, span := tracer.Start(ctx, "action.Retry")
	defer span.End()
	span.SetAttributes(attribute.String("action.id", actionId.String()))

	uow := s.uowFactory.NewUnitOfWork(ctx)

	action, err := s.loadAction(ctx, uow, userId, sessionId, actionId)
	if err != nil {
		return nil, err
	}
	if !action.IsConfirmed() {
		return nil, apperror.Conflict("action is not confirmed")
	}
	if action.IsExecuted() {
		return nil, apperror.Conflict("action was already executed")
	}
	// An unsupported action failed for good on confirm.
	if !isKnownAction(action.ActionType) {
		return nil, apperror.Unsupported("unsupported action type " + action.ActionType)
	}

	ok, err := uow.PendingActionRepository().ClaimExecution(ctx, action.Id, time.Now().UTC())
	if err != nil {
		return nil, apperror.Internal("failed to claim action execution", err)
	}
	if !ok {
		metrics.ActionOutcomes.WithLabelValues(action.ActionType, metrics.OutcomeConflict).Inc()
		return nil, apperror.Conflict("action is being executed or was already executed")
	}

	return s.execute(context.WithoutCancel(ctx), uow, sessionId, action)
}

// execute runs a claimed action. On failure the claim is released with the
// error so the action can be retried.
func (s *actionService) execute(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, action *entity.PendingAction) (*dto.ActionResultResponse, error) {
	var (
		carts []shopping.CartProposal
		err   error
	)

	switch action.ActionType {
	case constant.ActionTypeSuggestCarts:
		carts, err = s.suggestCarts(ctx, uow, action)
	default:
		err = apperror.Unsupported("unsupported action type " + action.ActionType)
	}

	if err == nil {
		err = s.storeResult(ctx, uow, sessionId, action, carts)
	}

	if err != nil {
		s.fail(ctx, uow, sessionId, action, err)
		return nil, err
	}

	metrics.ActionOutcomes.WithLabelValues(action.ActionType, metrics.OutcomeSuccess).Inc()
	publishEvent(ctx, s.publisher, s.logger, actionModule, events.TypeActionExecuted, map[string]interface{}{
		"session_id":  sessionId.String(),
		"action_id":   action.Id.String(),
		"action_type": action.ActionType,
		"carts":       len(carts),
	})

	return &dto.ActionResultResponse{
		ActionId: action.Id,
		Type:     action.ActionType,
		Carts:    carts,
	}, nil
}

func (s *actionService) suggestCarts(ctx context.Context, uow unitofwork.UnitOfWork, action *entity.PendingAction) ([]shopping.CartProposal, error) {
	payload, err := schema.ParseSuggestCartsPayload(action.Payload)
	if err != nil {
		return nil, apperror.Internal("stored suggest_carts payload is invalid", err)
	}

	vector, err := s.provider.Embed(ctx, payload.Input)
	if err != nil {
		return nil, apperror.Gateway("failed to embed request", err)
	}

	candidates, err := s.engine.Retrieve(ctx, uow.CatalogRepository(), vector)
	if err != nil {
		return nil, apperror.Internal("failed to retrieve candidates", err)
	}
	if len(candidates) == 0 {
		s.logger.Info(actionModule, "No catalog candidates under threshold", map[string]interface{}{
			"action_id": action.Id.String(),
		})
		return []shopping.CartProposal{}, nil
	}

	carts, err := s.provider.AssembleCarts(ctx, candidates, payload.Input)
	if err != nil {
		return nil, apperror.Gateway("failed to assemble carts", err)
	}

	return s.dropMovedProducts(ctx, uow, carts)
}

// dropMovedProducts removes products that no longer belong to the cart's
// store, and carts left empty by that.
func (s *actionService) dropMovedProducts(ctx context.Context, uow unitofwork.UnitOfWork, carts []shopping.CartProposal) ([]shopping.CartProposal, error) {
	out := make([]shopping.CartProposal, 0, len(carts))
	for _, cart := range carts {
		kept := make([]shopping.CartProduct, 0, len(cart.Products))
		for _, p := range cart.Products {
			storeId, found, err := uow.CatalogRepository().LookupStoreForProduct(ctx, p.ProductId)
			if err != nil {
				return nil, apperror.Internal("failed to look up product store", err)
			}
			if !found || storeId != cart.StoreId {
				s.logger.Warn(actionModule, "Dropping product no longer sold by store", map[string]interface{}{
					"product_id": p.ProductId,
					"store_id":   cart.StoreId,
				})
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) > 0 {
			cart.Products = kept
			out = append(out, cart)
		}
	}
	return out, nil
}

func (s *actionService) storeResult(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, action *entity.PendingAction, carts []shopping.CartProposal) error {
	content, err := json.Marshal(carts)
	if err != nil {
		return apperror.Internal("failed to encode carts", err)
	}

	prior, err := uow.ChatMessageRepository().FindAllBySession(ctx, sessionId)
	if err != nil {
		return apperror.Internal("failed to load chat history", err)
	}
	var last time.Time
	for _, m := range prior {
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return apperror.Internal("failed to begin transaction", err)
	}
	defer uow.Rollback()

	now := laterThan(last)
	result := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Content:       string(content),
		Sender:        constant.ChatMessageSenderAssistant,
		MessageType:   constant.ChatMessageTypeSuggestCartsResult,
		CreatedAt:     now,
	}
	if err := uow.ChatMessageRepository().Create(ctx, result); err != nil {
		return apperror.Internal("failed to store cart result", err)
	}
	if err := uow.PendingActionRepository().MarkExecuted(ctx, action.Id, now); err != nil {
		return apperror.Internal("failed to mark action executed", err)
	}

	if err := uow.Commit(); err != nil {
		return apperror.Internal("failed to commit cart result", err)
	}
	return nil
}

func (s *actionService) fail(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, action *entity.PendingAction, cause error) {
	outcome := metrics.OutcomeError
	if errors.Is(cause, llm.ErrTimeout) {
		outcome = metrics.OutcomeTimeout
	}
	metrics.ActionOutcomes.WithLabelValues(action.ActionType, outcome).Inc()

	if err := uow.PendingActionRepository().ReleaseExecution(ctx, action.Id, cause.Error()); err != nil {
		s.logger.Error(actionModule, "Failed to release execution claim", map[string]interface{}{
			"action_id": action.Id.String(),
			"error":     err.Error(),
		})
	}

	s.logger.Warn(actionModule, "Action execution failed", map[string]interface{}{
		"action_id":   action.Id.String(),
		"action_type": action.ActionType,
		"kind":        apperror.KindOf(cause).String(),
		"error":       cause.Error(),
	})
	publishEvent(ctx, s.publisher, s.logger, actionModule, events.TypeActionFailed, map[string]interface{}{
		"session_id":  sessionId.String(),
		"action_id":   action.Id.String(),
		"action_type": action.ActionType,
		"kind":        apperror.KindOf(cause).String(),
	})
}
