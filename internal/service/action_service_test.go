package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/pkg/events"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// proposeCarts runs one turn that proposes suggest_carts and returns the
// session and action ids.
func proposeCarts(t *testing.T, f *fixture) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	sessionId := f.newSession(t)
	f.provider.script(cartsProposal("milk for breakfast", "ref-1"))

	_, err := f.conversation.SendMessage(ctx, f.userId, sessionId, &dto.SendMessageRequest{Content: "I need milk"})
	require.NoError(t, err)

	detail, err := f.conversation.GetSession(ctx, f.userId, sessionId)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	require.NotNil(t, detail.Messages[1].Action)
	return sessionId, detail.Messages[1].Action.Id
}

func TestConfirm_SuggestCarts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	catalog := f.seedCatalog(t)
	sessionId, actionId := proposeCarts(t, f)

	res, err := f.actions.Confirm(ctx, f.userId, sessionId, actionId)
	require.NoError(t, err)
	assert.Equal(t, actionId, res.ActionId)
	require.Len(t, res.Carts, 1)
	assert.Equal(t, catalog.corner, res.Carts[0].StoreId)

	var productIds []int64
	for _, p := range res.Carts[0].Products {
		productIds = append(productIds, p.ProductId)
	}
	assert.ElementsMatch(t, []int64{catalog.milk, catalog.oatMilk}, productIds)

	detail, err := f.conversation.GetSession(ctx, f.userId, sessionId)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 3)
	result := detail.Messages[2]
	assert.Equal(t, constant.ChatMessageTypeSuggestCartsResult, result.MessageType)
	assert.Equal(t, constant.ChatMessageSenderAssistant, result.Sender)

	var stored []shopping.CartProposal
	require.NoError(t, json.Unmarshal([]byte(result.Content), &stored))
	assert.Len(t, stored, 1)

	action := detail.Messages[1].Action
	require.NotNil(t, action)
	assert.NotNil(t, action.ConfirmedAt)
	assert.NotNil(t, action.ExecutedAt)

	_, err = f.actions.Confirm(ctx, f.userId, sessionId, actionId)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	assert.Equal(t, []string{events.TypeMessageSent, events.TypeActionConfirmed, events.TypeActionExecuted}, f.events.Types())
}

func TestConfirm_NoCandidatesYieldsEmptyCarts(t *testing.T) {
	f := newFixture(t)
	sessionId, actionId := proposeCarts(t, f)

	res, err := f.actions.Confirm(context.Background(), f.userId, sessionId, actionId)
	require.NoError(t, err)
	assert.Empty(t, res.Carts)
}

func TestConfirm_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessionId, actionId := proposeCarts(t, f)
	otherSession := f.newSession(t)

	tests := []struct {
		name      string
		sessionId uuid.UUID
		actionId  uuid.UUID
	}{
		{"unknown action", sessionId, uuid.New()},
		{"unknown session", uuid.New(), actionId},
		{"action of another session", otherSession, actionId},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.actions.Confirm(ctx, f.userId, tt.sessionId, tt.actionId)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindNotFound))
		})
	}
}

func TestConfirm_ConcurrentCallersSucceedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCatalog(t)
	sessionId, actionId := proposeCarts(t, f)

	const callers = 12
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.actions.Confirm(ctx, f.userId, sessionId, actionId)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		kind := apperror.KindOf(err)
		assert.Contains(t, []apperror.Kind{apperror.KindConflict, apperror.KindNotFound}, kind)
	}
	assert.Equal(t, 1, successes)

	detail, err := f.conversation.GetSession(ctx, f.userId, sessionId)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 3, "exactly one cart result message")
}

func TestConfirm_FailedExecutionCanBeRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCatalog(t)
	sessionId, actionId := proposeCarts(t, f)
	f.provider.embedErrs = 1

	_, err := f.actions.Confirm(ctx, f.userId, sessionId, actionId)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindGateway))

	detail, err := f.conversation.GetSession(ctx, f.userId, sessionId)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	action := detail.Messages[1].Action
	assert.NotNil(t, action.ConfirmedAt)
	assert.Nil(t, action.ExecutedAt)
	require.NotNil(t, action.LastError)

	_, err = f.actions.Confirm(ctx, f.userId, sessionId, actionId)
	assert.True(t, apperror.Is(err, apperror.KindConflict), "confirmation is not repeated")

	res, err := f.actions.Retry(ctx, f.userId, sessionId, actionId)
	require.NoError(t, err)
	assert.Len(t, res.Carts, 1)

	_, err = f.actions.Retry(ctx, f.userId, sessionId, actionId)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	assert.Equal(t, []string{
		events.TypeMessageSent,
		events.TypeActionConfirmed,
		events.TypeActionFailed,
		events.TypeActionExecuted,
	}, f.events.Types())
}

func TestRetry_UnconfirmedIsConflict(t *testing.T) {
	f := newFixture(t)
	sessionId, actionId := proposeCarts(t, f)

	_, err := f.actions.Retry(context.Background(), f.userId, sessionId, actionId)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestConfirm_UnsupportedActionType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessionId := f.newSession(t)
	uow := f.store.NewUnitOfWork(ctx)

	message := &entity.ChatMessage{
		ChatSessionId: sessionId,
		Content:       "I will schedule the delivery.",
		Sender:        constant.ChatMessageSenderAssistant,
	}
	require.NoError(t, uow.ChatMessageRepository().Create(ctx, message))
	action := &entity.PendingAction{
		ChatMessageId: message.Id,
		ActionType:    "schedule_delivery",
		Payload:       json.RawMessage(`{}`),
	}
	created, err := uow.PendingActionRepository().CreateIdempotent(ctx, action)
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.actions.Confirm(ctx, f.userId, sessionId, action.Id)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUnsupported))

	stored, err := uow.PendingActionRepository().FindById(ctx, action.Id)
	require.NoError(t, err)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.Nil(t, stored.ExecutedAt)
	require.NotNil(t, stored.LastError)

	t.Run("retry does not run it again", func(t *testing.T) {
		_, err := f.actions.Retry(ctx, f.userId, sessionId, action.Id)
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.KindUnsupported))

		after, err := uow.PendingActionRepository().FindById(ctx, action.Id)
		require.NoError(t, err)
		assert.Nil(t, after.ExecutionClaimedAt)
		assert.Equal(t, []string{events.TypeActionConfirmed, events.TypeActionFailed}, f.events.Types())
	})
}

func TestConfirm_ResultSortsAfterLatestMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCatalog(t)
	sessionId, actionId := proposeCarts(t, f)

	// A message stamped ahead of the wall clock, as laterThan can produce.
	ahead := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	require.NoError(t, f.store.NewUnitOfWork(ctx).ChatMessageRepository().Create(ctx, &entity.ChatMessage{
		ChatSessionId: sessionId,
		Content:       "and some bread",
		Sender:        constant.ChatMessageSenderUser,
		CreatedAt:     ahead,
	}))

	_, err := f.actions.Confirm(ctx, f.userId, sessionId, actionId)
	require.NoError(t, err)

	detail, err := f.conversation.GetSession(ctx, f.userId, sessionId)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 4)
	result := detail.Messages[3]
	assert.Equal(t, constant.ChatMessageTypeSuggestCartsResult, result.MessageType)
	assert.True(t, result.CreatedAt.After(ahead), "result %s is not after %s", result.CreatedAt, ahead)
}
