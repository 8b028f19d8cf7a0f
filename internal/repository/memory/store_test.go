package memory_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/repository/contract"
	"ai-shopping-assistant-be/internal/repository/memory"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages_CreationOrderAndTurnRef(t *testing.T) {
	ctx := context.Background()
	uow := memory.NewStore().NewUnitOfWork(ctx)
	sessionId := uuid.New()
	ref := "resp_1"

	msgs := []*entity.ChatMessage{
		{ChatSessionId: sessionId, Content: "a", Sender: constant.ChatMessageSenderUser},
		{ChatSessionId: sessionId, Content: "b", Sender: constant.ChatMessageSenderAssistant, ProviderTurnRef: &ref},
		{ChatSessionId: uuid.New(), Content: "other", Sender: constant.ChatMessageSenderUser},
		{ChatSessionId: sessionId, Content: "c", Sender: constant.ChatMessageSenderUser},
	}
	for _, m := range msgs {
		require.NoError(t, uow.ChatMessageRepository().Create(ctx, m))
	}

	got, err := uow.ChatMessageRepository().FindAllBySession(ctx, sessionId)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Content, got[1].Content, got[2].Content})
	assert.Equal(t, constant.ChatMessageTypeText, got[0].MessageType)

	last, err := uow.ChatMessageRepository().FindLastAssistantTurnRef(ctx, sessionId)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "resp_1", *last)
}

func TestSessions_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().NewUnitOfWork(ctx).ChatSessionRepository()
	owner, stranger := uuid.New(), uuid.New()

	first := &entity.ChatSession{UserId: owner, CreatedAt: time.Now().Add(-time.Minute)}
	second := &entity.ChatSession{UserId: owner}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	list, err := repo.FindAllByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Id, list[0].Id)

	found, err := repo.FindByIdForUser(ctx, first.Id, stranger)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPendingActions(t *testing.T) {
	ctx := context.Background()
	newAction := func(t *testing.T, repo contract.PendingActionRepository) *entity.PendingAction {
		action := &entity.PendingAction{
			ChatMessageId: uuid.New(),
			ActionType:    constant.ActionTypeSuggestCarts,
			Payload:       json.RawMessage(`{"input":"milk"}`),
		}
		created, err := repo.CreateIdempotent(ctx, action)
		require.NoError(t, err)
		require.True(t, created)
		return action
	}

	t.Run("duplicate message and type is not created", func(t *testing.T) {
		repo := memory.NewStore().NewUnitOfWork(ctx).PendingActionRepository()
		action := newAction(t, repo)

		created, err := repo.CreateIdempotent(ctx, &entity.PendingAction{
			ChatMessageId: action.ChatMessageId,
			ActionType:    action.ActionType,
			Payload:       json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("concurrent confirms succeed exactly once", func(t *testing.T) {
		repo := memory.NewStore().NewUnitOfWork(ctx).PendingActionRepository()
		action := newAction(t, repo)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.MarkConfirmed(ctx, action.Id, time.Now())
				if err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)

		confirmable, err := repo.FindConfirmable(ctx, action.Id)
		require.NoError(t, err)
		assert.Nil(t, confirmable)
	})

	t.Run("claim is exclusive until released or stale", func(t *testing.T) {
		repo := memory.NewStore().NewUnitOfWork(ctx).PendingActionRepository()
		action := newAction(t, repo)
		now := time.Now()

		ok, err := repo.ClaimExecution(ctx, action.Id, now)
		require.NoError(t, err)
		assert.False(t, ok, "unconfirmed action cannot be claimed")

		ok, err = repo.MarkConfirmed(ctx, action.Id, now)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.ClaimExecution(ctx, action.Id, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok, "confirm holds the claim")

		require.NoError(t, repo.ReleaseExecution(ctx, action.Id, "provider down"))
		stored, err := repo.FindById(ctx, action.Id)
		require.NoError(t, err)
		require.NotNil(t, stored.LastError)
		assert.Equal(t, "provider down", *stored.LastError)

		ok, err = repo.ClaimExecution(ctx, action.Id, now.Add(2*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ClaimExecution(ctx, action.Id, now.Add(2*time.Second+contract.ExecutionClaimTTL+time.Second))
		require.NoError(t, err)
		assert.True(t, ok, "stale claim can be taken over")

		require.NoError(t, repo.MarkExecuted(ctx, action.Id, now.Add(time.Hour)))
		ok, err = repo.ClaimExecution(ctx, action.Id, now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, ok, "executed action cannot be claimed")
	})
}

func TestCatalog_SimilarityAndEmbeddings(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().NewUnitOfWork(ctx).CatalogRepository()

	store := &entity.Store{Name: "Corner"}
	require.NoError(t, repo.CreateStore(ctx, store))
	milk := &entity.Product{StoreId: store.Id, Name: "Milk", Price: decimal.RequireFromString("1.20")}
	bread := &entity.Product{StoreId: store.Id, Name: "Bread", Price: decimal.RequireFromString("2.00")}
	require.NoError(t, repo.CreateProduct(ctx, milk))
	require.NoError(t, repo.CreateProduct(ctx, bread))

	missing, err := repo.FindProductsMissingEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	written, err := repo.UpsertEmbeddings(ctx, []shopping.EmbeddingRecord{
		{ProductId: milk.Id, Embedding: []float32{1, 0}},
		{ProductId: bread.Id, Embedding: []float32{0, 1}},
		{ProductId: 999, Embedding: []float32{1, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	hits, err := repo.FindCandidatesBySimilarity(ctx, []float32{1, 0}, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, milk.Id, hits[0].ProductId)
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)

	storeId, found, err := repo.LookupStoreForProduct(ctx, bread.Id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, store.Id, storeId)

	_, found, err = repo.LookupStoreForProduct(ctx, 999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"width mismatch", []float32{1}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, memory.CosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}
