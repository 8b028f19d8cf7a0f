package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/service"
	"ai-shopping-assistant-be/pkg/idempotency"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notificationTopic = "EMBEDDING_NOTIFICATION"

// seedUnembedded creates a store with two products that have no embedding.
func seedUnembedded(t *testing.T, f *fixture) []int64 {
	t.Helper()
	ctx := context.Background()
	repo := f.store.NewUnitOfWork(ctx).CatalogRepository()

	store := &entity.Store{Name: "Bakery"}
	require.NoError(t, repo.CreateStore(ctx, store))

	var ids []int64
	for _, name := range []string{"Sourdough", "Baguette"} {
		p := &entity.Product{StoreId: store.Id, Name: name, Price: decimal.RequireFromString("3.00")}
		require.NoError(t, repo.CreateProduct(ctx, p))
		ids = append(ids, p.Id)
	}
	return ids
}

func TestSubmitMissing(t *testing.T) {
	ctx := context.Background()

	t.Run("respects limit", func(t *testing.T) {
		f := newFixture(t)
		ids := seedUnembedded(t, f)
		svc := service.NewCatalogEmbeddingService(f.store, f.provider, 100, logger.NewNopLogger())

		res, err := svc.SubmitMissing(ctx, &dto.SubmitEmbeddingsRequest{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Submitted)
		require.Len(t, f.provider.submitted, 1)
		assert.Equal(t, []shopping.ProductText{{Id: ids[0], Name: "Sourdough"}}, f.provider.submitted[0])
	})

	t.Run("defaults to max batch size", func(t *testing.T) {
		f := newFixture(t)
		seedUnembedded(t, f)
		svc := service.NewCatalogEmbeddingService(f.store, f.provider, 100, logger.NewNopLogger())

		res, err := svc.SubmitMissing(ctx, &dto.SubmitEmbeddingsRequest{})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Submitted)
	})

	t.Run("nothing missing submits nothing", func(t *testing.T) {
		f := newFixture(t)
		f.seedCatalog(t)
		svc := service.NewCatalogEmbeddingService(f.store, f.provider, 100, logger.NewNopLogger())

		res, err := svc.SubmitMissing(ctx, &dto.SubmitEmbeddingsRequest{})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Submitted)
		assert.Empty(t, f.provider.submitted)
	})
}

func TestWebhookToIngestion(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNopLogger()
	f := newFixture(t)
	ids := seedUnembedded(t, f)
	f.provider.ingest = []shopping.EmbeddingRecord{
		{ProductId: ids[0], Embedding: []float32{1, 0}},
		{ProductId: ids[1], Embedding: []float32{0, 1}},
		{ProductId: 9999, Embedding: []float32{1, 1}},
	}

	// Persistent so messages published before the consumer subscribes are kept.
	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer pubSub.Close()

	webhook := service.NewWebhookService(true, pubSub, notificationTopic, idempotency.NewCacheGuard(), time.Hour, log)
	consumer := service.NewIngestionConsumer(pubSub, notificationTopic, f.store, f.provider, log)

	consumeCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(consumeCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	deliver := func(id, body string) *dto.WebhookAcceptedResponse {
		headers := http.Header{}
		headers.Set("webhook-id", id)
		res, err := webhook.Receive(ctx, []byte(body), headers)
		require.NoError(t, err)
		return res
	}

	assert.False(t, deliver("msg_noise", "noise").Duplicate)
	assert.False(t, deliver("msg_forged", "forged").Duplicate)
	assert.False(t, deliver("msg_done", `{"type":"batch.completed"}`).Duplicate)
	assert.True(t, deliver("msg_done", `{"type":"batch.completed"}`).Duplicate)

	repo := f.store.NewUnitOfWork(ctx).CatalogRepository()
	require.Eventually(t, func() bool {
		missing, err := repo.FindProductsMissingEmbedding(ctx, 10)
		return err == nil && len(missing) == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err := webhook.Receive(ctx, nil, http.Header{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestWebhook_DisabledForInProcessProvider(t *testing.T) {
	ctx := context.Background()

	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer pubSub.Close()

	webhook := service.NewWebhookService(false, pubSub, notificationTopic, idempotency.NewCacheGuard(), time.Hour, logger.NewNopLogger())

	forged := `{"type":"batch.completed","provider":"gemini","job_id":"never-submitted","results":[{"product_id":1,"embedding":[1,0,0]}]}`
	_, err := webhook.Receive(ctx, []byte(forged), http.Header{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	queued, err := pubSub.Subscribe(subCtx, notificationTopic)
	require.NoError(t, err)

	select {
	case msg := <-queued:
		msg.Ack()
		t.Fatalf("notification was queued: %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}
