package bootstrap

import (
	"context"
	"fmt"

	"ai-shopping-assistant-be/internal/config"
	"ai-shopping-assistant-be/internal/controller"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/pkg/serverutils"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/internal/service"
	"ai-shopping-assistant-be/pkg/events"
	"ai-shopping-assistant-be/pkg/idempotency"
	"ai-shopping-assistant-be/pkg/llm/factory"
	"ai-shopping-assistant-be/pkg/retrieval"

	pktNats "ai-shopping-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	ChatController    controller.IChatController
	CatalogController controller.ICatalogController
	WebhookController controller.IWebhookController
	ActorMiddleware   fiber.Handler

	// Background services, run by main
	IngestionConsumer service.IIngestionConsumer
	BatchWorker       factory.BatchWorker // nil unless the provider embeds in process
	PubSub            *gochannel.GoChannel

	closers []func()
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)

	c := &Container{Logger: sysLogger}

	// 2. In-process bus for notifications and batch jobs
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.PubSub = pubSub
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Provider
	provider, worker, err := factory.NewLLMProvider(ctx, cfg, pubSub, llmLogger)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	c.BatchWorker = worker
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider": provider.Name(),
		"timeout":  cfg.Ai.ProviderTimeout.String(),
	})

	// 4. Domain events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Messaging.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.Messaging.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "NATS unavailable, domain events disabled", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// 5. Webhook de-duplication
	dedup := newDedupGuard(ctx, cfg, sysLogger, c)

	// 6. Services
	engine := retrieval.NewEngine(cfg.Ai.SimilarityThreshold)
	conversationService := service.NewConversationService(uowFactory, provider, publisher, sysLogger)
	actionService := service.NewActionService(uowFactory, provider, engine, publisher, sysLogger)
	embeddingService := service.NewCatalogEmbeddingService(uowFactory, provider, cfg.Messaging.EmbeddingSubmitMaxSize, sysLogger)
	webhookService := service.NewWebhookService(factory.ReceivesWebhooks(provider.Name()), pubSub, cfg.Messaging.NotificationTopic, dedup, cfg.Webhook.DedupTTL, sysLogger)
	c.IngestionConsumer = service.NewIngestionConsumer(pubSub, cfg.Messaging.NotificationTopic, uowFactory, provider, sysLogger)

	// 7. Controllers
	c.ChatController = controller.NewChatController(conversationService, actionService)
	c.CatalogController = controller.NewCatalogController(embeddingService)
	c.WebhookController = controller.NewWebhookController(webhookService)
	c.ActorMiddleware = serverutils.ActorMiddleware(cfg.Auth.JwtSecret)

	return c, nil
}

// newDedupGuard prefers Redis and falls back to an in-process cache, which
// only de-duplicates within one instance.
func newDedupGuard(ctx context.Context, cfg *config.Config, log logger.ILogger, c *Container) idempotency.Guard {
	if cfg.Messaging.RedisURL == "" {
		return idempotency.NewCacheGuard()
	}

	opt, err := redis.ParseURL(cfg.Messaging.RedisURL)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.Messaging.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("BOOTSTRAP", "Redis unavailable, using in-process dedup", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return idempotency.NewCacheGuard()
	}

	c.closers = append(c.closers, func() { _ = rdb.Close() })
	return idempotency.NewRedisGuard(rdb, "assistant:")
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
