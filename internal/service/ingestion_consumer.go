package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill/message"
)

const ingestModule = "EMBEDDING-INGEST"

type IIngestionConsumer interface {
	// Consume processes notifications until ctx is cancelled.
	Consume(ctx context.Context) error
}

type ingestionConsumer struct {
	subscriber   message.Subscriber
	topicName    string
	uowFactory   unitofwork.RepositoryFactory
	provider     llm.Provider
	logger       logger.ILogger
	retryBackoff time.Duration
}

func NewIngestionConsumer(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	provider llm.Provider,
	log logger.ILogger,
) IIngestionConsumer {
	return &ingestionConsumer{
		subscriber:   subscriber,
		topicName:    topicName,
		uowFactory:   uowFactory,
		provider:     provider,
		logger:       log,
		retryBackoff: 2 * time.Second,
	}
}

func (c *ingestionConsumer) Consume(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topicName)
	if err != nil {
		return err
	}

	c.logger.Info(ingestModule, "Consumer started", map[string]interface{}{"topic": c.topicName})
	for msg := range messages {
		c.processMessage(ctx, msg)
	}
	return nil
}

func headersFromMetadata(md message.Metadata) http.Header {
	headers := make(http.Header, len(md))
	for k, v := range md {
		headers.Set(k, v)
	}
	return headers
}

func (c *ingestionConsumer) processMessage(ctx context.Context, msg *message.Message) {
	records, err := c.provider.IngestBatchResult(ctx, msg.Payload, headersFromMetadata(msg.Metadata))
	if err != nil {
		if errors.Is(err, llm.ErrUnverifiable) {
			// Redelivery cannot make the signature valid.
			metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeIgnored).Inc()
			c.logger.Warn(ingestModule, "Dropping unverifiable notification", map[string]interface{}{
				"message_id": msg.UUID,
				"error":      err.Error(),
			})
			msg.Ack()
			return
		}
		c.logger.Error(ingestModule, "Failed to ingest batch result", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		c.nackLater(ctx, msg)
		return
	}
	if records == nil {
		metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeIgnored).Inc()
		c.logger.Debug(ingestModule, "Notification is not a batch completion", map[string]interface{}{
			"message_id": msg.UUID,
		})
		msg.Ack()
		return
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		c.logger.Error(ingestModule, "Failed to begin transaction", map[string]interface{}{"error": err.Error()})
		c.nackLater(ctx, msg)
		return
	}
	defer uow.Rollback()

	written, err := uow.CatalogRepository().UpsertEmbeddings(ctx, records)
	if err != nil {
		c.logger.Error(ingestModule, "Failed to upsert embeddings", map[string]interface{}{
			"records": len(records),
			"error":   err.Error(),
		})
		c.nackLater(ctx, msg)
		return
	}

	if err := uow.Commit(); err != nil {
		c.logger.Error(ingestModule, "Failed to commit embeddings", map[string]interface{}{"error": err.Error()})
		c.nackLater(ctx, msg)
		return
	}

	metrics.EmbeddingsIngested.Add(float64(written))
	c.logger.Info(ingestModule, "Embeddings ingested", map[string]interface{}{
		"message_id": msg.UUID,
		"received":   len(records),
		"written":    written,
	})
	msg.Ack()
}

// nackLater waits before asking for redelivery so a failing dependency is
// not hammered.
func (c *ingestionConsumer) nackLater(ctx context.Context, msg *message.Message) {
	select {
	case <-time.After(c.retryBackoff):
		msg.Nack()
	case <-ctx.Done():
		msg.Nack()
	}
}
