package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/idempotency"
	"ai-shopping-assistant-be/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const webhookModule = "WEBHOOK"

type IWebhookService interface {
	// Receive queues a provider notification for ingestion. Deliveries seen
	// before are acknowledged without being queued again. When the active
	// provider does not deliver results by webhook nothing is queued.
	Receive(ctx context.Context, body []byte, headers http.Header) (*dto.WebhookAcceptedResponse, error)
}

type webhookService struct {
	enabled   bool
	publisher message.Publisher
	topic     string
	dedup     idempotency.Guard
	dedupTTL  time.Duration
	logger    logger.ILogger
}

// NewWebhookService builds the intake for provider callbacks. enabled is false
// for providers that report batch results in process.
func NewWebhookService(enabled bool, publisher message.Publisher, topic string, dedup idempotency.Guard, dedupTTL time.Duration, log logger.ILogger) IWebhookService {
	return &webhookService{
		enabled:   enabled,
		publisher: publisher,
		topic:     topic,
		dedup:     dedup,
		dedupTTL:  dedupTTL,
		logger:    log,
	}
}

// deliveryKey prefers the sender's delivery id and falls back to a body hash.
func deliveryKey(body []byte, headers http.Header) string {
	if id := headers.Get("webhook-id"); id != "" {
		return "webhook:" + id
	}
	sum := sha256.Sum256(body)
	return "webhook-body:" + hex.EncodeToString(sum[:])
}

func (s *webhookService) Receive(ctx context.Context, body []byte, headers http.Header) (*dto.WebhookAcceptedResponse, error) {
	if !s.enabled {
		metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return nil, apperror.NotFound("no webhook is configured for the active provider")
	}
	if len(body) == 0 {
		return nil, apperror.Validation("notification body is empty")
	}

	key := deliveryKey(body, headers)
	first, err := s.dedup.FirstSeen(ctx, key, s.dedupTTL)
	if err != nil {
		// Embedding upserts are idempotent.
		s.logger.Warn(webhookModule, "Dedup check failed, accepting delivery", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		first = true
	}
	if !first {
		metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return &dto.WebhookAcceptedResponse{Duplicate: true}, nil
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	for name := range headers {
		msg.Metadata.Set(strings.ToLower(name), headers.Get(name))
	}

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperror.Internal("failed to queue notification", err)
	}

	metrics.WebhookDeliveries.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return &dto.WebhookAcceptedResponse{Duplicate: false}, nil
}
