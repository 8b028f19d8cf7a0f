package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assistant_provider_call_duration_seconds",
		Help:    "Latency of language-model provider calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"provider", "op", "outcome"})

	ActionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_action_outcomes_total",
		Help: "Pending action confirmations and executions by outcome.",
	}, []string{"action_type", "outcome"})

	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_turns_total",
		Help: "Conversation turns by outcome.",
	}, []string{"outcome"})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_webhook_deliveries_total",
		Help: "Inbound batch notifications by outcome.",
	}, []string{"outcome"})

	EmbeddingsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_embeddings_ingested_total",
		Help: "Product embeddings written from batch results.",
	})
)

const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeConflict  = "conflict"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)
