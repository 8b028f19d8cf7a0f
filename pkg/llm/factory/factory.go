package factory

import (
	"context"
	"fmt"

	"ai-shopping-assistant-be/internal/config"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/llm/gemini"
	"ai-shopping-assistant-be/pkg/llm/openai"

	"github.com/ThreeDotsLabs/watermill/message"
)

// BatchWorker is implemented by providers that run batch embedding in process.
type BatchWorker interface {
	RunBatchWorker(ctx context.Context, subscriber message.Subscriber) error
}

// NewLLMProvider builds the configured provider wrapped in an llm.Guard. The
// worker is nil unless the provider needs one.
func NewLLMProvider(ctx context.Context, cfg *config.Config, publisher message.Publisher, log logger.ILogger) (llm.Provider, BatchWorker, error) {
	switch cfg.Ai.Provider {
	case openai.ProviderName:
		p := openai.NewProvider(openai.Config{
			ApiKey:         cfg.Ai.OpenAIApiKey,
			BaseURL:        cfg.Ai.OpenAIBaseURL,
			ChatModel:      cfg.Ai.OpenAIChatModel,
			EmbeddingModel: cfg.Ai.OpenAIEmbeddingModel,
			WebhookSecret:  cfg.Webhook.OpenAISecret,
		}, log)
		return llm.NewGuard(p, cfg.Ai.ProviderTimeout, log), nil, nil

	case gemini.ProviderName:
		p, err := gemini.NewProvider(ctx, gemini.Config{
			ApiKey:            cfg.Ai.GeminiApiKey,
			ChatModel:         cfg.Ai.GeminiChatModel,
			EmbeddingModel:    cfg.Ai.GeminiEmbeddingModel,
			JobTopic:          cfg.Messaging.GeminiBatchJobTopic,
			NotificationTopic: cfg.Messaging.NotificationTopic,
			ChunkSize:         cfg.Ai.GeminiBatchChunkSize,
		}, publisher, log)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini client: %w", err)
		}
		return llm.NewGuard(p, cfg.Ai.ProviderTimeout, log), p, nil

	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Ai.Provider)
	}
}

// ReceivesWebhooks reports whether the provider delivers batch results through
// the public webhook. Gemini results never leave the process.
func ReceivesWebhooks(providerName string) bool {
	return providerName == openai.ProviderName
}
