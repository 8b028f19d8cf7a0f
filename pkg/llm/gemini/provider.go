package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/llm/schema"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"
)

const ProviderName = "gemini"

const (
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

type Config struct {
	ApiKey            string
	ChatModel         string
	EmbeddingModel    string
	JobTopic          string
	NotificationTopic string
	ChunkSize         int
}

// Provider has no server-side conversation state: every turn replays the
// whole history and the returned turn ref is only a fresh opaque id.
type Provider struct {
	client            *genai.Client
	chatModel         string
	embeddingModel    string
	publisher         message.Publisher
	jobTopic          string
	notificationTopic string
	chunkSize         int
	jobs              *cache.Cache // job id -> products the job may report on
	logger            logger.ILogger
}

func NewProvider(ctx context.Context, cfg Config, publisher message.Publisher, log logger.ILogger) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.ApiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}

	return &Provider{
		client:            client,
		chatModel:         cfg.ChatModel,
		embeddingModel:    cfg.EmbeddingModel,
		publisher:         publisher,
		jobTopic:          cfg.JobTopic,
		notificationTopic: cfg.NotificationTopic,
		chunkSize:         chunkSize,
		jobs:              cache.New(jobTTL, time.Hour),
		logger:            log,
	}, nil
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) CompleteTurn(ctx context.Context, req llm.TurnRequest) (*llm.TurnResult, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		var role genai.Role = genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	resp, err := p.client.Models.GenerateContent(ctx, p.chatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(constant.AssistantTurnInstructionsV1+constant.AssistantTurnFreeTextSuffixV1, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
	})
	if err != nil {
		return nil, llm.Wrap(ProviderName, "complete_turn", err)
	}

	text := resp.Text()
	p.logger.Info("llm", "Gemini turn completed", map[string]interface{}{
		"history": len(req.History),
		"output":  text,
	})

	result, err := parseTurnText(text)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "complete_turn", err)
	}
	result.TurnRef = uuid.NewString()
	return result, nil
}

// parseTurnText pulls the JSON object out of a free-text answer.
func parseTurnText(text string) (*llm.TurnResult, error) {
	raw, err := schema.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	return schema.ParseTurnReply(raw)
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "embed", err)
	}
	return vectors[0], nil
}

func (p *Provider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr[int32](llm.EmbeddingDimensions),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, errors.New("embedding count does not match input count")
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (p *Provider) AssembleCarts(ctx context.Context, candidates shopping.CandidatesByStore, input string) ([]shopping.CartProposal, error) {
	userPrompt, err := llm.CartAssemblyPrompt(candidates, input)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "assemble_carts", err)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.chatModel,
		[]*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(constant.CartAssemblyInstructionsV1, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.2),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return nil, llm.Wrap(ProviderName, "assemble_carts", err)
	}

	raw, err := schema.ExtractJSON(resp.Text())
	if err == nil {
		var carts []shopping.CartProposal
		if carts, err = schema.ParseCarts(raw, candidates); err == nil {
			return carts, nil
		}
	}
	p.logger.Warn("llm", "Gemini cart output rejected", map[string]interface{}{
		"output": resp.Text(),
		"error":  err.Error(),
	})
	return nil, llm.Wrap(ProviderName, "assemble_carts", err)
}

// IngestBatchResult accepts the envelopes published by the batch worker for
// jobs this process submitted. It returns (nil, nil) for anything else and
// drops results for products the job never contained.
func (p *Provider) IngestBatchResult(_ context.Context, payload []byte, _ http.Header) ([]shopping.EmbeddingRecord, error) {
	var envelope batchEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, nil
	}
	if envelope.Provider != ProviderName || envelope.Type != eventBatchCompleted {
		return nil, nil
	}

	products, ok := p.submittedProducts(envelope.JobId)
	if !ok {
		p.logger.Warn("llm", "Ignoring Gemini batch result for unknown job", map[string]interface{}{
			"job_id": envelope.JobId,
		})
		return nil, nil
	}

	records := make([]shopping.EmbeddingRecord, 0, len(envelope.Results))
	for _, r := range envelope.Results {
		if _, ok := products[r.ProductId]; !ok {
			p.logger.Warn("llm", "Dropping result for product outside the job", map[string]interface{}{
				"job_id":     envelope.JobId,
				"product_id": r.ProductId,
			})
			continue
		}
		records = append(records, shopping.EmbeddingRecord{ProductId: r.ProductId, Embedding: r.Embedding})
	}
	return records, nil
}
