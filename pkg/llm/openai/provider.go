package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/llm/schema"
	"ai-shopping-assistant-be/pkg/shopping"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	ProviderName = "openai"

	customIdPrefix  = "product-"
	batchEventType  = "batch.completed"
	batchMetaSource = "source"
	batchMetaValue  = "catalog-embeddings"
)

type Config struct {
	ApiKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	WebhookSecret  string
}

// Provider keeps turn continuity on the server side: each reply's response id
// becomes the next turn's previous_response_id.
type Provider struct {
	client         openaisdk.Client
	chatModel      string
	embeddingModel string
	logger         logger.ILogger
}

func NewProvider(cfg Config, log logger.ILogger) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.ApiKey),
		option.WithWebhookSecret(cfg.WebhookSecret),
		// Guard owns timeouts and never retries.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = openaisdk.EmbeddingModelTextEmbedding3Small
	}

	return &Provider{
		client:         openaisdk.NewClient(opts...),
		chatModel:      cfg.ChatModel,
		embeddingModel: embeddingModel,
		logger:         log,
	}
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) CompleteTurn(ctx context.Context, req llm.TurnRequest) (*llm.TurnResult, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(p.chatModel),
		Instructions: openaisdk.String(constant.AssistantTurnInstructionsV1),
		Store:        openaisdk.Bool(true),
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   "turn_reply",
					Schema: schema.TurnReplyJSONSchema(),
					Strict: openaisdk.Bool(true),
				},
			},
		},
	}

	if req.PriorTurnRef != nil && *req.PriorTurnRef != "" {
		params.PreviousResponseID = openaisdk.String(*req.PriorTurnRef)
	}
	params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: turnInput(req)}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "complete_turn", err)
	}

	p.logger.Info("llm", "OpenAI turn completed", map[string]interface{}{
		"response_id": resp.ID,
		"chained":     req.PriorTurnRef != nil,
		"output":      resp.OutputText(),
	})

	result, err := schema.ParseTurnReply([]byte(resp.OutputText()))
	if err != nil {
		return nil, llm.Wrap(ProviderName, "complete_turn", err)
	}
	result.TurnRef = resp.ID
	return result, nil
}

// unsentSince returns the history the stored response has not seen: every
// message after the reply that carries ref. Cart results and messages of
// failed turns are only stored locally. ok is false when no message carries
// ref.
func unsentSince(history []llm.Message, ref string) (unsent []llm.Message, ok bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].TurnRef != nil && *history[i].TurnRef == ref {
			return history[i+1:], true
		}
	}
	return nil, false
}

// turnInput chains from the prior response when there is one and replays the
// whole history otherwise.
func turnInput(req llm.TurnRequest) responses.ResponseInputParam {
	replay := req.History
	if req.PriorTurnRef != nil && *req.PriorTurnRef != "" {
		if unsent, ok := unsentSince(req.History, *req.PriorTurnRef); ok {
			replay = unsent
		} else {
			replay = nil
		}
	}

	items := make(responses.ResponseInputParam, 0, len(replay)+1)
	for _, m := range replay {
		role := responses.EasyInputMessageRoleUser
		if m.Role == llm.RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, role))
	}
	items = append(items, responses.ResponseInputItemParamOfMessage(req.Message, responses.EasyInputMessageRoleUser))
	return items
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model:      openaisdk.EmbeddingModel(p.embeddingModel),
		Dimensions: openaisdk.Int(llm.EmbeddingDimensions),
	})
	if err != nil {
		return nil, llm.Wrap(ProviderName, "embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, llm.Wrap(ProviderName, "embed", errors.New("empty embedding response"))
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

func (p *Provider) AssembleCarts(ctx context.Context, candidates shopping.CandidatesByStore, input string) ([]shopping.CartProposal, error) {
	userPrompt, err := llm.CartAssemblyPrompt(candidates, input)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "assemble_carts", err)
	}

	resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        shared.ResponsesModel(p.chatModel),
		Instructions: openaisdk.String(constant.CartAssemblyInstructionsV1),
		Store:        openaisdk.Bool(false),
		Input:        responses.ResponseNewParamsInputUnion{OfString: openaisdk.String(userPrompt)},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   "carts",
					Schema: schema.CartsJSONSchema(),
					Strict: openaisdk.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, llm.Wrap(ProviderName, "assemble_carts", err)
	}

	carts, err := schema.ParseCarts([]byte(resp.OutputText()), candidates)
	if err != nil {
		p.logger.Warn("llm", "OpenAI cart output rejected", map[string]interface{}{
			"response_id": resp.ID,
			"output":      resp.OutputText(),
			"error":       err.Error(),
		})
		return nil, llm.Wrap(ProviderName, "assemble_carts", err)
	}
	return carts, nil
}

type batchRequestLine struct {
	CustomId string           `json:"custom_id"`
	Method   string           `json:"method"`
	URL      string           `json:"url"`
	Body     batchRequestBody `json:"body"`
}

type batchRequestBody struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions"`
}

// SubmitBatchEmbedding uploads one JSONL request per product and registers a
// 24h embeddings batch. Completion arrives later as a batch.completed webhook.
func (p *Provider) SubmitBatchEmbedding(ctx context.Context, products []shopping.ProductText) error {
	if len(products) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, product := range products {
		line := batchRequestLine{
			CustomId: customIdPrefix + strconv.FormatInt(product.Id, 10),
			Method:   http.MethodPost,
			URL:      string(openaisdk.BatchNewParamsEndpointV1Embeddings),
			Body: batchRequestBody{
				Model:      p.embeddingModel,
				Input:      product.Name,
				Dimensions: llm.EmbeddingDimensions,
			},
		}
		if err := enc.Encode(line); err != nil {
			return llm.Wrap(ProviderName, "submit_batch_embedding", err)
		}
	}

	file, err := p.client.Files.New(ctx, openaisdk.FileNewParams{
		File:    openaisdk.File(&buf, "catalog-embeddings.jsonl", "application/jsonl"),
		Purpose: openaisdk.FilePurposeBatch,
	})
	if err != nil {
		return llm.Wrap(ProviderName, "submit_batch_embedding", err)
	}

	batch, err := p.client.Batches.New(ctx, openaisdk.BatchNewParams{
		CompletionWindow: openaisdk.BatchNewParamsCompletionWindow24h,
		Endpoint:         openaisdk.BatchNewParamsEndpointV1Embeddings,
		InputFileID:      file.ID,
		Metadata:         shared.Metadata{batchMetaSource: batchMetaValue},
	})
	if err != nil {
		return llm.Wrap(ProviderName, "submit_batch_embedding", err)
	}

	p.logger.Info("llm", "OpenAI embedding batch submitted", map[string]interface{}{
		"batch_id": batch.ID,
		"file_id":  file.ID,
		"products": len(products),
	})
	return nil
}

// IngestBatchResult verifies the webhook signature, then downloads the output
// file of the completed batch.
func (p *Provider) IngestBatchResult(ctx context.Context, payload []byte, headers http.Header) ([]shopping.EmbeddingRecord, error) {
	event, err := p.client.Webhooks.Unwrap(payload, headers)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "ingest_batch_result", fmt.Errorf("%w: %v", llm.ErrUnverifiable, err))
	}
	if event.Type != batchEventType {
		return nil, nil
	}

	batchId := event.AsBatchCompleted().Data.ID
	batch, err := p.client.Batches.Get(ctx, batchId)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "ingest_batch_result", err)
	}
	if batch.Metadata[batchMetaSource] != batchMetaValue || batch.OutputFileID == "" {
		p.logger.Info("llm", "Ignoring batch without catalog output", map[string]interface{}{
			"batch_id": batchId,
			"status":   string(batch.Status),
		})
		return nil, nil
	}

	content, err := p.client.Files.Content(ctx, batch.OutputFileID)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "ingest_batch_result", err)
	}
	defer content.Body.Close()

	records, err := parseBatchOutput(content.Body)
	if err != nil {
		return nil, llm.Wrap(ProviderName, "ingest_batch_result", err)
	}
	return records, nil
}

type batchOutputLine struct {
	CustomId string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Data []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"data"`
		} `json:"body"`
	} `json:"response"`
}

// parseBatchOutput maps JSONL output lines to embedding records. Lines that
// failed or whose custom_id is not ours are skipped.
func parseBatchOutput(r io.Reader) ([]shopping.EmbeddingRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	records := []shopping.EmbeddingRecord{}
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line batchOutputLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(line.CustomId, customIdPrefix) {
			continue
		}
		productId, err := strconv.ParseInt(strings.TrimPrefix(line.CustomId, customIdPrefix), 10, 64)
		if err != nil {
			continue
		}
		if line.Response == nil || line.Response.StatusCode != http.StatusOK || len(line.Response.Body.Data) == 0 {
			continue
		}
		records = append(records, shopping.EmbeddingRecord{
			ProductId: productId,
			Embedding: toFloat32(line.Response.Body.Data[0].Embedding),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
