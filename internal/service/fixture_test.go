package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/repository/memory"
	"ai-shopping-assistant-be/internal/service"
	"ai-shopping-assistant-be/pkg/events"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/retrieval"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

type turnStep struct {
	result *llm.TurnResult
	err    error
}

// scriptedProvider answers turns from a script and assembles one cart per
// candidate store.
type scriptedProvider struct {
	mu        sync.Mutex
	turns     []turnStep
	requests  []llm.TurnRequest
	vector    []float32
	embedErrs int
	submitted [][]shopping.ProductText
	ingest    []shopping.EmbeddingRecord
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) script(steps ...turnStep) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, steps...)
}

func (p *scriptedProvider) CompleteTurn(_ context.Context, req llm.TurnRequest) (*llm.TurnResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.turns) == 0 {
		return nil, &llm.ProviderError{Provider: "scripted", Op: "complete_turn", Err: errors.New("script exhausted")}
	}
	step := p.turns[0]
	p.turns = p.turns[1:]
	if step.err != nil {
		return nil, &llm.ProviderError{Provider: "scripted", Op: "complete_turn", Err: step.err}
	}
	return step.result, nil
}

func (p *scriptedProvider) Embed(context.Context, string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedErrs > 0 {
		p.embedErrs--
		return nil, &llm.ProviderError{Provider: "scripted", Op: "embed", Err: errUpstream}
	}
	return p.vector, nil
}

func (p *scriptedProvider) AssembleCarts(_ context.Context, candidates shopping.CandidatesByStore, _ string) ([]shopping.CartProposal, error) {
	carts := []shopping.CartProposal{}
	for _, storeId := range candidates.StoreIds() {
		cart := shopping.CartProposal{StoreId: storeId, Score: 0.8}
		for _, c := range candidates[storeId] {
			cart.Products = append(cart.Products, shopping.CartProduct{ProductId: c.ProductId, Name: c.Name, Quantity: 1})
		}
		carts = append(carts, cart)
	}
	return carts, nil
}

func (p *scriptedProvider) SubmitBatchEmbedding(_ context.Context, products []shopping.ProductText) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, products)
	return nil
}

func (p *scriptedProvider) IngestBatchResult(_ context.Context, payload []byte, _ http.Header) ([]shopping.EmbeddingRecord, error) {
	switch string(payload) {
	case "noise":
		return nil, nil
	case "forged":
		return nil, &llm.ProviderError{Provider: "scripted", Op: "ingest_batch_result", Err: llm.ErrUnverifiable}
	}
	return p.ingest, nil
}

func (p *scriptedProvider) turnRequests() []llm.TurnRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.TurnRequest(nil), p.requests...)
}

func plainReply(text, ref string) turnStep {
	return turnStep{result: &llm.TurnResult{Reply: text, TurnRef: ref}}
}

func cartsProposal(input, ref string) turnStep {
	payload, _ := json.Marshal(map[string]string{"input": input})
	return turnStep{result: &llm.TurnResult{
		Reply:   "Shall I put together carts for that?",
		TurnRef: ref,
		Action:  &llm.ProposedAction{Type: llm.ActionSuggestCarts, Payload: payload},
	}}
}

type fixture struct {
	store        *memory.Store
	provider     *scriptedProvider
	events       *events.Recorder
	conversation service.IConversationService
	actions      service.IActionService
	userId       uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	provider := &scriptedProvider{vector: []float32{1, 0}}
	recorder := &events.Recorder{}
	log := logger.NewNopLogger()

	return &fixture{
		store:        store,
		provider:     provider,
		events:       recorder,
		conversation: service.NewConversationService(store, provider, recorder, log),
		actions:      service.NewActionService(store, provider, retrieval.NewEngine(retrieval.DefaultThreshold), recorder, log),
		userId:       uuid.New(),
	}
}

type seededCatalog struct {
	corner, hardware    int64
	milk, oatMilk, nail int64
}

// seedCatalog creates two stores. Only the corner shop sells anything close
// to the query vector {1, 0}.
func (f *fixture) seedCatalog(t *testing.T) seededCatalog {
	t.Helper()
	ctx := context.Background()
	repo := f.store.NewUnitOfWork(ctx).CatalogRepository()

	corner := &entity.Store{Name: "Corner Shop"}
	hardware := &entity.Store{Name: "Hardware"}
	require.NoError(t, repo.CreateStore(ctx, corner))
	require.NoError(t, repo.CreateStore(ctx, hardware))

	milk := &entity.Product{StoreId: corner.Id, Name: "Milk", Price: decimal.RequireFromString("1.10")}
	oatMilk := &entity.Product{StoreId: corner.Id, Name: "Oat milk", Price: decimal.RequireFromString("2.40")}
	nail := &entity.Product{StoreId: hardware.Id, Name: "Nails", Price: decimal.RequireFromString("4.00")}
	for _, p := range []*entity.Product{milk, oatMilk, nail} {
		require.NoError(t, repo.CreateProduct(ctx, p))
	}

	_, err := repo.UpsertEmbeddings(ctx, []shopping.EmbeddingRecord{
		{ProductId: milk.Id, Embedding: []float32{1, 0}},
		{ProductId: oatMilk.Id, Embedding: []float32{0.9, 0.1}},
		{ProductId: nail.Id, Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	return seededCatalog{corner: corner.Id, hardware: hardware.Id, milk: milk.Id, oatMilk: oatMilk.Id, nail: nail.Id}
}

func (f *fixture) newSession(t *testing.T) uuid.UUID {
	t.Helper()
	res, err := f.conversation.CreateSession(context.Background(), f.userId)
	require.NoError(t, err)
	return res.Id
}
