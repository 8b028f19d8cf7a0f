package llm_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	vector  []float32
	records []shopping.EmbeddingRecord
	err     error
	delay   time.Duration
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) wait(ctx context.Context) error {
	if s.delay == 0 {
		return nil
	}
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubProvider) CompleteTurn(ctx context.Context, _ llm.TurnRequest) (*llm.TurnResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.TurnResult{Reply: "hi", TurnRef: "ref"}, nil
}

func (s *stubProvider) Embed(ctx context.Context, _ string) ([]float32, error) {
	return s.vector, s.err
}

func (s *stubProvider) AssembleCarts(context.Context, shopping.CandidatesByStore, string) ([]shopping.CartProposal, error) {
	return nil, s.err
}

func (s *stubProvider) SubmitBatchEmbedding(context.Context, []shopping.ProductText) error {
	return s.err
}

func (s *stubProvider) IngestBatchResult(context.Context, []byte, http.Header) ([]shopping.EmbeddingRecord, error) {
	return s.records, s.err
}

func TestGuard_Timeout(t *testing.T) {
	g := llm.NewGuard(&stubProvider{delay: time.Second}, 20*time.Millisecond, logger.NewNopLogger())

	result, err := g.CompleteTurn(context.Background(), llm.TurnRequest{Message: "hello"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, llm.ErrTimeout))

	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "stub", pe.Provider)
	assert.Equal(t, "complete_turn", pe.Op)
}

func TestGuard_WrapsFailures(t *testing.T) {
	g := llm.NewGuard(&stubProvider{err: errors.New("503 upstream")}, time.Second, logger.NewNopLogger())

	_, err := g.AssembleCarts(context.Background(), shopping.CandidatesByStore{}, "pasta")
	assert.True(t, llm.IsProviderError(err))

	err = g.SubmitBatchEmbedding(context.Background(), []shopping.ProductText{{Id: 1, Name: "x"}})
	assert.True(t, llm.IsProviderError(err))
}

func TestGuard_EmbedDimensions(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		wantErr bool
	}{
		{name: "exact width", width: llm.EmbeddingDimensions},
		{name: "too short", width: 768, wantErr: true},
		{name: "too long", width: 3072, wantErr: true},
		{name: "empty", width: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := llm.NewGuard(&stubProvider{vector: make([]float32, tt.width)}, time.Second, logger.NewNopLogger())
			vector, err := g.Embed(context.Background(), "olive oil")
			if tt.wantErr {
				assert.True(t, errors.Is(err, llm.ErrDimensionMismatch))
				assert.True(t, llm.IsProviderError(err))
				assert.Nil(t, vector)
				return
			}
			require.NoError(t, err)
			assert.Len(t, vector, llm.EmbeddingDimensions)
		})
	}
}

func TestGuard_IngestDropsWrongWidth(t *testing.T) {
	stub := &stubProvider{records: []shopping.EmbeddingRecord{
		{ProductId: 1, Embedding: make([]float32, llm.EmbeddingDimensions)},
		{ProductId: 2, Embedding: make([]float32, 10)},
	}}
	g := llm.NewGuard(stub, time.Second, logger.NewNopLogger())

	records, err := g.IngestBatchResult(context.Background(), []byte(`{}`), http.Header{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ProductId)

	stub.records = nil
	records, err = g.IngestBatchResult(context.Background(), []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Nil(t, records)
}
