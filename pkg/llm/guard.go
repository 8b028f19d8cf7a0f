package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/pkg/metrics"
	"ai-shopping-assistant-be/pkg/shopping"
)

// Guard decorates a Provider with a per-call timeout, dimensionality checks,
// latency metrics and ProviderError wrapping. It never retries.
type Guard struct {
	inner   Provider
	timeout time.Duration
	logger  logger.ILogger
}

func NewGuard(inner Provider, timeout time.Duration, log logger.ILogger) *Guard {
	return &Guard{inner: inner, timeout: timeout, logger: log}
}

func (g *Guard) Name() string {
	return g.inner.Name()
}

func guarded[T any](g *Guard, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(callCtx)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		err = Wrap(g.inner.Name(), op, err)
		outcome = metrics.OutcomeError
		if errors.Is(err, ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		g.logger.Warn("llm", "Provider call failed", map[string]interface{}{
			"provider": g.inner.Name(),
			"op":       op,
			"error":    err.Error(),
		})
	}
	metrics.ProviderCallDuration.WithLabelValues(g.inner.Name(), op, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (g *Guard) CompleteTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	return guarded(g, ctx, "complete_turn", func(ctx context.Context) (*TurnResult, error) {
		return g.inner.CompleteTurn(ctx, req)
	})
}

func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	return guarded(g, ctx, "embed", func(ctx context.Context) ([]float32, error) {
		vector, err := g.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := checkDimensions(vector); err != nil {
			return nil, err
		}
		return vector, nil
	})
}

func (g *Guard) AssembleCarts(ctx context.Context, candidates shopping.CandidatesByStore, input string) ([]shopping.CartProposal, error) {
	return guarded(g, ctx, "assemble_carts", func(ctx context.Context) ([]shopping.CartProposal, error) {
		return g.inner.AssembleCarts(ctx, candidates, input)
	})
}

func (g *Guard) SubmitBatchEmbedding(ctx context.Context, products []shopping.ProductText) error {
	_, err := guarded(g, ctx, "submit_batch_embedding", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.SubmitBatchEmbedding(ctx, products)
	})
	return err
}

// IngestBatchResult drops records of the wrong width instead of failing the
// whole batch.
func (g *Guard) IngestBatchResult(ctx context.Context, payload []byte, headers http.Header) ([]shopping.EmbeddingRecord, error) {
	return guarded(g, ctx, "ingest_batch_result", func(ctx context.Context) ([]shopping.EmbeddingRecord, error) {
		records, err := g.inner.IngestBatchResult(ctx, payload, headers)
		if err != nil || records == nil {
			return records, err
		}
		valid := make([]shopping.EmbeddingRecord, 0, len(records))
		for _, record := range records {
			if err := checkDimensions(record.Embedding); err != nil {
				g.logger.Warn("llm", "Dropping batch embedding", map[string]interface{}{
					"product_id": record.ProductId,
					"error":      err.Error(),
				})
				continue
			}
			valid = append(valid, record)
		}
		return valid, nil
	})
}

func checkDimensions(vector []float32) error {
	if len(vector) != EmbeddingDimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), EmbeddingDimensions)
	}
	return nil
}
