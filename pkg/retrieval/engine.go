// Package retrieval narrows the catalog to the products that are close enough
// to a query embedding, grouped by the store that sells them.
package retrieval

import (
	"context"
	"fmt"

	"ai-shopping-assistant-be/pkg/shopping"
)

const DefaultThreshold = 0.65

type CandidateSource interface {
	FindCandidatesBySimilarity(ctx context.Context, vector []float32, maxDistance float64) ([]shopping.CatalogHit, error)
}

type Engine struct {
	threshold float64
}

// NewEngine falls back to DefaultThreshold when threshold is not positive.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

func (e *Engine) Retrieve(ctx context.Context, source CandidateSource, vector []float32) (shopping.CandidatesByStore, error) {
	hits, err := source.FindCandidatesBySimilarity(ctx, vector, e.threshold)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return Group(hits, e.threshold), nil
}

// Group keeps hits whose distance is strictly below threshold and buckets
// them per store in input order. Stores left without a hit are omitted.
func Group(hits []shopping.CatalogHit, threshold float64) shopping.CandidatesByStore {
	grouped := shopping.CandidatesByStore{}
	for _, hit := range hits {
		if !(hit.Distance < threshold) {
			continue
		}
		grouped[hit.StoreId] = append(grouped[hit.StoreId], shopping.Candidate{
			ProductId:  hit.ProductId,
			Name:       hit.Name,
			Price:      hit.Price,
			Similarity: 1 - hit.Distance,
		})
	}
	return grouped
}
