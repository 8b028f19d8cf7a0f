package contract

import (
	"context"

	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/pkg/shopping"
)

type CatalogRepository interface {
	// FindCandidatesBySimilarity returns every embedded product whose cosine
	// distance to vector is strictly below maxDistance.
	FindCandidatesBySimilarity(ctx context.Context, vector []float32, maxDistance float64) ([]shopping.CatalogHit, error)
	// LookupStoreForProduct returns (0, false, nil) for unknown products.
	LookupStoreForProduct(ctx context.Context, productId int64) (int64, bool, error)
	FindProductsMissingEmbedding(ctx context.Context, limit int) ([]shopping.ProductText, error)
	UpsertEmbeddings(ctx context.Context, records []shopping.EmbeddingRecord) (int, error)

	CreateStore(ctx context.Context, store *entity.Store) error
	CreateProduct(ctx context.Context, product *entity.Product) error
}
