package service

import (
	"context"

	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/pkg/apperror"
	"ai-shopping-assistant-be/internal/pkg/logger"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/pkg/llm"
)

const embeddingModule = "EMBEDDING"

type ICatalogEmbeddingService interface {
	// SubmitMissing registers a batch embedding job for up to limit products
	// that have no embedding yet.
	SubmitMissing(ctx context.Context, request *dto.SubmitEmbeddingsRequest) (*dto.SubmitEmbeddingsResponse, error)
}

type catalogEmbeddingService struct {
	uowFactory   unitofwork.RepositoryFactory
	provider     llm.Provider
	maxBatchSize int
	logger       logger.ILogger
}

func NewCatalogEmbeddingService(uowFactory unitofwork.RepositoryFactory, provider llm.Provider, maxBatchSize int, log logger.ILogger) ICatalogEmbeddingService {
	return &catalogEmbeddingService{
		uowFactory:   uowFactory,
		provider:     provider,
		maxBatchSize: maxBatchSize,
		logger:       log,
	}
}

func (s *catalogEmbeddingService) SubmitMissing(ctx context.Context, request *dto.SubmitEmbeddingsRequest) (*dto.SubmitEmbeddingsResponse, error) {
	limit := request.Limit
	if limit <= 0 || limit > s.maxBatchSize {
		limit = s.maxBatchSize
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	products, err := uow.CatalogRepository().FindProductsMissingEmbedding(ctx, limit)
	if err != nil {
		return nil, apperror.Internal("failed to list products without embeddings", err)
	}
	if len(products) == 0 {
		return &dto.SubmitEmbeddingsResponse{Submitted: 0}, nil
	}

	if err := s.provider.SubmitBatchEmbedding(ctx, products); err != nil {
		return nil, apperror.Gateway("failed to submit batch embedding", err)
	}

	s.logger.Info(embeddingModule, "Batch embedding submitted", map[string]interface{}{
		"provider": s.provider.Name(),
		"products": len(products),
	})
	return &dto.SubmitEmbeddingsResponse{Submitted: len(products)}, nil
}
