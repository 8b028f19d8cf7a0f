package mapper

import (
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/model"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/pgvector/pgvector-go"
)

type CatalogMapper struct{}

func NewCatalogMapper() *CatalogMapper {
	return &CatalogMapper{}
}

func (m *CatalogMapper) StoreToModel(s *entity.Store) *model.Store {
	if s == nil {
		return nil
	}
	return &model.Store{Id: s.Id, Name: s.Name, CreatedAt: s.CreatedAt}
}

func (m *CatalogMapper) StoreToEntity(s *model.Store) *entity.Store {
	if s == nil {
		return nil
	}
	return &entity.Store{Id: s.Id, Name: s.Name, CreatedAt: s.CreatedAt}
}

func (m *CatalogMapper) ProductToModel(p *entity.Product) *model.Product {
	if p == nil {
		return nil
	}
	return &model.Product{
		Id:        p.Id,
		StoreId:   p.StoreId,
		Name:      p.Name,
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
	}
}

func (m *CatalogMapper) ProductToEntity(p *model.Product) *entity.Product {
	if p == nil {
		return nil
	}
	return &entity.Product{
		Id:        p.Id,
		StoreId:   p.StoreId,
		Name:      p.Name,
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
	}
}

func (m *CatalogMapper) EmbeddingToModel(r shopping.EmbeddingRecord) *model.ProductEmbedding {
	return &model.ProductEmbedding{
		ProductId: r.ProductId,
		Embedding: pgvector.NewVector(r.Embedding),
	}
}
