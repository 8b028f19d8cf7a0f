package specification

import "gorm.io/gorm"

// WithoutEmbedding keeps products that have no row in product_embeddings.
type WithoutEmbedding struct{}

func (s WithoutEmbedding) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("NOT EXISTS (SELECT 1 FROM product_embeddings pe WHERE pe.product_id = products.id)")
}

type ByProductIDs struct {
	IDs []int64
}

func (s ByProductIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN ?", s.IDs)
}
