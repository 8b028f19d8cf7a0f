package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
)

type Store struct {
	Id        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Store) TableName() string {
	return "stores"
}

type Product struct {
	Id        int64           `gorm:"primaryKey;autoIncrement"`
	StoreId   int64           `gorm:"not null;index"`
	Name      string          `gorm:"type:text;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`

	Store *Store `gorm:"foreignKey:StoreId;constraint:OnDelete:CASCADE"`
}

func (Product) TableName() string {
	return "products"
}

// ProductEmbedding holds one vector per product. The vector width must match
// llm.EmbeddingDimensions.
type ProductEmbedding struct {
	ProductId int64           `gorm:"primaryKey;autoIncrement:false"`
	Embedding pgvector.Vector `gorm:"type:vector(1536);not null"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`

	Product *Product `gorm:"foreignKey:ProductId;constraint:OnDelete:CASCADE"`
}

func (ProductEmbedding) TableName() string {
	return "product_embeddings"
}
