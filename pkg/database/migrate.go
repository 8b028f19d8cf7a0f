package database

import (
	"fmt"

	"ai-shopping-assistant-be/internal/model"

	"gorm.io/gorm"
)

var extensions = []string{
	"CREATE EXTENSION IF NOT EXISTS vector",
	"CREATE EXTENSION IF NOT EXISTS pgcrypto",
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_product_embeddings_hnsw ON product_embeddings USING hnsw (embedding vector_cosine_ops)",
}

// Migrate creates the extensions, tables and vector index the service needs.
// It is safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	for _, stmt := range extensions {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}

	if err := db.AutoMigrate(
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.PendingAction{},
		&model.Store{},
		&model.Product{},
		&model.ProductEmbedding{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
