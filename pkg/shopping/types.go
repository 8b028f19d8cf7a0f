// Package shopping holds the catalog and cart shapes shared by the retrieval
// step, the language-model providers and the services.
package shopping

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Candidate struct {
	ProductId  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Similarity float64         `json:"similarity"`
}

// CandidatesByStore groups retrieval hits by store id. Stores without a hit
// are never present as keys.
type CandidatesByStore map[int64][]Candidate

// StoreIds returns the keys in ascending order.
func (c CandidatesByStore) StoreIds() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c CandidatesByStore) HasStore(storeId int64) bool {
	_, ok := c[storeId]
	return ok
}

func (c CandidatesByStore) HasProduct(storeId, productId int64) bool {
	for _, candidate := range c[storeId] {
		if candidate.ProductId == productId {
			return true
		}
	}
	return false
}

func (c CandidatesByStore) Count() int {
	total := 0
	for _, list := range c {
		total += len(list)
	}
	return total
}

type CartProduct struct {
	ProductId int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type CartProposal struct {
	StoreId  int64         `json:"store_id"`
	Products []CartProduct `json:"products"`
	Score    float64       `json:"score"`
}

// ProductText is the input for batch embedding.
type ProductText struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type EmbeddingRecord struct {
	ProductId int64
	Embedding []float32
}

// CatalogHit is one product row returned by a similarity query, with its
// cosine distance to the query vector.
type CatalogHit struct {
	StoreId   int64
	ProductId int64
	Name      string
	Price     decimal.Decimal
	Distance  float64
}
