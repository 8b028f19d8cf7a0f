// Package seed loads a catalog description from YAML into the store.
package seed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/repository/unitofwork"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type CatalogFile struct {
	Stores []StoreSeed `yaml:"stores"`
}

type StoreSeed struct {
	Name     string        `yaml:"name"`
	Products []ProductSeed `yaml:"products"`
}

type ProductSeed struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

type Result struct {
	Stores   int
	Products int
}

func Parse(r io.Reader) (*CatalogFile, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	for i, store := range file.Stores {
		if strings.TrimSpace(store.Name) == "" {
			return nil, fmt.Errorf("store #%d has no name", i+1)
		}
		for j, product := range store.Products {
			if strings.TrimSpace(product.Name) == "" {
				return nil, fmt.Errorf("store %q product #%d has no name", store.Name, j+1)
			}
			price, err := decimal.NewFromString(product.Price)
			if err != nil {
				return nil, fmt.Errorf("store %q product %q: invalid price %q", store.Name, product.Name, product.Price)
			}
			if price.IsNegative() {
				return nil, fmt.Errorf("store %q product %q: negative price", store.Name, product.Name)
			}
		}
	}
	return &file, nil
}

// Apply writes every store and product in one transaction. Products get no
// embedding; submit them for batch embedding afterwards.
func Apply(ctx context.Context, factory unitofwork.RepositoryFactory, file *CatalogFile) (*Result, error) {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	res := &Result{}
	for _, s := range file.Stores {
		store := &entity.Store{Name: strings.TrimSpace(s.Name)}
		if err := uow.CatalogRepository().CreateStore(ctx, store); err != nil {
			return nil, fmt.Errorf("create store %q: %w", s.Name, err)
		}
		res.Stores++

		for _, p := range s.Products {
			product := &entity.Product{
				StoreId: store.Id,
				Name:    strings.TrimSpace(p.Name),
				Price:   decimal.RequireFromString(p.Price),
			}
			if err := uow.CatalogRepository().CreateProduct(ctx, product); err != nil {
				return nil, fmt.Errorf("create product %q: %w", p.Name, err)
			}
			res.Products++
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}
