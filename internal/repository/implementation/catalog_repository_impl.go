package implementation

import (
	"context"
	"errors"

	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/mapper"
	"ai-shopping-assistant-be/internal/model"
	"ai-shopping-assistant-be/internal/repository/contract"
	"ai-shopping-assistant-be/internal/repository/specification"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CatalogMapper
}

func NewCatalogRepository(db *gorm.DB) contract.CatalogRepository {
	return &CatalogRepositoryImpl{
		db:     db,
		mapper: mapper.NewCatalogMapper(),
	}
}

type catalogHitRow struct {
	StoreId   int64
	ProductId int64
	Name      string
	Price     decimal.Decimal
	Distance  float64
}

// FindCandidatesBySimilarity uses the pgvector cosine distance operator (<=>).
func (r *CatalogRepositoryImpl) FindCandidatesBySimilarity(ctx context.Context, vector []float32, maxDistance float64) ([]shopping.CatalogHit, error) {
	query := pgvector.NewVector(vector)

	var rows []catalogHitRow
	err := r.db.WithContext(ctx).
		Table("product_embeddings AS pe").
		Select("p.store_id, p.id AS product_id, p.name, p.price, pe.embedding <=> ? AS distance", query).
		Joins("JOIN products p ON p.id = pe.product_id").
		Where("pe.embedding <=> ? < ?", query, maxDistance).
		Order("p.store_id ASC, distance ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]shopping.CatalogHit, len(rows))
	for i, row := range rows {
		hits[i] = shopping.CatalogHit{
			StoreId:   row.StoreId,
			ProductId: row.ProductId,
			Name:      row.Name,
			Price:     row.Price,
			Distance:  row.Distance,
		}
	}
	return hits, nil
}

func (r *CatalogRepositoryImpl) LookupStoreForProduct(ctx context.Context, productId int64) (int64, bool, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Select("id", "store_id").Where("id = ?", productId).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return product.StoreId, true, nil
}

func (r *CatalogRepositoryImpl) FindProductsMissingEmbedding(ctx context.Context, limit int) ([]shopping.ProductText, error) {
	var products []*model.Product
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Product{}),
		specification.WithoutEmbedding{},
		specification.OrderBy{Field: "id"},
		specification.Limit{N: limit},
	)
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}

	texts := make([]shopping.ProductText, len(products))
	for i, p := range products {
		texts[i] = shopping.ProductText{Id: p.Id, Name: p.Name}
	}
	return texts, nil
}

// UpsertEmbeddings skips records of products that no longer exist.
func (r *CatalogRepositoryImpl) UpsertEmbeddings(ctx context.Context, records []shopping.EmbeddingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ProductId
	}
	var existing []int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Product{}), specification.ByProductIDs{IDs: ids})
	if err := query.Pluck("id", &existing).Error; err != nil {
		return 0, err
	}
	known := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}

	models := make([]*model.ProductEmbedding, 0, len(records))
	for _, rec := range records {
		if _, ok := known[rec.ProductId]; ok {
			models = append(models, r.mapper.EmbeddingToModel(rec))
		}
	}
	if len(models) == 0 {
		return 0, nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "updated_at"}),
		}).
		CreateInBatches(models, 200).Error
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

func (r *CatalogRepositoryImpl) CreateStore(ctx context.Context, store *entity.Store) error {
	m := r.mapper.StoreToModel(store)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*store = *r.mapper.StoreToEntity(m)
	return nil
}

func (r *CatalogRepositoryImpl) CreateProduct(ctx context.Context, product *entity.Product) error {
	m := r.mapper.ProductToModel(product)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*product = *r.mapper.ProductToEntity(m)
	return nil
}
