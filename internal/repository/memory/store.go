// Package memory is an in-process implementation of every repository
// contract. Services run against it in tests and in local runs without
// Postgres.
package memory

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/repository/contract"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	sessions   map[uuid.UUID]*entity.ChatSession
	sessionSeq []uuid.UUID
	messages   []*entity.ChatMessage // append order
	actions    map[uuid.UUID]*entity.PendingAction
	stores     map[int64]*entity.Store
	products   map[int64]*entity.Product
	embeddings map[int64][]float32

	nextStoreId   int64
	nextProductId int64
}

func NewStore() *Store {
	return &Store{
		sessions:   make(map[uuid.UUID]*entity.ChatSession),
		actions:    make(map[uuid.UUID]*entity.PendingAction),
		stores:     make(map[int64]*entity.Store),
		products:   make(map[int64]*entity.Product),
		embeddings: make(map[int64][]float32),
	}
}

// NewUnitOfWork satisfies unitofwork.RepositoryFactory. Writes are applied
// immediately; Rollback does not undo them.
func (s *Store) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: s}
}

type unitOfWork struct {
	store *Store
}

func (u *unitOfWork) Begin(ctx context.Context) error { return nil }
func (u *unitOfWork) Commit() error                   { return nil }
func (u *unitOfWork) Rollback() error                 { return nil }

func (u *unitOfWork) ChatSessionRepository() contract.ChatSessionRepository {
	return (*sessionRepository)(u.store)
}

func (u *unitOfWork) ChatMessageRepository() contract.ChatMessageRepository {
	return (*messageRepository)(u.store)
}

func (u *unitOfWork) PendingActionRepository() contract.PendingActionRepository {
	return (*actionRepository)(u.store)
}

func (u *unitOfWork) CatalogRepository() contract.CatalogRepository {
	return (*catalogRepository)(u.store)
}

// Sessions

type sessionRepository Store

func (r *sessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	stored := *session
	r.sessions[stored.Id] = &stored
	r.sessionSeq = append(r.sessionSeq, stored.Id)
	return nil
}

func (r *sessionRepository) FindByIdForUser(ctx context.Context, id, userId uuid.UUID) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.UserId != userId {
		return nil, nil
	}
	out := *session
	return &out, nil
}

func (r *sessionRepository) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*entity.ChatSession{}
	for i := len(r.sessionSeq) - 1; i >= 0; i-- {
		session := r.sessions[r.sessionSeq[i]]
		if session.UserId == userId {
			copied := *session
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Messages

type messageRepository Store

func (r *messageRepository) Create(ctx context.Context, message *entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if message.MessageType == "" {
		message.MessageType = constant.ChatMessageTypeText
	}
	stored := *message
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *messageRepository) FindAllBySession(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*entity.ChatMessage{}
	for _, m := range r.messages {
		if m.ChatSessionId == sessionId {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *messageRepository) FindOneInSession(ctx context.Context, id, sessionId uuid.UUID) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages {
		if m.Id == id && m.ChatSessionId == sessionId {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *messageRepository) FindLastAssistantTurnRef(ctx context.Context, sessionId uuid.UUID) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.ChatSessionId == sessionId && m.Sender == constant.ChatMessageSenderAssistant && m.ProviderTurnRef != nil {
			ref := *m.ProviderTurnRef
			return &ref, nil
		}
	}
	return nil, nil
}

// Pending actions

type actionRepository Store

func copyAction(a *entity.PendingAction) *entity.PendingAction {
	out := *a
	out.Payload = append(json.RawMessage(nil), a.Payload...)
	return &out
}

func (r *actionRepository) CreateIdempotent(ctx context.Context, action *entity.PendingAction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.actions {
		if existing.ChatMessageId == action.ChatMessageId && existing.ActionType == action.ActionType {
			return false, nil
		}
	}
	if action.Id == uuid.Nil {
		action.Id = uuid.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	r.actions[action.Id] = copyAction(action)
	return true, nil
}

func (r *actionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.PendingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	if !ok {
		return nil, nil
	}
	return copyAction(a), nil
}

func (r *actionRepository) FindConfirmable(ctx context.Context, id uuid.UUID) (*entity.PendingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	if !ok || a.ConfirmedAt != nil {
		return nil, nil
	}
	return copyAction(a), nil
}

func (r *actionRepository) FindByMessageIds(ctx context.Context, messageIds []uuid.UUID) ([]*entity.PendingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[uuid.UUID]struct{}, len(messageIds))
	for _, id := range messageIds {
		wanted[id] = struct{}{}
	}
	out := []*entity.PendingAction{}
	for _, a := range r.actions {
		if _, ok := wanted[a.ChatMessageId]; ok {
			out = append(out, copyAction(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *actionRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	if !ok || a.ConfirmedAt != nil {
		return false, nil
	}
	confirmed := at
	a.ConfirmedAt = &confirmed
	a.ExecutionClaimedAt = &confirmed
	return true, nil
}

func (r *actionRepository) ClaimExecution(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	if !ok || a.ConfirmedAt == nil || a.ExecutedAt != nil {
		return false, nil
	}
	if a.ExecutionClaimedAt != nil && !a.ExecutionClaimedAt.Before(at.Add(-contract.ExecutionClaimTTL)) {
		return false, nil
	}
	claimed := at
	a.ExecutionClaimedAt = &claimed
	return true, nil
}

func (r *actionRepository) ReleaseExecution(ctx context.Context, id uuid.UUID, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actions[id]; ok && a.ExecutedAt == nil {
		a.ExecutionClaimedAt = nil
		a.LastError = &lastError
	}
	return nil
}

func (r *actionRepository) MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actions[id]; ok {
		executed := at
		a.ExecutedAt = &executed
		a.ExecutionClaimedAt = nil
		a.LastError = nil
	}
	return nil
}

// Catalog

type catalogRepository Store

func (r *catalogRepository) FindCandidatesBySimilarity(ctx context.Context, vector []float32, maxDistance float64) ([]shopping.CatalogHit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hits := []shopping.CatalogHit{}
	for productId, embedding := range r.embeddings {
		product, ok := r.products[productId]
		if !ok {
			continue
		}
		distance := CosineDistance(vector, embedding)
		if distance < maxDistance {
			hits = append(hits, shopping.CatalogHit{
				StoreId:   product.StoreId,
				ProductId: product.Id,
				Name:      product.Name,
				Price:     product.Price,
				Distance:  distance,
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].StoreId != hits[j].StoreId {
			return hits[i].StoreId < hits[j].StoreId
		}
		return hits[i].Distance < hits[j].Distance
	})
	return hits, nil
}

func (r *catalogRepository) LookupStoreForProduct(ctx context.Context, productId int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productId]
	if !ok {
		return 0, false, nil
	}
	return product.StoreId, true, nil
}

func (r *catalogRepository) FindProductsMissingEmbedding(ctx context.Context, limit int) ([]shopping.ProductText, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []shopping.ProductText{}
	for _, product := range r.products {
		if _, ok := r.embeddings[product.Id]; !ok {
			out = append(out, shopping.ProductText{Id: product.Id, Name: product.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *catalogRepository) UpsertEmbeddings(ctx context.Context, records []shopping.EmbeddingRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for _, rec := range records {
		if _, ok := r.products[rec.ProductId]; !ok {
			continue
		}
		r.embeddings[rec.ProductId] = append([]float32(nil), rec.Embedding...)
		written++
	}
	return written, nil
}

func (r *catalogRepository) CreateStore(ctx context.Context, store *entity.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store.Id == 0 {
		r.nextStoreId++
		store.Id = r.nextStoreId
	} else if store.Id > r.nextStoreId {
		r.nextStoreId = store.Id
	}
	if store.CreatedAt.IsZero() {
		store.CreatedAt = time.Now()
	}
	stored := *store
	r.stores[stored.Id] = &stored
	return nil
}

func (r *catalogRepository) CreateProduct(ctx context.Context, product *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.Id == 0 {
		r.nextProductId++
		product.Id = r.nextProductId
	} else if product.Id > r.nextProductId {
		r.nextProductId = product.Id
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	stored := *product
	r.products[stored.Id] = &stored
	return nil
}

// CosineDistance is 1 - cos(a, b), matching pgvector's <=> operator. Zero
// vectors are at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
