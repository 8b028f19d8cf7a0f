package implementation

import (
	"context"
	"errors"
	"time"

	"ai-shopping-assistant-be/internal/entity"
	"ai-shopping-assistant-be/internal/mapper"
	"ai-shopping-assistant-be/internal/model"
	"ai-shopping-assistant-be/internal/repository/contract"
	"ai-shopping-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

type PendingActionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.PendingActionMapper
}

func NewPendingActionRepository(db *gorm.DB) contract.PendingActionRepository {
	return &PendingActionRepositoryImpl{
		db:     db,
		mapper: mapper.NewPendingActionMapper(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *PendingActionRepositoryImpl) CreateIdempotent(ctx context.Context, action *entity.PendingAction) (bool, error) {
	m := r.mapper.ToModel(action)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_message_id"}, {Name: "action_type"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*action = *r.mapper.ToEntity(m)
	return true, nil
}

func (r *PendingActionRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.PendingAction, error) {
	var m model.PendingAction
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *PendingActionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.PendingAction, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *PendingActionRepositoryImpl) FindConfirmable(ctx context.Context, id uuid.UUID) (*entity.PendingAction, error) {
	return r.findOne(ctx, specification.ByID{ID: id}, specification.Unconfirmed{})
}

func (r *PendingActionRepositoryImpl) FindByMessageIds(ctx context.Context, messageIds []uuid.UUID) ([]*entity.PendingAction, error) {
	if len(messageIds) == 0 {
		return []*entity.PendingAction{}, nil
	}

	var models []*model.PendingAction
	query := applySpecifications(r.db.WithContext(ctx), specification.ByChatMessageIDs{IDs: messageIds})
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

// conditionalUpdate reports whether exactly one row matched.
func (r *PendingActionRepositoryImpl) conditionalUpdate(ctx context.Context, values map[string]interface{}, specs ...specification.Specification) (bool, error) {
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.PendingAction{}), specs...)
	res := query.Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PendingActionRepositoryImpl) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.conditionalUpdate(ctx,
		map[string]interface{}{"confirmed_at": at, "execution_claimed_at": at},
		specification.ByID{ID: id},
		specification.Unconfirmed{},
	)
}

func (r *PendingActionRepositoryImpl) ClaimExecution(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.conditionalUpdate(ctx,
		map[string]interface{}{"execution_claimed_at": at},
		specification.ByID{ID: id},
		specification.Claimable{StaleBefore: at.Add(-contract.ExecutionClaimTTL)},
	)
}

func (r *PendingActionRepositoryImpl) ReleaseExecution(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.PendingAction{}).
		Where("id = ? AND executed_at IS NULL", id).
		Updates(map[string]interface{}{"execution_claimed_at": nil, "last_error": lastError}).Error
}

func (r *PendingActionRepositoryImpl) MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.PendingAction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"executed_at": at, "execution_claimed_at": nil, "last_error": nil}).Error
}
