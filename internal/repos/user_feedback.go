package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type UserFeedbackRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.UserFeedback) (*types.UserFeedback, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserFeedback, error)
	List(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.UserFeedback, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
}

type userFeedbackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserFeedbackRepo(db *gorm.DB, baseLog *logger.Logger) UserFeedbackRepo {
	return &userFeedbackRepo{db: db, log: baseLog.With("repo", "UserFeedbackRepo")}
}

func (r *userFeedbackRepo) Create(ctx context.Context, tx *gorm.DB, record *types.UserFeedback) (*types.UserFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *userFeedbackRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UserFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var record types.UserFeedback
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *userFeedbackRepo) List(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.UserFeedback, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	q := transaction.WithContext(ctx).Order("submitted_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.UserFeedback
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userFeedbackRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.UserFeedback{}).
		Where("id = ?", id).
		Update("status", status).Error
}
