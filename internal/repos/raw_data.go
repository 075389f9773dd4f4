package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type RawDataRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.RawData) (*types.RawData, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RawData, error)
	GetByContentHash(ctx context.Context, tx *gorm.DB, hash string) (*types.RawData, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, processedAt *time.Time) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type rawDataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawDataRepo(db *gorm.DB, baseLog *logger.Logger) RawDataRepo {
	return &rawDataRepo{db: db, log: baseLog.With("repo", "RawDataRepo")}
}

func (r *rawDataRepo) Create(ctx context.Context, tx *gorm.DB, record *types.RawData) (*types.RawData, error) {
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

func (r *rawDataRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.RawData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var record types.RawData
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *rawDataRepo) GetByContentHash(ctx context.Context, tx *gorm.DB, hash string) (*types.RawData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if hash == "" {
		return nil, nil
	}
	var record types.RawData
	err := transaction.WithContext(ctx).Where("content_hash = ?", hash).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *rawDataRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, processedAt *time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{"status": status}
	if processedAt != nil {
		updates["processed_at"] = *processedAt
	}
	return transaction.WithContext(ctx).
		Model(&types.RawData{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *rawDataRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.RawData{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *rawDataRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).Model(&types.RawData{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
