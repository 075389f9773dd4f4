package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type TrackerRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.TrackerRun) (*types.TrackerRun, error)
	GetByRunID(ctx context.Context, tx *gorm.DB, runID string) (*types.TrackerRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, runID string, fields map[string]interface{}) error
}

type trackerRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackerRunRepo(db *gorm.DB, baseLog *logger.Logger) TrackerRunRepo {
	return &trackerRunRepo{db: db, log: baseLog.With("repo", "TrackerRunRepo")}
}

func (r *trackerRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.TrackerRun) (*types.TrackerRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *trackerRunRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID string) (*types.TrackerRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.TrackerRun
	err := transaction.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *trackerRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, runID string, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.TrackerRun{}).
		Where("run_id = ?", runID).
		Updates(fields).Error
}
