package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type CorrelationCandidateRepo interface {
	Create(ctx context.Context, tx *gorm.DB, candidates []*types.CorrelationCandidate) ([]*types.CorrelationCandidate, error)
	ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID, status string) ([]*types.CorrelationCandidate, error)
	UpdateStatusByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status string) error
}

type correlationCandidateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorrelationCandidateRepo(db *gorm.DB, baseLog *logger.Logger) CorrelationCandidateRepo {
	return &correlationCandidateRepo{db: db, log: baseLog.With("repo", "CorrelationCandidateRepo")}
}

func (r *correlationCandidateRepo) Create(ctx context.Context, tx *gorm.DB, candidates []*types.CorrelationCandidate) ([]*types.CorrelationCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(candidates) == 0 {
		return []*types.CorrelationCandidate{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// ListForRaw returns candidates for a raw payload, optionally filtered by
// status (empty means all).
func (r *correlationCandidateRepo) ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID, status string) ([]*types.CorrelationCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("raw_data_id = ?", rawDataID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.CorrelationCandidate
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *correlationCandidateRepo) UpdateStatusByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CorrelationCandidate{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}
