package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type EntityRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entities []*types.Entity) ([]*types.Entity, error)
	ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.Entity, error)
	ListSentimentForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.Entity, error)
	ListSentimentByTurnIDs(ctx context.Context, tx *gorm.DB, turnIDs []uuid.UUID) ([]*types.Entity, error)
}

type entityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntityRepo(db *gorm.DB, baseLog *logger.Logger) EntityRepo {
	return &entityRepo{db: db, log: baseLog.With("repo", "EntityRepo")}
}

func (r *entityRepo) Create(ctx context.Context, tx *gorm.DB, entities []*types.Entity) ([]*types.Entity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(entities) == 0 {
		return []*types.Entity{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *entityRepo) ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.Entity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Entity
	if err := transaction.WithContext(ctx).
		Joins("JOIN conversation_turns ON conversation_turns.id = entities.conversation_turn_id").
		Where("conversation_turns.raw_data_id = ?", rawDataID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityRepo) ListSentimentForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.Entity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Entity
	if err := transaction.WithContext(ctx).
		Joins("JOIN conversation_turns ON conversation_turns.id = entities.conversation_turn_id").
		Where("conversation_turns.raw_data_id = ? AND entities.type = ?", rawDataID, "SENTIMENT").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *entityRepo) ListSentimentByTurnIDs(ctx context.Context, tx *gorm.DB, turnIDs []uuid.UUID) ([]*types.Entity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Entity
	if len(turnIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("type = ? AND conversation_turn_id IN ?", "SENTIMENT", turnIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
