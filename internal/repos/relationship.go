package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type RelationshipRepo interface {
	Create(ctx context.Context, tx *gorm.DB, relationships []*types.Relationship) ([]*types.Relationship, error)
	ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.Relationship, error)
	CountForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) (int64, error)
}

type relationshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) RelationshipRepo {
	return &relationshipRepo{db: db, log: baseLog.With("repo", "RelationshipRepo")}
}

func (r *relationshipRepo) Create(ctx context.Context, tx *gorm.DB, relationships []*types.Relationship) ([]*types.Relationship, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(relationships) == 0 {
		return []*types.Relationship{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&relationships).Error; err != nil {
		return nil, err
	}
	return relationships, nil
}

// ListForRaw resolves relationships through the source entity's turn, the
// same join the read side uses for export.
func (r *relationshipRepo) ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.Relationship, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Relationship
	if err := transaction.WithContext(ctx).
		Joins("JOIN entities ON entities.id = relationships.source_entity_id").
		Joins("JOIN conversation_turns ON conversation_turns.id = entities.conversation_turn_id").
		Where("conversation_turns.raw_data_id = ?", rawDataID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *relationshipRepo) CountForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.Relationship{}).
		Joins("JOIN entities ON entities.id = relationships.source_entity_id").
		Joins("JOIN conversation_turns ON conversation_turns.id = entities.conversation_turn_id").
		Where("conversation_turns.raw_data_id = ?", rawDataID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
