package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// StreamChunkSize is the server-side cursor chunk used by the streaming
// readers. Long stages consume turns chunk by chunk to bound memory and to
// stay responsive to cancellation between chunks.
const StreamChunkSize = 250

type ConversationTurnRepo interface {
	Create(ctx context.Context, tx *gorm.DB, turns []*types.ConversationTurn) ([]*types.ConversationTurn, error)
	ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.ConversationTurn, error)
	ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.ConversationTurn, error)
	StreamForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID, fn func(chunk []*types.ConversationTurn) error) error
	SearchByTokens(ctx context.Context, tx *gorm.DB, tokens []string, limit int) ([]*types.ConversationTurn, error)
	CountForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) (int64, error)
}

type conversationTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationTurnRepo(db *gorm.DB, baseLog *logger.Logger) ConversationTurnRepo {
	return &conversationTurnRepo{db: db, log: baseLog.With("repo", "ConversationTurnRepo")}
}

func (r *conversationTurnRepo) Create(ctx context.Context, tx *gorm.DB, turns []*types.ConversationTurn) ([]*types.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(turns) == 0 {
		return []*types.ConversationTurn{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

func (r *conversationTurnRepo) ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConversationTurn
	if err := transaction.WithContext(ctx).
		Where("raw_data_id = ?", rawDataID).
		Order("conversation_id, turn_index").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationTurnRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConversationTurn
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("turn_index").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// StreamForRaw walks the turns of one raw payload in (conversation_id,
// turn_index) order, handing the callback chunks of up to StreamChunkSize.
// A callback error stops the walk; context cancellation is honoured at the
// next chunk boundary.
func (r *conversationTurnRepo) StreamForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID, fn func(chunk []*types.ConversationTurn) error) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var chunk []*types.ConversationTurn
	return transaction.WithContext(ctx).
		Where("raw_data_id = ?", rawDataID).
		Order("conversation_id, turn_index").
		FindInBatches(&chunk, StreamChunkSize, func(batchTx *gorm.DB, batch int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(chunk)
		}).Error
}

// SearchByTokens returns turns whose text case-insensitively contains any of
// the tokens, newest first, capped at limit. LOWER(text) LIKE keeps the
// query portable between Postgres and SQLite.
func (r *conversationTurnRepo) SearchByTokens(ctx context.Context, tx *gorm.DB, tokens []string, limit int) ([]*types.ConversationTurn, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConversationTurn
	if len(tokens) == 0 {
		return out, nil
	}
	conds := make([]string, 0, len(tokens))
	args := make([]interface{}, 0, len(tokens))
	for _, token := range tokens {
		conds = append(conds, "LOWER(text) LIKE ?")
		args = append(args, "%"+strings.ToLower(token)+"%")
	}
	if err := transaction.WithContext(ctx).
		Where(strings.Join(conds, " OR "), args...).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationTurnRepo) CountForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(ctx).
		Model(&types.ConversationTurn{}).
		Where("raw_data_id = ?", rawDataID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
