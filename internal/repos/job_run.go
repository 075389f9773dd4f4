package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type JobRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.JobRun) (*types.JobRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobRun, error)
	ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.JobRun, error)
	ClaimNextRunnable(ctx context.Context, maxAttempts int, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}, unless []string) (bool, error)
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.JobRun) (*types.JobRun, error) {
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

func (r *jobRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.JobRun
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *jobRunRepo) ListForRaw(ctx context.Context, tx *gorm.DB, rawDataID uuid.UUID) ([]*types.JobRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRun
	if err := transaction.WithContext(ctx).
		Where("raw_data_id = ?", rawDataID).
		Order("created_at").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextRunnable atomically claims one run the worker may execute:
// a queued run, a failed run whose retry delay has elapsed, or a running run
// whose heartbeat went stale (the previous worker died mid-flight). The
// row is locked with SKIP LOCKED so concurrent workers never claim the same
// run, and the claim bumps attempts so each delivery is counted exactly once.
func (r *jobRunRepo) ClaimNextRunnable(ctx context.Context, maxAttempts int, staleRunning time.Duration) (*types.JobRun, error) {
	var claimed *types.JobRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		staleBefore := now.Add(-staleRunning)

		query := tx
		// sqlite has no row locks; its single writer makes the claim
		// transaction exclusive anyway.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var run types.JobRun
		err := query.
			Where(
				"(status = ? OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?) OR (status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)) AND attempts < ?",
				types.JobStatusQueued,
				types.JobStatusFailed, now,
				types.JobStatusRunning, staleBefore,
				maxAttempts,
			).
			Order("created_at").
			First(&run).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":        types.JobStatusRunning,
			"attempts":      gorm.Expr("attempts + 1"),
			"locked_at":     now,
			"heartbeat_at":  now,
			"next_retry_at": nil,
		}
		if err := tx.Model(&types.JobRun{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", run.ID).First(&run).Error; err != nil {
			return err
		}
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateFieldsUnlessStatus applies fields only while the run is not already
// in one of the terminal statuses listed in unless. It reports whether a row
// was actually updated, which lets callers detect a run that was canceled or
// finished out from under them.
func (r *jobRunRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}, unless []string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return false, nil
	}
	q := transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ?", id)
	if len(unless) > 0 {
		q = q.Where("status NOT IN ?", unless)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Update("heartbeat_at", time.Now().UTC()).Error
}

func (r *jobRunRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.N
	}
	return out, nil
}
