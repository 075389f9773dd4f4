package repos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := db.NewStoreService(dsn, logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := db.AutoMigrateAll(store.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.DB()
}

func queuedRun(t *testing.T, repo JobRunRepo, jobType string) *types.JobRun {
	t.Helper()
	run, err := repo.Create(context.Background(), nil, &types.JobRun{
		ID:      uuid.New(),
		JobType: jobType,
		Status:  types.JobStatusQueued,
		Stage:   jobType,
	})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return run
}

func TestClaimNextRunnableClaimsQueued(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()
	created := queuedRun(t, repo, "normalize")

	claimed, err := repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil {
		t.Fatalf("expected a claim")
	}
	if claimed.ID != created.ID {
		t.Fatalf("claimed the wrong run")
	}
	if claimed.Status != types.JobStatusRunning {
		t.Fatalf("status = %s, want %s", claimed.Status, types.JobStatusRunning)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", claimed.Attempts)
	}
	if claimed.LockedAt == nil || claimed.HeartbeatAt == nil {
		t.Fatalf("claim must stamp locked_at and heartbeat_at")
	}

	// The run is now running with a fresh heartbeat, so nothing is claimable.
	second, err := repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("running run with a live heartbeat must not be reclaimed")
	}
}

func TestClaimNextRunnableHonorsRetrySchedule(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()
	run := queuedRun(t, repo, "analyze")

	future := time.Now().UTC().Add(time.Hour)
	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"attempts":      1,
		"next_retry_at": future,
	}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("run with a future next_retry_at must not be claimed")
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{"next_retry_at": past}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	claimed, err = repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim after delay: %v", err)
	}
	if claimed == nil || claimed.ID != run.ID {
		t.Fatalf("elapsed retry delay must make the run claimable")
	}
	if claimed.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", claimed.Attempts)
	}
}

func TestClaimNextRunnableRespectsAttemptLimit(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()
	run := queuedRun(t, repo, "export")

	past := time.Now().UTC().Add(-time.Minute)
	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"attempts":      3,
		"next_retry_at": past,
	}); err != nil {
		t.Fatalf("exhaust attempts: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("run at the attempt limit must stay dead")
	}
}

func TestClaimNextRunnableReclaimsStaleRunning(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()
	run := queuedRun(t, repo, "normalize")

	stale := time.Now().UTC().Add(-time.Hour)
	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":       types.JobStatusRunning,
		"attempts":     1,
		"heartbeat_at": stale,
	}); err != nil {
		t.Fatalf("fake dead worker: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != run.ID {
		t.Fatalf("stale running run must be reclaimed")
	}
	if claimed.Attempts != 2 {
		t.Fatalf("reclaim must count as a new attempt, attempts = %d", claimed.Attempts)
	}
}

func TestClaimNextRunnableOldestFirst(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()

	first := queuedRun(t, repo, "normalize")
	// Separate created_at values so ordering is unambiguous.
	if err := repo.UpdateFields(ctx, nil, first.ID, map[string]interface{}{
		"created_at": time.Now().UTC().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	queuedRun(t, repo, "analyze")

	claimed, err := repo.ClaimNextRunnable(ctx, 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claim must pick the oldest runnable run")
	}
}

func TestUpdateFieldsUnlessStatusGuardsCanceled(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()
	run := queuedRun(t, repo, "fuse_candidates")

	if err := repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status": types.JobStatusCanceled,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	applied, err := repo.UpdateFieldsUnlessStatus(ctx, nil, run.ID, map[string]interface{}{
		"status": types.JobStatusSucceeded,
	}, []string{types.JobStatusCanceled})
	if err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	if applied {
		t.Fatalf("canceled run must not be resurrected")
	}

	reloaded, err := repo.GetByID(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != types.JobStatusCanceled {
		t.Fatalf("status = %s, want %s", reloaded.Status, types.JobStatusCanceled)
	}
}

func TestCountByStatus(t *testing.T) {
	gdb := newTestDB(t)
	repo := NewJobRunRepo(gdb, logger.NewNop())
	ctx := context.Background()

	queuedRun(t, repo, "normalize")
	queuedRun(t, repo, "analyze")
	done := queuedRun(t, repo, "export")
	if err := repo.UpdateFields(ctx, nil, done.ID, map[string]interface{}{
		"status": types.JobStatusSucceeded,
	}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	counts, err := repo.CountByStatus(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[types.JobStatusQueued] != 2 || counts[types.JobStatusSucceeded] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
