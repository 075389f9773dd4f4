package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
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

func TestEnqueueRecordsRunAndWakes(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	runs := repos.NewJobRunRepo(gdb, log)
	woken := 0
	svc := NewJobService(runs, nil, func() { woken++ }, log)

	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{CorrelationID: "corr-1"})
	rawID := uuid.New()
	run, err := svc.Enqueue(ctx, JobNormalize, &rawID, map[string]any{"reason": "test"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if run.Status != types.JobStatusQueued {
		t.Fatalf("status = %s, want %s", run.Status, types.JobStatusQueued)
	}
	if woken != 1 {
		t.Fatalf("worker not woken, woken = %d", woken)
	}
	if run.CorrelationID == nil || *run.CorrelationID != "corr-1" {
		t.Fatalf("correlation id not recorded: %v", run.CorrelationID)
	}

	var payload map[string]any
	if err := json.Unmarshal(run.Payload, &payload); err != nil {
		t.Fatalf("payload unreadable: %v", err)
	}
	if payload["raw_data_id"] != rawID.String() {
		t.Fatalf("payload raw_data_id = %v", payload["raw_data_id"])
	}
	if payload["correlation_id"] != "corr-1" {
		t.Fatalf("payload correlation_id = %v", payload["correlation_id"])
	}
	if payload["reason"] != "test" {
		t.Fatalf("payload reason = %v", payload["reason"])
	}

	listed, err := svc.ListForRaw(context.Background(), rawID)
	if err != nil {
		t.Fatalf("ListForRaw: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != run.ID {
		t.Fatalf("run not listed for raw: %v", listed)
	}
}

func TestEnqueueRejectsUnknownJobType(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	svc := NewJobService(repos.NewJobRunRepo(gdb, log), nil, nil, log)

	if _, err := svc.Enqueue(context.Background(), "reticulate_splines", nil, nil); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestQueueStats(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	svc := NewJobService(repos.NewJobRunRepo(gdb, log), nil, nil, log)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, JobNormalize, nil, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, JobAnalyze, nil, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stats, err := svc.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if stats[types.JobStatusQueued] != 2 {
		t.Fatalf("stats = %v, want 2 queued", stats)
	}
}

func TestSubmitAsyncEnqueuesPersistJob(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	runs := repos.NewJobRunRepo(gdb, log)
	jobs := NewJobService(runs, nil, nil, log)
	feedback := NewFeedbackService(repos.NewUserFeedbackRepo(gdb, log), jobs, log)
	ctx := context.Background()

	id, err := feedback.SubmitAsync(ctx, "BUG", "export drops the title", nil)
	if err != nil {
		t.Fatalf("SubmitAsync failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatalf("expected an allocated feedback id")
	}

	// The write is deferred; nothing is in the store yet.
	record, err := feedback.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record != nil {
		t.Fatalf("feedback must not be persisted synchronously")
	}

	stats, err := jobs.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if stats[types.JobStatusQueued] != 1 {
		t.Fatalf("expected one queued persist job, stats = %v", stats)
	}
}

func TestSubmitAsyncValidatesInput(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	jobs := NewJobService(repos.NewJobRunRepo(gdb, log), nil, nil, log)
	feedback := NewFeedbackService(repos.NewUserFeedbackRepo(gdb, log), jobs, log)

	if _, err := feedback.SubmitAsync(context.Background(), "", "   ", nil); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFeedbackPersistAndStatusFlow(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	jobs := NewJobService(repos.NewJobRunRepo(gdb, log), nil, nil, log)
	feedback := NewFeedbackService(repos.NewUserFeedbackRepo(gdb, log), jobs, log)
	ctx := context.Background()

	id := uuid.New()
	created, err := feedback.Persist(ctx, id, "FEATURE", "add CSV export", nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if created.Status != "NEW" {
		t.Fatalf("status = %s, want NEW", created.Status)
	}

	// Redelivery of the same job hits the primary key.
	if _, err := feedback.Persist(ctx, id, "FEATURE", "add CSV export", nil, time.Now().UTC()); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("err = %v, want ErrDuplicatedKey", err)
	}

	updated, err := feedback.UpdateStatus(ctx, id, "REVIEWED")
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != "REVIEWED" {
		t.Fatalf("status = %s, want REVIEWED", updated.Status)
	}

	if _, err := feedback.UpdateStatus(ctx, id, "DONE"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for bad status", err)
	}
	if _, err := feedback.UpdateStatus(ctx, uuid.New(), "CLOSED"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	listed, err := feedback.List(ctx, "REVIEWED", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != id {
		t.Fatalf("listed = %v", listed)
	}
}
