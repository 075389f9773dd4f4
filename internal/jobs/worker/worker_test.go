package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type stubHandler struct {
	jobType string
	run     func(jc *runtime.Context) error
}

func (h *stubHandler) Type() string                  { return h.jobType }
func (h *stubHandler) Run(jc *runtime.Context) error { return h.run(jc) }

type harness struct {
	db     *gorm.DB
	repo   repos.JobRunRepo
	reg    *runtime.Registry
	worker *Worker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := db.NewStoreService(dsn, logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := db.AutoMigrateAll(store.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logger.NewNop()
	repo := repos.NewJobRunRepo(store.DB(), log)
	reg := runtime.NewRegistry()
	w := New(store.DB(), log, repo, reg, Options{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	})
	return &harness{db: store.DB(), repo: repo, reg: reg, worker: w}
}

func (h *harness) register(t *testing.T, jobType string, run func(jc *runtime.Context) error) {
	t.Helper()
	if err := h.reg.Register(&stubHandler{jobType: jobType, run: run}); err != nil {
		t.Fatalf("register handler: %v", err)
	}
}

// claimed enqueues a run and claims it, mirroring what the executor loop does
// before handing the run to execute.
func (h *harness) claimed(t *testing.T, jobType string) *types.JobRun {
	t.Helper()
	ctx := context.Background()
	if _, err := h.repo.Create(ctx, nil, &types.JobRun{
		ID:      uuid.New(),
		JobType: jobType,
		Status:  types.JobStatusQueued,
		Stage:   jobType,
	}); err != nil {
		t.Fatalf("create run: %v", err)
	}
	job, err := h.repo.ClaimNextRunnable(ctx, h.worker.opts.MaxAttempts, h.worker.opts.HardTimeLimit)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil {
		t.Fatalf("nothing claimable")
	}
	return job
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *types.JobRun {
	t.Helper()
	job, err := h.repo.GetByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return job
}

func TestExecuteMarksSuccess(t *testing.T) {
	h := newHarness(t)
	h.register(t, "normalize", func(jc *runtime.Context) error { return nil })
	job := h.claimed(t, "normalize")

	h.worker.execute(context.Background(), job)

	after := h.reload(t, job.ID)
	if after.Status != types.JobStatusSucceeded {
		t.Fatalf("status = %s, want %s", after.Status, types.JobStatusSucceeded)
	}
}

func TestExecuteRetriesTransientFailure(t *testing.T) {
	h := newHarness(t)
	h.register(t, "analyze", func(jc *runtime.Context) error {
		return fmt.Errorf("connection reset")
	})
	job := h.claimed(t, "analyze")

	h.worker.execute(context.Background(), job)

	after := h.reload(t, job.ID)
	if after.Status != types.JobStatusFailed {
		t.Fatalf("status = %s, want %s", after.Status, types.JobStatusFailed)
	}
	if after.NextRetryAt == nil {
		t.Fatalf("transient failure with attempts left must schedule a retry")
	}
	if !after.NextRetryAt.After(time.Now().UTC().Add(-time.Second)) {
		t.Fatalf("retry scheduled in the past: %v", after.NextRetryAt)
	}
	if after.Error == "" {
		t.Fatalf("failure must record the error")
	}
}

func TestExecuteTerminalOnPermanentFailure(t *testing.T) {
	h := newHarness(t)
	h.register(t, "export", func(jc *runtime.Context) error {
		return fmt.Errorf("%w: directory unwritable", apperr.ErrExport)
	})
	job := h.claimed(t, "export")

	h.worker.execute(context.Background(), job)

	after := h.reload(t, job.ID)
	if after.Status != types.JobStatusFailed {
		t.Fatalf("status = %s, want %s", after.Status, types.JobStatusFailed)
	}
	if after.NextRetryAt != nil {
		t.Fatalf("permanent failure must not be retried, next_retry_at = %v", after.NextRetryAt)
	}
}

func TestExecuteTerminalAfterAttemptLimit(t *testing.T) {
	h := newHarness(t)
	h.register(t, "analyze", func(jc *runtime.Context) error {
		return errors.New("still flaky")
	})
	job := h.claimed(t, "analyze")
	job.Attempts = h.worker.opts.MaxAttempts

	h.worker.execute(context.Background(), job)

	after := h.reload(t, job.ID)
	if after.NextRetryAt != nil {
		t.Fatalf("exhausted run must not be rescheduled")
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	h.register(t, "normalize", func(jc *runtime.Context) error {
		panic("boom")
	})
	job := h.claimed(t, "normalize")

	h.worker.execute(context.Background(), job)

	after := h.reload(t, job.ID)
	if after.Status != types.JobStatusFailed {
		t.Fatalf("status = %s, want %s", after.Status, types.JobStatusFailed)
	}
}

func TestExecuteUnknownJobTypeFails(t *testing.T) {
	h := newHarness(t)
	job := h.claimed(t, "no_such_job")

	h.worker.execute(context.Background(), job)

	after := h.reload(t, job.ID)
	if after.Status != types.JobStatusFailed {
		t.Fatalf("status = %s, want %s", after.Status, types.JobStatusFailed)
	}
	if after.NextRetryAt != nil {
		t.Fatalf("unroutable job must not be retried")
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	w := &Worker{opts: Options{RetryDelay: time.Second, RetryBackoffMax: 10 * time.Second}}

	for attempts, base := range map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		6: 10 * time.Second, // capped
	} {
		got := w.backoff(attempts)
		min := time.Duration(float64(base) * 0.8)
		max := time.Duration(float64(base) * 1.2)
		if got < min || got > max {
			t.Errorf("backoff(%d) = %v, want within [%v, %v]", attempts, got, min, max)
		}
	}
}
