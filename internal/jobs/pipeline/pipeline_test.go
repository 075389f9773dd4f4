package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/data/db"
	"github.com/yungbote/nexusknowledge-backend/internal/ingestion"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/normalization"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type env struct {
	db       *gorm.DB
	rawData  repos.RawDataRepo
	jobRuns  repos.JobRunRepo
	jobs     services.JobService
	feedback services.FeedbackService
	ingest   ingestion.Service
	norm     normalization.Service
}

func newEnv(t *testing.T) *env {
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
	rawData := repos.NewRawDataRepo(store.DB(), log)
	turns := repos.NewConversationTurnRepo(store.DB(), log)
	jobRuns := repos.NewJobRunRepo(store.DB(), log)
	jobs := services.NewJobService(jobRuns, nil, nil, log)
	return &env{
		db:       store.DB(),
		rawData:  rawData,
		jobRuns:  jobRuns,
		jobs:     jobs,
		feedback: services.NewFeedbackService(repos.NewUserFeedbackRepo(store.DB(), log), jobs, log),
		ingest:   ingestion.NewService(rawData, log),
		norm:     normalization.NewService(rawData, turns, log),
	}
}

// runningJob builds a claimed job_run carrying the payload, the state a
// handler sees when the worker dispatches it.
func (e *env) runningJob(t *testing.T, jobType string, payload map[string]any) (*types.JobRun, *runtime.Context) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	job, err := e.jobRuns.Create(context.Background(), nil, &types.JobRun{
		ID:       uuid.New(),
		JobType:  jobType,
		Status:   types.JobStatusRunning,
		Stage:    jobType,
		Attempts: 1,
		Payload:  datatypes.JSON(raw),
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job, runtime.NewContext(context.Background(), e.db, job, e.jobRuns)
}

func TestNormalizeHandlerChainsAnalyze(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	result, err := e.ingest.Ingest(ctx, "deepseek_chat", nil, map[string]interface{}{
		"source_id": "chain",
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": "hello there"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	rawID := result.RawData.ID

	handler := NewNormalizeHandler(e.norm, e.jobs, logger.NewNop())
	job, jc := e.runningJob(t, handler.Type(), map[string]any{"raw_data_id": rawID.String()})

	if err := handler.Run(jc); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	after, err := e.jobRuns.GetByID(ctx, nil, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if after.Status != types.JobStatusSucceeded {
		t.Fatalf("job status = %s, want %s", after.Status, types.JobStatusSucceeded)
	}
	var jobResult map[string]any
	if err := json.Unmarshal(after.Result, &jobResult); err != nil {
		t.Fatalf("result unreadable: %v", err)
	}
	if jobResult["turn_count"] != float64(1) {
		t.Fatalf("turn_count = %v", jobResult["turn_count"])
	}

	raw, err := e.rawData.GetByID(ctx, nil, rawID)
	if err != nil {
		t.Fatalf("reload raw: %v", err)
	}
	if raw.Status != lifecycle.StatusNormalized {
		t.Fatalf("raw status = %s, want %s", raw.Status, lifecycle.StatusNormalized)
	}

	// Success must chain the analyze stage.
	chained, err := e.jobRuns.ListForRaw(ctx, nil, rawID)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	found := false
	for _, j := range chained {
		if j.JobType == services.JobAnalyze && j.Status == types.JobStatusQueued {
			found = true
		}
	}
	if !found {
		t.Fatalf("analyze job not enqueued, jobs = %v", chained)
	}
}

func TestNormalizeHandlerRejectsMissingPayload(t *testing.T) {
	e := newEnv(t)
	handler := NewNormalizeHandler(e.norm, e.jobs, logger.NewNop())
	_, jc := e.runningJob(t, handler.Type(), map[string]any{})

	if err := handler.Run(jc); err == nil {
		t.Fatalf("expected error for missing raw_data_id")
	}
}

func TestPersistFeedbackHandlerIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	feedbackID := uuid.New()
	payload := map[string]any{
		"feedback_id":   feedbackID.String(),
		"feedback_type": "BUG",
		"message":       "exports lose the title",
		"submitted_at":  "2024-06-01T12:00:00.000000000Z",
	}

	handler := NewPersistFeedbackHandler(e.feedback, logger.NewNop())

	first, jc := e.runningJob(t, handler.Type(), payload)
	if err := handler.Run(jc); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	record, err := e.feedback.Get(ctx, feedbackID)
	if err != nil {
		t.Fatalf("get feedback: %v", err)
	}
	if record == nil || record.Status != lifecycle.FeedbackNew {
		t.Fatalf("feedback not persisted: %v", record)
	}

	// Redelivery with the same payload succeeds without a second row.
	second, jc2 := e.runningJob(t, handler.Type(), payload)
	if err := handler.Run(jc2); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		job, err := e.jobRuns.GetByID(ctx, nil, id)
		if err != nil {
			t.Fatalf("reload job: %v", err)
		}
		if job.Status != types.JobStatusSucceeded {
			t.Fatalf("job %s status = %s, want %s", id, job.Status, types.JobStatusSucceeded)
		}
	}

	var dupResult map[string]any
	redelivered, err := e.jobRuns.GetByID(ctx, nil, second.ID)
	if err != nil {
		t.Fatalf("reload redelivered job: %v", err)
	}
	if err := json.Unmarshal(redelivered.Result, &dupResult); err != nil {
		t.Fatalf("result unreadable: %v", err)
	}
	if dupResult["duplicate"] != true {
		t.Fatalf("redelivery result = %v, want duplicate marker", dupResult)
	}
}
