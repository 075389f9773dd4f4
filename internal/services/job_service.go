// Package services holds the thin orchestration layer between the HTTP
// handlers and the domain packages.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	redisbus "github.com/yungbote/nexusknowledge-backend/internal/clients/redis"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

// Job type names accepted by the queue.
const (
	JobNormalize          = "normalize"
	JobAnalyze            = "analyze"
	JobGenerateCandidates = "generate_candidates"
	JobFuseCandidates     = "fuse_candidates"
	JobExport             = "export"
	JobPersistFeedback    = "persist_feedback"
)

var knownJobTypes = map[string]bool{
	JobNormalize:          true,
	JobAnalyze:            true,
	JobGenerateCandidates: true,
	JobFuseCandidates:     true,
	JobExport:             true,
	JobPersistFeedback:    true,
}

func KnownJobType(t string) bool { return knownJobTypes[t] }

type JobService interface {
	Enqueue(ctx context.Context, jobType string, rawDataID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
	ListForRaw(ctx context.Context, rawDataID uuid.UUID) ([]*types.JobRun, error)
	QueueStats(ctx context.Context) (map[string]int64, error)
}

type jobService struct {
	runs repos.JobRunRepo
	bus  redisbus.JobBus
	wake func()
	log  *logger.Logger
}

// NewJobService builds the queue front door. bus may be nil (no redis);
// wake may be nil (no in-process worker).
func NewJobService(runs repos.JobRunRepo, bus redisbus.JobBus, wake func(), baseLog *logger.Logger) JobService {
	return &jobService{
		runs: runs,
		bus:  bus,
		wake: wake,
		log:  baseLog.With("service", "jobs"),
	}
}

// Enqueue records a queued job_run carrying the payload and the caller's
// correlation id, then nudges the workers. The durable row is the source of
// truth; the nudges are only wake-up hints.
func (s *jobService) Enqueue(ctx context.Context, jobType string, rawDataID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if !KnownJobType(jobType) {
		return nil, fmt.Errorf("%w: unknown job type %q", apperr.ErrInvalidArgument, jobType)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	var correlationID *string
	if cid := ctxutil.CorrelationID(ctx); cid != "" {
		correlationID = &cid
		payload["correlation_id"] = cid
	}
	if rawDataID != nil {
		payload["raw_data_id"] = rawDataID.String()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload not serialisable: %v", apperr.ErrInvalidArgument, err)
	}
	now := time.Now().UTC()
	run := &types.JobRun{
		ID:            uuid.New(),
		JobType:       jobType,
		RawDataID:     rawDataID,
		CorrelationID: correlationID,
		Payload:       datatypes.JSON(raw),
		Status:        types.JobStatusQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.runs.Create(ctx, nil, run); err != nil {
		return nil, err
	}

	if s.wake != nil {
		s.wake()
	}
	if s.bus != nil {
		if err := s.bus.Nudge(ctx, jobType); err != nil {
			s.log.Warn("job bus nudge failed", "job_type", jobType, "error", err)
		}
	}
	s.log.Info("job enqueued", "job_id", run.ID, "job_type", jobType)
	return run, nil
}

func (s *jobService) Get(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	return s.runs.GetByID(ctx, nil, id)
}

func (s *jobService) ListForRaw(ctx context.Context, rawDataID uuid.UUID) ([]*types.JobRun, error) {
	return s.runs.ListForRaw(ctx, nil, rawDataID)
}

func (s *jobService) QueueStats(ctx context.Context) (map[string]int64, error) {
	return s.runs.CountByStatus(ctx, nil)
}
