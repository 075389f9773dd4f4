package pipeline

import (
	"fmt"

	"github.com/yungbote/nexusknowledge-backend/internal/correlation"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type GenerateCandidatesHandler struct {
	correlator correlation.Service
	rawData    repos.RawDataRepo
	jobs       services.JobService
	log        *logger.Logger
}

func NewGenerateCandidatesHandler(correlator correlation.Service, rawData repos.RawDataRepo, jobs services.JobService, baseLog *logger.Logger) *GenerateCandidatesHandler {
	return &GenerateCandidatesHandler{
		correlator: correlator,
		rawData:    rawData,
		jobs:       jobs,
		log:        baseLog.With("handler", services.JobGenerateCandidates),
	}
}

func (h *GenerateCandidatesHandler) Type() string { return services.JobGenerateCandidates }

func (h *GenerateCandidatesHandler) Run(jc *runtime.Context) error {
	rawDataID, ok := jc.PayloadUUID("raw_data_id")
	if !ok {
		return fmt.Errorf("%w: payload missing raw_data_id", apperr.ErrInvalidArgument)
	}
	minScore, _ := jc.PayloadFloat("min_score")
	jc.Progress("generate_candidates")

	count, err := h.correlator.GenerateCandidates(jc.Ctx, rawDataID, minScore)
	if err != nil {
		return err
	}

	// A skip (no sentiments, no turns) surfaces as an error above and ends
	// the pipeline; fusion chains only off CORRELATION_GENERATED.
	raw, err := h.rawData.GetByID(jc.Ctx, nil, rawDataID)
	if err != nil {
		return err
	}
	if raw != nil && raw.Status == lifecycle.StatusCorrelationGenerated {
		if _, err := h.jobs.Enqueue(jc.Ctx, services.JobFuseCandidates, &rawDataID, nil); err != nil {
			h.log.Error("failed to chain fuse_candidates job", "raw_data_id", rawDataID, "error", err)
			return err
		}
	}
	jc.Succeed("generate_candidates", map[string]any{"candidates_generated": count})
	return nil
}
