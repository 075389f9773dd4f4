package pipeline

import (
	"fmt"

	"github.com/yungbote/nexusknowledge-backend/internal/analysis"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type AnalyzeHandler struct {
	analyzer analysis.Service
	jobs     services.JobService
	log      *logger.Logger
}

func NewAnalyzeHandler(analyzer analysis.Service, jobs services.JobService, baseLog *logger.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		jobs:     jobs,
		log:      baseLog.With("handler", services.JobAnalyze),
	}
}

func (h *AnalyzeHandler) Type() string { return services.JobAnalyze }

func (h *AnalyzeHandler) Run(jc *runtime.Context) error {
	rawDataID, ok := jc.PayloadUUID("raw_data_id")
	if !ok {
		return fmt.Errorf("%w: payload missing raw_data_id", apperr.ErrInvalidArgument)
	}
	jc.Progress("analyze")

	turnCount, err := h.analyzer.Analyze(jc.Ctx, rawDataID)
	if err != nil {
		return err
	}

	if _, err := h.jobs.Enqueue(jc.Ctx, services.JobGenerateCandidates, &rawDataID, nil); err != nil {
		h.log.Error("failed to chain generate_candidates job", "raw_data_id", rawDataID, "error", err)
		return err
	}
	jc.Succeed("analyze", map[string]any{"turn_count": turnCount})
	return nil
}
