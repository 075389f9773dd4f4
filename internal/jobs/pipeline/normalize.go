// Package pipeline holds the job handlers that move raw payloads through
// the ingestion stages. Each handler validates its payload, delegates to the
// owning domain service and chains the next stage on success.
package pipeline

import (
	"fmt"

	"github.com/yungbote/nexusknowledge-backend/internal/normalization"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type NormalizeHandler struct {
	normalizer normalization.Service
	jobs       services.JobService
	log        *logger.Logger
}

func NewNormalizeHandler(normalizer normalization.Service, jobs services.JobService, baseLog *logger.Logger) *NormalizeHandler {
	return &NormalizeHandler{
		normalizer: normalizer,
		jobs:       jobs,
		log:        baseLog.With("handler", services.JobNormalize),
	}
}

func (h *NormalizeHandler) Type() string { return services.JobNormalize }

func (h *NormalizeHandler) Run(jc *runtime.Context) error {
	rawDataID, ok := jc.PayloadUUID("raw_data_id")
	if !ok {
		return fmt.Errorf("%w: payload missing raw_data_id", apperr.ErrInvalidArgument)
	}
	jc.Progress("normalize")

	turnCount, err := h.normalizer.Normalize(jc.Ctx, rawDataID)
	if err != nil {
		return err
	}

	if _, err := h.jobs.Enqueue(jc.Ctx, services.JobAnalyze, &rawDataID, nil); err != nil {
		h.log.Error("failed to chain analyze job", "raw_data_id", rawDataID, "error", err)
		return err
	}
	jc.Succeed("normalize", map[string]any{"turn_count": turnCount})
	return nil
}
