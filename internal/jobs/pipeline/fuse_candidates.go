package pipeline

import (
	"fmt"

	"github.com/yungbote/nexusknowledge-backend/internal/correlation"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type FuseCandidatesHandler struct {
	correlator correlation.Service
	log        *logger.Logger
}

func NewFuseCandidatesHandler(correlator correlation.Service, baseLog *logger.Logger) *FuseCandidatesHandler {
	return &FuseCandidatesHandler{
		correlator: correlator,
		log:        baseLog.With("handler", services.JobFuseCandidates),
	}
}

func (h *FuseCandidatesHandler) Type() string { return services.JobFuseCandidates }

func (h *FuseCandidatesHandler) Run(jc *runtime.Context) error {
	rawDataID, ok := jc.PayloadUUID("raw_data_id")
	if !ok {
		return fmt.Errorf("%w: payload missing raw_data_id", apperr.ErrInvalidArgument)
	}
	minScore, _ := jc.PayloadFloat("min_score")
	jc.Progress("fuse_candidates")

	result, err := h.correlator.FuseCandidates(jc.Ctx, rawDataID, minScore)
	if err != nil {
		return err
	}
	jc.Succeed("fuse_candidates", map[string]any{
		"relationships_confirmed": result.Confirmed,
		"relationships_rejected":  result.Rejected,
	})
	return nil
}
