package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/nexusknowledge-backend/internal/http/response"
	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type JobHandler struct {
	jobs    services.JobService
	rawData repos.RawDataRepo
}

func NewJobHandler(jobs services.JobService, rawData repos.RawDataRepo) *JobHandler {
	return &JobHandler{jobs: jobs, rawData: rawData}
}

type queueStageRequest struct {
	MinScore  *float64 `json:"min_score"`
	Directory string   `json:"directory"`
}

// POST /api/raw/:id/stages/:stage
//
// Rejects stages the payload is not ready for up front; the handler
// re-asserts the precondition when the job actually runs.
func (h *JobHandler) QueueStage(c *gin.Context) {
	rawDataID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_raw_data_id", err)
		return
	}
	stage := c.Param("stage")
	if !services.KnownJobType(stage) || stage == services.JobPersistFeedback {
		response.RespondError(c, http.StatusBadRequest, "unknown_stage", fmt.Errorf("unknown stage %q", stage))
		return
	}

	raw, err := h.rawData.GetByID(c.Request.Context(), nil, rawDataID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "raw_data_load_failed", err)
		return
	}
	if raw == nil {
		response.RespondError(c, http.StatusNotFound, "raw_data_not_found", errNotFound("raw data", rawDataID))
		return
	}
	if !lifecycle.StageReady(stage, raw.Status) {
		response.RespondError(c, http.StatusConflict, "stage_not_ready",
			fmt.Errorf("raw data %s in status %s cannot enter stage %s", rawDataID, raw.Status, stage))
		return
	}

	var req queueStageRequest
	_ = c.ShouldBindJSON(&req)
	payload := map[string]any{}
	if req.MinScore != nil {
		payload["min_score"] = *req.MinScore
	}
	if req.Directory != "" {
		payload["directory"] = req.Directory
	}

	job, err := h.jobs.Enqueue(c.Request.Context(), stage, &rawDataID, payload)
	if err != nil {
		response.RespondDomainError(c, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "job_load_failed", err)
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", errNotFound("job", jobID))
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/raw/:id/jobs
func (h *JobHandler) ListJobsForRaw(c *gin.Context) {
	rawDataID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_raw_data_id", err)
		return
	}
	jobs, err := h.jobs.ListForRaw(c.Request.Context(), rawDataID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "jobs_load_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/queue/stats
func (h *JobHandler) QueueStats(c *gin.Context) {
	stats, err := h.jobs.QueueStats(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "queue_stats_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"queue": stats})
}
