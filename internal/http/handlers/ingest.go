package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/nexusknowledge-backend/internal/http/response"
	"github.com/yungbote/nexusknowledge-backend/internal/ingestion"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type IngestHandler struct {
	ingest  ingestion.Service
	rawData repos.RawDataRepo
	turns   repos.ConversationTurnRepo
	jobs    services.JobService
}

func NewIngestHandler(ingest ingestion.Service, rawData repos.RawDataRepo, turns repos.ConversationTurnRepo, jobs services.JobService) *IngestHandler {
	return &IngestHandler{ingest: ingest, rawData: rawData, turns: turns, jobs: jobs}
}

type ingestRequest struct {
	SourceType string                 `json:"source_type" binding:"required"`
	SourceID   *string                `json:"source_id"`
	Content    interface{}            `json:"content" binding:"required"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// POST /api/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_ingest_request", err)
		return
	}
	result, err := h.ingest.Ingest(c.Request.Context(), req.SourceType, req.SourceID, req.Content, req.Metadata)
	if err != nil {
		response.RespondDomainError(c, "ingest_failed", err)
		return
	}

	// New payloads start the pipeline immediately; duplicates are already
	// somewhere in it.
	var jobID *uuid.UUID
	if result.Created {
		job, err := h.jobs.Enqueue(c.Request.Context(), services.JobNormalize, &result.RawData.ID, nil)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
			return
		}
		jobID = &job.ID
	}

	body := gin.H{"raw_data": result.RawData, "created": result.Created}
	if jobID != nil {
		body["job_id"] = jobID
	}
	if result.Created {
		response.RespondCreated(c, body)
		return
	}
	response.RespondOK(c, body)
}

type ingestMarkdownRequest struct {
	Path string `json:"path" binding:"required"`
}

// POST /api/ingest/markdown
func (h *IngestHandler) IngestMarkdown(c *gin.Context) {
	var req ingestMarkdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_ingest_request", err)
		return
	}
	result, err := h.ingest.IngestMarkdownFile(c.Request.Context(), req.Path)
	if err != nil {
		response.RespondDomainError(c, "ingest_failed", err)
		return
	}
	var jobID *uuid.UUID
	if result.Created {
		job, err := h.jobs.Enqueue(c.Request.Context(), services.JobNormalize, &result.RawData.ID, nil)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
			return
		}
		jobID = &job.ID
	}
	body := gin.H{"raw_data": result.RawData, "created": result.Created}
	if jobID != nil {
		body["job_id"] = jobID
	}
	if result.Created {
		response.RespondCreated(c, body)
		return
	}
	response.RespondOK(c, body)
}

// GET /api/raw/:id
func (h *IngestHandler) GetRaw(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_raw_data_id", err)
		return
	}
	raw, err := h.rawData.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "raw_data_load_failed", err)
		return
	}
	if raw == nil {
		response.RespondError(c, http.StatusNotFound, "raw_data_not_found", errNotFound("raw data", id))
		return
	}
	response.RespondOK(c, gin.H{"raw_data": raw})
}

// GET /api/raw/:id/turns
func (h *IngestHandler) ListTurns(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_raw_data_id", err)
		return
	}
	turns, err := h.turns.ListForRaw(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "turns_load_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"turns": turns})
}
