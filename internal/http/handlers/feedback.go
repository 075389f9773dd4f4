package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/nexusknowledge-backend/internal/http/response"
	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type FeedbackHandler struct {
	feedback services.FeedbackService
}

func NewFeedbackHandler(feedback services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

type submitFeedbackRequest struct {
	FeedbackType string  `json:"feedback_type" binding:"required"`
	Message      string  `json:"message" binding:"required"`
	UserID       *string `json:"user_id"`
}

// POST /api/feedback
//
// The id is allocated immediately; the write happens on the queue. Callers
// poll GET /api/feedback/:id to observe the persisted record.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_feedback_request", err)
		return
	}
	var userID *uuid.UUID
	if req.UserID != nil {
		parsed, err := uuid.Parse(*req.UserID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
			return
		}
		userID = &parsed
	}
	id, err := h.feedback.SubmitAsync(c.Request.Context(), req.FeedbackType, req.Message, userID)
	if err != nil {
		response.RespondDomainError(c, "feedback_submit_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"id": id, "status": lifecycle.FeedbackNew})
}

// GET /api/feedback?status=<s>&limit=<n>
func (h *FeedbackHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = parsed
	}
	records, err := h.feedback.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		response.RespondDomainError(c, "feedback_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"feedback": records})
}

// GET /api/feedback/:id
func (h *FeedbackHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_feedback_id", err)
		return
	}
	record, err := h.feedback.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "feedback_load_failed", err)
		return
	}
	if record == nil {
		response.RespondError(c, http.StatusNotFound, "feedback_not_found", errNotFound("feedback", id))
		return
	}
	response.RespondOK(c, gin.H{"feedback": record})
}

type updateFeedbackStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PATCH /api/feedback/:id/status
func (h *FeedbackHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_feedback_id", err)
		return
	}
	var req updateFeedbackStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_feedback_request", err)
		return
	}
	record, err := h.feedback.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.RespondDomainError(c, "feedback_update_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"feedback": record})
}
