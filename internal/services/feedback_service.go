package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/nexusknowledge-backend/internal/lifecycle"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/repos"
	"github.com/yungbote/nexusknowledge-backend/internal/types"
)

type FeedbackService interface {
	SubmitAsync(ctx context.Context, feedbackType, message string, userID *uuid.UUID) (uuid.UUID, error)
	Persist(ctx context.Context, id uuid.UUID, feedbackType, message string, userID *uuid.UUID, submittedAt time.Time) (*types.UserFeedback, error)
	Get(ctx context.Context, id uuid.UUID) (*types.UserFeedback, error)
	List(ctx context.Context, status string, limit int) ([]*types.UserFeedback, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*types.UserFeedback, error)
}

type feedbackService struct {
	feedback repos.UserFeedbackRepo
	jobs     JobService
	log      *logger.Logger
}

func NewFeedbackService(feedback repos.UserFeedbackRepo, jobs JobService, baseLog *logger.Logger) FeedbackService {
	return &feedbackService{
		feedback: feedback,
		jobs:     jobs,
		log:      baseLog.With("service", "feedback"),
	}
}

// SubmitAsync allocates the feedback id up front and defers the write to a
// persist_feedback job, so the submit path never blocks on the store.
func (s *feedbackService) SubmitAsync(ctx context.Context, feedbackType, message string, userID *uuid.UUID) (uuid.UUID, error) {
	feedbackType = strings.TrimSpace(feedbackType)
	message = strings.TrimSpace(message)
	if feedbackType == "" || message == "" {
		return uuid.Nil, fmt.Errorf("%w: feedback_type and message are required", apperr.ErrInvalidArgument)
	}
	id := uuid.New()
	payload := map[string]any{
		"feedback_id":   id.String(),
		"feedback_type": feedbackType,
		"message":       message,
		"submitted_at":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if userID != nil {
		payload["user_id"] = userID.String()
	}
	if _, err := s.jobs.Enqueue(ctx, JobPersistFeedback, nil, payload); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Persist writes the feedback row with the id allocated at submit time. The
// persist_feedback handler calls this; redeliveries hit the primary-key
// conflict and are treated as already done.
func (s *feedbackService) Persist(ctx context.Context, id uuid.UUID, feedbackType, message string, userID *uuid.UUID, submittedAt time.Time) (*types.UserFeedback, error) {
	record := &types.UserFeedback{
		ID:           id,
		FeedbackType: feedbackType,
		Message:      message,
		UserID:       userID,
		SubmittedAt:  submittedAt,
		Status:       lifecycle.FeedbackNew,
	}
	created, err := s.feedback.Create(ctx, nil, record)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *feedbackService) Get(ctx context.Context, id uuid.UUID) (*types.UserFeedback, error) {
	return s.feedback.GetByID(ctx, nil, id)
}

func (s *feedbackService) List(ctx context.Context, status string, limit int) ([]*types.UserFeedback, error) {
	if status != "" && !lifecycle.ValidFeedbackStatus(status) {
		return nil, fmt.Errorf("%w: invalid feedback status %q", apperr.ErrInvalidArgument, status)
	}
	return s.feedback.List(ctx, nil, status, limit)
}

func (s *feedbackService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*types.UserFeedback, error) {
	if !lifecycle.ValidFeedbackStatus(status) {
		return nil, fmt.Errorf("%w: invalid feedback status %q", apperr.ErrInvalidArgument, status)
	}
	existing, err := s.feedback.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: feedback %s", apperr.ErrNotFound, id)
	}
	if err := s.feedback.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, err
	}
	existing.Status = status
	return existing, nil
}
