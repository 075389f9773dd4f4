package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type PersistFeedbackHandler struct {
	feedback services.FeedbackService
	log      *logger.Logger
}

func NewPersistFeedbackHandler(feedback services.FeedbackService, baseLog *logger.Logger) *PersistFeedbackHandler {
	return &PersistFeedbackHandler{
		feedback: feedback,
		log:      baseLog.With("handler", services.JobPersistFeedback),
	}
}

func (h *PersistFeedbackHandler) Type() string { return services.JobPersistFeedback }

func (h *PersistFeedbackHandler) Run(jc *runtime.Context) error {
	id, ok := jc.PayloadUUID("feedback_id")
	if !ok {
		return fmt.Errorf("%w: payload missing feedback_id", apperr.ErrInvalidArgument)
	}
	feedbackType, ok := jc.PayloadString("feedback_type")
	if !ok {
		return fmt.Errorf("%w: payload missing feedback_type", apperr.ErrInvalidArgument)
	}
	message, ok := jc.PayloadString("message")
	if !ok {
		return fmt.Errorf("%w: payload missing message", apperr.ErrInvalidArgument)
	}

	var userID *uuid.UUID
	if raw, ok := jc.PayloadUUID("user_id"); ok {
		userID = &raw
	}
	submittedAt := time.Now().UTC()
	if raw, ok := jc.PayloadString("submitted_at"); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			submittedAt = parsed.UTC()
		}
	}

	jc.Progress("persist_feedback")
	if _, err := h.feedback.Persist(jc.Ctx, id, feedbackType, message, userID, submittedAt); err != nil {
		// Redelivery after a successful write hits the primary key; the
		// record is already there, so the job is done.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			h.log.Info("feedback already persisted", "feedback_id", id)
			jc.Succeed("persist_feedback", map[string]any{"feedback_id": id.String(), "duplicate": true})
			return nil
		}
		return err
	}
	jc.Succeed("persist_feedback", map[string]any{"feedback_id": id.String()})
	return nil
}
