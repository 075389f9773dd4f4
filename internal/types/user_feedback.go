package types

import (
	"time"

	"github.com/google/uuid"
)

type UserFeedback struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FeedbackType string     `gorm:"column:feedback_type;size:50;not null" json:"feedback_type"`
	Message      string     `gorm:"column:message;type:text;not null" json:"message"`
	UserID       *uuid.UUID `gorm:"type:uuid" json:"user_id,omitempty"`
	SubmittedAt  time.Time  `gorm:"column:submitted_at;not null" json:"submitted_at"`
	Status       string     `gorm:"column:status;size:50;not null;default:'NEW'" json:"status"`
}

func (UserFeedback) TableName() string { return "user_feedback" }
