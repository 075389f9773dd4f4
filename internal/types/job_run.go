package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCanceled  = "canceled"
)

// JobRun is one durable unit of work for the pipeline worker pool. Claiming
// flips it to running and bumps attempts; terminal statuses are succeeded,
// failed (retryable until attempts hit the limit and NextRetryAt passes),
// and canceled.
type JobRun struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobType       string         `gorm:"column:job_type;size:64;not null;index" json:"job_type"`
	RawDataID     *uuid.UUID     `gorm:"type:uuid;index" json:"raw_data_id,omitempty"`
	CorrelationID *string        `gorm:"column:correlation_id;size:128" json:"correlation_id,omitempty"`
	Payload       datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Status        string         `gorm:"column:status;size:32;not null;default:'queued';index" json:"status"`
	Stage         string         `gorm:"column:stage;size:64" json:"stage"`
	Attempts      int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error         string         `gorm:"column:error;type:text" json:"error"`
	Result        datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	LockedAt      *time.Time     `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt   *time.Time     `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	LastErrorAt   *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	NextRetryAt   *time.Time     `gorm:"column:next_retry_at" json:"next_retry_at,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_runs" }
