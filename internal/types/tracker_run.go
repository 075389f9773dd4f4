package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TrackerRun mirrors one experiment-tracking run locally so stage metrics
// stay queryable without the tracking server.
type TrackerRun struct {
	RunID        uuid.UUID      `gorm:"type:uuid;primaryKey;column:run_id" json:"run_id"`
	ExperimentID string         `gorm:"column:experiment_id;size:255;not null" json:"experiment_id"`
	RunName      *string        `gorm:"column:run_name;size:255" json:"run_name,omitempty"`
	StartTime    time.Time      `gorm:"column:start_time;not null" json:"start_time"`
	EndTime      *time.Time     `gorm:"column:end_time" json:"end_time,omitempty"`
	Status       *string        `gorm:"column:status;size:50" json:"status,omitempty"`
	Tags         datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	Params       datatypes.JSON `gorm:"column:params;type:jsonb" json:"params"`
	Metrics      datatypes.JSON `gorm:"column:metrics;type:jsonb" json:"metrics"`
	ArtifactsURI *string        `gorm:"column:artifacts_uri;type:text" json:"artifacts_uri,omitempty"`
}

func (TrackerRun) TableName() string { return "tracker_runs" }
