package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CorrelationCandidate is a proposed relationship awaiting fusion. The
// entity pair is stored in canonical order (source < target lexically), so
// the unique index enforces the unordered-pair invariant per raw payload.
type CorrelationCandidate struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RawDataID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_candidates_raw_status,priority:1;uniqueIndex:uniq_candidate_pair,priority:1" json:"raw_data_id"`
	RawData        *RawData       `gorm:"constraint:OnDelete:CASCADE;foreignKey:RawDataID;references:ID" json:"raw_data,omitempty"`
	SourceEntityID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_candidate_pair,priority:2" json:"source_entity_id"`
	SourceEntity   *Entity        `gorm:"constraint:OnDelete:CASCADE;foreignKey:SourceEntityID;references:ID" json:"source_entity,omitempty"`
	TargetEntityID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_candidate_pair,priority:3" json:"target_entity_id"`
	TargetEntity   *Entity        `gorm:"constraint:OnDelete:CASCADE;foreignKey:TargetEntityID;references:ID" json:"target_entity,omitempty"`
	Score          float64        `gorm:"column:score;not null" json:"score"`
	Status         string         `gorm:"column:status;size:50;not null;default:'PENDING';index:idx_candidates_raw_status,priority:2" json:"status"`
	Rationale      *string        `gorm:"column:rationale;type:text" json:"rationale,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (CorrelationCandidate) TableName() string { return "correlation_candidates" }
