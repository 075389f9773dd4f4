package types

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Relationship is a confirmed link between two entities produced by
// candidate fusion. Strength carries the fused candidate score.
type Relationship struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceEntityID uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_entity_id"`
	SourceEntity   *Entity        `gorm:"constraint:OnDelete:CASCADE;foreignKey:SourceEntityID;references:ID" json:"source_entity,omitempty"`
	TargetEntityID uuid.UUID      `gorm:"type:uuid;not null;index" json:"target_entity_id"`
	TargetEntity   *Entity        `gorm:"constraint:OnDelete:CASCADE;foreignKey:TargetEntityID;references:ID" json:"target_entity,omitempty"`
	Type           string         `gorm:"column:type;size:50;not null" json:"type"`
	Strength       *float64       `gorm:"column:strength" json:"strength,omitempty"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (Relationship) TableName() string { return "relationships" }
