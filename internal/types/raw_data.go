package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RawData is the originally submitted payload. Content is stored in its
// canonical serialisation; ContentHash is the SHA-256 fingerprint used for
// dedup. Status moves through the ingestion lifecycle and is only mutated
// by stage handlers.
type RawData struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceType  string         `gorm:"column:source_type;size:50;not null;index:idx_raw_data_source_status,priority:1" json:"source_type"`
	SourceID    *string        `gorm:"column:source_id;size:255" json:"source_id,omitempty"`
	Content     string         `gorm:"column:content;type:text;not null" json:"content"`
	ContentHash string         `gorm:"column:content_hash;size:64;not null;uniqueIndex:uniq_raw_data_content_hash" json:"content_hash"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Status      string         `gorm:"column:status;size:50;not null;default:'INGESTED';index:idx_raw_data_source_status,priority:2" json:"status"`
	IngestedAt  time.Time      `gorm:"column:ingested_at;not null" json:"ingested_at"`
	ProcessedAt *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
}

func (RawData) TableName() string { return "raw_data" }
