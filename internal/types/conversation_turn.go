package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationTurn is one message of a normalized conversation. The
// (conversation_id, turn_index) pair is unique so replays collide loudly
// instead of duplicating turns. The raw link is SET NULL on delete so turns
// outlive their raw payload.
type ConversationTurn struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RawDataID      *uuid.UUID     `gorm:"type:uuid;index:idx_turns_raw_turn,priority:1" json:"raw_data_id,omitempty"`
	RawData        *RawData       `gorm:"constraint:OnDelete:SET NULL;foreignKey:RawDataID;references:ID" json:"raw_data,omitempty"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_conversation_turn,priority:1" json:"conversation_id"`
	TurnIndex      int            `gorm:"column:turn_index;not null;uniqueIndex:uniq_conversation_turn,priority:2;index:idx_turns_raw_turn,priority:2" json:"turn_index"`
	Speaker        string         `gorm:"column:speaker;size:50;not null" json:"speaker"`
	Text           string         `gorm:"column:text;type:text;not null" json:"text"`
	Timestamp      time.Time      `gorm:"column:timestamp;not null" json:"timestamp"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (ConversationTurn) TableName() string { return "conversation_turns" }
