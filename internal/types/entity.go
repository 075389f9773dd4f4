package types

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Entity is an annotation on a conversation turn. The core pipeline only
// produces type=SENTIMENT with the label in Value/Sentiment and the
// classifier score in Relevance.
type Entity struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationTurnID uuid.UUID         `gorm:"type:uuid;not null;index" json:"conversation_turn_id"`
	ConversationTurn   *ConversationTurn `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationTurnID;references:ID" json:"conversation_turn,omitempty"`
	Type               string            `gorm:"column:type;size:50;not null" json:"type"`
	Value              string            `gorm:"column:value;type:text;not null" json:"value"`
	Sentiment          *string           `gorm:"column:sentiment;size:20" json:"sentiment,omitempty"`
	Relevance          *float64          `gorm:"column:relevance" json:"relevance,omitempty"`
	Metadata           datatypes.JSON    `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (Entity) TableName() string { return "entities" }
