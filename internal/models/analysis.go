package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Analysis is one completed leaf assessment. Rows are append-only and never
// mutated; the auto-increment ID doubles as the insertion-order cursor.
type Analysis struct {
	ID                 uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	UserEmail          string         `gorm:"size:255;not null;index" json:"user_email"`
	PlantName          string         `gorm:"size:255" json:"plant_name"`
	IsHealthy          bool           `json:"is_healthy"`
	DiseaseName        string         `gorm:"size:255" json:"disease_name"`
	ConfidenceScore    float64        `gorm:"check:confidence_score >= 0 AND confidence_score <= 1" json:"confidence_score"`
	Description        string         `gorm:"type:text" json:"description"`
	PossibleCauses     []string       `gorm:"type:jsonb;serializer:json" json:"possible_causes"`
	RecommendedActions []string       `gorm:"type:jsonb;serializer:json" json:"recommended_actions"`
	ImageDataURI       string         `gorm:"type:text" json:"image_data_uri"`
	RawResponse        datatypes.JSON `gorm:"type:jsonb" json:"-"`
	AnalyzedAt         time.Time      `gorm:"not null;index" json:"analyzed_at"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (Analysis) TableName() string {
	return "analyses"
}
