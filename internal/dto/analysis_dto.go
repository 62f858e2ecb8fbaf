package dto

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisRecordResponse struct {
	ID                 uint64    `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	UserEmail          string    `json:"user_email"`
	PlantName          string    `json:"plant_name"`
	IsHealthy          bool      `json:"is_healthy"`
	DiseaseName        string    `json:"disease_name"`
	ConfidenceScore    float64   `json:"confidence_score"`
	Description        string    `json:"description"`
	PossibleCauses     []string  `json:"possible_causes"`
	RecommendedActions []string  `json:"recommended_actions"`
	ImageDataURI       string    `json:"image_data_uri"`
	AnalyzedAt         time.Time `json:"analyzed_at"`
}

type HistoryListResponse struct {
	Data       []AnalysisRecordResponse `json:"data"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
	TotalCount int64                    `json:"total_count"`
}

type HistoryStatsResponse struct {
	TotalAnalyses       int64          `json:"total_analyses"`
	HealthyCount        int64          `json:"healthy_count"`
	DiseasedCount       int64          `json:"diseased_count"`
	DiseaseDistribution map[string]int `json:"disease_distribution"`
	AverageConfidence   float64        `json:"average_confidence"`
}
