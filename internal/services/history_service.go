package services

import (
	"errors"

	"github.com/verdantlab/leaflens-backend/internal/dto"
	"github.com/verdantlab/leaflens-backend/internal/models"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

// HistoryService reads the append-only analysis log. Admins see every
// record; users see only their own. Order is newest first in both cases.
type HistoryService struct {
	db *gorm.DB
}

func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{db: db}
}

func (s *HistoryService) scopeFor(principal *models.User) *gorm.DB {
	q := s.db.Model(&models.Analysis{})
	if !principal.IsAdmin() {
		q = q.Where("user_email = ?", principal.Email)
	}
	return q
}

func (s *HistoryService) ListFor(principal *models.User, page, pageSize int) ([]models.Analysis, int64, error) {
	var records []models.Analysis
	var total int64

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if err := s.scopeFor(principal).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := s.scopeFor(principal).
		Order("id DESC").Limit(pageSize).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (s *HistoryService) GetByID(principal *models.User, id uint64) (*models.Analysis, error) {
	var record models.Analysis
	if err := s.scopeFor(principal).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Stats aggregates across the whole log; restricted to admins at the route level.
func (s *HistoryService) Stats() (*dto.HistoryStatsResponse, error) {
	var records []models.Analysis
	if err := s.db.Find(&records).Error; err != nil {
		return nil, err
	}

	stats := &dto.HistoryStatsResponse{
		DiseaseDistribution: make(map[string]int),
	}
	if len(records) == 0 {
		return stats, nil
	}

	totalConfidence := 0.0
	for _, r := range records {
		if r.IsHealthy {
			stats.HealthyCount++
		} else {
			stats.DiseasedCount++
			if r.DiseaseName != "" {
				stats.DiseaseDistribution[r.DiseaseName]++
			}
		}
		totalConfidence += r.ConfidenceScore
	}

	stats.TotalAnalyses = int64(len(records))
	stats.AverageConfidence = totalConfidence / float64(len(records))
	return stats, nil
}
