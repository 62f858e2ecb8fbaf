package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/verdantlab/leaflens-backend/internal/dto"
	"github.com/verdantlab/leaflens-backend/internal/middleware"
	"github.com/verdantlab/leaflens-backend/internal/models"
	"github.com/verdantlab/leaflens-backend/internal/services"
)

type HistoryHandler struct {
	historyService *services.HistoryService
}

func NewHistoryHandler(historyService *services.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// List returns the caller's history, role-filtered: admins get the full
// aggregated log, users only their own records. Newest first.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	principal, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	records, total, err := h.historyService.ListFor(principal, page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to fetch history"})
	}

	return c.JSON(dto.HistoryListResponse{
		Data:       toRecordResponses(records),
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}

func (h *HistoryHandler) GetByID(c *fiber.Ctx) error {
	principal, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid record ID"})
	}

	record, err := h.historyService.GetByID(principal, id)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: "Record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to fetch record"})
	}

	return c.JSON(toRecordResponse(*record))
}

// Stats is mounted under the admin group.
func (h *HistoryHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.historyService.Stats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to fetch stats"})
	}

	return c.JSON(stats)
}

func toRecordResponses(records []models.Analysis) []dto.AnalysisRecordResponse {
	items := make([]dto.AnalysisRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, toRecordResponse(r))
	}
	return items
}

func toRecordResponse(r models.Analysis) dto.AnalysisRecordResponse {
	return dto.AnalysisRecordResponse{
		ID:                 r.ID,
		UserID:             r.UserID,
		UserEmail:          r.UserEmail,
		PlantName:          r.PlantName,
		IsHealthy:          r.IsHealthy,
		DiseaseName:        r.DiseaseName,
		ConfidenceScore:    r.ConfidenceScore,
		Description:        r.Description,
		PossibleCauses:     r.PossibleCauses,
		RecommendedActions: r.RecommendedActions,
		ImageDataURI:       r.ImageDataURI,
		AnalyzedAt:         r.AnalyzedAt,
	}
}
