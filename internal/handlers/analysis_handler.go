package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/verdantlab/leaflens-backend/internal/config"
	"github.com/verdantlab/leaflens-backend/internal/dto"
	"github.com/verdantlab/leaflens-backend/internal/middleware"
	"github.com/verdantlab/leaflens-backend/internal/services"
)

type AnalysisHandler struct {
	analysisService *services.AnalysisService
	cfg             *config.Config
}

func NewAnalysisHandler(analysisService *services.AnalysisService, cfg *config.Config) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService, cfg: cfg}
}

// SelectImage accepts a multipart image upload and stages it in the caller's
// workspace, discarding any previous result or error.
func (h *AnalysisHandler) SelectImage(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Image file is required"})
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Only image uploads are supported"})
	}

	if file.Size > h.cfg.MaxImageBytes {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Image too large. Maximum 4MB."})
	}

	f, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to read image"})
	}
	defer f.Close()

	fileBytes, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to read image data"})
	}

	snapshot := h.analysisService.SelectImage(userID, fileBytes, contentType)
	return c.JSON(snapshot)
}

// Start runs one analysis attempt. Precondition failures return an error
// status; inference failures resolve into the Failed snapshot, which the
// client reads inline.
func (h *AnalysisHandler) Start(c *fiber.Ctx) error {
	principal, err := middleware.CurrentPrincipal(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	snapshot, err := h.analysisService.StartAnalysis(c.UserContext(), principal)
	if err != nil {
		if errors.Is(err, services.ErrNoImage) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Please select an image first.",
			})
		}
		if errors.Is(err, services.ErrAnalysisInProgress) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: "An analysis is already in progress.",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(snapshot)
}

func (h *AnalysisHandler) State(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	return c.JSON(h.analysisService.State(userID))
}
