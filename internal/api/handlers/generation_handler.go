package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/priyankab28/contribsync/internal/service"
	"github.com/priyankab28/contribsync/internal/transfer"
)

type GenerationHandler struct {
	s service.GenerationJobService
}

func NewGenerationHandler(s service.GenerationJobService) *GenerationHandler {
	return &GenerationHandler{s: s}
}

func (h *GenerationHandler) TriggerGeneration(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var themeID *int64
	if v := c.QueryInt("theme_id", -1); v >= 0 {
		id := int64(v)
		themeID = &id
	}

	jobID, err := h.s.TriggerGeneration(c.Context(), userID, themeID, true)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to queue generation",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(transfer.SuccessResponse{Success: true, ID: jobID})
}

func (h *GenerationHandler) ListJobs(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobs, err := h.s.ListJobs(c.Context(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list jobs",
		})
	}

	return c.JSON(jobs)
}

func (h *GenerationHandler) CancelJob(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	if err := h.s.CancelJob(c.Context(), userID, jobID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
