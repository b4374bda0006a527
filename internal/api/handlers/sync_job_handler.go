package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/priyankab28/contribsync/internal/service"
	"github.com/priyankab28/contribsync/internal/transfer"
)

type SyncJobHandler struct {
	s service.SyncJobService
}

func NewSyncJobHandler(s service.SyncJobService) *SyncJobHandler {
	return &SyncJobHandler{s: s}
}

func (h *SyncJobHandler) TriggerSync(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.TriggerSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	jobID, err := h.s.TriggerSync(c.Context(), userID, req.AccountID, req.SyncAllYears, req.SpecificYear, true)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, service.ErrAccountNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(transfer.SuccessResponse{Success: true, ID: jobID})
}

func (h *SyncJobHandler) GetJob(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	job, err := h.s.GetJob(c.Context(), userID, jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(job)
}

func (h *SyncJobHandler) ListJobs(c *fiber.Ctx) error {
	userID := GetUserID(c)

	status := c.Query("status")
	limit := c.QueryInt("limit", 50)

	jobs, err := h.s.ListJobs(c.Context(), userID, status, limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list jobs",
		})
	}

	return c.JSON(jobs)
}

func (h *SyncJobHandler) Progress(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	progress, err := h.s.Progress(c.Context(), userID, jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(progress)
}

func (h *SyncJobHandler) CancelJob(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	if err := h.s.CancelJob(c.Context(), userID, jobID); err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, service.ErrJobNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *SyncJobHandler) DeleteJob(c *fiber.Ctx) error {
	userID := GetUserID(c)

	jobID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	if err := h.s.DeleteJob(c.Context(), userID, jobID); err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, service.ErrJobNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
