package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/service"
)

type TimelineHandler struct {
	s service.TimelineService
}

func NewTimelineHandler(s service.TimelineService) *TimelineHandler {
	return &TimelineHandler{s: s}
}

// queryWindow parses the from/to query params, defaulting to everything since
// the sync floor.
func queryWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	from := time.Date(models.SyncEpochYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Now().UTC()

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		to = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, time.UTC)
	}
	return from, to, nil
}

func (h *TimelineHandler) AccountContributions(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	from, to, err := queryWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and to must be YYYY-MM-DD",
		})
	}

	days, err := h.s.AccountContributions(c.Context(), userID, accountID, from, to)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, service.ErrAccountNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(days)
}

func (h *TimelineHandler) AccountActivities(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountID, err := paramID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	from, to, err := queryWindow(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and to must be YYYY-MM-DD",
		})
	}

	window, err := h.s.AccountActivities(c.Context(), userID, accountID, from, to)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, service.ErrAccountNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(window)
}

func (h *TimelineHandler) ListActivities(c *fiber.Ctx) error {
	userID := GetUserID(c)

	activities, err := h.s.UserActivities(c.Context(), userID, c.QueryInt("limit"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list activities",
		})
	}

	return c.JSON(activities)
}

func (h *TimelineHandler) ContributionSummary(c *fiber.Ctx) error {
	userID := GetUserID(c)

	summary, err := h.s.ContributionSummary(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to load summary",
		})
	}

	return c.JSON(summary)
}
