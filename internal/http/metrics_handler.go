package http

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"beaconly/internal/analytics"
	"beaconly/internal/database"
)

const defaultTimeSeriesDays = 7

// MetricsHandler serves the aggregate payload the dashboard renders.
type MetricsHandler struct {
	manager *database.Manager
	logger  *slog.Logger
}

// NewMetricsHandler creates a metrics query handler.
func NewMetricsHandler(manager *database.Manager, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{manager: manager, logger: logger}
}

// Index handles GET /metrics. It returns today's aggregate (per-project or
// combined), the trailing time series, and the per-project breakdown in one
// payload. Internal failures surface as a 500 so a downed backing store is
// visible to operators instead of masquerading as zero traffic.
func (h *MetricsHandler) Index(c *fiber.Ctx) error {
	projectID := c.Query("projectId")
	days, err := strconv.Atoi(c.Query("days", strconv.Itoa(defaultTimeSeriesDays)))
	if err != nil || days < 1 {
		days = defaultTimeSeriesDays
	}

	db := h.manager.GetConnection()
	today := analytics.TodayWindow()

	var todayStats *analytics.Stats
	if projectID != "" {
		todayStats, err = analytics.GetProjectStats(db, projectID, today)
	} else {
		todayStats, err = analytics.GetAllStats(db, today)
	}
	if err != nil {
		return h.fail(c, "Failed to compute today's stats", err)
	}

	timeSeries, err := analytics.GetTimeSeries(db, projectID, days)
	if err != nil {
		return h.fail(c, "Failed to compute time series", err)
	}

	projects, err := analytics.GetAllProjectsStats(c.UserContext(), db, today)
	if err != nil {
		return h.fail(c, "Failed to compute project breakdown", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"today":      todayStats,
		"timeSeries": timeSeries,
		"projects":   projects,
	})
}

func (h *MetricsHandler) fail(c *fiber.Ctx, msg string, err error) error {
	h.logger.Error(msg, slog.Any("error", err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}
