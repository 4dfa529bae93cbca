package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"beaconly/internal/database"
)

// SystemHandler serves administrative and liveness endpoints.
type SystemHandler struct {
	manager *database.Manager
	logger  *slog.Logger
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(manager *database.Manager, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{manager: manager, logger: logger}
}

// Init handles GET /init: creates tables and indexes if absent. The route
// is gated by the shared-secret middleware.
func (h *SystemHandler) Init(c *fiber.Ctx) error {
	if err := h.manager.Migrate(); err != nil {
		h.logger.Error("Database initialization failed", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Database initialized successfully",
	})
}

// Health handles GET /health.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}
