package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/database"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
)

// HandleCheckHealth reports whether the API and its database are reachable
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	if err := store.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response.Response{
			Success: false,
			Message: "database unavailable",
			Code:    "SERVICE_UNAVAILABLE",
		})
	}
	return response.Success(c, fiber.Map{"status": "ok"})
}
