// handlers/path_routes.go
package handlers

import (
	"progression-service/middleware"
	"progression-service/models"
	"progression-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPathRoutes(app *fiber.App, paths *services.PathService, tracker *services.PathTrackerService) {
	// Public catalog of active paths
	app.Get("/paths", func(c *fiber.Ctx) error {
		return c.JSON(paths.ActivePaths())
	})

	// Direct path-scoped ingestion (e.g., a domain that scores one track only)
	app.Post("/events/path-award", func(c *fiber.Ctx) error {
		type Req struct {
			UserID     string  `json:"user_id"`
			PathID     string  `json:"path_id"`
			ActionType string  `json:"action_type"`
			RawAmount  float64 `json:"raw_amount"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		amount, err := services.ParseAmount(req.RawAmount)
		if err != nil {
			return errJSON(c, "invalid raw_amount", err)
		}

		result, err := tracker.AwardToPath(req.UserID, req.PathID, amount, models.ActionType(req.ActionType))
		if err != nil {
			return errJSON(c, "path award failed", err)
		}
		return c.JSON(result)
	})

	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/paths", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		ups, err := tracker.UserPaths(userID)
		if err != nil {
			return errJSON(c, "failed to fetch user paths", err)
		}
		return c.JSON(ups)
	})

	// Equip a path as primary (idempotent)
	securedGroup.Post("/user/paths/primary", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		type Req struct {
			PathID string `json:"path_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		if err := tracker.SetPrimaryPath(userID, req.PathID); err != nil {
			return errJSON(c, "failed to set primary path", err)
		}
		return c.JSON(fiber.Map{
			"message": "primary path set",
			"path_id": req.PathID,
		})
	})
}
