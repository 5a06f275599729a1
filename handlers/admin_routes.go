// handlers/admin_routes.go
package handlers

import (
	"strconv"

	"progression-service/middleware"
	"progression-service/models"
	"progression-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(
	app *fiber.App,
	adjustments *services.AdjustmentService,
	levels *services.LevelService,
	paths *services.PathService,
	leaderboard *services.LeaderboardService,
) {
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	// The only administrative XP mutation path — always audited.
	adminGroup.Post("/xp/adjust", func(c *fiber.Ctx) error {
		type Req struct {
			UserID         string  `json:"user_id"`
			Amount         float64 `json:"amount"`
			Reason         string  `json:"reason"`
			AdjustmentType string  `json:"adjustment_type"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		amount, err := services.ParseAmount(req.Amount)
		if err != nil {
			return errJSON(c, "invalid amount", err)
		}

		adminID := c.Locals("user_id").(string)
		result, err := adjustments.AdjustUserXP(req.UserID, amount, req.Reason, models.AdjustmentType(req.AdjustmentType), adminID)
		if err != nil {
			return errJSON(c, "XP adjustment failed", err)
		}
		return c.JSON(result)
	})

	adminGroup.Get("/xp/adjustments", func(c *fiber.Ctx) error {
		userID := c.Query("user_id") // optional filter
		limit, _ := strconv.Atoi(c.Query("limit", "25"))
		offset, _ := strconv.Atoi(c.Query("offset", "0"))

		logs, total, err := adjustments.GetAdjustmentLogs(userID, limit, offset)
		if err != nil {
			return errJSON(c, "failed to read adjustment logs", err)
		}
		return c.JSON(fiber.Map{
			"logs":   logs,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	})

	// --- Level table configuration ---

	adminGroup.Get("/levels", func(c *fiber.Ctx) error {
		return c.JSON(levels.Definitions())
	})

	adminGroup.Post("/levels", func(c *fiber.Ctx) error {
		var def models.LevelDefinition
		if err := c.BodyParser(&def); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := levels.CreateLevel(def); err != nil {
			return errJSON(c, "failed to create level", err)
		}
		return c.Status(fiber.StatusCreated).JSON(def)
	})

	adminGroup.Put("/levels/:level", func(c *fiber.Ctx) error {
		level, err := strconv.Atoi(c.Params("level"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid level key"})
		}
		type Req struct {
			MinXP          int64  `json:"min_xp"`
			Name           string `json:"name"`
			RewardCurrency int64  `json:"reward_currency"`
			RewardTitleRef string `json:"reward_title_ref"`
			CosmeticUnlock string `json:"cosmetic_unlock"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := levels.UpdateLevel(level, req.MinXP, req.Name, req.RewardCurrency, req.RewardTitleRef, req.CosmeticUnlock); err != nil {
			return errJSON(c, "failed to update level", err)
		}
		return c.JSON(fiber.Map{"message": "level updated", "level": level})
	})

	adminGroup.Delete("/levels/:level", func(c *fiber.Ctx) error {
		level, err := strconv.Atoi(c.Params("level"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid level key"})
		}
		if err := levels.DeleteLevel(level); err != nil {
			return errJSON(c, "failed to delete level", err)
		}
		return c.JSON(fiber.Map{"message": "level deleted", "level": level})
	})

	// --- Path registry configuration ---

	adminGroup.Post("/paths", func(c *fiber.Ctx) error {
		type Req struct {
			Name          string                        `json:"name"`
			XPMultipliers map[models.ActionType]float64 `json:"xp_multipliers"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		path, err := paths.CreatePath(req.Name, req.XPMultipliers)
		if err != nil {
			return errJSON(c, "failed to create path", err)
		}
		return c.Status(fiber.StatusCreated).JSON(path)
	})

	adminGroup.Put("/paths/:path_id", func(c *fiber.Ctx) error {
		type Req struct {
			XPMultipliers map[models.ActionType]float64 `json:"xp_multipliers"`
			IsActive      *bool                         `json:"is_active"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		path, err := paths.UpdatePath(c.Params("path_id"), req.XPMultipliers, req.IsActive)
		if err != nil {
			return errJSON(c, "failed to update path", err)
		}
		// a deactivated path no longer refreshes, so drop its stale projection
		if !path.IsActive {
			if err := leaderboard.PurgeScope(path.PathID); err != nil {
				return errJSON(c, "failed to purge path leaderboard", err)
			}
		}
		return c.JSON(path)
	})

	adminGroup.Delete("/paths/:path_id", func(c *fiber.Ctx) error {
		pathID := c.Params("path_id")
		if err := paths.DeletePath(pathID); err != nil {
			return errJSON(c, "failed to delete path", err)
		}
		if err := leaderboard.PurgeScope(pathID); err != nil {
			return errJSON(c, "failed to purge path leaderboard", err)
		}
		return c.JSON(fiber.Map{"message": "path deleted", "path_id": pathID})
	})

	// Force an immediate projection rebuild (normally cadence-driven)
	adminGroup.Post("/leaderboard/refresh", func(c *fiber.Ctx) error {
		if err := leaderboard.RefreshAll(); err != nil {
			return errJSON(c, "leaderboard refresh failed", err)
		}
		return c.JSON(fiber.Map{"message": "leaderboard refreshed"})
	})
}
