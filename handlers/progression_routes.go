// handlers/progression_routes.go
package handlers

import (
	"log"

	"progression-service/middleware"
	"progression-service/models"
	"progression-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, accrual *services.AccrualService, tracker *services.PathTrackerService) {
	// Action-event ingestion from collaborating domains (forum, tipping, shop).
	// The core validates only the numeric contract, not business legitimacy.
	app.Post("/events/award", func(c *fiber.Ctx) error {
		type Req struct {
			UserID     string  `json:"user_id"`
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

		actionType := models.ActionType(req.ActionType)
		result, err := accrual.Award(req.UserID, amount, actionType)
		if err != nil {
			return errJSON(c, "XP award failed", err)
		}

		// Parallel path update is best-effort: an award to the primary path must
		// not fail the organic award that already committed.
		pathResult, pathErr := tracker.AwardToPrimary(req.UserID, amount, actionType)
		if pathErr != nil {
			log.Printf("⚠️ Primary path award failed for %s: %v", req.UserID, pathErr)
		}

		resp := fiber.Map{
			"user_id":    result.UserID,
			"new_xp":     result.NewXP,
			"new_level":  result.NewLevel,
			"leveled_up": result.LeveledUp,
		}
		if result.Rewards != nil {
			resp["rewards"] = result.Rewards
		}
		if pathResult != nil {
			resp["path"] = pathResult
		}
		return c.JSON(resp)
	})

	// Secured routes — require user context forwarded by the Gateway
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := accrual.GetProgress(userID)
		if err != nil {
			return errJSON(c, "failed to fetch progress", err)
		}

		def, err := accrual.Levels.ResolveLevel(prog.TotalXP)
		if err != nil {
			return errJSON(c, "level table inconsistent", err)
		}

		primary, err := tracker.PrimaryPath(userID)
		if err != nil {
			return errJSON(c, "failed to fetch primary path", err)
		}

		resp := fiber.Map{
			"id":               prog.ID,
			"xp":               prog.TotalXP,
			"level":            prog.Level,
			"level_name":       def.Name,
			"last_level_up_at": prog.LastLevelUpAt,
		}
		if primary != nil {
			resp["primary_path"] = fiber.Map{
				"path_id":    primary.PathID,
				"path_xp":    primary.PathXP,
				"path_level": primary.PathLevel,
			}
		}
		return c.JSON(resp)
	})

	// Level-up notification stream (at-least-once; consumers dedupe on user+level)
	securedGroup.Get("/user/progress/events", accrual.StreamLevelUps)
}
