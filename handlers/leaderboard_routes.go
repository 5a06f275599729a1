// handlers/leaderboard_routes.go
package handlers

import (
	"strconv"

	"progression-service/middleware"
	"progression-service/models"
	"progression-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboard *services.LeaderboardService) {
	// Paginated leaderboard page. scope defaults to global; any other value is a path_id.
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		scope := c.Query("scope", models.ScopeGlobal)
		limit, _ := strconv.Atoi(c.Query("limit", "25"))
		offset, _ := strconv.Atoi(c.Query("offset", "0"))

		page, err := leaderboard.GetPage(scope, limit, offset)
		if err != nil {
			return errJSON(c, "failed to read leaderboard", err)
		}
		return c.JSON(page)
	})

	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/rank", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		scope := c.Query("scope", models.ScopeGlobal)

		rank, err := leaderboard.GetUserRank(userID, scope)
		if err != nil {
			return errJSON(c, "failed to read rank", err)
		}
		// rank stays null for a user who has never scored in this scope
		return c.JSON(fiber.Map{
			"user_id": userID,
			"scope":   scope,
			"rank":    rank,
		})
	})
}
