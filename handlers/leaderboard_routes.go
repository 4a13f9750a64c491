// handlers/leaderboard_routes.go
package handlers

import (
	"errors"
	"strconv"

	"rental-rewards-system/middleware"
	"rental-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		category := services.LeaderboardCategory(c.Query("category", string(services.CategoryOverall)))
		limit, _ := strconv.Atoi(c.Query("limit", "20"))

		includeUserID := ""
		if c.Query("include_self", "true") == "true" {
			includeUserID = userID
		}

		view, err := leaderboardService.GetLeaderboard(category, limit, includeUserID)
		if err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, services.ErrUnknownCategory) {
				status = fiber.StatusBadRequest
			}
			return c.Status(status).JSON(fiber.Map{
				"error": "failed to load leaderboard",
				"cause": err.Error(),
			})
		}

		return c.JSON(view)
	})
}
