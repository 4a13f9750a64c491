// handlers/achievement_routes.go
package handlers

import (
	"errors"

	"rental-rewards-system/middleware"
	"rental-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupAchievementRoutes(app *fiber.App, unlockService *services.UnlockService, claimService *services.ClaimService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Always reconciles before answering so the list reflects current
	// activity counters, not the last visit.
	secured.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		result, err := unlockService.Reconcile(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to reconcile achievements",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"achievements":    result.Rows,
			"unclaimed_count": result.UnclaimedCount,
		})
	})

	secured.Post("/user/achievements/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			ProgressIDs []string `json:"progress_ids"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := claimService.ClaimMultiple(userID, req.ProgressIDs)
		if err != nil {
			var ce *services.ClaimError
			if errors.As(err, &ce) && ce.Code == services.ClaimValidation {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ce.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "bulk claim failed",
				"cause": err.Error(),
			})
		}

		// Partial failure is a normal outcome — per-item results in the body.
		return c.JSON(result)
	})

	secured.Post("/user/achievements/:id/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		progressID := c.Params("id")

		if _, err := uuid.Parse(progressID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid progress ID"})
		}

		claimed, err := claimService.Claim(userID, progressID)
		if err != nil {
			var ce *services.ClaimError
			if errors.As(err, &ce) {
				return c.Status(claimStatus(ce.Code)).JSON(fiber.Map{
					"error":      ce.Message,
					"error_code": ce.Code,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "claim failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message":        "Achievement reward claimed successfully",
			"achievement":    claimed,
			"points_awarded": claimed.PointsAwarded,
		})
	})
}

func claimStatus(code services.ClaimCode) int {
	switch code {
	case services.ClaimNotFound:
		return fiber.StatusNotFound
	case services.ClaimAlreadyClaimed:
		return fiber.StatusConflict
	case services.ClaimNotUnlocked, services.ClaimValidation:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
