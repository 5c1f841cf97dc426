// Package sync implements the REST API handlers for feed sync operations.
package sync

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/feeds"
)

// PostFeedSync handles POST requests that trigger one adapter's upsert
// pass. A trigger for a source already syncing coalesces onto the in-flight
// run instead of running twice.
func PostFeedSync(registry *feeds.Registry, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		source := c.Params("source")

		runID, coalesced, err := registry.Sync(source)
		if err != nil {
			if errors.Is(err, feeds.ErrUnknownSource) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"message": "Unknown feed source: " + source,
				})
			}
			logger.Error("Feed sync trigger failed", zap.String("source", source), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to trigger sync: " + err.Error(),
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success":   true,
			"source":    source,
			"run_id":    runID,
			"coalesced": coalesced,
		})
	}
}

// ListSources handles GET requests for the registered feed sources.
func ListSources(registry *feeds.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success": true,
			"sources": registry.Sources(),
		})
	}
}
