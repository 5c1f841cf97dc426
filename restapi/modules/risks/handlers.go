// Package risks implements the REST API handlers for risk ranking and
// analytics views.
package risks

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/analytics"
	"github.com/riskhub/riskhub-backend/restapi/modules/tenant"
	"github.com/riskhub/riskhub-backend/risk"
)

const defaultLimit = 20

// GetProjectRisks handles GET requests for one project's ranked open risks.
func GetProjectRisks(agg *risk.Aggregator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("projectID")
		limit := c.QueryInt("limit", defaultLimit)

		ranked, err := agg.TopRisks(c.Context(), tenant.FromCtx(c), projectID, limit)
		if err != nil {
			logger.Error("Failed to rank risks", zap.String("project", projectID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to rank risks",
			})
		}

		posture, err := agg.ProjectRisk(c.Context(), tenant.FromCtx(c), projectID)
		if err != nil {
			logger.Error("Failed to score project", zap.String("project", projectID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to score project",
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"risks":   ranked,
			"posture": posture,
		})
	}
}

// GetProjectEOL handles GET requests for a project's components running
// end-of-life product cycles.
func GetProjectEOL(agg *risk.Aggregator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("projectID")

		exposures, err := agg.EOLExposure(c.Context(), tenant.FromCtx(c), projectID)
		if err != nil {
			logger.Error("Failed to match eol exposure", zap.String("project", projectID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to match eol exposure",
			})
		}
		return c.JSON(fiber.Map{
			"success":   true,
			"exposures": exposures,
		})
	}
}

// GetPortfolioRisks handles GET requests for the tenant-wide rollup.
func GetPortfolioRisks(agg *risk.Aggregator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rollup, perProject, err := agg.PortfolioRisk(c.Context(), tenant.FromCtx(c))
		if err != nil {
			logger.Error("Failed to roll up portfolio", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to roll up portfolio",
			})
		}
		return c.JSON(fiber.Map{
			"success":  true,
			"rollup":   rollup,
			"projects": perProject,
		})
	}
}

// GetAnalyticsSummary handles GET requests for the MTTR, SLO and compliance
// view over a trailing window of days.
func GetAnalyticsSummary(roller *analytics.Roller, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := c.QueryInt("days", 0)
		projectID := c.Query("project_id")

		summary, err := roller.Summary(c.Context(), tenant.FromCtx(c), projectID, days)
		if err != nil {
			logger.Error("Failed to compute analytics summary", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to compute summary",
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"summary": summary,
		})
	}
}
