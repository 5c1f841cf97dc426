// Package decisions implements the REST API handlers for SSVC assessment
// operations. Decisions are derived from inputs; writing one directly is an
// invariant violation and is rejected.
package decisions

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/restapi/modules/tenant"
	"github.com/riskhub/riskhub-backend/ssvc"
)

// AssessRequest is the body of the assessment endpoint. Decision is parsed
// only so a direct write attempt can be rejected explicitly.
type AssessRequest struct {
	Exploitation      *string `json:"exploitation,omitempty"`
	Automatable       *string `json:"automatable,omitempty"`
	TechnicalImpact   *string `json:"technical_impact,omitempty"`
	MissionPrevalence *string `json:"mission_prevalence,omitempty"`
	SafetyImpact      *string `json:"safety_impact,omitempty"`
	Decision          *string `json:"decision,omitempty"`
	Actor             string  `json:"actor,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

// PostAssessment handles POST requests that recompute the SSVC decision of
// one (project, vulnerability) pair from analyst inputs.
func PostAssessment(svc *ssvc.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req AssessRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if req.Decision != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"message": ssvc.ErrDecisionNotWritable.Error(),
			})
		}

		assessment, err := svc.Assess(c.Context(), tenant.FromCtx(c), c.Params("projectID"), c.Params("vulnID"), ssvc.Request{
			Exploitation:      req.Exploitation,
			Automatable:       req.Automatable,
			TechnicalImpact:   req.TechnicalImpact,
			MissionPrevalence: req.MissionPrevalence,
			SafetyImpact:      req.SafetyImpact,
			Actor:             req.Actor,
			Reason:            req.Reason,
		})
		if err != nil {
			if errors.Is(err, ssvc.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"message": err.Error(),
				})
			}
			if errors.Is(err, ssvc.ErrInvalidInput) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"message": err.Error(),
				})
			}
			logger.Error("Assessment failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to assess",
			})
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"assessment": assessment,
		})
	}
}

// GetAssessment handles GET requests for the current assessment.
func GetAssessment(svc *ssvc.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assessment, err := svc.Get(c.Context(), c.Params("projectID"), c.Params("vulnID"))
		if err != nil {
			logger.Error("Failed to load assessment", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to load assessment",
			})
		}
		if assessment == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "No assessment recorded",
			})
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"assessment": assessment,
		})
	}
}

// GetHistory handles GET requests for an assessment's change history.
func GetHistory(svc *ssvc.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		history, err := svc.History(c.Context(), c.Params("projectID"), c.Params("vulnID"))
		if err != nil {
			logger.Error("Failed to load assessment history", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to load history",
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"history": history,
		})
	}
}
