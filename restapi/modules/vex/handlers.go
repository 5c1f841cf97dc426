// Package vex implements the REST API handlers for VEX statement
// operations.
package vex

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/restapi/modules/tenant"
	"github.com/riskhub/riskhub-backend/vexstmt"
)

// PutStatementRequest is the body of the VEX upsert endpoint.
type PutStatementRequest struct {
	ComponentID     string `json:"component_id,omitempty"`
	Status          string `json:"status"`
	Justification   string `json:"justification,omitempty"`
	ImpactStatement string `json:"impact_statement,omitempty"`
	Author          string `json:"author,omitempty"`
}

// PutStatement handles PUT requests that replace the active statement for
// one (project, vulnerability, component?) scope.
func PutStatement(svc *vexstmt.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req PutStatementRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}

		stmt := model.VexStatement{
			TenantID:        tenant.FromCtx(c),
			ProjectID:       c.Params("projectID"),
			VulnerabilityID: c.Params("vulnID"),
			ComponentID:     req.ComponentID,
			Status:          req.Status,
			Justification:   req.Justification,
			ImpactStatement: req.ImpactStatement,
			Author:          req.Author,
		}

		if err := stmt.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		saved, err := svc.Upsert(c.Context(), stmt)
		if err != nil {
			logger.Error("VEX upsert failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to save statement",
			})
		}

		return c.JSON(fiber.Map{
			"success":   true,
			"statement": saved,
		})
	}
}

// ListStatements handles GET requests for a project's active statements.
func ListStatements(svc *vexstmt.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stmts, err := svc.Statements(c.Context(), tenant.FromCtx(c), c.Params("projectID"))
		if err != nil {
			logger.Error("Failed to list VEX statements", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to list statements",
			})
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"statements": stmts,
		})
	}
}

// GetAudit handles GET requests for the audit trail of one vulnerability's
// statements, newest first.
func GetAudit(svc *vexstmt.Service, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := svc.Audit(c.Context(), tenant.FromCtx(c), c.Params("projectID"), c.Params("vulnID"))
		if err != nil {
			logger.Error("Failed to load VEX audit trail", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to load audit trail",
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"audit":   entries,
		})
	}
}
