// Package projects implements the REST API handlers for project and SBOM
// ingestion operations.
package projects

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/correlate"
	"github.com/riskhub/riskhub-backend/database"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
	"github.com/riskhub/riskhub-backend/restapi/modules/tenant"
)

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name              string `json:"name"`
	MissionPrevalence string `json:"mission_prevalence,omitempty"`
	SafetyImpact      string `json:"safety_impact,omitempty"`
}

// IngestRequest is the body of POST /projects/:projectID/sbom: a parsed
// component list handed over by the SBOM extraction collaborator.
type IngestRequest struct {
	Format     string               `json:"format,omitempty"`
	Components []model.RawComponent `json:"components"`
}

// CreateProject handles POST requests for creating a project.
func CreateProject(db arangodb.Database, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateProjectRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Project name is required",
			})
		}

		project := model.NewProject(tenant.FromCtx(c), req.Name)
		project.Key = normalize.SanitizeKey(uuid.New().String())
		if req.MissionPrevalence != "" {
			project.MissionPrevalence = req.MissionPrevalence
		}
		if req.SafetyImpact != "" {
			project.SafetyImpact = req.SafetyImpact
		}

		query := `INSERT @project INTO project`
		cursor, err := db.Query(c.Context(), query, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{"project": project},
		})
		if err != nil {
			logger.Error("Failed to create project", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to create project",
			})
		}
		cursor.Close()

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"project": project,
		})
	}
}

// ListProjects handles GET requests for the tenant's projects.
func ListProjects(db arangodb.Database, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := `
			FOR p IN project
				FILTER p.tenant_id == @tenant
				SORT p.name
				RETURN p
		`
		cursor, err := db.Query(c.Context(), query, &arangodb.QueryOptions{
			BindVars: map[string]interface{}{"tenant": tenant.FromCtx(c)},
		})
		if err != nil {
			logger.Error("Failed to list projects", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to list projects",
			})
		}
		defer cursor.Close()

		projects := []model.Project{}
		for cursor.HasMore() {
			var project model.Project
			if _, err := cursor.ReadDocument(c.Context(), &project); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"success": false,
					"message": "Failed to list projects",
				})
			}
			projects = append(projects, project)
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"projects": projects,
		})
	}
}

// IngestSBOM handles POST requests that replace a project's component set.
// A re-upload of identical content is a no-op; new content supersedes the
// previous import and triggers a correlation pass.
func IngestSBOM(db arangodb.Database, engine *correlate.Engine, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("projectID")
		tenantID := tenant.FromCtx(c)

		var req IngestRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body: " + err.Error(),
			})
		}
		if len(req.Components) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "At least one component is required",
			})
		}

		contentSha, err := componentContentSha(req.Components)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Failed to hash components: " + err.Error(),
			})
		}

		// Identical content was already imported; nothing to do.
		existing, err := database.FindImportByContentHash(c.Context(), db, projectID, contentSha)
		if err != nil {
			logger.Error("Failed to check import hash", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to check for existing import",
			})
		}
		if existing != "" {
			return c.JSON(fiber.Map{
				"success":      true,
				"import_id":    existing,
				"deduplicated": true,
			})
		}

		importID, count, err := storeImport(c.Context(), db, tenantID, projectID, contentSha, req)
		if err != nil {
			logger.Error("Failed to store SBOM import", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to store SBOM import",
			})
		}

		runID, coalesced, err := engine.Correlate(c.Context(), tenantID, projectID)
		if err != nil {
			logger.Warn("Correlation after ingest failed",
				zap.String("project", projectID), zap.Error(err))
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":         true,
			"import_id":       importID,
			"component_count": count,
			"correlation_run": runID,
			"coalesced":       coalesced,
		})
	}
}

// Correlate handles POST requests that trigger a correlation pass. A second
// trigger while one runs coalesces onto the in-flight pass.
func Correlate(engine *correlate.Engine, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projectID := c.Params("projectID")

		runID, coalesced, err := engine.Correlate(c.Context(), tenant.FromCtx(c), projectID)
		if err != nil {
			logger.Error("Correlation failed", zap.String("project", projectID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Correlation failed: " + err.Error(),
			})
		}

		status := fiber.StatusAccepted
		return c.Status(status).JSON(fiber.Map{
			"success":   true,
			"run_id":    runID,
			"coalesced": coalesced,
		})
	}
}

// componentContentSha hashes the parsed component list so identical uploads
// dedupe regardless of document formatting.
func componentContentSha(components []model.RawComponent) (string, error) {
	payload, err := json.Marshal(components)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// storeImport writes the import row and its normalized components, then
// marks every older import superseded. The correlation pass only reads
// components of live imports.
func storeImport(ctx context.Context, db arangodb.Database, tenantID, projectID, contentSha string, req IngestRequest) (string, int, error) {
	now := time.Now().UTC()
	importID := normalize.SanitizeKey(uuid.New().String())

	imp := model.SBOMImport{
		Key:        importID,
		ObjType:    "SBOMImport",
		TenantID:   tenantID,
		ProjectID:  projectID,
		ContentSha: contentSha,
		Format:     req.Format,
		Components: len(req.Components),
		ImportedAt: now,
	}

	components := make([]model.Component, 0, len(req.Components))
	for i, raw := range req.Components {
		key, fullPurl, basePurl := normalize.Component(raw.Name, raw.Version, raw.Type, raw.Purl)
		components = append(components, model.Component{
			Key:       normalize.SanitizeKey(fmt.Sprintf("%s_%d", importID, i)),
			ObjType:   "Component",
			TenantID:  tenantID,
			ProjectID: projectID,
			ImportID:  importID,
			Name:      key.Name,
			Version:   key.Version,
			Ecosystem: key.Ecosystem,
			Purl:      fullPurl,
			BasePurl:  basePurl,
			License:   raw.License,
			CreatedAt: now,
		})
	}

	query := `
		LET imported = (INSERT @import INTO sbom_import RETURN NEW._key)
		LET stored = (
			FOR comp IN @components
				INSERT comp INTO component
				RETURN NEW._key
		)
		FOR s IN sbom_import
			FILTER s.project_id == @project AND s._key != @importKey AND s.superseded != true
			UPDATE s WITH { superseded: true } IN sbom_import
	`
	cursor, err := db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"import":     imp,
			"components": components,
			"project":    projectID,
			"importKey":  importID,
		},
	})
	if err != nil {
		return "", 0, err
	}
	cursor.Close()

	return importID, len(components), nil
}
