// Package restapi provides the main router and initialization for REST API
// endpoints.
package restapi

import (
	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/analytics"
	"github.com/riskhub/riskhub-backend/correlate"
	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/restapi/modules/decisions"
	"github.com/riskhub/riskhub-backend/restapi/modules/projects"
	"github.com/riskhub/riskhub-backend/restapi/modules/risks"
	"github.com/riskhub/riskhub-backend/restapi/modules/sync"
	"github.com/riskhub/riskhub-backend/restapi/modules/tenant"
	"github.com/riskhub/riskhub-backend/restapi/modules/vex"
	"github.com/riskhub/riskhub-backend/risk"
	"github.com/riskhub/riskhub-backend/ssvc"
	"github.com/riskhub/riskhub-backend/vexstmt"
)

// Services bundles the engine services the handlers depend on.
type Services struct {
	DB        arangodb.Database
	Registry  *feeds.Registry
	Engine    *correlate.Engine
	Vex       *vexstmt.Service
	Ssvc      *ssvc.Service
	Risks     *risk.Aggregator
	Analytics *analytics.Roller
	Logger    *zap.Logger
}

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
// Every route under /api/v1 is tenant scoped via the X-Tenant-ID header.
func SetupRoutes(app *fiber.App, svc Services, schema graphql.Schema) {
	api := app.Group("/api/v1", tenant.Middleware())

	// GraphQL dashboard
	api.Post("/graphql", GraphQLHandler(schema))

	// Projects & SBOM ingestion
	api.Post("/projects", projects.CreateProject(svc.DB, svc.Logger))
	api.Get("/projects", projects.ListProjects(svc.DB, svc.Logger))
	api.Post("/projects/:projectID/sbom", projects.IngestSBOM(svc.DB, svc.Engine, svc.Logger))
	api.Post("/projects/:projectID/correlate", projects.Correlate(svc.Engine, svc.Logger))

	// Feed syncs
	api.Get("/feeds/sources", sync.ListSources(svc.Registry))
	api.Post("/feeds/:source/sync", sync.PostFeedSync(svc.Registry, svc.Logger))

	// VEX statements
	api.Put("/projects/:projectID/vulnerabilities/:vulnID/vex", vex.PutStatement(svc.Vex, svc.Logger))
	api.Get("/projects/:projectID/vex", vex.ListStatements(svc.Vex, svc.Logger))
	api.Get("/projects/:projectID/vulnerabilities/:vulnID/vex/audit", vex.GetAudit(svc.Vex, svc.Logger))

	// SSVC assessments
	api.Post("/projects/:projectID/vulnerabilities/:vulnID/ssvc", decisions.PostAssessment(svc.Ssvc, svc.Logger))
	api.Get("/projects/:projectID/vulnerabilities/:vulnID/ssvc", decisions.GetAssessment(svc.Ssvc, svc.Logger))
	api.Get("/projects/:projectID/vulnerabilities/:vulnID/ssvc/history", decisions.GetHistory(svc.Ssvc, svc.Logger))

	// Risk & analytics
	api.Get("/projects/:projectID/risks", risks.GetProjectRisks(svc.Risks, svc.Logger))
	api.Get("/projects/:projectID/eol", risks.GetProjectEOL(svc.Risks, svc.Logger))
	api.Get("/risks", risks.GetPortfolioRisks(svc.Risks, svc.Logger))
	api.Get("/analytics/summary", risks.GetAnalyticsSummary(svc.Analytics, svc.Logger))

	svc.Logger.Info("API routes initialized")
}
