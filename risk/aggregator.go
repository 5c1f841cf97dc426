package risk

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/vexstmt"
)

// Aggregator computes risk views on demand from stored links, statements and
// vulnerability records.
type Aggregator struct {
	db     arangodb.Database
	vex    *vexstmt.Service
	logger *zap.Logger
}

// NewAggregator builds a risk aggregator.
func NewAggregator(db arangodb.Database, vex *vexstmt.Service, logger *zap.Logger) *Aggregator {
	return &Aggregator{db: db, vex: vex, logger: logger}
}

// EffectiveLinks loads the current-pass links of a project with their VEX
// annotations applied.
func (a *Aggregator) EffectiveLinks(ctx context.Context, tenantID, projectID string) ([]vexstmt.EffectiveLink, map[string]model.VulnerabilityRecord, error) {
	// Links are filtered to the project's current correlation pass so an
	// in-flight pass never shows a partial set.
	query := `
		LET pass = DOCUMENT("project", @project).correlation_pass
		FOR l IN component2vuln
			FILTER l.tenant_id == @tenant AND l.project_id == @project AND l.pass_id == pass
			RETURN l
	`
	cursor, err := a.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load links: %w", err)
	}
	var links []model.ComponentVulnerability
	for cursor.HasMore() {
		var link model.ComponentVulnerability
		if _, err := cursor.ReadDocument(ctx, &link); err != nil {
			cursor.Close()
			return nil, nil, err
		}
		links = append(links, link)
	}
	cursor.Close()

	stmts, err := a.vex.Statements(ctx, tenantID, projectID)
	if err != nil {
		return nil, nil, err
	}

	vulns, err := a.loadVulnerabilities(ctx, links)
	if err != nil {
		return nil, nil, err
	}

	return vexstmt.Apply(links, stmts), vulns, nil
}

// ProjectRisk computes the posture of one project.
func (a *Aggregator) ProjectRisk(ctx context.Context, tenantID, projectID string) (ProjectRisk, error) {
	effective, vulns, err := a.EffectiveLinks(ctx, tenantID, projectID)
	if err != nil {
		return ProjectRisk{}, err
	}
	return Score(projectID, effective, vulns), nil
}

// TopRisks returns the ranked open risks of one project.
func (a *Aggregator) TopRisks(ctx context.Context, tenantID, projectID string, limit int) ([]RankedRisk, error) {
	effective, vulns, err := a.EffectiveLinks(ctx, tenantID, projectID)
	if err != nil {
		return nil, err
	}
	return Rank(effective, vulns, limit), nil
}

// PortfolioRisk rolls every project of a tenant up into one posture, with the
// per-project breakdown attached.
func (a *Aggregator) PortfolioRisk(ctx context.Context, tenantID string) (ProjectRisk, []ProjectRisk, error) {
	query := `
		FOR p IN project
			FILTER p.tenant_id == @tenant
			RETURN { id: p._key, name: p.name }
	`
	cursor, err := a.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID},
	})
	if err != nil {
		return ProjectRisk{}, nil, fmt.Errorf("failed to list projects: %w", err)
	}
	type projectRow struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var projects []projectRow
	for cursor.HasMore() {
		var row projectRow
		if _, err := cursor.ReadDocument(ctx, &row); err != nil {
			cursor.Close()
			return ProjectRisk{}, nil, err
		}
		projects = append(projects, row)
	}
	cursor.Close()

	var perProject []ProjectRisk
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return ProjectRisk{}, nil, err
		}
		posture, err := a.ProjectRisk(ctx, tenantID, project.ID)
		if err != nil {
			return ProjectRisk{}, nil, err
		}
		posture.ProjectName = project.Name
		perProject = append(perProject, posture)
	}

	return Rollup(perProject), perProject, nil
}

func (a *Aggregator) loadVulnerabilities(ctx context.Context, links []model.ComponentVulnerability) (map[string]model.VulnerabilityRecord, error) {
	ids := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if !seen[link.VulnerabilityID] {
			seen[link.VulnerabilityID] = true
			ids = append(ids, link.VulnerabilityID)
		}
	}
	if len(ids) == 0 {
		return map[string]model.VulnerabilityRecord{}, nil
	}

	query := `
		FOR v IN vulnerability
			FILTER v.id IN @ids
			RETURN v
	`
	cursor, err := a.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"ids": ids},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load vulnerabilities: %w", err)
	}
	defer cursor.Close()

	vulns := make(map[string]model.VulnerabilityRecord, len(ids))
	for cursor.HasMore() {
		var vuln model.VulnerabilityRecord
		if _, err := cursor.ReadDocument(ctx, &vuln); err != nil {
			return nil, err
		}
		vulns[vuln.ID] = vuln
	}
	return vulns, nil
}
