package vexstmt

import (
	"context"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
)

// Service persists VEX statements and their audit trail.
type Service struct {
	db     arangodb.Database
	logger *zap.Logger
}

// NewService builds a VEX service.
func NewService(db arangodb.Database, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

func scopeKey(projectID, vulnID, componentID string) string {
	return normalize.SanitizeKey(projectID + "_" + vulnID + "_" + componentID)
}

// Upsert replaces the active statement for the statement's scope triple and
// appends an audit row carrying the previous status. When the new status
// resolves the vulnerability (not_affected or fixed), the matching open
// resolution event is closed in the same statement pass.
func (s *Service) Upsert(ctx context.Context, stmt model.VexStatement) (model.VexStatement, error) {
	if err := stmt.Validate(); err != nil {
		return model.VexStatement{}, err
	}

	now := time.Now().UTC()
	stmt.Key = scopeKey(stmt.ProjectID, stmt.VulnerabilityID, stmt.ComponentID)
	stmt.ObjType = "VexStatement"
	stmt.UpdatedAt = now
	if stmt.CreatedAt.IsZero() {
		stmt.CreatedAt = now
	}

	// Upsert plus audit append in one statement so the trail can never miss
	// a replacement.
	query := `
		LET prior = DOCUMENT("vex_statement", @key)
		UPSERT { _key: @key }
			INSERT @stmt
			UPDATE MERGE(@stmt, { created_at: OLD.created_at }) IN vex_statement
		INSERT {
			objtype: "VexAuditEntry",
			tenant_id: @stmt.tenant_id,
			project_id: @stmt.project_id,
			vulnerability_id: @stmt.vulnerability_id,
			component_id: @stmt.component_id,
			previous_status: prior == null ? null : prior.status,
			new_status: @stmt.status,
			author: @stmt.author,
			recorded_at: @now
		} IN vex_audit
		RETURN prior == null ? null : prior.status
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key":  stmt.Key,
			"stmt": stmt,
			"now":  now,
		},
	})
	if err != nil {
		return model.VexStatement{}, fmt.Errorf("failed to upsert vex statement: %w", err)
	}
	var previous *string
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &previous); err != nil {
			cursor.Close()
			return model.VexStatement{}, fmt.Errorf("failed to read prior status: %w", err)
		}
	}
	cursor.Close()

	if stmt.Suppresses() {
		if err := s.closeResolution(ctx, stmt, now); err != nil {
			return model.VexStatement{}, err
		}
	}

	from := ""
	if previous != nil {
		from = *previous
	}
	s.logger.Sugar().Infow("VEX statement recorded",
		"project", stmt.ProjectID, "vulnerability", stmt.VulnerabilityID,
		"component", stmt.ComponentID, "from", from, "to", stmt.Status)

	return stmt, nil
}

// closeResolution ends the open tracking span for the pair. A fixed statement
// counts as a fix, not_affected as a false positive.
func (s *Service) closeResolution(ctx context.Context, stmt model.VexStatement, now time.Time) error {
	resolution := model.ResolutionFixed
	if stmt.Status == model.VexNotAffected {
		resolution = model.ResolutionFalsePositive
	}

	query := `
		FOR e IN resolution_event
			FILTER e.project_id == @project AND e.vulnerability_id == @vuln AND e.resolved_at == null
			UPDATE e WITH {
				resolved_at: @now,
				resolution_type: @resolution,
				updated_at: @now
			} IN resolution_event
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"project":    stmt.ProjectID,
			"vuln":       stmt.VulnerabilityID,
			"now":        now,
			"resolution": resolution,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to close resolution event: %w", err)
	}
	cursor.Close()
	return nil
}

// Statements returns the active statements for a project.
func (s *Service) Statements(ctx context.Context, tenantID, projectID string) ([]model.VexStatement, error) {
	query := `
		FOR st IN vex_statement
			FILTER st.tenant_id == @tenant AND st.project_id == @project
			RETURN st
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load vex statements: %w", err)
	}
	defer cursor.Close()

	var stmts []model.VexStatement
	for cursor.HasMore() {
		var stmt model.VexStatement
		if _, err := cursor.ReadDocument(ctx, &stmt); err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Audit returns the audit trail for one vulnerability in a project, newest
// first.
func (s *Service) Audit(ctx context.Context, tenantID, projectID, vulnID string) ([]model.VexAuditEntry, error) {
	query := `
		FOR a IN vex_audit
			FILTER a.tenant_id == @tenant AND a.project_id == @project AND a.vulnerability_id == @vuln
			SORT a.recorded_at DESC
			RETURN a
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID, "vuln": vulnID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load vex audit trail: %w", err)
	}
	defer cursor.Close()

	var entries []model.VexAuditEntry
	for cursor.HasMore() {
		var entry model.VexAuditEntry
		if _, err := cursor.ReadDocument(ctx, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
