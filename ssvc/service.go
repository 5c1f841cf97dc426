package ssvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/config"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
)

// ErrDecisionNotWritable rejects attempts to set the decision directly. The
// decision only ever comes out of Decide.
var ErrDecisionNotWritable = errors.New("ssvc decision is derived from inputs and cannot be set directly")

// ErrNotFound is returned when the scoped project or vulnerability is absent.
var ErrNotFound = errors.New("not found")

// Request carries an analyst's (possibly partial) input override. Nil fields
// fall back to auto-derived or project-default values.
type Request struct {
	Exploitation      *string
	Automatable       *string
	TechnicalImpact   *string
	MissionPrevalence *string
	SafetyImpact      *string
	Actor             string
	Reason            string
}

// Service computes and persists assessments.
type Service struct {
	db     arangodb.Database
	cfg    config.SsvcConfig
	logger *zap.Logger
}

// NewService builds an SSVC service.
func NewService(db arangodb.Database, cfg config.SsvcConfig, logger *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, logger: logger}
}

// Assess computes the decision for a (project, vulnerability) pair. Inputs
// resolve in precedence order: analyst override, then feed-derived values,
// then project defaults. Any input change appends a history row.
func (s *Service) Assess(ctx context.Context, tenantID, projectID, vulnID string, req Request) (model.SsvcAssessment, error) {
	project, err := s.loadProject(ctx, tenantID, projectID)
	if err != nil {
		return model.SsvcAssessment{}, err
	}
	vuln, err := s.loadVulnerability(ctx, vulnID)
	if err != nil {
		return model.SsvcAssessment{}, err
	}
	existing, err := s.loadAssessment(ctx, projectID, vulnID)
	if err != nil {
		return model.SsvcAssessment{}, err
	}

	derived := AutoAssess(vuln, s.cfg)

	next := model.SsvcAssessment{
		Key:             assessmentKey(projectID, vulnID),
		ObjType:         "SsvcAssessment",
		TenantID:        tenantID,
		ProjectID:       projectID,
		VulnerabilityID: vulnID,

		Exploitation:      derived.Exploitation,
		ExploitationAuto:  derived.ExploitationAuto,
		Automatable:       derived.Automatable,
		AutomatableAuto:   derived.AutomatableAuto,
		TechnicalImpact:   TechnicalImpactPartial,
		MissionPrevalence: project.MissionPrevalence,
		SafetyImpact:      project.SafetyImpact,
	}
	if existing != nil {
		// Analyst-set values from prior assessments stick; auto flags mark
		// which ones the feeds may keep moving.
		if !existing.ExploitationAuto {
			next.Exploitation = existing.Exploitation
			next.ExploitationAuto = false
		}
		if !existing.AutomatableAuto {
			next.Automatable = existing.Automatable
			next.AutomatableAuto = false
		}
		next.TechnicalImpact = existing.TechnicalImpact
		next.MissionPrevalence = existing.MissionPrevalence
		next.SafetyImpact = existing.SafetyImpact
	}

	if req.Exploitation != nil {
		next.Exploitation = *req.Exploitation
		next.ExploitationAuto = false
	}
	if req.Automatable != nil {
		next.Automatable = *req.Automatable
		next.AutomatableAuto = false
	}
	if req.TechnicalImpact != nil {
		next.TechnicalImpact = *req.TechnicalImpact
	}
	if req.MissionPrevalence != nil {
		next.MissionPrevalence = *req.MissionPrevalence
	}
	if req.SafetyImpact != nil {
		next.SafetyImpact = *req.SafetyImpact
	}

	inputs := Inputs{
		Exploitation:      next.Exploitation,
		Automatable:       next.Automatable,
		TechnicalImpact:   next.TechnicalImpact,
		MissionPrevalence: next.MissionPrevalence,
		SafetyImpact:      next.SafetyImpact,
	}
	decision, err := Decide(inputs)
	if err != nil {
		return model.SsvcAssessment{}, err
	}
	next.Decision = decision

	now := time.Now().UTC()
	next.UpdatedAt = now
	next.CreatedAt = now

	var history *model.SsvcHistoryEntry
	if existing == nil {
		history = s.historyEntry(next, nil, inputs, req)
	} else {
		next.CreatedAt = existing.CreatedAt
		prevInputs := Inputs{
			Exploitation:      existing.Exploitation,
			Automatable:       existing.Automatable,
			TechnicalImpact:   existing.TechnicalImpact,
			MissionPrevalence: existing.MissionPrevalence,
			SafetyImpact:      existing.SafetyImpact,
		}
		if prevInputs != inputs {
			history = s.historyEntry(next, existing, inputs, req)
		}
	}

	if err := s.persist(ctx, next, history); err != nil {
		return model.SsvcAssessment{}, err
	}

	s.logger.Sugar().Infow("SSVC assessment computed",
		"project", projectID, "vulnerability", vulnID, "decision", decision)
	return next, nil
}

// Reassess recomputes every assessment of a project against fresh feed
// evidence, typically after a feed sync. Analyst-set inputs are untouched;
// only auto-derived ones move.
func (s *Service) Reassess(ctx context.Context, tenantID, projectID string) (int, error) {
	query := `
		FOR a IN ssvc_assessment
			FILTER a.tenant_id == @tenant AND a.project_id == @project
			RETURN a.vulnerability_id
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list assessments: %w", err)
	}
	var vulnIDs []string
	for cursor.HasMore() {
		var id string
		if _, err := cursor.ReadDocument(ctx, &id); err != nil {
			cursor.Close()
			return 0, err
		}
		vulnIDs = append(vulnIDs, id)
	}
	cursor.Close()

	changed := 0
	for _, vulnID := range vulnIDs {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		before, err := s.loadAssessment(ctx, projectID, vulnID)
		if err != nil {
			return changed, err
		}
		after, err := s.Assess(ctx, tenantID, projectID, vulnID, Request{Actor: "system", Reason: "feed sync recompute"})
		if err != nil {
			return changed, err
		}
		if before != nil && before.Decision != after.Decision {
			changed++
		}
	}
	return changed, nil
}

// Get returns the stored assessment for a pair, nil when absent.
func (s *Service) Get(ctx context.Context, projectID, vulnID string) (*model.SsvcAssessment, error) {
	return s.loadAssessment(ctx, projectID, vulnID)
}

// History returns the transition log for a pair, newest first.
func (s *Service) History(ctx context.Context, projectID, vulnID string) ([]model.SsvcHistoryEntry, error) {
	query := `
		FOR h IN ssvc_history
			FILTER h.project_id == @project AND h.vulnerability_id == @vuln
			SORT h.recorded_at DESC
			RETURN h
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"project": projectID, "vuln": vulnID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ssvc history: %w", err)
	}
	defer cursor.Close()

	var entries []model.SsvcHistoryEntry
	for cursor.HasMore() {
		var entry model.SsvcHistoryEntry
		if _, err := cursor.ReadDocument(ctx, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) historyEntry(next model.SsvcAssessment, previous *model.SsvcAssessment, inputs Inputs, req Request) *model.SsvcHistoryEntry {
	entry := &model.SsvcHistoryEntry{
		ObjType:         "SsvcHistoryEntry",
		TenantID:        next.TenantID,
		ProjectID:       next.ProjectID,
		VulnerabilityID: next.VulnerabilityID,
		NewInputs:       inputs.Map(),
		NewDecision:     next.Decision,
		Actor:           req.Actor,
		Reason:          req.Reason,
		RecordedAt:      next.UpdatedAt,
	}
	if previous != nil {
		entry.PreviousInputs = Inputs{
			Exploitation:      previous.Exploitation,
			Automatable:       previous.Automatable,
			TechnicalImpact:   previous.TechnicalImpact,
			MissionPrevalence: previous.MissionPrevalence,
			SafetyImpact:      previous.SafetyImpact,
		}.Map()
		entry.PreviousDecision = previous.Decision
	}
	return entry
}

// persist lands the assessment and optional history row in one statement.
func (s *Service) persist(ctx context.Context, assessment model.SsvcAssessment, history *model.SsvcHistoryEntry) error {
	query := `
		UPSERT { _key: @key }
			INSERT @assessment
			UPDATE @assessment IN ssvc_assessment
		FOR h IN @history
			INSERT h IN ssvc_history
	`
	rows := []model.SsvcHistoryEntry{}
	if history != nil {
		rows = append(rows, *history)
	}
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key":        assessment.Key,
			"assessment": assessment,
			"history":    rows,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to persist assessment: %w", err)
	}
	cursor.Close()
	return nil
}

func (s *Service) loadProject(ctx context.Context, tenantID, projectID string) (model.Project, error) {
	query := `
		FOR p IN project
			FILTER p._key == @project AND p.tenant_id == @tenant
			LIMIT 1
			RETURN p
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"project": projectID, "tenant": tenantID},
	})
	if err != nil {
		return model.Project{}, fmt.Errorf("failed to load project: %w", err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return model.Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	var project model.Project
	if _, err := cursor.ReadDocument(ctx, &project); err != nil {
		return model.Project{}, err
	}
	return project, nil
}

func (s *Service) loadVulnerability(ctx context.Context, vulnID string) (model.VulnerabilityRecord, error) {
	query := `
		FOR v IN vulnerability
			FILTER v.id == @id OR @id IN NOT_NULL(v.aliases, [])
			LIMIT 1
			RETURN v
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"id": vulnID},
	})
	if err != nil {
		return model.VulnerabilityRecord{}, fmt.Errorf("failed to load vulnerability: %w", err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return model.VulnerabilityRecord{}, fmt.Errorf("vulnerability %s: %w", vulnID, ErrNotFound)
	}
	var vuln model.VulnerabilityRecord
	if _, err := cursor.ReadDocument(ctx, &vuln); err != nil {
		return model.VulnerabilityRecord{}, err
	}
	return vuln, nil
}

func (s *Service) loadAssessment(ctx context.Context, projectID, vulnID string) (*model.SsvcAssessment, error) {
	query := `
		FOR a IN ssvc_assessment
			FILTER a._key == @key
			LIMIT 1
			RETURN a
	`
	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": assessmentKey(projectID, vulnID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load assessment: %w", err)
	}
	defer cursor.Close()

	if !cursor.HasMore() {
		return nil, nil
	}
	var assessment model.SsvcAssessment
	if _, err := cursor.ReadDocument(ctx, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

func assessmentKey(projectID, vulnID string) string {
	return normalize.SanitizeKey(projectID + "_" + vulnID)
}
