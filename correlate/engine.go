package correlate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/model"
)

// RunStore persists correlation run rows.
type RunStore interface {
	SaveSyncRun(ctx context.Context, run model.SyncRun) error
}

// Engine loads project state, computes the desired link set and lands it.
// Correlation is single-flight per project; passes for different projects run
// concurrently since they touch disjoint link rows.
type Engine struct {
	db     arangodb.Database
	runs   RunStore
	policy Policy
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]string // projectID -> run id
}

// NewEngine builds a correlation engine.
func NewEngine(db arangodb.Database, runs RunStore, policy Policy, logger *zap.Logger) *Engine {
	return &Engine{
		db:       db,
		runs:     runs,
		policy:   policy,
		logger:   logger,
		inFlight: make(map[string]string),
	}
}

// Correlate runs one full pass for a project. A second call while a pass for
// the same project is in flight returns the running pass id with
// coalesced=true and does no work.
func (e *Engine) Correlate(ctx context.Context, tenantID, projectID string) (runID string, coalesced bool, err error) {
	e.mu.Lock()
	if id, running := e.inFlight[projectID]; running {
		e.mu.Unlock()
		return id, true, nil
	}
	runID = uuid.New().String()
	e.inFlight[projectID] = runID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, projectID)
		e.mu.Unlock()
	}()

	run := model.NewSyncRun(runID, "correlate:"+projectID)
	if saveErr := e.runs.SaveSyncRun(ctx, *run); saveErr != nil {
		return "", false, saveErr
	}

	log := e.logger.Sugar().With("tenant", tenantID, "project", projectID, "run_id", runID)

	result, passErr := e.runPass(ctx, tenantID, projectID, runID)
	if passErr != nil {
		run.Finish(passErr.Error())
		if saveErr := e.runs.SaveSyncRun(context.WithoutCancel(ctx), *run); saveErr != nil {
			log.Errorf("Failed to persist correlation run: %v", saveErr)
		}
		log.Errorf("Correlation failed: %v", passErr)
		return runID, false, passErr
	}

	run.New = result.Affected
	run.Updated = result.Retained
	run.Skipped = result.Unknown - result.Retained
	run.Finish("")
	if saveErr := e.runs.SaveSyncRun(ctx, *run); saveErr != nil {
		log.Errorf("Failed to persist correlation run: %v", saveErr)
	}

	log.Infof("Correlation completed: %d affected, %d retained on unknown, %d not affected",
		result.Affected, result.Retained, result.NotAffected)
	return runID, false, nil
}

func (e *Engine) runPass(ctx context.Context, tenantID, projectID, passID string) (Result, error) {
	components, err := e.loadComponents(ctx, tenantID, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load components: %w", err)
	}

	vulns, err := e.loadCandidates(ctx, components)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load candidate vulnerabilities: %w", err)
	}

	previous, err := e.loadPrevious(ctx, tenantID, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load previous links: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := BuildLinks(components, vulns, previous, e.policy, time.Now().UTC())

	if err := e.persist(ctx, tenantID, projectID, passID, result, vulns); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e *Engine) loadComponents(ctx context.Context, tenantID, projectID string) ([]model.Component, error) {
	query := `
		FOR c IN component
			FILTER c.tenant_id == @tenant AND c.project_id == @project
			LET imp = DOCUMENT("sbom_import", c.import_id)
			FILTER imp != null AND imp.superseded != true
			RETURN c
	`
	cursor, err := e.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var components []model.Component
	for cursor.HasMore() {
		var comp model.Component
		if _, err := cursor.ReadDocument(ctx, &comp); err != nil {
			return nil, err
		}
		components = append(components, comp)
	}
	return components, nil
}

// loadCandidates is a coarse prefilter: any vulnerability naming one of the
// project's base purls or package names. BuildLinks re-checks precisely.
func (e *Engine) loadCandidates(ctx context.Context, components []model.Component) ([]model.VulnerabilityRecord, error) {
	purls := make([]string, 0, len(components))
	names := make([]string, 0, len(components))
	for _, comp := range components {
		if comp.BasePurl != "" {
			purls = append(purls, comp.BasePurl)
		}
		if comp.Name != "" {
			names = append(names, comp.Name)
		}
	}
	if len(purls) == 0 && len(names) == 0 {
		return nil, nil
	}

	query := `
		FOR v IN vulnerability
			FILTER LENGTH(
				FOR aff IN NOT_NULL(v.affected, [])
					FILTER aff.package.purl IN @purls OR LOWER(aff.package.name) IN @names
					LIMIT 1
					RETURN 1) > 0
			RETURN v
	`
	lowered := make([]string, len(names))
	for i, name := range names {
		lowered[i] = strings.ToLower(name)
	}

	cursor, err := e.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"purls": purls, "names": lowered},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var vulns []model.VulnerabilityRecord
	for cursor.HasMore() {
		var vuln model.VulnerabilityRecord
		if _, err := cursor.ReadDocument(ctx, &vuln); err != nil {
			return nil, err
		}
		vulns = append(vulns, vuln)
	}
	return vulns, nil
}

func (e *Engine) loadPrevious(ctx context.Context, tenantID, projectID string) (map[string]model.ComponentVulnerability, error) {
	query := `
		FOR l IN component2vuln
			FILTER l.tenant_id == @tenant AND l.project_id == @project
			RETURN l
	`
	cursor, err := e.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"tenant": tenantID, "project": projectID},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	previous := make(map[string]model.ComponentVulnerability)
	for cursor.HasMore() {
		var link model.ComponentVulnerability
		if _, err := cursor.ReadDocument(ctx, &link); err != nil {
			return nil, err
		}
		previous[linkKey(link.ComponentID, link.VulnerabilityID)] = link
	}
	return previous, nil
}

// persist lands the pass in three steps: upsert the new link rows under the
// new pass id, flip the project's pass pointer in one document write, then
// clean up rows from older passes. Readers filter links on the project's
// current pass, so visibility switches atomically at the flip.
func (e *Engine) persist(ctx context.Context, tenantID, projectID, passID string, result Result, vulns []model.VulnerabilityRecord) error {
	links := result.Links
	for i := range links {
		links[i].PassID = passID
		links[i].Key = links[i].Key + "_" + passID[:8]
	}

	upsert := `
		FOR link IN @links
			UPSERT { _key: link._key }
				INSERT link
				UPDATE link IN component2vuln
	`
	cursor, err := e.db.Query(ctx, upsert, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"links": links},
	})
	if err != nil {
		return fmt.Errorf("failed to write links: %w", err)
	}
	cursor.Close()

	flip := `
		UPDATE { _key: @project } WITH {
			correlation_pass: @pass,
			updated_at: @now
		} IN project
	`
	cursor, err = e.db.Query(ctx, flip, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"project": projectID,
			"pass":    passID,
			"now":     time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to flip correlation pass: %w", err)
	}
	cursor.Close()

	cleanup := `
		FOR l IN component2vuln
			FILTER l.project_id == @project AND l.pass_id != @pass
			REMOVE l IN component2vuln
	`
	cursor, err = e.db.Query(ctx, cleanup, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"project": projectID, "pass": passID},
	})
	if err != nil {
		return fmt.Errorf("failed to remove stale links: %w", err)
	}
	cursor.Close()

	return e.rollResolutionEvents(ctx, tenantID, projectID, result, vulns)
}

// rollResolutionEvents opens tracking rows for newly-present vulnerabilities
// and closes open rows for ones no longer linked, which feeds MTTR.
func (e *Engine) rollResolutionEvents(ctx context.Context, tenantID, projectID string, result Result, vulns []model.VulnerabilityRecord) error {
	ratings := make(map[string]string, len(vulns))
	for _, vuln := range vulns {
		ratings[vuln.ID] = vuln.SeverityRating
	}

	type openRow struct {
		VulnID   string `json:"vuln_id"`
		Severity string `json:"severity"`
	}
	seen := make(map[string]bool)
	var rows []openRow
	var present []string
	for _, link := range result.Links {
		if seen[link.VulnerabilityID] {
			continue
		}
		seen[link.VulnerabilityID] = true
		present = append(present, link.VulnerabilityID)
		rows = append(rows, openRow{VulnID: link.VulnerabilityID, Severity: ratings[link.VulnerabilityID]})
	}

	now := time.Now().UTC()

	open := `
		FOR row IN @rows
			LET existing = FIRST(
				FOR e IN resolution_event
					FILTER e.project_id == @project AND e.vulnerability_id == row.vuln_id AND e.resolved_at == null
					LIMIT 1
					RETURN e)
			FILTER existing == null
			INSERT {
				objtype: "ResolutionEvent",
				tenant_id: @tenant,
				project_id: @project,
				vulnerability_id: row.vuln_id,
				severity_rating: row.severity,
				detected_at: @now,
				created_at: @now,
				updated_at: @now
			} IN resolution_event
	`
	cursor, err := e.db.Query(ctx, open, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"rows":    rows,
			"tenant":  tenantID,
			"project": projectID,
			"now":     now,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open resolution events: %w", err)
	}
	cursor.Close()

	if present == nil {
		present = []string{}
	}
	closeOpen := `
		FOR e IN resolution_event
			FILTER e.project_id == @project AND e.resolved_at == null AND e.vulnerability_id NOT IN @present
			UPDATE e WITH {
				resolved_at: @now,
				resolution_type: "fixed",
				updated_at: @now
			} IN resolution_event
	`
	cursor, err = e.db.Query(ctx, closeOpen, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"project": projectID,
			"present": present,
			"now":     now,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to close resolution events: %w", err)
	}
	cursor.Close()

	return nil
}
