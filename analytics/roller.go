package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/config"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
	"github.com/riskhub/riskhub-backend/risk"
)

// defaultWindowDays bounds the event window when a caller passes no usable
// day count.
const defaultWindowDays = 90

// Roller computes analytics summaries and maintains the daily snapshot
// series.
type Roller struct {
	db     arangodb.Database
	risks  *risk.Aggregator
	slo    config.SloConfig
	logger *zap.Logger
}

// NewRoller builds an analytics roller.
func NewRoller(db arangodb.Database, risks *risk.Aggregator, slo config.SloConfig, logger *zap.Logger) *Roller {
	return &Roller{db: db, risks: risks, slo: slo, logger: logger}
}

// Summary computes the MTTR, SLO achievement, compliance score and snapshot
// trend for a tenant, optionally narrowed to one project, over the trailing
// window of days.
func (r *Roller) Summary(ctx context.Context, tenantID, projectID string, days int) (Summary, error) {
	if days <= 0 {
		days = defaultWindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	events, err := r.resolvedEvents(ctx, tenantID, projectID, since)
	if err != nil {
		return Summary{}, err
	}

	targets, err := r.targets(ctx, tenantID)
	if err != nil {
		return Summary{}, err
	}

	slo := SLO(events, targets)
	trend, err := r.Trend(ctx, tenantID, projectID, days)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		TenantID:        tenantID,
		ProjectID:       projectID,
		WindowDays:      days,
		MTTR:            MTTR(events),
		SLO:             slo,
		ComplianceScore: Compliance(slo),
		Trend:           trend,
	}, nil
}

// RollDaily recomputes and upserts today's snapshot row for a tenant or a
// single project. Re-running on the same day overwrites the row; prior days
// are untouched.
func (r *Roller) RollDaily(ctx context.Context, tenantID, projectID string, now time.Time) (model.Snapshot, error) {
	var posture risk.ProjectRisk
	var err error
	if projectID == "" {
		posture, _, err = r.risks.PortfolioRisk(ctx, tenantID)
	} else {
		posture, err = r.risks.ProjectRisk(ctx, tenantID, projectID)
	}
	if err != nil {
		return model.Snapshot{}, err
	}

	since := now.UTC().AddDate(0, 0, -defaultWindowDays)
	events, err := r.resolvedEvents(ctx, tenantID, projectID, since)
	if err != nil {
		return model.Snapshot{}, err
	}
	targets, err := r.targets(ctx, tenantID)
	if err != nil {
		return model.Snapshot{}, err
	}
	compliance := Compliance(SLO(events, targets))

	date := now.UTC().Format("2006-01-02")
	snap := BuildSnapshot(tenantID, projectID, date, posture.Histogram, compliance, now)

	query := `
		UPSERT { _key: @snap._key }
			INSERT @snap
			UPDATE @snap IN snapshot
	`
	cursor, err := r.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"snap": snap},
	})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	cursor.Close()

	r.logger.Info("Rolled daily snapshot",
		zap.String("tenant", tenantID),
		zap.String("project", projectID),
		zap.String("date", date),
		zap.Int("total", snap.TotalCount),
		zap.Float64("compliance", snap.ComplianceScore))
	return snap, nil
}

// Trend returns the stored snapshot series for the trailing window, oldest
// first.
func (r *Roller) Trend(ctx context.Context, tenantID, projectID string, days int) ([]model.Snapshot, error) {
	if days <= 0 {
		days = defaultWindowDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")

	query := `
		FOR s IN snapshot
			FILTER s.tenant_id == @tenant AND s.project_id == @project AND s.date >= @cutoff
			SORT s.date ASC
			RETURN s
	`
	cursor, err := r.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"tenant":  tenantID,
			"project": projectID,
			"cutoff":  cutoff,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	defer cursor.Close()

	var series []model.Snapshot
	for cursor.HasMore() {
		var snap model.Snapshot
		if _, err := cursor.ReadDocument(ctx, &snap); err != nil {
			return nil, err
		}
		series = append(series, snap)
	}
	return series, nil
}

// resolvedEvents loads the closed resolution events of a tenant, optionally
// narrowed to one project, resolved at or after the cutoff.
func (r *Roller) resolvedEvents(ctx context.Context, tenantID, projectID string, since time.Time) ([]model.ResolutionEvent, error) {
	query := `
		FOR e IN resolution_event
			FILTER e.tenant_id == @tenant AND e.resolved_at != null
			FILTER @project == "" OR e.project_id == @project
			FILTER DATE_TIMESTAMP(e.resolved_at) >= DATE_TIMESTAMP(@since)
			RETURN e
	`
	cursor, err := r.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"tenant":  tenantID,
			"project": projectID,
			"since":   since.UTC(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load resolution events: %w", err)
	}
	defer cursor.Close()

	var events []model.ResolutionEvent
	for cursor.HasMore() {
		var event model.ResolutionEvent
		if _, err := cursor.ReadDocument(ctx, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// targets resolves the SLO targets for a tenant: the policy defaults merged
// with any per-tenant override stored in the metadata collection.
func (r *Roller) targets(ctx context.Context, tenantID string) (map[string]int, error) {
	query := `
		FOR m IN metadata
			FILTER m._key == @key
			LIMIT 1
			RETURN m.target_hours
	`
	cursor, err := r.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{"key": sloKey(tenantID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read SLO overrides: %w", err)
	}
	defer cursor.Close()

	overrides := map[string]int{}
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &overrides); err != nil {
			return nil, fmt.Errorf("failed to read SLO overrides: %w", err)
		}
	}
	return Targets(r.slo.TargetHours, overrides), nil
}

// SetTenantTargets stores per-tenant SLO overrides. Only the bands named in
// the map are overridden; the rest keep the policy defaults.
func (r *Roller) SetTenantTargets(ctx context.Context, tenantID string, targetHours map[string]int) error {
	query := `
		UPSERT { _key: @key }
			INSERT { _key: @key, objtype: "Metadata", tenant_id: @tenant, target_hours: @hours }
			UPDATE { target_hours: @hours } IN metadata
	`
	cursor, err := r.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]interface{}{
			"key":    sloKey(tenantID),
			"tenant": tenantID,
			"hours":  targetHours,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save SLO overrides: %w", err)
	}
	cursor.Close()
	return nil
}

func sloKey(tenantID string) string {
	return normalize.SanitizeKey("slo_targets_" + tenantID)
}
