package feedsync

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/model"
)

// ProjectLister enumerates the projects to recorrelate after a corpus
// change.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
}

// Correlator triggers a correlation pass for one project.
type Correlator interface {
	Correlate(ctx context.Context, tenantID, projectID string) (runID string, coalesced bool, err error)
}

// Assessor recomputes the SSVC decisions of one project.
type Assessor interface {
	Reassess(ctx context.Context, tenantID, projectID string) (int, error)
}

// HandleSyncCompleted consumes one feed.sync.completed event: every project
// is recorrelated against the refreshed corpus and its SSVC decisions are
// recomputed. Per-project failures are logged and skipped so one broken
// project never blocks the rest of the fleet.
func HandleSyncCompleted(ctx context.Context, payload []byte, projects ProjectLister, correlator Correlator, assessor Assessor, logger *zap.Logger) error {
	var event SyncCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	if event.EventType != EventTypeSyncCompleted {
		logger.Debug("Ignoring event", zap.String("type", event.EventType))
		return nil
	}

	list, err := projects.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	logger.Info("Recorrelating after feed sync",
		zap.String("source", event.Source),
		zap.String("run", event.RunID),
		zap.Int("projects", len(list)))

	for _, project := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, _, err := correlator.Correlate(ctx, project.TenantID, project.Key); err != nil {
			logger.Warn("Recorrelation failed",
				zap.String("tenant", project.TenantID),
				zap.String("project", project.Key),
				zap.Error(err))
			continue
		}
		if _, err := assessor.Reassess(ctx, project.TenantID, project.Key); err != nil {
			logger.Warn("Decision recompute failed",
				zap.String("tenant", project.TenantID),
				zap.String("project", project.Key),
				zap.Error(err))
		}
	}
	return nil
}
