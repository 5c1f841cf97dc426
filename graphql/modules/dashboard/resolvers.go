package dashboard

import (
	"context"
	"strings"

	"github.com/riskhub/riskhub-backend/analytics"
	"github.com/riskhub/riskhub-backend/restapi/modules/tenant"
	"github.com/riskhub/riskhub-backend/risk"
)

// Services holds the engine services the dashboard resolvers read from.
type Services struct {
	Risks     *risk.Aggregator
	Analytics *analytics.Roller
}

// ResolveAnalyticsSummary returns the MTTR, SLO and compliance view for the
// request's tenant over a trailing window of days.
func (s Services) ResolveAnalyticsSummary(ctx context.Context, projectID string, days int) (interface{}, error) {
	return s.Analytics.Summary(ctx, tenant.FromContext(ctx), projectID, days)
}

// ResolveSeverityDistribution returns the open severity histogram, tenant
// wide or for one project.
func (s Services) ResolveSeverityDistribution(ctx context.Context, projectID string) (interface{}, error) {
	var posture risk.ProjectRisk
	var err error
	if projectID == "" {
		posture, _, err = s.Risks.PortfolioRisk(ctx, tenant.FromContext(ctx))
	} else {
		posture, err = s.Risks.ProjectRisk(ctx, tenant.FromContext(ctx), projectID)
	}
	if err != nil {
		return nil, err
	}

	distribution := map[string]interface{}{
		"critical": 0, "high": 0, "medium": 0, "low": 0, "info": 0,
	}
	for rating, count := range posture.Histogram {
		key := strings.ToLower(rating)
		if _, ok := distribution[key]; !ok {
			key = "info"
		}
		distribution[key] = distribution[key].(int) + count
	}
	return distribution, nil
}

// ResolveTopRisks returns one project's ranked open risks.
func (s Services) ResolveTopRisks(ctx context.Context, projectID string, limit int) (interface{}, error) {
	return s.Risks.TopRisks(ctx, tenant.FromContext(ctx), projectID, limit)
}

// ResolveComplianceTrend returns the stored snapshot series, oldest first.
func (s Services) ResolveComplianceTrend(ctx context.Context, projectID string, days int) (interface{}, error) {
	return s.Analytics.Trend(ctx, tenant.FromContext(ctx), projectID, days)
}
