package dashboard

import (
	"github.com/graphql-go/graphql"
)

// GetQueryFields returns the dashboard queries to be mounted in the root schema
func GetQueryFields(svc Services) graphql.Fields {
	return graphql.Fields{
		// MTTR, SLO achievement, compliance score and trend in one call
		"analyticsSummary": &graphql.Field{
			Type: AnalyticsSummaryType,
			Args: graphql.FieldConfigArgument{
				"projectID": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				"days":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 90},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				projectID := p.Args["projectID"].(string)
				days := p.Args["days"].(int)
				return svc.ResolveAnalyticsSummary(p.Context, projectID, days)
			},
		},
		// Open severity histogram for the charts
		"severityDistribution": &graphql.Field{
			Type: SeverityDistributionType,
			Args: graphql.FieldConfigArgument{
				"projectID": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				projectID := p.Args["projectID"].(string)
				return svc.ResolveSeverityDistribution(p.Context, projectID)
			},
		},
		// Ranked open risks table
		"topRisks": &graphql.Field{
			Type: graphql.NewList(RankedRiskType),
			Args: graphql.FieldConfigArgument{
				"projectID": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				projectID := p.Args["projectID"].(string)
				limit := p.Args["limit"].(int)
				return svc.ResolveTopRisks(p.Context, projectID, limit)
			},
		},
		// Daily snapshot trend line
		"complianceTrend": &graphql.Field{
			Type: graphql.NewList(TrendPointType),
			Args: graphql.FieldConfigArgument{
				"projectID": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				"days":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 90},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				projectID := p.Args["projectID"].(string)
				days := p.Args["days"].(int)
				return svc.ResolveComplianceTrend(p.Context, projectID, days)
			},
		},
	}
}
