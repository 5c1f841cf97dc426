// Package graphql assembles the root schema from the module query fields.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/riskhub/riskhub-backend/analytics"
	"github.com/riskhub/riskhub-backend/graphql/modules/dashboard"
	"github.com/riskhub/riskhub-backend/risk"
)

// CreateSchema builds the executable schema over the dashboard services.
func CreateSchema(risks *risk.Aggregator, roller *analytics.Roller) (graphql.Schema, error) {
	fields := dashboard.GetQueryFields(dashboard.Services{
		Risks:     risks,
		Analytics: roller,
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: fields,
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}
