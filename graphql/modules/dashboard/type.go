// Package dashboard defines the GraphQL types for the risk dashboard.
package dashboard

import (
	"github.com/graphql-go/graphql"
)

// SeverityDistributionType represents the data for the pie/bar charts
var SeverityDistributionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SeverityDistribution",
	Fields: graphql.Fields{
		"critical": &graphql.Field{Type: graphql.Int},
		"high":     &graphql.Field{Type: graphql.Int},
		"medium":   &graphql.Field{Type: graphql.Int},
		"low":      &graphql.Field{Type: graphql.Int},
		"info":     &graphql.Field{Type: graphql.Int},
	},
})

// RankedRiskType represents rows for the top-risks table
var RankedRiskType = graphql.NewObject(graphql.ObjectConfig{
	Name: "RankedRisk",
	Fields: graphql.Fields{
		"vulnerability_id": &graphql.Field{Type: graphql.String},
		"component_id":     &graphql.Field{Type: graphql.String},
		"package_purl":     &graphql.Field{Type: graphql.String},
		"package_version":  &graphql.Field{Type: graphql.String},
		"severity_rating":  &graphql.Field{Type: graphql.String},
		"cvss_score":       &graphql.Field{Type: graphql.Float},
		"epss_score":       &graphql.Field{Type: graphql.Float},
		"kev_listed":       &graphql.Field{Type: graphql.Boolean},
		"vex_status":       &graphql.Field{Type: graphql.String},
	},
})

// MTTRBandType represents the mean time to resolution of one severity band
var MTTRBandType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MTTRBand",
	Fields: graphql.Fields{
		"severity":   &graphql.Field{Type: graphql.String},
		"count":      &graphql.Field{Type: graphql.Int},
		"mttr_hours": &graphql.Field{Type: graphql.Float},
	},
})

// SLOBandType represents the SLO achievement of one severity band
var SLOBandType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SLOBand",
	Fields: graphql.Fields{
		"severity":       &graphql.Field{Type: graphql.String},
		"target_hours":   &graphql.Field{Type: graphql.Int},
		"resolved_count": &graphql.Field{Type: graphql.Int},
		"within_target":  &graphql.Field{Type: graphql.Int},
		"achievement":    &graphql.Field{Type: graphql.Float},
	},
})

// TrendPointType represents one daily snapshot on the trend line
var TrendPointType = graphql.NewObject(graphql.ObjectConfig{
	Name: "TrendPoint",
	Fields: graphql.Fields{
		"date":             &graphql.Field{Type: graphql.String},
		"critical_count":   &graphql.Field{Type: graphql.Int},
		"high_count":       &graphql.Field{Type: graphql.Int},
		"medium_count":     &graphql.Field{Type: graphql.Int},
		"low_count":        &graphql.Field{Type: graphql.Int},
		"unknown_count":    &graphql.Field{Type: graphql.Int},
		"total_count":      &graphql.Field{Type: graphql.Int},
		"compliance_score": &graphql.Field{Type: graphql.Float},
	},
})

// AnalyticsSummaryType bundles the MTTR, SLO and compliance view
var AnalyticsSummaryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AnalyticsSummary",
	Fields: graphql.Fields{
		"tenant_id":        &graphql.Field{Type: graphql.String},
		"project_id":       &graphql.Field{Type: graphql.String},
		"window_days":      &graphql.Field{Type: graphql.Int},
		"mttr":             &graphql.Field{Type: graphql.NewList(MTTRBandType)},
		"slo":              &graphql.Field{Type: graphql.NewList(SLOBandType)},
		"compliance_score": &graphql.Field{Type: graphql.Float},
		"trend":            &graphql.Field{Type: graphql.NewList(TrendPointType)},
	},
})
