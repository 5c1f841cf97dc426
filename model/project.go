// Package model defines the data structures persisted by the risk engine.
package model

import "time"

// Project represents a tenant-scoped software project whose SBOM imports are
// correlated against the global vulnerability corpus.
type Project struct {
	Key      string `json:"_key,omitempty"`
	ObjType  string `json:"objtype,omitempty"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`

	// SSVC defaults applied when an assessment does not override them.
	MissionPrevalence string `json:"mission_prevalence,omitempty"`
	SafetyImpact      string `json:"safety_impact,omitempty"`

	// CorrelationPass is the pass id of the current visible link set. It is
	// flipped in one document write after a pass lands its links, so readers
	// switch between complete link sets only.
	CorrelationPass string `json:"correlation_pass,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a Project with default values.
func NewProject(tenantID, name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ObjType:           "Project",
		TenantID:          tenantID,
		Name:              name,
		MissionPrevalence: "minimal",
		SafetyImpact:      "minimal",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
