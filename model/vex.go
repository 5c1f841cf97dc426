package model

import (
	"fmt"
	"time"
)

// VEX statement statuses.
const (
	VexAffected           = "affected"
	VexNotAffected        = "not_affected"
	VexFixed              = "fixed"
	VexUnderInvestigation = "under_investigation"
)

// ValidVexStatus reports whether s is one of the four VEX statuses.
func ValidVexStatus(s string) bool {
	switch s {
	case VexAffected, VexNotAffected, VexFixed, VexUnderInvestigation:
		return true
	}
	return false
}

// VexStatement is an analyst assertion scoped to a (project, vulnerability,
// optional component) tuple. At most one active statement exists per tuple;
// upserts replace the previous value (last write wins).
type VexStatement struct {
	Key             string `json:"_key,omitempty"`
	ObjType         string `json:"objtype,omitempty"`
	TenantID        string `json:"tenant_id"`
	ProjectID       string `json:"project_id"`
	VulnerabilityID string `json:"vulnerability_id"`
	ComponentID     string `json:"component_id,omitempty"`

	Status          string `json:"status"`
	Justification   string `json:"justification,omitempty"`
	ImpactStatement string `json:"impact_statement,omitempty"`
	Author          string `json:"author,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate rejects malformed statements before they reach storage.
func (s *VexStatement) Validate() error {
	if s.ProjectID == "" || s.VulnerabilityID == "" {
		return fmt.Errorf("vex statement requires project and vulnerability IDs")
	}
	if !ValidVexStatus(s.Status) {
		return fmt.Errorf("invalid vex status %q", s.Status)
	}
	return nil
}

// Suppresses reports whether this statement removes its link from open risk
// views. The link row itself is never deleted.
func (s *VexStatement) Suppresses() bool {
	return s.Status == VexNotAffected || s.Status == VexFixed
}

// VexAuditEntry is an append-only log row written on every statement upsert
// so replaced values stay reconstructable.
type VexAuditEntry struct {
	Key             string    `json:"_key,omitempty"`
	ObjType         string    `json:"objtype,omitempty"`
	TenantID        string    `json:"tenant_id"`
	ProjectID       string    `json:"project_id"`
	VulnerabilityID string    `json:"vulnerability_id"`
	ComponentID     string    `json:"component_id,omitempty"`
	PreviousStatus  string    `json:"previous_status,omitempty"`
	NewStatus       string    `json:"new_status"`
	Author          string    `json:"author,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}
