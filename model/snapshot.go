package model

import "time"

// Snapshot is a write-once-per-day roll-up row keyed by (tenant, date) or
// (tenant, project, date). Recomputing the same day overwrites the row;
// past days are only rewritten by an explicit backfill.
type Snapshot struct {
	Key       string `json:"_key,omitempty"`
	ObjType   string `json:"objtype,omitempty"`
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id,omitempty"`
	Date      string `json:"date"` // YYYY-MM-DD, UTC

	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
	UnknownCount  int `json:"unknown_count"`
	TotalCount    int `json:"total_count"`

	ComplianceScore float64 `json:"compliance_score"`

	ComputedAt time.Time `json:"computed_at"`
}
