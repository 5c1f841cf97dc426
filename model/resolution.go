package model

import "time"

// Resolution types for a closed vulnerability span.
const (
	ResolutionFixed         = "fixed"
	ResolutionMitigated     = "mitigated"
	ResolutionAccepted      = "accepted"
	ResolutionFalsePositive = "false_positive"
)

// ResolutionEvent tracks the detection-to-resolution span of one
// (project, vulnerability) pair. Immutable once ResolvedAt is set; only
// open events may be closed. MTTR is derived from these rows.
type ResolutionEvent struct {
	Key             string `json:"_key,omitempty"`
	ObjType         string `json:"objtype,omitempty"`
	TenantID        string `json:"tenant_id"`
	ProjectID       string `json:"project_id"`
	VulnerabilityID string `json:"vulnerability_id"`

	SeverityRating string `json:"severity_rating,omitempty"`

	DetectedAt     time.Time  `json:"detected_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionType string     `json:"resolution_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the event has not been resolved yet.
func (e *ResolutionEvent) Open() bool { return e.ResolvedAt == nil }
