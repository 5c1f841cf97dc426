package model

import "time"

// SsvcAssessment holds the five categorical inputs and the computed decision
// for one (project, vulnerability) pair. The decision is always a pure
// function of the inputs and is overwritten on every recompute.
type SsvcAssessment struct {
	Key             string `json:"_key,omitempty"`
	ObjType         string `json:"objtype,omitempty"`
	TenantID        string `json:"tenant_id"`
	ProjectID       string `json:"project_id"`
	VulnerabilityID string `json:"vulnerability_id"`

	Exploitation      string `json:"exploitation"`       // none | poc | active
	Automatable       string `json:"automatable"`        // yes | no
	TechnicalImpact   string `json:"technical_impact"`   // partial | total
	MissionPrevalence string `json:"mission_prevalence"` // minimal | support | essential
	SafetyImpact      string `json:"safety_impact"`      // minimal | significant

	Decision string `json:"decision"` // defer | scheduled | out_of_cycle | immediate

	// Auto flags mark inputs derived from feed evidence rather than set by
	// an analyst.
	ExploitationAuto bool `json:"exploitation_auto,omitempty"`
	AutomatableAuto  bool `json:"automatable_auto,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SsvcHistoryEntry is an append-only record of one assessment transition.
type SsvcHistoryEntry struct {
	Key             string `json:"_key,omitempty"`
	ObjType         string `json:"objtype,omitempty"`
	TenantID        string `json:"tenant_id"`
	ProjectID       string `json:"project_id"`
	VulnerabilityID string `json:"vulnerability_id"`

	PreviousInputs   map[string]string `json:"previous_inputs,omitempty"`
	NewInputs        map[string]string `json:"new_inputs"`
	PreviousDecision string            `json:"previous_decision,omitempty"`
	NewDecision      string            `json:"new_decision"`

	Actor      string    `json:"actor,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
