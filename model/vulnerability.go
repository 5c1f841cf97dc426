package model

import (
	"time"

	"github.com/google/osv-scanner/pkg/models"
)

// VulnerabilityRecord is the canonical, tenant-global shape every feed
// adapter normalizes into. Records are shared across tenants and updated in
// place by feed syncs keyed on the canonical identifier.
type VulnerabilityRecord struct {
	Key     string `json:"_key,omitempty"`
	ObjType string `json:"objtype,omitempty"`

	// ID is the canonical identifier, a CVE ID where one exists.
	ID          string   `json:"id"`
	Aliases     []string `json:"aliases,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`

	CvssScore      float64 `json:"cvss_base_score,omitempty"`
	CvssVector     string  `json:"cvss_vector,omitempty"`
	SeverityRating string  `json:"severity_rating,omitempty"`

	// Affected carries the OSV affected-range expressions per package.
	Affected []models.Affected `json:"affected,omitempty"`

	// EPSS extension.
	EpssScore      float64 `json:"epss_score,omitempty"`
	EpssPercentile float64 `json:"epss_percentile,omitempty"`

	// KEV extension.
	KevListed        bool       `json:"kev_listed,omitempty"`
	KevDateAdded     *time.Time `json:"kev_date_added,omitempty"`
	KevDueDate       *time.Time `json:"kev_due_date,omitempty"`
	KevRansomwareUse bool       `json:"kev_ransomware_use,omitempty"`

	// ExploitEvidence is set when any reference indicates a public PoC.
	ExploitEvidence bool `json:"exploit_evidence,omitempty"`

	Published time.Time `json:"published,omitempty"`
	Modified  time.Time `json:"modified,omitempty"`

	// SourceUpdatedAt tracks, per feed source, when that source last
	// touched this record.
	SourceUpdatedAt map[string]time.Time `json:"source_updated_at,omitempty"`
}

// NewVulnerabilityRecord creates a record with the object type set.
func NewVulnerabilityRecord(id string) *VulnerabilityRecord {
	return &VulnerabilityRecord{
		ObjType:         "VulnerabilityRecord",
		ID:              id,
		SourceUpdatedAt: map[string]time.Time{},
	}
}

// Touch records that a source updated this record at the given time.
func (v *VulnerabilityRecord) Touch(source string, at time.Time) {
	if v.SourceUpdatedAt == nil {
		v.SourceUpdatedAt = map[string]time.Time{}
	}
	v.SourceUpdatedAt[source] = at
}

// ComponentVulnerability links one component to one vulnerability. It is a
// derived fact recomputed wholesale on every correlation pass, unique on the
// (component, vulnerability) pair.
type ComponentVulnerability struct {
	Key     string `json:"_key,omitempty"`
	ObjType string `json:"objtype,omitempty"`

	// From and To are the edge endpoints, "component/<key>" and
	// "vulnerability/<key>".
	From string `json:"_from"`
	To   string `json:"_to"`

	TenantID        string    `json:"tenant_id"`
	ProjectID       string    `json:"project_id"`
	ComponentID     string    `json:"component_id"`
	VulnerabilityID string    `json:"vulnerability_id"`
	PackagePurl     string    `json:"package_purl,omitempty"`
	PackageVersion  string    `json:"package_version,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`

	// Retained marks links kept by the unknown-outcome retention policy
	// rather than confirmed affected by the latest pass.
	Retained bool `json:"retained,omitempty"`

	// PassID names the correlation pass that produced this link. Readers
	// filter on the project's current pass so a pass in flight never exposes
	// a half-written link set.
	PassID string `json:"pass_id,omitempty"`
}

// EOLProduct is a name/ecosystem-only advisory row from end-of-life data.
// It matches components without version evidence as well as versioned ones.
type EOLProduct struct {
	Key       string     `json:"_key,omitempty"`
	ObjType   string     `json:"objtype,omitempty"`
	Product   string     `json:"product"`
	Cycle     string     `json:"cycle"`
	EOLDate   *time.Time `json:"eol_date,omitempty"`
	Latest    string     `json:"latest,omitempty"`
	IsEOL     bool       `json:"is_eol"`
	UpdatedAt time.Time  `json:"updated_at"`
}
