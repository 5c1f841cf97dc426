package model

import "time"

// Component represents one package identity extracted from an SBOM import.
// Components are immutable: a newer SBOM for the same project supersedes the
// previous import's rows, it never mutates them.
type Component struct {
	Key       string `json:"_key,omitempty"`
	ObjType   string `json:"objtype,omitempty"`
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	ImportID  string `json:"import_id"`

	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
	Purl      string `json:"purl,omitempty"`
	BasePurl  string `json:"base_purl,omitempty"`
	License   string `json:"license,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SBOMImport records one SBOM upload for a project. The newest import is the
// project's current component set; older imports are kept for history.
type SBOMImport struct {
	Key        string    `json:"_key,omitempty"`
	ObjType    string    `json:"objtype,omitempty"`
	TenantID   string    `json:"tenant_id"`
	ProjectID  string    `json:"project_id"`
	ContentSha string    `json:"contentsha"`
	Format     string    `json:"format,omitempty"` // cyclonedx or spdx
	Components int       `json:"component_count"`
	Superseded bool      `json:"superseded,omitempty"`
	ImportedAt time.Time `json:"imported_at"`
}

// RawComponent is the shape handed to ingestion by the SBOM parsing
// collaborator: one entry per component as declared in the document.
type RawComponent struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type,omitempty"` // declared component type, ecosystem fallback
	Purl    string `json:"purl,omitempty"`
	License string `json:"license,omitempty"`
}
