// Package correlate matches a project's components against the vulnerability
// corpus and maintains the component2vuln link set. The matching core is pure;
// Engine wraps it with storage, per-project single-flight and run bookkeeping.
package correlate

import (
	"strings"
	"time"

	"github.com/google/osv-scanner/pkg/models"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
	"github.com/riskhub/riskhub-backend/vrange"
)

// Policy controls link retention behavior.
type Policy struct {
	// RetainOnUnknown keeps a previously-affected link when the resolver
	// returns unknown for it, instead of dropping it.
	RetainOnUnknown bool
}

// Result is the desired link set for one pass plus outcome counts.
type Result struct {
	Links []model.ComponentVulnerability

	Affected    int
	NotAffected int
	Unknown     int
	Retained    int
}

// linkKey identifies a (component, vulnerability) pair.
func linkKey(componentID, vulnID string) string {
	return componentID + "|" + vulnID
}

// BuildLinks computes the full desired link set for a project's current
// components against the candidate vulnerabilities. previous holds the links
// from the last pass, keyed by component and vulnerability id; it preserves
// detection timestamps for still-affected pairs and feeds the
// unknown-outcome retention policy.
func BuildLinks(components []model.Component, vulns []model.VulnerabilityRecord,
	previous map[string]model.ComponentVulnerability, policy Policy, now time.Time) Result {

	var result Result

	// Candidate index: base purl and folded ecosystem/name both point at the
	// advisory entries naming that package.
	type candidate struct {
		vuln     *model.VulnerabilityRecord
		affected models.Affected
	}
	byPackage := make(map[string][]candidate)
	for i := range vulns {
		vuln := &vulns[i]
		for _, aff := range vuln.Affected {
			for _, key := range packageKeys(aff.Package) {
				byPackage[key] = append(byPackage[key], candidate{vuln: vuln, affected: aff})
			}
		}
	}

	for _, comp := range components {
		seen := make(map[string]bool)
		for _, key := range componentKeys(comp) {
			for _, cand := range byPackage[key] {
				if seen[cand.vuln.ID] {
					continue
				}
				seen[cand.vuln.ID] = true

				outcome := resolveComponent(comp, cand.vuln)
				switch outcome {
				case vrange.Affected:
					result.Affected++
					detected := now
					if prev, had := previous[linkKey(comp.Key, cand.vuln.ID)]; had {
						detected = prev.DetectedAt
					}
					result.Links = append(result.Links, newLink(comp, cand.vuln, detected, false))
				case vrange.NotAffected:
					result.NotAffected++
				case vrange.Unknown:
					result.Unknown++
					prev, had := previous[linkKey(comp.Key, cand.vuln.ID)]
					if policy.RetainOnUnknown && had {
						result.Retained++
						retained := newLink(comp, cand.vuln, prev.DetectedAt, true)
						result.Links = append(result.Links, retained)
					}
				}
			}
		}
	}

	return result
}

// resolveComponent evaluates every advisory entry of the vulnerability that
// names this component's package.
func resolveComponent(comp model.Component, vuln *model.VulnerabilityRecord) vrange.Outcome {
	var matching []models.Affected
	for _, aff := range vuln.Affected {
		if packageMatches(comp, aff.Package) {
			matching = append(matching, aff)
		}
	}
	return vrange.ResolveAny(comp.Version, comp.Ecosystem, matching)
}

func packageMatches(comp model.Component, pkg models.Package) bool {
	for _, key := range packageKeys(pkg) {
		for _, compKey := range componentKeys(comp) {
			if key == compKey {
				return true
			}
		}
	}
	return false
}

// packageKeys returns the index keys an advisory package entry is filed
// under: its base purl when given, and its folded ecosystem/name.
func packageKeys(pkg models.Package) []string {
	var keys []string
	if pkg.Purl != "" {
		if base, err := normalize.BasePurl(pkg.Purl); err == nil {
			keys = append(keys, "purl:"+base)
		}
	}
	eco := normalize.EcosystemToPurlType(string(pkg.Ecosystem))
	if pkg.Name != "" && eco != "" {
		keys = append(keys, "name:"+eco+"/"+normalize.FoldName(eco, pkg.Name))
	}
	return keys
}

func componentKeys(comp model.Component) []string {
	var keys []string
	if comp.BasePurl != "" {
		keys = append(keys, "purl:"+comp.BasePurl)
	}
	if comp.Name != "" && comp.Ecosystem != "" {
		keys = append(keys, "name:"+comp.Ecosystem+"/"+normalize.FoldName(comp.Ecosystem, comp.Name))
	}
	return keys
}

func newLink(comp model.Component, vuln *model.VulnerabilityRecord, detectedAt time.Time, retained bool) model.ComponentVulnerability {
	return model.ComponentVulnerability{
		Key:             normalize.SanitizeKey(comp.Key + "_" + vuln.ID),
		ObjType:         "ComponentVulnerability",
		From:            "component/" + comp.Key,
		To:              "vulnerability/" + normalize.SanitizeKey(vuln.ID),
		TenantID:        comp.TenantID,
		ProjectID:       comp.ProjectID,
		ComponentID:     comp.Key,
		VulnerabilityID: vuln.ID,
		PackagePurl:     comp.BasePurl,
		PackageVersion:  comp.Version,
		DetectedAt:      detectedAt.UTC(),
		Retained:        retained,
	}
}

// DiffSeverities summarizes which severities a link set carries, for run
// logging.
func DiffSeverities(links []model.ComponentVulnerability, vulns []model.VulnerabilityRecord) map[string]int {
	ratings := make(map[string]string, len(vulns))
	for _, vuln := range vulns {
		ratings[vuln.ID] = strings.ToUpper(vuln.SeverityRating)
	}
	counts := make(map[string]int)
	for _, link := range links {
		rating := ratings[link.VulnerabilityID]
		if rating == "" {
			rating = "INFO"
		}
		counts[rating]++
	}
	return counts
}
