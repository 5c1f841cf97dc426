// Package vexstmt applies analyst VEX assertions over the correlated link
// set. Statements never delete links; they annotate them at read time, and
// suppressing statuses exclude links from open counts.
package vexstmt

import (
	"github.com/riskhub/riskhub-backend/model"
)

// EffectiveLink is one correlated link with its VEX annotation.
type EffectiveLink struct {
	Link       model.ComponentVulnerability `json:"link"`
	VexStatus  string                       `json:"vex_status"`
	Suppressed bool                         `json:"suppressed"`
}

// Apply annotates every link with the most specific active statement. A
// component-scoped statement wins over a vulnerability-wide one; links with no
// statement default to under_investigation and stay open.
func Apply(links []model.ComponentVulnerability, stmts []model.VexStatement) []EffectiveLink {
	// Most specific first: (vuln, component), then (vuln, "").
	byScope := make(map[string]*model.VexStatement, len(stmts))
	for i := range stmts {
		stmt := &stmts[i]
		byScope[stmt.VulnerabilityID+"|"+stmt.ComponentID] = stmt
	}

	effective := make([]EffectiveLink, 0, len(links))
	for _, link := range links {
		stmt := byScope[link.VulnerabilityID+"|"+link.ComponentID]
		if stmt == nil {
			stmt = byScope[link.VulnerabilityID+"|"]
		}

		annotated := EffectiveLink{Link: link, VexStatus: model.VexUnderInvestigation}
		if stmt != nil {
			annotated.VexStatus = stmt.Status
			annotated.Suppressed = stmt.Suppresses()
		}
		effective = append(effective, annotated)
	}
	return effective
}

// Open filters an effective view down to its non-suppressed links.
func Open(effective []EffectiveLink) []EffectiveLink {
	var open []EffectiveLink
	for _, link := range effective {
		if !link.Suppressed {
			open = append(open, link)
		}
	}
	return open
}
