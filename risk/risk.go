// Package risk turns the effective (VEX-filtered) link set into scores,
// histograms and rankings. All math lives in pure functions; Aggregator adds
// the storage plumbing.
package risk

import (
	"sort"
	"strings"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/vexstmt"
)

// severityWeights drive the project score. Unrated links count as INFO.
var severityWeights = map[string]float64{
	"CRITICAL": 10,
	"HIGH":     5,
	"MEDIUM":   2,
	"LOW":      1,
	"INFO":     0.5,
	"NONE":     0,
}

// ProjectRisk is the computed risk posture of one project.
type ProjectRisk struct {
	ProjectID   string         `json:"project_id"`
	ProjectName string         `json:"project_name,omitempty"`
	Score       float64        `json:"score"`
	OpenCount   int            `json:"open_count"`
	Suppressed  int            `json:"suppressed_count"`
	Histogram   map[string]int `json:"severity_histogram"`
}

// RankedRisk is one row of a top-risks ranking.
type RankedRisk struct {
	VulnerabilityID string  `json:"vulnerability_id"`
	ComponentID     string  `json:"component_id"`
	PackagePurl     string  `json:"package_purl,omitempty"`
	PackageVersion  string  `json:"package_version,omitempty"`
	SeverityRating  string  `json:"severity_rating"`
	CvssScore       float64 `json:"cvss_score"`
	EpssScore       float64 `json:"epss_score"`
	KevListed       bool    `json:"kev_listed"`
	VexStatus       string  `json:"vex_status"`
	Retained        bool    `json:"retained,omitempty"`
}

func rating(vuln *model.VulnerabilityRecord) string {
	if vuln == nil || vuln.SeverityRating == "" {
		return "INFO"
	}
	return strings.ToUpper(vuln.SeverityRating)
}

// Score computes the posture of one project from its effective link view.
// Suppressed links are excluded from both the score and the histogram but
// reported in the suppressed count.
func Score(projectID string, effective []vexstmt.EffectiveLink, vulns map[string]model.VulnerabilityRecord) ProjectRisk {
	result := ProjectRisk{
		ProjectID: projectID,
		Histogram: map[string]int{},
	}

	for _, link := range effective {
		if link.Suppressed {
			result.Suppressed++
			continue
		}
		result.OpenCount++

		vuln, ok := vulns[link.Link.VulnerabilityID]
		var band string
		if ok {
			band = rating(&vuln)
		} else {
			band = "INFO"
		}
		result.Histogram[band]++
		result.Score += severityWeights[band]
	}

	return result
}

// Rank orders the open links by exploitation likelihood: EPSS descending,
// CVSS as the tie-break, KEV-listed rows first within equal scores. limit <= 0
// means no limit.
func Rank(effective []vexstmt.EffectiveLink, vulns map[string]model.VulnerabilityRecord, limit int) []RankedRisk {
	var rows []RankedRisk
	for _, link := range vexstmt.Open(effective) {
		vuln := vulns[link.Link.VulnerabilityID]
		rows = append(rows, RankedRisk{
			VulnerabilityID: link.Link.VulnerabilityID,
			ComponentID:     link.Link.ComponentID,
			PackagePurl:     link.Link.PackagePurl,
			PackageVersion:  link.Link.PackageVersion,
			SeverityRating:  rating(&vuln),
			CvssScore:       vuln.CvssScore,
			EpssScore:       vuln.EpssScore,
			KevListed:       vuln.KevListed,
			VexStatus:       link.VexStatus,
			Retained:        link.Link.Retained,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].EpssScore != rows[j].EpssScore {
			return rows[i].EpssScore > rows[j].EpssScore
		}
		return rows[i].CvssScore > rows[j].CvssScore
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Rollup sums project postures into a tenant-wide view.
func Rollup(projects []ProjectRisk) ProjectRisk {
	total := ProjectRisk{Histogram: map[string]int{}}
	for _, project := range projects {
		total.Score += project.Score
		total.OpenCount += project.OpenCount
		total.Suppressed += project.Suppressed
		for band, count := range project.Histogram {
			total.Histogram[band] += count
		}
	}
	return total
}
