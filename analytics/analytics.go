// Package analytics derives time-series views from resolution events and
// daily snapshots: MTTR per severity band, SLO achievement and the
// compliance score trend.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
)

// Bands is the fixed severity band order used by every analytics view.
var Bands = []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}

// MTTRBand is the mean time to resolution of one severity band.
type MTTRBand struct {
	Severity  string  `json:"severity"`
	Count     int     `json:"count"`
	MTTRHours float64 `json:"mttr_hours"`
}

// SLOBand is the SLO achievement of one severity band.
type SLOBand struct {
	Severity     string  `json:"severity"`
	TargetHours  int     `json:"target_hours"`
	Resolved     int     `json:"resolved_count"`
	WithinTarget int     `json:"within_target"`
	Achievement  float64 `json:"achievement"`
}

// Summary is the analytics bundle returned for one tenant or project.
type Summary struct {
	TenantID        string           `json:"tenant_id"`
	ProjectID       string           `json:"project_id,omitempty"`
	WindowDays      int              `json:"window_days"`
	MTTR            []MTTRBand       `json:"mttr"`
	SLO             []SLOBand        `json:"slo"`
	ComplianceScore float64          `json:"compliance_score"`
	Trend           []model.Snapshot `json:"trend"`
}

// band folds a stored severity rating into one of the four analytics bands.
// Anything below LOW or unrated counts as LOW so no resolved event is lost
// from the roll-up.
func band(rating string) string {
	switch strings.ToUpper(rating) {
	case "CRITICAL":
		return "CRITICAL"
	case "HIGH":
		return "HIGH"
	case "MEDIUM":
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// resolutionHours returns the detection-to-resolution span of a closed
// event. Open events and negative spans report false.
func resolutionHours(e model.ResolutionEvent) (float64, bool) {
	if e.ResolvedAt == nil {
		return 0, false
	}
	d := e.ResolvedAt.Sub(e.DetectedAt)
	if d < 0 {
		return 0, false
	}
	return d.Hours(), true
}

// MTTR computes the mean time to resolution per severity band over the
// given events. Bands with no resolved events report count 0 and an MTTR
// of 0 rather than dividing by zero.
func MTTR(events []model.ResolutionEvent) []MTTRBand {
	totals := map[string]float64{}
	counts := map[string]int{}
	for _, e := range events {
		hours, ok := resolutionHours(e)
		if !ok {
			continue
		}
		b := band(e.SeverityRating)
		totals[b] += hours
		counts[b]++
	}

	result := make([]MTTRBand, 0, len(Bands))
	for _, b := range Bands {
		row := MTTRBand{Severity: b, Count: counts[b]}
		if row.Count > 0 {
			row.MTTRHours = totals[b] / float64(row.Count)
		}
		result = append(result, row)
	}
	return result
}

// Targets merges tenant overrides over the default SLO targets. An
// override only replaces the bands it names.
func Targets(defaults, overrides map[string]int) map[string]int {
	merged := make(map[string]int, len(defaults))
	for k, v := range defaults {
		merged[strings.ToUpper(k)] = v
	}
	for k, v := range overrides {
		if v > 0 {
			merged[strings.ToUpper(k)] = v
		}
	}
	return merged
}

// SLO computes per-band achievement: the fraction of resolved events whose
// resolution time stayed within the band's target hours. Bands with no
// resolved events report achievement 1 since nothing missed the target.
func SLO(events []model.ResolutionEvent, targets map[string]int) []SLOBand {
	resolved := map[string]int{}
	within := map[string]int{}
	for _, e := range events {
		hours, ok := resolutionHours(e)
		if !ok {
			continue
		}
		b := band(e.SeverityRating)
		resolved[b]++
		if target, found := targets[b]; found && hours <= float64(target) {
			within[b]++
		}
	}

	result := make([]SLOBand, 0, len(Bands))
	for _, b := range Bands {
		row := SLOBand{
			Severity:     b,
			TargetHours:  targets[b],
			Resolved:     resolved[b],
			WithinTarget: within[b],
			Achievement:  1,
		}
		if row.Resolved > 0 {
			row.Achievement = float64(row.WithinTarget) / float64(row.Resolved)
		}
		result = append(result, row)
	}
	return result
}

// Compliance pools all resolved events into a single 0-100 score: the
// percentage that met their band's SLO target. No resolved events scores
// 100.
func Compliance(slo []SLOBand) float64 {
	resolved := 0
	within := 0
	for _, b := range slo {
		resolved += b.Resolved
		within += b.WithinTarget
	}
	if resolved == 0 {
		return 100
	}
	return 100 * float64(within) / float64(resolved)
}

// SnapshotKey derives the document key of a daily roll-up row. Tenant-wide
// and per-project rows use distinct keys so both granularities can coexist
// for the same date.
func SnapshotKey(tenantID, projectID, date string) string {
	if projectID == "" {
		return normalize.SanitizeKey(fmt.Sprintf("%s_%s", tenantID, date))
	}
	return normalize.SanitizeKey(fmt.Sprintf("%s_%s_%s", tenantID, projectID, date))
}

// BuildSnapshot assembles one daily roll-up row from a severity histogram
// and the current compliance score.
func BuildSnapshot(tenantID, projectID, date string, histogram map[string]int, compliance float64, now time.Time) model.Snapshot {
	snap := model.Snapshot{
		Key:             SnapshotKey(tenantID, projectID, date),
		ObjType:         "Snapshot",
		TenantID:        tenantID,
		ProjectID:       projectID,
		Date:            date,
		ComplianceScore: compliance,
		ComputedAt:      now.UTC(),
	}
	for rating, count := range histogram {
		switch strings.ToUpper(rating) {
		case "CRITICAL":
			snap.CriticalCount += count
		case "HIGH":
			snap.HighCount += count
		case "MEDIUM":
			snap.MediumCount += count
		case "LOW":
			snap.LowCount += count
		default:
			snap.UnknownCount += count
		}
		snap.TotalCount += count
	}
	return snap
}
