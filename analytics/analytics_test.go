package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riskhub/riskhub-backend/model"
)

func resolvedEvent(severity string, hours float64) model.ResolutionEvent {
	detected := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	resolved := detected.Add(time.Duration(hours * float64(time.Hour)))
	return model.ResolutionEvent{
		TenantID:        "t1",
		ProjectID:       "p1",
		VulnerabilityID: "CVE-2025-0001",
		SeverityRating:  severity,
		DetectedAt:      detected,
		ResolvedAt:      &resolved,
		ResolutionType:  model.ResolutionFixed,
	}
}

func openEvent(severity string) model.ResolutionEvent {
	return model.ResolutionEvent{
		TenantID:       "t1",
		ProjectID:      "p1",
		SeverityRating: severity,
		DetectedAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func bandByName(t *testing.T, bands []MTTRBand, severity string) MTTRBand {
	t.Helper()
	for _, b := range bands {
		if b.Severity == severity {
			return b
		}
	}
	t.Fatalf("band %s missing", severity)
	return MTTRBand{}
}

func sloByName(t *testing.T, bands []SLOBand, severity string) SLOBand {
	t.Helper()
	for _, b := range bands {
		if b.Severity == severity {
			return b
		}
	}
	t.Fatalf("band %s missing", severity)
	return SLOBand{}
}

func TestMTTRPerBand(t *testing.T) {
	events := []model.ResolutionEvent{
		resolvedEvent("CRITICAL", 10),
		resolvedEvent("CRITICAL", 30),
		resolvedEvent("HIGH", 100),
		openEvent("HIGH"),
	}

	bands := MTTR(events)
	assert.Len(t, bands, 4)

	critical := bandByName(t, bands, "CRITICAL")
	assert.Equal(t, 2, critical.Count)
	assert.InDelta(t, 20, critical.MTTRHours, 0.001)

	high := bandByName(t, bands, "HIGH")
	assert.Equal(t, 1, high.Count)
	assert.InDelta(t, 100, high.MTTRHours, 0.001)
}

func TestMTTREmptyBandReportsZero(t *testing.T) {
	bands := MTTR(nil)
	for _, b := range bands {
		assert.Equal(t, 0, b.Count, b.Severity)
		assert.Zero(t, b.MTTRHours, b.Severity)
	}
}

func TestMTTRFoldsUnratedIntoLow(t *testing.T) {
	bands := MTTR([]model.ResolutionEvent{
		resolvedEvent("", 12),
		resolvedEvent("INFO", 36),
	})
	low := bandByName(t, bands, "LOW")
	assert.Equal(t, 2, low.Count)
	assert.InDelta(t, 24, low.MTTRHours, 0.001)
}

func TestSLOAchievement(t *testing.T) {
	targets := map[string]int{"CRITICAL": 24, "HIGH": 168, "MEDIUM": 720, "LOW": 2160}
	events := []model.ResolutionEvent{
		resolvedEvent("CRITICAL", 10),
		resolvedEvent("CRITICAL", 24),
		resolvedEvent("CRITICAL", 48),
		resolvedEvent("HIGH", 200),
		openEvent("CRITICAL"),
	}

	slo := SLO(events, targets)

	critical := sloByName(t, slo, "CRITICAL")
	assert.Equal(t, 3, critical.Resolved)
	assert.Equal(t, 2, critical.WithinTarget)
	assert.InDelta(t, 2.0/3.0, critical.Achievement, 0.001)

	high := sloByName(t, slo, "HIGH")
	assert.Equal(t, 1, high.Resolved)
	assert.Equal(t, 0, high.WithinTarget)
	assert.Zero(t, high.Achievement)

	// No resolved events means nothing missed the target.
	medium := sloByName(t, slo, "MEDIUM")
	assert.Equal(t, 0, medium.Resolved)
	assert.EqualValues(t, 1, medium.Achievement)
}

func TestTargetsOverrides(t *testing.T) {
	defaults := map[string]int{"CRITICAL": 24, "HIGH": 168}
	merged := Targets(defaults, map[string]int{"critical": 12, "HIGH": 0})

	assert.Equal(t, 12, merged["CRITICAL"])
	assert.Equal(t, 168, merged["HIGH"], "zero override keeps the default")
}

func TestCompliancePoolsBands(t *testing.T) {
	targets := map[string]int{"CRITICAL": 24, "HIGH": 168, "MEDIUM": 720, "LOW": 2160}
	events := []model.ResolutionEvent{
		resolvedEvent("CRITICAL", 10),
		resolvedEvent("CRITICAL", 48),
		resolvedEvent("HIGH", 100),
		resolvedEvent("LOW", 3000),
	}

	score := Compliance(SLO(events, targets))
	assert.InDelta(t, 50, score, 0.001)
}

func TestComplianceNoEvents(t *testing.T) {
	assert.EqualValues(t, 100, Compliance(SLO(nil, map[string]int{"CRITICAL": 24})))
}

func TestBuildSnapshot(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	histogram := map[string]int{
		"CRITICAL": 2,
		"HIGH":     3,
		"MEDIUM":   1,
		"INFO":     4,
	}

	snap := BuildSnapshot("t1", "p1", "2026-09-01", histogram, 87.5, now)

	assert.Equal(t, "t1_p1_2026-09-01", snap.Key)
	assert.Equal(t, 2, snap.CriticalCount)
	assert.Equal(t, 3, snap.HighCount)
	assert.Equal(t, 1, snap.MediumCount)
	assert.Equal(t, 0, snap.LowCount)
	assert.Equal(t, 4, snap.UnknownCount)
	assert.Equal(t, 10, snap.TotalCount)
	assert.InDelta(t, 87.5, snap.ComplianceScore, 0.001)
	assert.Equal(t, now, snap.ComputedAt)
}

func TestSnapshotKeyScopes(t *testing.T) {
	tenantWide := SnapshotKey("t1", "", "2026-09-01")
	perProject := SnapshotKey("t1", "p1", "2026-09-01")

	assert.Equal(t, "t1_2026-09-01", tenantWide)
	assert.NotEqual(t, tenantWide, perProject)
}
