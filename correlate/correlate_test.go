package correlate_test

import (
	"testing"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/correlate"
	"github.com/riskhub/riskhub-backend/model"
)

func component(key, name, version, ecosystem, basePurl string) model.Component {
	return model.Component{
		Key:       key,
		TenantID:  "t1",
		ProjectID: "p1",
		Name:      name,
		Version:   version,
		Ecosystem: ecosystem,
		BasePurl:  basePurl,
	}
}

func vulnWithRange(id, ecosystem, name, purl, introduced, fixed string) model.VulnerabilityRecord {
	rec := model.NewVulnerabilityRecord(id)
	rec.SeverityRating = "HIGH"
	rec.Affected = []models.Affected{
		{
			Package: models.Package{
				Ecosystem: models.Ecosystem(ecosystem),
				Name:      name,
				Purl:      purl,
			},
			Ranges: []models.Range{
				{
					Type: models.RangeEcosystem,
					Events: []models.Event{
						{Introduced: introduced},
						{Fixed: fixed},
					},
				},
			},
		},
	}
	return *rec
}

func TestBuildLinksAffected(t *testing.T) {
	now := time.Now().UTC()
	components := []model.Component{
		component("c1", "lodash", "4.17.20", "npm", "pkg:npm/lodash"),
		component("c2", "lodash", "4.17.21", "npm", "pkg:npm/lodash"),
		component("c3", "unrelated", "1.0.0", "npm", "pkg:npm/unrelated"),
	}
	vulns := []model.VulnerabilityRecord{
		vulnWithRange("CVE-2021-23337", "npm", "lodash", "pkg:npm/lodash", "0", "4.17.21"),
	}

	result := correlate.BuildLinks(components, vulns, nil, correlate.Policy{}, now)

	require.Len(t, result.Links, 1)
	link := result.Links[0]
	assert.Equal(t, "c1", link.ComponentID)
	assert.Equal(t, "CVE-2021-23337", link.VulnerabilityID)
	assert.Equal(t, "component/c1", link.From)
	assert.False(t, link.Retained)

	assert.Equal(t, 1, result.Affected)
	assert.Equal(t, 1, result.NotAffected, "fixed version resolves clean")
	assert.Equal(t, 0, result.Unknown)
}

func TestBuildLinksKeepsDetectionTimeAcrossPasses(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.AddDate(0, 0, 1)
	components := []model.Component{
		component("c1", "lodash", "4.17.20", "npm", "pkg:npm/lodash"),
	}
	vulns := []model.VulnerabilityRecord{
		vulnWithRange("CVE-2021-23337", "npm", "lodash", "pkg:npm/lodash", "0", "4.17.21"),
	}

	pass1 := correlate.BuildLinks(components, vulns, nil, correlate.Policy{}, first)
	require.Len(t, pass1.Links, 1)

	previous := map[string]model.ComponentVulnerability{
		"c1|CVE-2021-23337": pass1.Links[0],
	}
	pass2 := correlate.BuildLinks(components, vulns, previous, correlate.Policy{}, second)
	require.Len(t, pass2.Links, 1)
	assert.Equal(t, first, pass2.Links[0].DetectedAt, "still-affected link keeps its original detection time")
	assert.Equal(t, pass1.Links[0], pass2.Links[0], "unchanged inputs must yield an identical link")
}

func TestBuildLinksMatchByNameWithoutPurl(t *testing.T) {
	// Advisory entries commonly carry only ecosystem+name.
	components := []model.Component{
		component("c1", "Requests", "2.19.0", "pypi", "pkg:pypi/requests"),
	}
	vulns := []model.VulnerabilityRecord{
		vulnWithRange("CVE-2018-18074", "PyPI", "requests", "", "0", "2.20.0"),
	}

	result := correlate.BuildLinks(components, vulns, nil, correlate.Policy{}, time.Now())
	require.Len(t, result.Links, 1)
	assert.Equal(t, 1, result.Affected)
}

func TestBuildLinksUnknownRetention(t *testing.T) {
	detected := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	components := []model.Component{
		component("c1", "leftpad", "not!a!version", "npm", "pkg:npm/leftpad"),
	}
	vulns := []model.VulnerabilityRecord{
		vulnWithRange("CVE-2026-0001", "npm", "leftpad", "pkg:npm/leftpad", "1.0.0", "2.0.0"),
	}
	previous := map[string]model.ComponentVulnerability{
		"c1|CVE-2026-0001": {ComponentID: "c1", VulnerabilityID: "CVE-2026-0001", DetectedAt: detected},
	}

	// Retention on: the previously-affected link survives the unknown outcome
	// and keeps its original detection time.
	result := correlate.BuildLinks(components, vulns, previous, correlate.Policy{RetainOnUnknown: true}, time.Now())
	require.Len(t, result.Links, 1)
	assert.True(t, result.Links[0].Retained)
	assert.Equal(t, detected, result.Links[0].DetectedAt)
	assert.Equal(t, 1, result.Unknown)
	assert.Equal(t, 1, result.Retained)

	// Retention off: the link is dropped.
	result = correlate.BuildLinks(components, vulns, previous, correlate.Policy{}, time.Now())
	assert.Empty(t, result.Links)
	assert.Equal(t, 1, result.Unknown)
	assert.Equal(t, 0, result.Retained)

	// No previous link: unknown alone never creates one.
	result = correlate.BuildLinks(components, vulns, nil, correlate.Policy{RetainOnUnknown: true}, time.Now())
	assert.Empty(t, result.Links)
}

func TestBuildLinksVersionDrivesOutcome(t *testing.T) {
	vulns := []model.VulnerabilityRecord{
		vulnWithRange("CVE-2026-0002", "npm", "lodash", "pkg:npm/lodash", "1.0.0", "2.0.0"),
	}

	tests := []struct {
		name    string
		version string
		want    int // affected count
	}{
		{name: "inside range", version: "1.5.0", want: 1},
		{name: "at fixed boundary", version: "2.0.0", want: 0},
		{name: "before introduced", version: "0.9.0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			components := []model.Component{
				component("c1", "lodash", tt.version, "npm", "pkg:npm/lodash"),
			}
			result := correlate.BuildLinks(components, vulns, nil, correlate.Policy{}, time.Now())
			assert.Equal(t, tt.want, result.Affected)
			assert.Len(t, result.Links, tt.want)
		})
	}
}

func TestBuildLinksDedupesMultipleAffectedEntries(t *testing.T) {
	// One vulnerability with two entries for the same package must produce at
	// most one link per component.
	rec := vulnWithRange("CVE-2026-0003", "npm", "lodash", "pkg:npm/lodash", "1.0.0", "2.0.0")
	rec.Affected = append(rec.Affected, rec.Affected[0])

	components := []model.Component{
		component("c1", "lodash", "1.5.0", "npm", "pkg:npm/lodash"),
	}
	result := correlate.BuildLinks(components, []model.VulnerabilityRecord{rec}, nil, correlate.Policy{}, time.Now())
	assert.Len(t, result.Links, 1)
}

func TestDiffSeverities(t *testing.T) {
	vulns := []model.VulnerabilityRecord{
		vulnWithRange("CVE-1", "npm", "a", "pkg:npm/a", "0", "1"),
		vulnWithRange("CVE-2", "npm", "b", "pkg:npm/b", "0", "1"),
	}
	links := []model.ComponentVulnerability{
		{VulnerabilityID: "CVE-1"},
		{VulnerabilityID: "CVE-2"},
		{VulnerabilityID: "CVE-unscored"},
	}
	counts := correlate.DiffSeverities(links, vulns)
	assert.Equal(t, 2, counts["HIGH"])
	assert.Equal(t, 1, counts["INFO"])
}
