package vrange

import (
	"testing"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"

	"github.com/riskhub/riskhub-backend/normalize"
)

func semverAffected(events ...models.Event) models.Affected {
	return models.Affected{
		Ranges: []models.Range{
			{Type: models.RangeSemVer, Events: events},
		},
	}
}

func TestResolveIntroducedFixed(t *testing.T) {
	affected := semverAffected(
		models.Event{Introduced: "1.0.0"},
		models.Event{Fixed: "2.0.0"},
	)

	tests := []struct {
		version string
		want    Outcome
	}{
		{"1.5.0", Affected},
		{"1.0.0", Affected},
		{"2.0.0", NotAffected},
		{"2.1.0", NotAffected},
		{"0.9.0", NotAffected},
		{"not-a-version", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.version, "Go", affected))
		})
	}
}

func TestResolveLastAffected(t *testing.T) {
	affected := semverAffected(
		models.Event{Introduced: "0"},
		models.Event{LastAffected: "1.4.2"},
	)

	assert.Equal(t, Affected, Resolve("1.4.2", "Go", affected), "last_affected is inclusive")
	assert.Equal(t, Affected, Resolve("0.1.0", "Go", affected))
	assert.Equal(t, NotAffected, Resolve("1.4.3", "Go", affected))
}

func TestResolveDisjointRanges(t *testing.T) {
	affected := semverAffected(
		models.Event{Introduced: "1.0.0"},
		models.Event{Fixed: "1.2.0"},
		models.Event{Introduced: "2.0.0"},
		models.Event{Fixed: "2.3.0"},
	)

	assert.Equal(t, Affected, Resolve("1.1.0", "Go", affected))
	assert.Equal(t, NotAffected, Resolve("1.3.0", "Go", affected))
	assert.Equal(t, Affected, Resolve("2.2.9", "Go", affected))
	assert.Equal(t, NotAffected, Resolve("2.3.0", "Go", affected))
}

func TestResolveOpenEndedRangeIsUnknown(t *testing.T) {
	affected := semverAffected(models.Event{Introduced: "1.0.0"})

	// No upper bound: refuse to guess in either direction.
	assert.Equal(t, Unknown, Resolve("5.0.0", "Go", affected))
	assert.Equal(t, Unknown, Resolve("0.5.0", "Go", affected))
}

func TestResolveEnumeratedVersions(t *testing.T) {
	affected := models.Affected{Versions: []string{"1.0-beta", "1.0-rc1"}}

	assert.Equal(t, Affected, Resolve("1.0-rc1", "Maven", affected))
	assert.Equal(t, NotAffected, Resolve("1.0", "Maven", affected))
}

func TestResolveUnknownVersionSentinel(t *testing.T) {
	affected := semverAffected(
		models.Event{Introduced: "1.0.0"},
		models.Event{Fixed: "2.0.0"},
	)

	assert.Equal(t, Unknown, Resolve(normalize.VersionUnknown, "Go", affected))
	assert.Equal(t, Unknown, Resolve("", "Go", affected))
}

func TestResolveMalformedBoundary(t *testing.T) {
	affected := semverAffected(
		models.Event{Introduced: "garbage"},
		models.Event{Fixed: "2.0.0"},
	)

	assert.Equal(t, Unknown, Resolve("1.0.0", "Go", affected))
}

func TestResolveNpmOrdering(t *testing.T) {
	affected := models.Affected{
		Ranges: []models.Range{
			{Type: models.RangeEcosystem, Events: []models.Event{
				{Introduced: "0"},
				{Fixed: "4.17.21"},
			}},
		},
	}

	assert.Equal(t, Affected, Resolve("4.17.20", "npm", affected))
	assert.Equal(t, NotAffected, Resolve("4.17.21", "npm", affected))
}

func TestResolvePep440Ordering(t *testing.T) {
	affected := models.Affected{
		Ranges: []models.Range{
			{Type: models.RangeEcosystem, Events: []models.Event{
				{Introduced: "2.0"},
				{Fixed: "2.31.0"},
			}},
		},
	}

	assert.Equal(t, Affected, Resolve("2.30.0", "PyPI", affected))
	assert.Equal(t, NotAffected, Resolve("2.31.0", "PyPI", affected))
}

func TestResolveAny(t *testing.T) {
	allAffected := []models.Affected{
		semverAffected(models.Event{Introduced: "1.0.0"}, models.Event{Fixed: "1.5.0"}),
		semverAffected(models.Event{Introduced: "2.0.0"}, models.Event{Fixed: "2.17.1"}),
	}

	assert.Equal(t, Affected, ResolveAny("2.14.0", "Maven", allAffected))
	assert.Equal(t, NotAffected, ResolveAny("2.17.1", "Maven", allAffected))
	assert.Equal(t, Unknown, ResolveAny("2.14.0", "Maven", nil))
}

func TestResolveGitRangeIgnored(t *testing.T) {
	affected := models.Affected{
		Ranges: []models.Range{
			{Type: models.RangeGit, Events: []models.Event{
				{Introduced: "0"},
				{Fixed: "abcdef"},
			}},
		},
	}

	assert.Equal(t, Unknown, Resolve("1.0.0", "Go", affected))
}
