package vexstmt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/vexstmt"
)

func link(componentID, vulnID string) model.ComponentVulnerability {
	return model.ComponentVulnerability{
		ProjectID:       "p1",
		ComponentID:     componentID,
		VulnerabilityID: vulnID,
	}
}

func stmt(vulnID, componentID, status string) model.VexStatement {
	return model.VexStatement{
		ProjectID:       "p1",
		VulnerabilityID: vulnID,
		ComponentID:     componentID,
		Status:          status,
	}
}

func TestApplyDefaultsToUnderInvestigation(t *testing.T) {
	effective := vexstmt.Apply([]model.ComponentVulnerability{link("c1", "CVE-1")}, nil)
	require.Len(t, effective, 1)
	assert.Equal(t, model.VexUnderInvestigation, effective[0].VexStatus)
	assert.False(t, effective[0].Suppressed)
}

func TestApplySuppression(t *testing.T) {
	links := []model.ComponentVulnerability{
		link("c1", "CVE-1"),
		link("c2", "CVE-2"),
		link("c3", "CVE-3"),
	}
	stmts := []model.VexStatement{
		stmt("CVE-1", "c1", model.VexNotAffected),
		stmt("CVE-2", "c2", model.VexFixed),
		stmt("CVE-3", "c3", model.VexAffected),
	}

	effective := vexstmt.Apply(links, stmts)
	assert.True(t, effective[0].Suppressed)
	assert.True(t, effective[1].Suppressed)
	assert.False(t, effective[2].Suppressed, "affected keeps the link open")

	open := vexstmt.Open(effective)
	require.Len(t, open, 1)
	assert.Equal(t, "CVE-3", open[0].Link.VulnerabilityID)
}

func TestApplyComponentScopeWinsOverVulnWide(t *testing.T) {
	links := []model.ComponentVulnerability{
		link("c1", "CVE-1"),
		link("c2", "CVE-1"),
	}
	stmts := []model.VexStatement{
		stmt("CVE-1", "", model.VexNotAffected), // vulnerability-wide
		stmt("CVE-1", "c2", model.VexAffected),  // component-specific
	}

	effective := vexstmt.Apply(links, stmts)
	assert.Equal(t, model.VexNotAffected, effective[0].VexStatus)
	assert.Equal(t, model.VexAffected, effective[1].VexStatus)
	assert.False(t, effective[1].Suppressed)
}

func TestValidate(t *testing.T) {
	bad := stmt("CVE-1", "", "wontfix")
	assert.Error(t, bad.Validate())

	missing := stmt("", "", model.VexFixed)
	assert.Error(t, missing.Validate())

	good := stmt("CVE-1", "", model.VexFixed)
	assert.NoError(t, good.Validate())
}
