package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/normalize"
	"github.com/riskhub/riskhub-backend/risk"
)

func eolComponent(key, name, version string) model.Component {
	return model.Component{Key: key, Name: name, Version: version, Ecosystem: "npm"}
}

func eolProduct(product, cycle string, isEOL bool) model.EOLProduct {
	date := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	return model.EOLProduct{
		Product: product,
		Cycle:   cycle,
		IsEOL:   isEOL,
		EOLDate: &date,
		Latest:  cycle + ".20.2",
	}
}

func TestMatchEOLByNameAndCycle(t *testing.T) {
	components := []model.Component{
		eolComponent("c1", "nodejs", "16.4.0"),
		eolComponent("c2", "nodejs", "20.11.0"),
		eolComponent("c3", "postgres", "11.2"),
	}
	products := []model.EOLProduct{
		eolProduct("nodejs", "16", true),
		eolProduct("nodejs", "20", false),
		eolProduct("postgres", "11", true),
	}

	exposures := risk.MatchEOL(components, products)
	require.Len(t, exposures, 2)
	assert.Equal(t, "c1", exposures[0].ComponentID)
	assert.Equal(t, "16", exposures[0].Cycle)
	assert.Equal(t, "c3", exposures[1].ComponentID)
}

func TestMatchEOLCycleIsNotAPrefixMatch(t *testing.T) {
	// Cycle "1" must not cover version 16.x.
	components := []model.Component{eolComponent("c1", "nodejs", "16.4.0")}
	products := []model.EOLProduct{eolProduct("nodejs", "1", true)}

	assert.Empty(t, risk.MatchEOL(components, products))
}

func TestMatchEOLUnknownVersionMatchesExpiredCycles(t *testing.T) {
	components := []model.Component{eolComponent("c1", "OpenSSL", normalize.VersionUnknown)}
	products := []model.EOLProduct{
		eolProduct("openssl", "1.1.1", true),
		eolProduct("openssl", "3.1", false),
	}

	exposures := risk.MatchEOL(components, products)
	require.Len(t, exposures, 1)
	assert.Equal(t, "1.1.1", exposures[0].Cycle)
}
