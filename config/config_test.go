package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Correlation.RetainOnUnknown)
	assert.InDelta(t, 0.1, cfg.Ssvc.EpssAutomatableThreshold, 0.0001)
	assert.Equal(t, 24, cfg.Slo.TargetHours["CRITICAL"])
	assert.Equal(t, 2160, cfg.Slo.TargetHours["LOW"])
	assert.Equal(t, 60, cfg.Feeds.TimeoutSeconds)
	assert.NotEmpty(t, cfg.Severity.Keywords)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("RISKHUB_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Slo.TargetHours, cfg.Slo.TargetHours)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskhub.yaml")
	content := []byte("correlation:\n  retain_on_unknown: false\nfeeds:\n  retry: 5\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("RISKHUB_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Correlation.RetainOnUnknown)
	assert.Equal(t, 5, cfg.Feeds.Retry)
	assert.Equal(t, 60, cfg.Feeds.TimeoutSeconds, "unset fields keep defaults")
	assert.Equal(t, 168, cfg.Slo.TargetHours["HIGH"])
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0o644))
	t.Setenv("RISKHUB_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}
