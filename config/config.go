// Package config loads the engine policy file. Everything in here is
// versionable policy rather than code: SLO targets, the EPSS automatable
// threshold, severity keyword rules and the unknown-outcome retention
// behavior of the correlation engine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/riskhub/riskhub-backend/util"
)

// Config is the engine policy loaded at startup.
type Config struct {
	Correlation CorrelationConfig `yaml:"correlation"`
	Ssvc        SsvcConfig        `yaml:"ssvc"`
	Slo         SloConfig         `yaml:"slo"`
	Feeds       FeedsConfig       `yaml:"feeds"`
	Severity    SeverityConfig    `yaml:"severity"`
}

// CorrelationConfig controls correlation-pass behavior.
type CorrelationConfig struct {
	// RetainOnUnknown keeps a previously-affected link when a later pass
	// resolves the same pair as unknown, so a transient feed or parse gap
	// does not silently hide a vulnerability.
	RetainOnUnknown bool `yaml:"retain_on_unknown"`
}

// SsvcConfig controls auto-assessment rules.
type SsvcConfig struct {
	// EpssAutomatableThreshold: EPSS scores above this derive
	// automatable=yes.
	EpssAutomatableThreshold float64 `yaml:"epss_automatable_threshold"`
}

// SloConfig holds resolution-time targets in hours per severity band.
type SloConfig struct {
	TargetHours map[string]int `yaml:"target_hours"`
}

// FeedsConfig bounds outbound feed fetches.
type FeedsConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	Retry          int `yaml:"retry"`
}

// SeverityConfig is the ordered keyword rule table used to infer a severity
// band from free text. Rules are checked in priority order; the first match
// wins, ambiguous text falls through to INFO.
type SeverityConfig struct {
	Keywords []SeverityRule `yaml:"keywords"`
}

// SeverityRule binds one severity band to its trigger keywords.
type SeverityRule struct {
	Severity string   `yaml:"severity"`
	Terms    []string `yaml:"terms"`
}

// Default returns the built-in policy used when no file is present.
func Default() Config {
	return Config{
		Correlation: CorrelationConfig{RetainOnUnknown: true},
		Ssvc:        SsvcConfig{EpssAutomatableThreshold: 0.1},
		Slo: SloConfig{TargetHours: map[string]int{
			"CRITICAL": 24,
			"HIGH":     168,
			"MEDIUM":   720,
			"LOW":      2160,
		}},
		Feeds: FeedsConfig{TimeoutSeconds: 60, Retry: 3},
		Severity: SeverityConfig{Keywords: []SeverityRule{
			{Severity: "CRITICAL", Terms: []string{"critical", "緊急"}},
			{Severity: "HIGH", Terms: []string{"high", "important", "重要"}},
			{Severity: "MEDIUM", Terms: []string{"medium", "moderate", "警戒"}},
			{Severity: "LOW", Terms: []string{"low", "注意"}},
		}},
	}
}

// Load reads the policy file named by RISKHUB_CONFIG (default
// riskhub.yaml). A missing file yields the defaults; a malformed one is an
// error rather than a silent fallback.
func Load() (Config, error) {
	path := util.GetEnvDefault("RISKHUB_CONFIG", "riskhub.yaml")
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	fillDefaults(&cfg)
	return cfg, nil
}

func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Slo.TargetHours == nil {
		cfg.Slo.TargetHours = def.Slo.TargetHours
	}
	if cfg.Ssvc.EpssAutomatableThreshold == 0 {
		cfg.Ssvc.EpssAutomatableThreshold = def.Ssvc.EpssAutomatableThreshold
	}
	if cfg.Feeds.TimeoutSeconds == 0 {
		cfg.Feeds.TimeoutSeconds = def.Feeds.TimeoutSeconds
	}
	if cfg.Feeds.Retry == 0 {
		cfg.Feeds.Retry = def.Feeds.Retry
	}
	if len(cfg.Severity.Keywords) == 0 {
		cfg.Severity.Keywords = def.Severity.Keywords
	}
}
