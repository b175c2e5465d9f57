// Package config provides configuration loading and management for
// ctperf. It handles loading configuration from YAML files and provides
// the clinically established default thresholds.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the analysis configuration loaded from YAML.
// One Config value is built per run and passed through every call;
// nothing reads thresholds from package state, so two runs with
// different thresholds cannot interfere.
type Config struct {
	// Thresholds holds the classification cutoffs for mask derivation
	// and venous assessment.
	Thresholds struct {
		// HypoperfusionTmaxS is the Tmax cutoff in seconds above which
		// tissue counts as hypoperfused.
		HypoperfusionTmaxS float64 `yaml:"hypoperfusionTmaxS"`

		// CoreTmaxS is the Tmax cutoff in seconds used by the infarct
		// core definition. Must not be below HypoperfusionTmaxS.
		CoreTmaxS float64 `yaml:"coreTmaxS"`

		// CoreCBV is the absolute CBV cutoff in ml/100g below which
		// severely delayed tissue counts as core.
		CoreCBV float64 `yaml:"coreCBV"`

		// CoreCBFRelative is the relative-CBF cutoff used when only a
		// CBF series is available for the core definition.
		CoreCBFRelative float64 `yaml:"coreCBFRelative"`

		// PVTTmaxS is the Tmax cutoff in seconds for the prolonged
		// venous transit assessment. Valid range 5.0-15.0.
		PVTTmaxS float64 `yaml:"pvtTmaxS"`
	} `yaml:"thresholds"`

	// Decoding holds the per-series maximum physiologic values the RGB
	// inversion scales to.
	Decoding struct {
		// TmaxMaxS is the full-scale Tmax value in seconds.
		TmaxMaxS float64 `yaml:"tmaxMaxS"`

		// TimeMaxS is the full-scale value for MTT and TTP in seconds.
		TimeMaxS float64 `yaml:"timeMaxS"`

		// FlowMax is the full-scale value for CBF and CBV maps.
		FlowMax float64 `yaml:"flowMax"`
	} `yaml:"decoding"`

	// Output parameters
	Output struct {
		// SaveMasks determines whether the lesion masks are persisted
		// alongside the metrics record.
		SaveMasks bool `yaml:"saveMasks"`

		// SaveOverlays determines whether per-slice review images are
		// rendered.
		SaveOverlays bool `yaml:"saveOverlays"`

		// Verbose controls the level of progress output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with the published default
// thresholds.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Thresholds.HypoperfusionTmaxS = 6.0
	cfg.Thresholds.CoreTmaxS = 10.0
	cfg.Thresholds.CoreCBV = 2.0
	cfg.Thresholds.CoreCBFRelative = 0.38
	cfg.Thresholds.PVTTmaxS = 10.0

	cfg.Decoding.TmaxMaxS = 12.0
	cfg.Decoding.TimeMaxS = 15.0
	cfg.Decoding.FlowMax = 100.0

	cfg.Output.SaveMasks = true
	cfg.Output.SaveOverlays = true
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that the configured thresholds are mutually
// consistent before a run starts.
func (c *Config) Validate() error {
	t := c.Thresholds
	if t.HypoperfusionTmaxS <= 0 {
		return fmt.Errorf("hypoperfusion Tmax threshold must be positive, got %.2f", t.HypoperfusionTmaxS)
	}
	if t.CoreTmaxS < t.HypoperfusionTmaxS {
		return fmt.Errorf("core Tmax threshold %.2f must not be below hypoperfusion threshold %.2f",
			t.CoreTmaxS, t.HypoperfusionTmaxS)
	}
	if t.CoreCBV <= 0 {
		return fmt.Errorf("core CBV threshold must be positive, got %.2f", t.CoreCBV)
	}
	if t.CoreCBFRelative <= 0 || t.CoreCBFRelative >= 1 {
		return fmt.Errorf("relative CBF threshold must be in (0,1), got %.2f", t.CoreCBFRelative)
	}
	if t.PVTTmaxS < 5.0 || t.PVTTmaxS > 15.0 {
		return fmt.Errorf("PVT threshold %.2f outside valid range 5.0-15.0 seconds", t.PVTTmaxS)
	}
	d := c.Decoding
	if d.TmaxMaxS <= 0 || d.TimeMaxS <= 0 || d.FlowMax <= 0 {
		return fmt.Errorf("decoding full-scale values must be positive, got %.2f/%.2f/%.2f",
			d.TmaxMaxS, d.TimeMaxS, d.FlowMax)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
