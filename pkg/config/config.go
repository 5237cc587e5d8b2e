// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config holds the orchestrator's runtime configuration, populated
// from CLI flags and environment via viper.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Defaults for flag-configurable settings.
const (
	DefaultDurationHours = 12.0
	DefaultE2EServerURL  = "http://127.0.0.1:8787"
	DefaultStateDir      = ".vigil"

	// DefaultSaveInterval is how often the run state is persisted during
	// the main loop, independent of cycle boundaries.
	DefaultSaveInterval = 60 * time.Second
)

// Config is the orchestrator's effective configuration for one run.
type Config struct {
	IntentsPath   string  `mapstructure:"intents"`
	DurationHours float64 `mapstructure:"duration"`
	StateDir      string  `mapstructure:"state_dir"`
	Resume        bool    `mapstructure:"resume"`
	DryRun        bool    `mapstructure:"dry_run"`
	Verbose       bool    `mapstructure:"verbose"`
	E2EServerURL  string  `mapstructure:"e2e_server"`
	LiveValidate  bool    `mapstructure:"live_validate"`
	ProbeBinary   string  `mapstructure:"probe_binary"`

	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	BridgeTimeout time.Duration `mapstructure:"bridge_timeout"`
	SaveInterval  time.Duration `mapstructure:"save_interval"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		DurationHours: DefaultDurationHours,
		StateDir:      DefaultStateDir,
		E2EServerURL:  DefaultE2EServerURL,
		SaveInterval:  DefaultSaveInterval,
	}
}

// Validate checks settings no flag default can guarantee.
func (c *Config) Validate() error {
	if c.IntentsPath == "" {
		return fmt.Errorf("intents file is required")
	}
	if c.DurationHours <= 0 {
		return fmt.Errorf("duration must be positive, got %v", c.DurationHours)
	}
	return nil
}

// Duration returns the run duration.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationHours * float64(time.Hour))
}

// StatePath is the run-state file location.
func (c *Config) StatePath() string { return filepath.Join(c.StateDir, "state.json") }

// KnowledgePath is the knowledge-base file location.
func (c *Config) KnowledgePath() string { return filepath.Join(c.StateDir, "knowledge.json") }

// EvidencePath is the sqlite evidence-archive location.
func (c *Config) EvidencePath() string { return filepath.Join(c.StateDir, "evidence.db") }

// ProbeDBPath is the isolated probe database for this run.
func (c *Config) ProbeDBPath() string { return filepath.Join(c.StateDir, "test.db") }

// ReportDir is where run reports are written.
func (c *Config) ReportDir() string { return c.StateDir }
