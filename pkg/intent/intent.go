// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package intent defines monitoring intents: what to watch, how to judge it,
// and (in E2E mode) the mutation schedule that provides ground truth.
package intent

// Type classifies what kind of change a monitor is watching for.
type Type string

// Known intent types. Unknown types fall back to TypeGeneric wherever a
// per-intent table is consulted.
const (
	TypePrice   Type = "price"
	TypeStock   Type = "stock"
	TypeRelease Type = "release"
	TypeNews    Type = "news"
	TypeGeneric Type = "generic"
)

// KnownTypes enumerates the intent types with dedicated scoring profiles.
var KnownTypes = map[Type]bool{
	TypePrice:   true,
	TypeStock:   true,
	TypeRelease: true,
	TypeNews:    true,
	TypeGeneric: true,
}

// Volatile reports whether the intent type naturally produces noisy scores
// (prices and stock levels move often; releases and news do not).
func (t Type) Volatile() bool {
	return t == TypePrice || t == TypeStock
}

// Normalize maps unknown intent types to TypeGeneric.
func (t Type) Normalize() Type {
	if KnownTypes[t] {
		return t
	}
	return TypeGeneric
}

// Mode selects between controlled and real-world evaluation.
type Mode string

const (
	// ModeE2E runs against the controlled mutation server with deterministic
	// ground truth.
	ModeE2E Mode = "e2e"
	// ModeLive runs against a real site with heuristic classification only.
	ModeLive Mode = "live"
)

// DefaultIntervals holds the per-intent default check interval in seconds,
// applied when an intent omits interval_secs.
var DefaultIntervals = map[Type]int{
	TypePrice:   300,
	TypeStock:   600,
	TypeRelease: 1800,
	TypeNews:    900,
	TypeGeneric: 900,
}

// Mutation is a single scheduled state change applied to the mutation server
// during an E2E run. Values are carried as strings and coerced to the
// server's expected types by the bridge.
type Mutation struct {
	Cycle           int    `mapstructure:"cycle" json:"cycle"`
	Field           string `mapstructure:"field" json:"field"`
	Value           string `mapstructure:"value" json:"value"`
	ExpectDetection bool   `mapstructure:"expect_detection" json:"expect_detection"`
	Description     string `mapstructure:"description" json:"description"`
}

// Definition declares one monitor: the target URL, how the probe should
// fetch and extract it, and how results are judged.
type Definition struct {
	Name              string   `mapstructure:"name" json:"name"`
	URL               string   `mapstructure:"url" json:"url"`
	IntentType        Type     `mapstructure:"intent_type" json:"intent_type"`
	DomainClass       string   `mapstructure:"domain_class" json:"domain_class"`
	Engine            string   `mapstructure:"engine" json:"engine"`
	Extraction        string   `mapstructure:"extraction" json:"extraction"`
	Selector          string   `mapstructure:"selector" json:"selector,omitempty"`
	IntervalSecs      int      `mapstructure:"interval_secs" json:"interval_secs"`
	AgentInstructions string   `mapstructure:"agent_instructions" json:"agent_instructions,omitempty"`
	Tags              []string `mapstructure:"tags" json:"tags,omitempty"`
	Mode              Mode     `mapstructure:"mode" json:"mode"`

	// E2E-specific fields.
	Mutations          []Mutation `mapstructure:"mutations" json:"mutations,omitempty"`
	ExpectedDetections int        `mapstructure:"expected_detections" json:"expected_detections"`
}

// applyDefaults fills zero-valued fields with the documented defaults.
func (d *Definition) applyDefaults(defaultMode Mode) {
	if d.IntentType == "" {
		d.IntentType = TypeGeneric
	}
	if d.DomainClass == "" {
		d.DomainClass = "unknown"
	}
	if d.Engine == "" {
		d.Engine = "http"
	}
	if d.Extraction == "" {
		d.Extraction = "auto"
	}
	if d.Mode == "" {
		d.Mode = defaultMode
	}
	if d.IntervalSecs <= 0 {
		if iv, ok := DefaultIntervals[d.IntentType.Normalize()]; ok {
			d.IntervalSecs = iv
		} else {
			d.IntervalSecs = 300
		}
	}
}
