// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package experiment

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/state"
)

// PlanNext plans the next experiment for a monitor, trying fields in
// priority order and skipping any field a terminal experiment already
// covered on this monitor. Returns nil when every field is exhausted.
func PlanNext(m *state.MonitorState, completed []*state.Experiment, logger *zap.Logger) *state.Experiment {
	if logger == nil {
		logger = zap.NewNop()
	}

	tested := map[string]bool{}
	for _, exp := range completed {
		if exp.Terminal() {
			tested[exp.Field] = true
		}
	}

	for _, field := range Fields {
		if tested[field] {
			continue
		}

		variantA, ok := currentValue(m, field)
		if !ok {
			continue
		}
		variantB := GenerateVariantB(field, variantA, m.IntentType)
		if variantB == "" || variantB == variantA {
			logger.Debug("no alternative variant for field",
				zap.String("monitor", m.Name),
				zap.String("field", field))
			continue
		}

		exp := New(m.Name, field, variantA, variantB, m.IntentType, m.DomainClass, m.CycleCount+1, DefaultTotalCycles)
		logger.Info("planned experiment",
			zap.String("monitor", m.Name),
			zap.String("experiment", exp.ID),
			zap.String("field", field),
			zap.String("variant_a", variantA),
			zap.String("variant_b", variantB))
		return exp
	}

	logger.Debug("all experiment fields exhausted", zap.String("monitor", m.Name))
	return nil
}

// currentValue resolves the monitor's current setting for an experiment
// field. interval_secs lives on the monitor itself; the rest come from the
// config map.
func currentValue(m *state.MonitorState, field string) (string, bool) {
	if field == "interval_secs" {
		return strconv.Itoa(m.IntervalSecs), true
	}
	v, ok := m.CurrentConfig[field]
	return v, ok
}

// GenerateVariantB derives the candidate variant for a field. An empty
// return means no generic alternative exists and the field is skipped.
func GenerateVariantB(field, current string, intentType intent.Type) string {
	switch field {
	case "extraction":
		if current == "auto" {
			return "selector"
		}
		return "auto"

	case "engine":
		if current == "http" {
			return "playwright"
		}
		return "http"

	case "interval_secs":
		secs, err := strconv.Atoi(current)
		if err != nil {
			return ""
		}
		if intentType.Volatile() {
			// Time-sensitive intents try faster checks, floored at a minute.
			half := secs / 2
			if half < 60 {
				half = 60
			}
			return strconv.Itoa(half)
		}
		return strconv.Itoa(secs * 2)

	case "instructions":
		// Context-dependent; no generic alternative.
		return ""
	}
	return ""
}

// DeriveScope extracts an intent type and domain class from a monitor name
// as a fallback when the experiment carries no explicit scope. Names follow
// the convention "intent-domain-..." or "intent_domain_...".
func DeriveScope(monitorName string) (intent.Type, string) {
	normalized := strings.ToLower(strings.ReplaceAll(monitorName, "-", "_"))
	parts := strings.Split(normalized, "_")
	if len(parts) == 0 || parts[0] == "" {
		return intent.TypeGeneric, ""
	}

	if intent.KnownTypes[intent.Type(parts[0])] {
		domain := ""
		if len(parts) > 1 {
			domain = parts[1]
		}
		return intent.Type(parts[0]), domain
	}
	// First token is not a known intent; treat it as a domain class.
	return intent.TypeGeneric, parts[0]
}
