// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package report summarizes what a run learned: creation rules discovered,
// experiment outcomes, per-monitor performance, and recommendations for the
// next run. It writes both report.json and a human-readable report.txt.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/state"
)

// Data is the structured report persisted as report.json.
type Data struct {
	Header          Header            `json:"header"`
	RulesLearned    []RuleEntry       `json:"creation_rules_learned"`
	Concluded       []ExperimentEntry `json:"experiments_concluded"`
	Inconclusive    []ExperimentEntry `json:"experiments_inconclusive"`
	Monitors        []MonitorEntry    `json:"monitor_summary"`
	Knowledge       knowledge.Summary `json:"knowledge_summary"`
	Recommendations []string          `json:"recommendations"`
}

// Header identifies the run.
type Header struct {
	RunID        string    `json:"run_id"`
	Mode         string    `json:"mode"`
	StartedAt    time.Time `json:"started_at"`
	GeneratedAt  time.Time `json:"report_generated_at"`
	Duration     string    `json:"duration"`
	MonitorCount int       `json:"monitor_count"`
	TotalCycles  int       `json:"total_cycles"`
}

// RuleEntry is one learned creation rule.
type RuleEntry struct {
	ID             string                   `json:"id"`
	Description    string                   `json:"description"`
	Evidence       string                   `json:"evidence"`
	Scope          string                   `json:"scope"`
	IntentType     string                   `json:"intent_type"`
	DomainClass    string                   `json:"domain_class,omitempty"`
	Confidence     float64                  `json:"confidence"`
	PositiveEvents int                      `json:"positive_events"`
	Recommendation knowledge.Recommendation `json:"recommendation"`
	Impact         string                   `json:"impact"`
}

// ExperimentEntry is one concluded or inconclusive experiment.
type ExperimentEntry struct {
	ID             string  `json:"id"`
	MonitorName    string  `json:"monitor_name"`
	Field          string  `json:"field"`
	VariantA       string  `json:"variant_a"`
	VariantB       string  `json:"variant_b"`
	Winner         string  `json:"winner,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	Delta          float64 `json:"delta"`
	PositiveEvents int     `json:"positive_events"`
	Evidence       string  `json:"evidence,omitempty"`
	Needed         string  `json:"needed,omitempty"`
}

// MonitorEntry is one monitor's performance summary.
type MonitorEntry struct {
	Name           string         `json:"name"`
	IntentType     string         `json:"intent_type"`
	DomainClass    string         `json:"domain_class"`
	Mode           string         `json:"mode"`
	CycleCount     int            `json:"cycle_count"`
	ArchivedCycles int            `json:"archived_cycles,omitempty"`
	Confusion      map[string]int `json:"confusion_matrix"`
	F1Score        float64        `json:"f1_score"`
	AgentAccuracy  *float64       `json:"agent_accuracy"`
	EfficacyScore  float64        `json:"current_efficacy_score"`
}

// experimentStats computes the absolute mean-score delta and total positive
// events over blocks with recorded scores.
func experimentStats(exp *state.Experiment) (delta float64, totalPositive int) {
	a, b := exp.Stats()
	meanA, meanB := mean(a.Scores), mean(b.Scores)
	delta = meanA - meanB
	if delta < 0 {
		delta = -delta
	}
	return delta, a.PositiveEvents + b.PositiveEvents
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// formatDuration renders an elapsed time as "2h 5m 3s".
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}
	total := int(d.Seconds())
	h, rem := total/3600, total%3600
	m, s := rem/60, rem%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// recommendationParts renders the set fields of a recommendation.
func recommendationParts(rec knowledge.Recommendation) []string {
	var parts []string
	if rec.Engine != "" {
		parts = append(parts, "engine="+rec.Engine)
	}
	if rec.Extraction != "" {
		parts = append(parts, "extraction="+rec.Extraction)
	}
	if rec.IntervalSecs > 0 {
		parts = append(parts, fmt.Sprintf("interval=%ds", rec.IntervalSecs))
	}
	if rec.InstructionTemplate != "" {
		tmpl := rec.InstructionTemplate
		if len(tmpl) > 60 {
			tmpl = tmpl[:57] + "..."
		}
		parts = append(parts, fmt.Sprintf("instructions=%q", tmpl))
	}
	if rec.Selector != "" {
		parts = append(parts, fmt.Sprintf("selector=%q", rec.Selector))
	}
	return parts
}

// impact describes what a rule will change for future monitors.
func impact(r *knowledge.Rule, parts []string) string {
	if len(parts) == 0 {
		return fmt.Sprintf("Future %s monitors will use this rule", r.IntentType)
	}
	scope := string(r.IntentType)
	if r.DomainClass != "" {
		scope = fmt.Sprintf("%s+%s", r.IntentType, r.DomainClass)
	}
	return fmt.Sprintf("Future %s monitors will default to %s", scope, strings.Join(parts, ", "))
}

// needed describes what an inconclusive experiment lacked.
func needed(exp *state.Experiment, reason string) string {
	if reason == "no_meaningful_difference" {
		return "Variants performed similarly. Consider testing a more divergent alternative or running with more mutation variety."
	}

	a, b := exp.Stats()
	var parts []string
	if a.PositiveEvents < exp.MinPositiveEvents {
		parts = append(parts, fmt.Sprintf("%d more positive events for variant A (%q)",
			exp.MinPositiveEvents-a.PositiveEvents, exp.VariantA))
	}
	if b.PositiveEvents < exp.MinPositiveEvents {
		parts = append(parts, fmt.Sprintf("%d more positive events for variant B (%q)",
			exp.MinPositiveEvents-b.PositiveEvents, exp.VariantB))
	}
	if a.Blocks < exp.MinBlocks {
		parts = append(parts, fmt.Sprintf("%d more blocks for variant A (%q)",
			exp.MinBlocks-a.Blocks, exp.VariantA))
	}
	if b.Blocks < exp.MinBlocks {
		parts = append(parts, fmt.Sprintf("%d more blocks for variant B (%q)",
			exp.MinBlocks-b.Blocks, exp.VariantB))
	}

	if len(parts) == 0 {
		return "More cycles needed to accumulate sufficient data"
	}
	return strings.Join(parts, "; ")
}

// monitorF1 computes F1 from a monitor's confusion matrix.
func monitorF1(m *state.MonitorState) float64 {
	var precision, recall float64
	if m.TP+m.FP > 0 {
		precision = float64(m.TP) / float64(m.TP+m.FP)
	}
	if m.TP+m.FN > 0 {
		recall = float64(m.TP) / float64(m.TP+m.FN)
	}
	if precision+recall > 0 {
		return 2.0 * precision * recall / (precision + recall)
	}
	return 0
}
