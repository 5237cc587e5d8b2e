// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/state"
)

// Generate builds the report, writes report.json and report.txt into
// outputDir, and returns the human-readable text. archivedCounts maps
// monitor names to their full evidence-archive cycle counts; it may be nil.
func Generate(s *state.RunState, kb *knowledge.Base, archivedCounts map[string]int, outputDir string, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data := Build(s, kb, archivedCounts)

	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	jsonPath := filepath.Join(outputDir, "report.json")
	if err := state.WriteFileAtomic(jsonPath, append(jsonBytes, '\n')); err != nil {
		return "", fmt.Errorf("writing report.json: %w", err)
	}
	logger.Info("wrote structured report", zap.String("path", jsonPath))

	text := Format(data)
	txtPath := filepath.Join(outputDir, "report.txt")
	if err := state.WriteFileAtomic(txtPath, []byte(text)); err != nil {
		return "", fmt.Errorf("writing report.txt: %w", err)
	}
	logger.Info("wrote human-readable report", zap.String("path", txtPath))

	return text, nil
}

// Build assembles the structured report from run state and knowledge.
func Build(s *state.RunState, kb *knowledge.Base, archivedCounts map[string]int) *Data {
	now := time.Now().UTC()

	data := &Data{
		Header: Header{
			RunID:        s.RunID,
			Mode:         string(s.Mode),
			StartedAt:    s.StartedAt,
			GeneratedAt:  now,
			Duration:     formatDuration(now.Sub(s.StartedAt)),
			MonitorCount: len(s.Monitors),
			TotalCycles:  s.TotalCycles,
		},
	}

	rules, summary := kb.Export()
	data.Knowledge = summary
	for _, r := range rules {
		parts := recommendationParts(r.Recommendation)
		data.RulesLearned = append(data.RulesLearned, RuleEntry{
			ID:             r.ID,
			Description:    r.Rule,
			Evidence:       r.Evidence,
			Scope:          r.Scope,
			IntentType:     string(r.IntentType),
			DomainClass:    r.DomainClass,
			Confidence:     r.Confidence,
			PositiveEvents: r.PositiveEventsObserved,
			Recommendation: r.Recommendation,
			Impact:         impact(r, parts),
		})
	}

	// Deterministic experiment order: by monitor, then id.
	exps := make([]*state.Experiment, 0, len(s.Experiments))
	for _, exp := range s.Experiments {
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		if exps[i].MonitorName != exps[j].MonitorName {
			return exps[i].MonitorName < exps[j].MonitorName
		}
		return exps[i].ID < exps[j].ID
	})

	for _, exp := range exps {
		delta, totalPos := experimentStats(exp)
		entry := ExperimentEntry{
			ID:             exp.ID,
			MonitorName:    exp.MonitorName,
			Field:          exp.Field,
			VariantA:       exp.VariantA,
			VariantB:       exp.VariantB,
			Delta:          delta,
			PositiveEvents: totalPos,
			Evidence:       exp.Evidence,
		}
		switch {
		case exp.Status == state.ExperimentConcluded && exp.Winner != "":
			entry.Winner = exp.Winner
			data.Concluded = append(data.Concluded, entry)
		case exp.Status == state.ExperimentConcluded:
			entry.Reason = "no_meaningful_difference"
			entry.Needed = needed(exp, entry.Reason)
			data.Inconclusive = append(data.Inconclusive, entry)
		case exp.Status == state.ExperimentInsufficientData:
			entry.Reason = "insufficient_data"
			entry.Needed = needed(exp, entry.Reason)
			data.Inconclusive = append(data.Inconclusive, entry)
		}
		// Still-running experiments are omitted.
	}

	names := make([]string, 0, len(s.Monitors))
	for name := range s.Monitors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := s.Monitors[name]
		entry := MonitorEntry{
			Name:        name,
			IntentType:  string(m.IntentType),
			DomainClass: m.DomainClass,
			Mode:        string(m.Mode),
			CycleCount:  m.CycleCount,
			Confusion:   map[string]int{"tp": m.TP, "tn": m.TN, "fp": m.FP, "fn": m.FN},
			F1Score:     monitorF1(m),
		}
		if archivedCounts != nil {
			entry.ArchivedCycles = archivedCounts[name]
		}
		if m.AgentTotalDecisions > 0 {
			acc := float64(m.AgentCorrectDecisions) / float64(m.AgentTotalDecisions)
			entry.AgentAccuracy = &acc
		}
		if len(m.Scores) > 0 {
			entry.EfficacyScore = m.Scores[len(m.Scores)-1]
		}
		data.Monitors = append(data.Monitors, entry)
	}

	data.Recommendations = buildRecommendations(s, data.Inconclusive, kb)
	return data
}

// buildRecommendations derives actionable next-run suggestions from
// inconclusive experiments, rule coverage, and error rates.
func buildRecommendations(s *state.RunState, inconclusive []ExperimentEntry, kb *knowledge.Base) []string {
	var recs []string

	for _, exp := range inconclusive {
		intentType := intent.TypeGeneric
		if m, ok := s.Monitors[exp.MonitorName]; ok {
			intentType = m.IntentType
		}
		switch exp.Reason {
		case "insufficient_data":
			recs = append(recs, fmt.Sprintf(
				"Add more %s mutations to the E2E harness for %s comparison (monitor: %s)",
				intentType, exp.Field, exp.MonitorName))
		case "no_meaningful_difference":
			recs = append(recs, fmt.Sprintf(
				"Consider a more divergent %s variant for %s monitors (monitor: %s)",
				exp.Field, intentType, exp.MonitorName))
		}
	}

	// E2E-learned rules deserve live confirmation.
	if s.Mode == intent.ModeE2E && kb.Len() > 0 {
		intents := map[string]bool{}
		for _, r := range kb.Rules() {
			intents[string(r.IntentType)] = true
		}
		list := make([]string, 0, len(intents))
		for it := range intents {
			list = append(list, it)
		}
		sort.Strings(list)
		recs = append(recs, fmt.Sprintf(
			"Run live validation to confirm E2E-learned rules on real sites (intents with rules: %s)",
			strings.Join(list, ", ")))
	}

	// Intents with too few cycles to learn anything.
	cyclesByIntent := map[string]int{}
	for _, m := range s.Monitors {
		cyclesByIntent[string(m.IntentType)] += m.CycleCount
	}
	intentNames := make([]string, 0, len(cyclesByIntent))
	for it := range cyclesByIntent {
		intentNames = append(intentNames, it)
	}
	sort.Strings(intentNames)
	for _, it := range intentNames {
		if cycles := cyclesByIntent[it]; cycles < 10 {
			recs = append(recs, fmt.Sprintf(
				"Intent %q has only %d total cycles; consider running longer or adding more monitors",
				it, cycles))
		}
	}

	// Monitors with high error rates.
	names := make([]string, 0, len(s.Monitors))
	for name := range s.Monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := s.Monitors[name]
		total := m.TP + m.TN + m.FP + m.FN
		if total < 5 {
			continue
		}
		fpRate := float64(m.FP) / float64(total)
		fnRate := float64(m.FN) / float64(total)
		if fpRate > 0.2 {
			recs = append(recs, fmt.Sprintf(
				"Monitor %q has a high false positive rate (%d/%d = %.0f%%); consider stricter normalization or filtering",
				name, m.FP, total, fpRate*100))
		}
		if fnRate > 0.2 {
			recs = append(recs, fmt.Sprintf(
				"Monitor %q has a high false negative rate (%d/%d = %.0f%%); consider more sensitive extraction or shorter intervals",
				name, m.FN, total, fnRate*100))
		}
	}

	return recs
}

// Format renders the structured report as readable text.
func Format(data *Data) string {
	var b strings.Builder
	rule := strings.Repeat("=", 72)
	sep := strings.Repeat("-", 72)

	section := func(title string) {
		fmt.Fprintf(&b, "%s\n  %s\n%s\n\n", sep, title, sep)
	}

	fmt.Fprintf(&b, "%s\n  ORCHESTRATION RUN REPORT\n%s\n\n", rule, rule)
	h := data.Header
	fmt.Fprintf(&b, "  Run ID:       %s\n", h.RunID)
	fmt.Fprintf(&b, "  Mode:         %s\n", h.Mode)
	fmt.Fprintf(&b, "  Duration:     %s\n", h.Duration)
	fmt.Fprintf(&b, "  Monitors:     %d\n", h.MonitorCount)
	fmt.Fprintf(&b, "  Total Cycles: %d\n", h.TotalCycles)
	fmt.Fprintf(&b, "  Started:      %s\n", h.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  Generated:    %s\n\n", h.GeneratedAt.Format(time.RFC3339))

	section("CREATION RULES LEARNED")
	if len(data.RulesLearned) == 0 {
		b.WriteString("  No creation rules were learned during this run.\n\n")
	}
	for i, r := range data.RulesLearned {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, r.Description)
		fmt.Fprintf(&b, "      Scope:      %s\n", r.Scope)
		if r.DomainClass != "" {
			fmt.Fprintf(&b, "      Domain:     %s\n", r.DomainClass)
		}
		fmt.Fprintf(&b, "      Intent:     %s\n", r.IntentType)
		fmt.Fprintf(&b, "      Confidence: %.2f\n", r.Confidence)
		fmt.Fprintf(&b, "      Evidence:   %s\n", r.Evidence)
		fmt.Fprintf(&b, "      Impact:     %s\n\n", r.Impact)
	}

	section("EXPERIMENTS CONCLUDED")
	if len(data.Concluded) == 0 {
		b.WriteString("  No experiments reached a conclusive winner.\n\n")
	}
	for i, e := range data.Concluded {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, e.MonitorName)
		fmt.Fprintf(&b, "      Field tested:     %s\n", e.Field)
		fmt.Fprintf(&b, "      Variant A:        %s\n", e.VariantA)
		fmt.Fprintf(&b, "      Variant B:        %s\n", e.VariantB)
		fmt.Fprintf(&b, "      Winner:           %s\n", e.Winner)
		fmt.Fprintf(&b, "      Delta:            %.4f\n", e.Delta)
		fmt.Fprintf(&b, "      Positive events:  %d\n\n", e.PositiveEvents)
	}

	section("EXPERIMENTS INCONCLUSIVE")
	if len(data.Inconclusive) == 0 {
		b.WriteString("  All experiments reached conclusions.\n\n")
	}
	for i, e := range data.Inconclusive {
		reason := "No meaningful difference"
		if e.Reason == "insufficient_data" {
			reason = "Insufficient data"
		}
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, e.MonitorName)
		fmt.Fprintf(&b, "      Field tested:     %s\n", e.Field)
		fmt.Fprintf(&b, "      Variant A:        %s\n", e.VariantA)
		fmt.Fprintf(&b, "      Variant B:        %s\n", e.VariantB)
		fmt.Fprintf(&b, "      Reason:           %s\n", reason)
		fmt.Fprintf(&b, "      Positive events:  %d\n", e.PositiveEvents)
		if e.Needed != "" {
			fmt.Fprintf(&b, "      Needed:           %s\n", e.Needed)
		}
		b.WriteString("\n")
	}

	section("MONITOR SUMMARY")
	if len(data.Monitors) == 0 {
		b.WriteString("  No monitors were active during this run.\n\n")
	}
	for _, m := range data.Monitors {
		fmt.Fprintf(&b, "  %s\n", m.Name)
		fmt.Fprintf(&b, "      Intent:   %s  |  Mode: %s\n", m.IntentType, m.Mode)
		fmt.Fprintf(&b, "      Cycles:   %d\n", m.CycleCount)
		fmt.Fprintf(&b, "      Matrix:   TP=%d  TN=%d  FP=%d  FN=%d\n",
			m.Confusion["tp"], m.Confusion["tn"], m.Confusion["fp"], m.Confusion["fn"])
		fmt.Fprintf(&b, "      F1 Score: %.4f\n", m.F1Score)
		if m.AgentAccuracy != nil {
			fmt.Fprintf(&b, "      Agent Accuracy: %.4f\n", *m.AgentAccuracy)
		}
		fmt.Fprintf(&b, "      Efficacy: %.4f\n\n", m.EfficacyScore)
	}

	section("RECOMMENDATIONS FOR NEXT RUN")
	if len(data.Recommendations) == 0 {
		b.WriteString("  No specific recommendations. All experiments concluded successfully.\n\n")
	}
	for i, rec := range data.Recommendations {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, rec)
	}
	if len(data.Recommendations) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	return b.String()
}
