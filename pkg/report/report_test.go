// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/state"
)

func sampleRun(t *testing.T) (*state.RunState, *knowledge.Base) {
	t.Helper()

	s := state.NewRunState(intent.ModeE2E)
	s.StartedAt = time.Now().UTC().Add(-90 * time.Minute)
	s.TotalCycles = 42

	m := state.NewMonitorState(intent.Definition{
		Name:        "price_watch",
		IntentType:  intent.TypePrice,
		DomainClass: "ecommerce",
		Mode:        intent.ModeE2E,
		Engine:      "http",
		Extraction:  "auto",
	}, s.WatchName("price_watch"))
	m.CycleCount = 42
	m.TP, m.TN, m.FP, m.FN = 6, 30, 4, 2
	m.AgentCorrectDecisions, m.AgentTotalDecisions = 30, 38
	m.AppendScore(0.81)
	s.Monitors[m.Name] = m

	winner := &state.Experiment{
		ID: "exp000000001", MonitorName: "price_watch",
		Field: "extraction", VariantA: "auto", VariantB: "selector",
		Status: state.ExperimentConcluded, Winner: "selector",
		MinPositiveEvents: 5, MinBlocks: 4,
		Blocks: []state.Block{
			{Variant: "A", StartCycle: 1, EndCycle: 3, Scores: []float64{0.5, 0.5}, PositiveEvents: 6},
			{Variant: "B", StartCycle: 4, EndCycle: 6, Scores: []float64{0.7, 0.7}, PositiveEvents: 6},
		},
		Evidence: "A/B experiment on extraction",
	}
	s.Experiments[winner.ID] = winner

	starved := &state.Experiment{
		ID: "exp000000002", MonitorName: "price_watch",
		Field: "engine", VariantA: "http", VariantB: "playwright",
		Status:            state.ExperimentInsufficientData,
		MinPositiveEvents: 5, MinBlocks: 4,
		Blocks: []state.Block{
			{Variant: "A", StartCycle: 7, EndCycle: 9, Scores: []float64{0.6}, PositiveEvents: 1},
			{Variant: "B", StartCycle: 10, EndCycle: 12, Scores: []float64{0.6}, PositiveEvents: 2},
		},
	}
	s.Experiments[starved.ID] = starved

	running := &state.Experiment{
		ID: "exp000000003", MonitorName: "price_watch",
		Field: "interval_secs", VariantA: "300", VariantB: "150",
		Status: state.ExperimentRunning,
	}
	s.Experiments[running.ID] = running

	kb := knowledge.New(filepath.Join(t.TempDir(), "knowledge.json"), nil)
	kb.AddRule(&knowledge.Rule{
		IntentType:     intent.TypePrice,
		DomainClass:    "ecommerce",
		Rule:           `Use extraction="selector" for price monitors`,
		Evidence:       "A/B experiment on extraction",
		Confidence:     0.5,
		Recommendation: knowledge.Recommendation{Extraction: "selector"},
		RuleType:       knowledge.RuleHeuristic,
	})
	return s, kb
}

func TestBuild(t *testing.T) {
	s, kb := sampleRun(t)
	data := Build(s, kb, map[string]int{"price_watch": 42})

	assert.Equal(t, s.RunID, data.Header.RunID)
	assert.Equal(t, "e2e", data.Header.Mode)
	assert.Equal(t, 42, data.Header.TotalCycles)
	assert.Contains(t, data.Header.Duration, "1h 30m")

	require.Len(t, data.RulesLearned, 1)
	r := data.RulesLearned[0]
	assert.Equal(t, "intent+domain", r.Scope)
	assert.Contains(t, r.Impact, "price+ecommerce")
	assert.Contains(t, r.Impact, "extraction=selector")

	require.Len(t, data.Concluded, 1)
	assert.Equal(t, "selector", data.Concluded[0].Winner)
	assert.InDelta(t, 0.2, data.Concluded[0].Delta, 1e-9)
	assert.Equal(t, 12, data.Concluded[0].PositiveEvents)

	require.Len(t, data.Inconclusive, 1, "running experiments are omitted")
	inc := data.Inconclusive[0]
	assert.Equal(t, "insufficient_data", inc.Reason)
	assert.Contains(t, inc.Needed, `4 more positive events for variant A ("http")`)
	assert.Contains(t, inc.Needed, `3 more positive events for variant B ("playwright")`)
	assert.Contains(t, inc.Needed, "more blocks")

	require.Len(t, data.Monitors, 1)
	mon := data.Monitors[0]
	assert.Equal(t, 42, mon.ArchivedCycles)
	assert.InDelta(t, 0.6667, mon.F1Score, 1e-3)
	require.NotNil(t, mon.AgentAccuracy)
	assert.InDelta(t, 30.0/38.0, *mon.AgentAccuracy, 1e-9)
	assert.InDelta(t, 0.81, mon.EfficacyScore, 1e-9)

	assert.Equal(t, 1, data.Knowledge.TotalRules)
}

func TestRecommendations(t *testing.T) {
	s, kb := sampleRun(t)
	data := Build(s, kb, nil)

	joined := ""
	for _, rec := range data.Recommendations {
		joined += rec + "\n"
	}
	assert.Contains(t, joined, "Add more price mutations to the E2E harness for engine comparison")
	assert.Contains(t, joined, "Run live validation to confirm E2E-learned rules")
	assert.NotContains(t, joined, "false positive rate", "FP rate 4/42 is below the 20% threshold")
}

func TestHighErrorRateRecommendations(t *testing.T) {
	s := state.NewRunState(intent.ModeLive)
	m := state.NewMonitorState(intent.Definition{
		Name: "flaky", IntentType: intent.TypeNews, Mode: intent.ModeLive,
	}, "run_flaky")
	m.TP, m.TN, m.FP, m.FN = 1, 3, 3, 3
	s.Monitors["flaky"] = m

	kb := knowledge.New(filepath.Join(t.TempDir(), "knowledge.json"), nil)
	data := Build(s, kb, nil)

	joined := ""
	for _, rec := range data.Recommendations {
		joined += rec + "\n"
	}
	assert.Contains(t, joined, "high false positive rate")
	assert.Contains(t, joined, "high false negative rate")
	assert.Contains(t, joined, `Intent "news" has only`)
	assert.NotContains(t, joined, "live validation", "live runs do not re-recommend live validation")
}

func TestGenerateWritesBothFiles(t *testing.T) {
	s, kb := sampleRun(t)
	dir := t.TempDir()

	text, err := Generate(s, kb, nil, dir, nil)
	require.NoError(t, err)

	assert.Contains(t, text, "ORCHESTRATION RUN REPORT")
	assert.Contains(t, text, "CREATION RULES LEARNED")
	assert.Contains(t, text, "Winner:           selector")
	assert.Contains(t, text, "Insufficient data")
	assert.Contains(t, text, "price_watch")

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var back Data
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, s.RunID, back.Header.RunID)

	txt, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, text, string(txt))
}
