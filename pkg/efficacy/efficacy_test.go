// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package efficacy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/state"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, state.ClassTP, Classify(true, true))
	assert.Equal(t, state.ClassTN, Classify(false, false))
	assert.Equal(t, state.ClassFP, Classify(false, true))
	assert.Equal(t, state.ClassFN, Classify(true, false))
}

func TestWeightsSumToOne(t *testing.T) {
	for _, typ := range []intent.Type{
		intent.TypePrice, intent.TypeStock, intent.TypeRelease,
		intent.TypeNews, intent.TypeGeneric,
	} {
		for _, mode := range []intent.Mode{intent.ModeE2E, intent.ModeLive} {
			w := WeightsFor(typ, mode)
			sum := w.F1 + w.Agent + w.Latency + w.Stability
			assert.InDelta(t, 1.0, sum, 1e-9, "%s/%s", typ, mode)
			if mode == intent.ModeLive {
				assert.Zero(t, w.Agent, "live profiles carry no agent weight")
			}
		}
	}
}

func TestWeightsForUnknownType(t *testing.T) {
	assert.Equal(t, WeightsFor(intent.TypeGeneric, intent.ModeE2E), WeightsFor("weather", intent.ModeE2E))
	assert.Equal(t, 3, SLAFor("weather"))
}

func TestComputePerfectMonitor(t *testing.T) {
	m := &state.MonitorState{
		IntentType:            intent.TypePrice,
		TP:                    4,
		TN:                    10,
		AgentCorrectDecisions: 14,
		AgentTotalDecisions:   14,
		DetectionLatencies:    nil, // no latencies: average assumed at SLA
	}
	s := Compute(m, intent.ModeE2E)
	assert.InDelta(t, 1.0, s.F1, 1e-9)
	assert.InDelta(t, 1.0, s.Precision, 1e-9)
	assert.InDelta(t, 1.0, s.Recall, 1e-9)
	assert.InDelta(t, 1.0, s.Agent, 1e-9)
	assert.InDelta(t, 0.0, s.Latency, 1e-9, "no recorded latencies scores zero")
	assert.InDelta(t, 1.0, s.Stability, 1e-9, "fewer than 3 scores assumes stable")
	// price e2e: .35*1 + .20*1 + .30*0 + .15*1
	assert.InDelta(t, 0.70, s.Total, 1e-9)
}

func TestComputeZeroHistory(t *testing.T) {
	m := &state.MonitorState{IntentType: intent.TypeGeneric}
	s := Compute(m, intent.ModeE2E)
	assert.Zero(t, s.F1)
	assert.Zero(t, s.Precision)
	assert.Zero(t, s.Recall)
	assert.Zero(t, s.Agent)
	assert.Zero(t, s.Latency)
	assert.Equal(t, 1.0, s.Stability)
	// generic e2e stability weight only: .20
	assert.InDelta(t, 0.20, s.Total, 1e-9)
}

func TestComputeLatencyWithinSLA(t *testing.T) {
	m := &state.MonitorState{
		IntentType:         intent.TypeNews, // SLA 5 cycles
		TP:                 2,
		DetectionLatencies: []int{1, 2}, // avg 1.5
	}
	s := Compute(m, intent.ModeE2E)
	assert.InDelta(t, 1.0-1.5/5.0, s.Latency, 1e-9)
}

func TestComputeLatencyBeyondSLAClampsToZero(t *testing.T) {
	m := &state.MonitorState{
		IntentType:         intent.TypePrice, // SLA 1 cycle
		TP:                 1,
		DetectionLatencies: []int{4},
	}
	s := Compute(m, intent.ModeE2E)
	assert.Zero(t, s.Latency)
}

func TestLiveModeIgnoresAgent(t *testing.T) {
	m := &state.MonitorState{
		IntentType:            intent.TypeRelease,
		TP:                    3,
		AgentCorrectDecisions: 3,
		AgentTotalDecisions:   3,
	}
	s := Compute(m, intent.ModeLive)
	assert.Zero(t, s.Agent, "agent accuracy is not judged in live mode")
}

func TestStability(t *testing.T) {
	m := &state.MonitorState{IntentType: intent.TypeRelease}

	m.Scores = []float64{0.5, 0.9}
	assert.Equal(t, 1.0, Stability(m), "fewer than 3 scores assumes stable")

	m.Scores = []float64{0.7, 0.7, 0.7, 0.7}
	assert.Equal(t, 1.0, Stability(m), "identical scores are perfectly stable")

	m.Scores = []float64{0.0, 1.0, 0.0, 1.0}
	assert.Zero(t, Stability(m), "wild swings exhaust the threshold")
}

func TestStabilityVolatileThreshold(t *testing.T) {
	scores := []float64{0.5, 0.7, 0.9} // sample stdev = 0.2

	release := &state.MonitorState{IntentType: intent.TypeRelease, Scores: scores}
	price := &state.MonitorState{IntentType: intent.TypePrice, Scores: scores}

	// Same variance is judged more harshly for calm intents.
	assert.Less(t, Stability(release), Stability(price))
}

func TestStabilityUsesLastTenScores(t *testing.T) {
	m := &state.MonitorState{IntentType: intent.TypeGeneric}
	// Old chaos followed by ten identical scores.
	m.Scores = append([]float64{0.0, 1.0, 0.0, 1.0}, make([]float64, 10)...)
	for i := 4; i < 14; i++ {
		m.Scores[i] = 0.8
	}
	assert.Equal(t, 1.0, Stability(m))
}
