// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package efficacy scores monitors on a composite of detection quality (F1),
// detection latency against a per-intent SLA, score stability, and agent
// decision accuracy. Weight profiles differ per intent type and per mode:
// live mode has no ground truth for agent decisions, so its profiles fold
// the agent weight into F1.
package efficacy

import (
	"math"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/state"
)

// Score is the composite efficacy result for one monitor at one cycle.
type Score struct {
	Total     float64 `json:"total"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Agent     float64 `json:"agent"`
	Latency   float64 `json:"latency"`
	Stability float64 `json:"stability"`
}

// Weights is a per-intent weight profile. The four components always sum
// to 1.0.
type Weights struct {
	F1        float64
	Agent     float64
	Latency   float64
	Stability float64
}

// e2eWeights apply when ground truth is available and the agent's
// notify/suppress decisions can be judged.
var e2eWeights = map[intent.Type]Weights{
	intent.TypePrice:   {F1: 0.35, Agent: 0.20, Latency: 0.30, Stability: 0.15},
	intent.TypeStock:   {F1: 0.40, Agent: 0.25, Latency: 0.20, Stability: 0.15},
	intent.TypeRelease: {F1: 0.50, Agent: 0.20, Latency: 0.10, Stability: 0.20},
	intent.TypeNews:    {F1: 0.40, Agent: 0.25, Latency: 0.15, Stability: 0.20},
	intent.TypeGeneric: {F1: 0.45, Agent: 0.20, Latency: 0.15, Stability: 0.20},
}

// liveWeights redistribute the agent weight into F1: live runs cannot tell
// whether a notification was warranted.
var liveWeights = map[intent.Type]Weights{
	intent.TypePrice:   {F1: 0.55, Agent: 0, Latency: 0.30, Stability: 0.15},
	intent.TypeStock:   {F1: 0.65, Agent: 0, Latency: 0.20, Stability: 0.15},
	intent.TypeRelease: {F1: 0.70, Agent: 0, Latency: 0.10, Stability: 0.20},
	intent.TypeNews:    {F1: 0.65, Agent: 0, Latency: 0.15, Stability: 0.20},
	intent.TypeGeneric: {F1: 0.65, Agent: 0, Latency: 0.15, Stability: 0.20},
}

// slaCycles is the detection-latency budget per intent type, in cycles. A
// monitor averaging at or beyond its SLA scores zero on latency.
var slaCycles = map[intent.Type]int{
	intent.TypePrice:   1,
	intent.TypeStock:   2,
	intent.TypeRelease: 3,
	intent.TypeNews:    5,
	intent.TypeGeneric: 3,
}

// WeightsFor returns the weight profile for an intent type and mode. Unknown
// intent types use the generic profile.
func WeightsFor(t intent.Type, mode intent.Mode) Weights {
	table := e2eWeights
	if mode == intent.ModeLive {
		table = liveWeights
	}
	if w, ok := table[t]; ok {
		return w
	}
	return table[intent.TypeGeneric]
}

// SLAFor returns the latency SLA in cycles for an intent type.
func SLAFor(t intent.Type) int {
	if sla, ok := slaCycles[t]; ok {
		return sla
	}
	return 3
}

// Compute scores a monitor from its accumulated counters and history. The
// monitor state is not modified.
func Compute(m *state.MonitorState, mode intent.Mode) Score {
	var precision, recall, f1 float64
	if m.TP+m.FP > 0 {
		precision = float64(m.TP) / float64(m.TP+m.FP)
	}
	if m.TP+m.FN > 0 {
		recall = float64(m.TP) / float64(m.TP+m.FN)
	}
	if precision+recall > 0 {
		f1 = 2.0 * precision * recall / (precision + recall)
	}

	sla := float64(SLAFor(m.IntentType))
	avgLatency := sla
	if len(m.DetectionLatencies) > 0 {
		sum := 0
		for _, l := range m.DetectionLatencies {
			sum += l
		}
		avgLatency = float64(sum) / float64(len(m.DetectionLatencies))
	}
	latency := clamp01(1.0 - math.Min(avgLatency, sla)/sla)

	stability := Stability(m)

	var agent float64
	if mode == intent.ModeE2E && m.AgentTotalDecisions > 0 {
		agent = float64(m.AgentCorrectDecisions) / float64(m.AgentTotalDecisions)
	}

	w := WeightsFor(m.IntentType, mode)
	total := w.F1*f1 + w.Agent*agent + w.Latency*latency + w.Stability*stability

	return Score{
		Total:     total,
		F1:        f1,
		Precision: precision,
		Recall:    recall,
		Agent:     agent,
		Latency:   latency,
		Stability: stability,
	}
}

// Stability measures score consistency over the last 10 recorded scores.
// Monitors with fewer than 3 scores are assumed stable. Volatile intent
// types (price, stock) get a looser variance threshold.
func Stability(m *state.MonitorState) float64 {
	if len(m.Scores) < 3 {
		return 1.0
	}
	recent := m.Scores
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	sd := sampleStdDev(recent)

	threshold := 0.2
	if m.IntentType.Volatile() {
		threshold = 0.3
	}
	return clamp01(1.0 - math.Min(sd/threshold, 1.0))
}

// Classify maps an (expected, actual) change pair onto the confusion matrix.
func Classify(expectedChange, actualChange bool) state.Class {
	switch {
	case expectedChange && actualChange:
		return state.ClassTP
	case !expectedChange && !actualChange:
		return state.ClassTN
	case !expectedChange && actualChange:
		return state.ClassFP
	default:
		return state.ClassFN
	}
}

// sampleStdDev is the n-1 standard deviation of xs. Callers guarantee
// len(xs) >= 2.
func sampleStdDev(xs []float64) float64 {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
