// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package evaluator classifies probe observations into the confusion matrix.
// E2E evaluation is deterministic: the mutation schedule is ground truth.
// Live evaluation is heuristic: detected changes are assumed genuine.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/teradata-labs/vigil/pkg/efficacy"
	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/state"
)

// EvaluateE2E judges one observation against the mutations applied so far.
//
// A change is expected when the most recent detection-triggering mutation
// landed this cycle or the previous one; older mutations should already have
// been detected. Probe errors never count as detected changes.
func EvaluateE2E(m *state.MonitorState, obs state.Observation, applied []intent.Mutation) state.Evaluation {
	cycle := m.CycleCount

	var trigger *intent.Mutation
	for i := range applied {
		mu := &applied[i]
		if !mu.ExpectDetection || mu.Cycle > cycle {
			continue
		}
		if trigger == nil || mu.Cycle > trigger.Cycle {
			trigger = mu
		}
	}
	expected := trigger != nil && trigger.Cycle >= cycle-1

	actual := obs.Changed && !obs.Failed()
	class := efficacy.Classify(expected, actual)

	agentCorrect := state.Unknown
	if obs.AgentNotified.Known() {
		switch class {
		case state.ClassTP:
			agentCorrect = state.TernaryOf(obs.AgentNotified == state.True)
		case state.ClassTN, state.ClassFP:
			agentCorrect = state.TernaryOf(obs.AgentNotified == state.False)
		case state.ClassFN:
			// Change was missed entirely; the agent never saw it.
		}
	}

	var parts []string
	if expected {
		desc := trigger.Description
		if desc == "" {
			desc = trigger.Field
		}
		parts = append(parts,
			fmt.Sprintf("mutation %q applied at cycle %d", desc, trigger.Cycle),
			"change expected")
	} else {
		parts = append(parts, "no change expected")
	}
	switch {
	case actual:
		parts = append(parts, "change detected")
	case obs.Failed():
		parts = append(parts, "error: "+obs.Error)
	default:
		parts = append(parts, "no change detected")
	}
	parts = append(parts, "classification="+string(class))
	if agentCorrect.Known() {
		decision := "suppressed"
		if obs.AgentNotified == state.True {
			decision = "notified"
		}
		verdict := "incorrect"
		if agentCorrect == state.True {
			verdict = "correct"
		}
		parts = append(parts, fmt.Sprintf("agent %s (%s)", decision, verdict))
	}

	return state.Evaluation{
		Cycle:          cycle,
		Classification: class,
		ExpectedChange: expected,
		ActualChange:   actual,
		AgentCorrect:   agentCorrect,
		Reason:         strings.Join(parts, "; "),
	}
}

// EvaluateLive judges one observation without ground truth. Detected changes
// are assumed true positives, quiet cycles true negatives, and errors count
// as true negatives. Agent correctness is self-confirming in live mode and
// is left unknown.
func EvaluateLive(m *state.MonitorState, obs state.Observation) state.Evaluation {
	var class state.Class
	var reason string
	switch {
	case obs.Failed():
		class = state.ClassTN
		reason = fmt.Sprintf("error during check (%s); treated as TN", obs.Error)
	case obs.Changed:
		class = state.ClassTP
		reason = "change detected in live mode; assumed TP (no ground truth)"
	default:
		class = state.ClassTN
		reason = "no change detected in live mode; assumed TN"
	}

	return state.Evaluation{
		Cycle:          m.CycleCount,
		Classification: class,
		ExpectedChange: false,
		ActualChange:   obs.Changed && !obs.Failed(),
		AgentCorrect:   state.Unknown,
		Reason:         reason,
	}
}

// UpdateStats folds one evaluated cycle into the monitor's counters: the
// confusion matrix, agent accuracy, the score history, and (for TPs) the
// detection latency measured from the last TN cycle.
func UpdateStats(m *state.MonitorState, eval state.Evaluation, scoreTotal float64) {
	switch eval.Classification {
	case state.ClassTP:
		m.TP++
	case state.ClassTN:
		m.TN++
	case state.ClassFP:
		m.FP++
	case state.ClassFN:
		m.FN++
	}

	if eval.AgentCorrect.Known() {
		m.AgentTotalDecisions++
		if eval.AgentCorrect == state.True {
			m.AgentCorrectDecisions++
		}
	}

	m.AppendScore(scoreTotal)

	if eval.Classification == state.ClassTP {
		latency := 1
		if m.LastTNCycle >= 0 {
			if d := m.CycleCount - m.LastTNCycle; d >= 0 {
				latency = d
			}
		}
		m.RecordLatency(latency)
	}
	if eval.Classification == state.ClassTN {
		m.LastTNCycle = m.CycleCount
	}
}
