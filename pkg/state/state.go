// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package state holds the persistent model of an orchestration run: per-monitor
// observation and evaluation history, running confusion-matrix counters, and
// active experiments. The whole run state round-trips through a single JSON
// file so interrupted runs can resume.
package state

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/vigil/pkg/intent"
)

// History caps keep the state file bounded on long runs. Oldest entries are
// dropped first.
const (
	MaxObservations = 100
	MaxEvaluations  = 100
	MaxScores       = 100
	MaxLatencies    = 50
)

// Class is the confusion-matrix classification of one evaluated cycle.
type Class string

const (
	ClassTP Class = "TP"
	ClassTN Class = "TN"
	ClassFP Class = "FP"
	ClassFN Class = "FN"
)

// Positive reports whether the classification is a positive event (a cycle
// where a change was expected or detected).
func (c Class) Positive() bool { return c == ClassTP || c == ClassFN }

// Observation is the outcome of one probe check.
type Observation struct {
	Cycle       int       `json:"cycle"`
	Timestamp   time.Time `json:"timestamp"`
	Changed     bool      `json:"changed"`
	Error       string    `json:"error,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	DiffSnippet string    `json:"diff_snippet,omitempty"`

	AgentNotified Ternary `json:"agent_notified"`
	AgentTitle    string  `json:"agent_title,omitempty"`
	AgentSummary  string  `json:"agent_summary,omitempty"`
}

// Failed reports whether the probe check itself failed.
func (o *Observation) Failed() bool { return o.Error != "" }

// Evaluation is the judged outcome of one observation.
type Evaluation struct {
	Cycle          int     `json:"cycle"`
	Classification Class   `json:"classification"`
	ExpectedChange bool    `json:"expected_change"`
	ActualChange   bool    `json:"actual_change"`
	AgentCorrect   Ternary `json:"agent_correct"`
	Reason         string  `json:"reason,omitempty"`
}

// MonitorState tracks one monitor across the run.
type MonitorState struct {
	Name        string      `json:"name"`
	WatchName   string      `json:"watch_name"`
	IntentType  intent.Type `json:"intent_type"`
	DomainClass string      `json:"domain_class"`
	Mode        intent.Mode `json:"mode"`

	CycleCount    int               `json:"cycle_count"`
	IntervalSecs  int               `json:"interval_secs"`
	LastCheckedAt time.Time         `json:"last_checked_at"`
	CurrentConfig map[string]string `json:"current_config"`

	Observations []Observation `json:"observations"`
	Evaluations  []Evaluation  `json:"evaluations"`
	Scores       []float64     `json:"scores"`

	ActiveExperimentID string `json:"active_experiment_id,omitempty"`

	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`

	AgentCorrectDecisions int `json:"agent_correct_decisions"`
	AgentTotalDecisions   int `json:"agent_total_decisions"`

	DetectionLatencies []int `json:"detection_latencies"`
	// LastTNCycle is the most recent cycle classified TN, or -1 when no TN
	// has been seen yet. Detection latency for a TP is measured from here.
	LastTNCycle int `json:"last_tn_cycle"`
}

// NewMonitorState initializes monitor state from an intent definition.
func NewMonitorState(def intent.Definition, watchName string) *MonitorState {
	return &MonitorState{
		Name:         def.Name,
		WatchName:    watchName,
		IntentType:   def.IntentType,
		DomainClass:  def.DomainClass,
		Mode:         def.Mode,
		IntervalSecs: def.IntervalSecs,
		CurrentConfig: map[string]string{
			"engine":     def.Engine,
			"extraction": def.Extraction,
		},
		LastTNCycle: -1,
	}
}

// Due reports whether the monitor's next check has come due. A monitor that
// has never been checked is always due.
func (m *MonitorState) Due(now time.Time) bool {
	if m.LastCheckedAt.IsZero() {
		return true
	}
	return !now.Before(m.LastCheckedAt.Add(time.Duration(m.IntervalSecs) * time.Second))
}

// AppendObservation records an observation, trimming history to the cap.
func (m *MonitorState) AppendObservation(o Observation) {
	m.Observations = append(m.Observations, o)
	if n := len(m.Observations); n > MaxObservations {
		m.Observations = m.Observations[n-MaxObservations:]
	}
}

// AppendEvaluation records an evaluation, trimming history to the cap.
func (m *MonitorState) AppendEvaluation(e Evaluation) {
	m.Evaluations = append(m.Evaluations, e)
	if n := len(m.Evaluations); n > MaxEvaluations {
		m.Evaluations = m.Evaluations[n-MaxEvaluations:]
	}
}

// AppendScore records a total efficacy score, trimming history to the cap.
func (m *MonitorState) AppendScore(s float64) {
	m.Scores = append(m.Scores, s)
	if n := len(m.Scores); n > MaxScores {
		m.Scores = m.Scores[n-MaxScores:]
	}
}

// RecordLatency records a detection latency in cycles, trimming to the cap.
func (m *MonitorState) RecordLatency(cycles int) {
	m.DetectionLatencies = append(m.DetectionLatencies, cycles)
	if n := len(m.DetectionLatencies); n > MaxLatencies {
		m.DetectionLatencies = m.DetectionLatencies[n-MaxLatencies:]
	}
}

// RunState is the root persistent object for one orchestration run.
type RunState struct {
	RunID         string                   `json:"run_id"`
	StartedAt     time.Time                `json:"started_at"`
	Mode          intent.Mode              `json:"mode"`
	Monitors      map[string]*MonitorState `json:"monitors"`
	Experiments   map[string]*Experiment   `json:"experiments"`
	TotalCycles   int                      `json:"total_cycles"`
	SchemaVersion int                      `json:"schema_version"`
}

// RunStateSchemaVersion guards state-file compatibility across releases.
const RunStateSchemaVersion = 1

// NewRunState creates a fresh run with a short random run id.
func NewRunState(mode intent.Mode) *RunState {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return &RunState{
		RunID:         id,
		StartedAt:     time.Now().UTC(),
		Mode:          mode,
		Monitors:      map[string]*MonitorState{},
		Experiments:   map[string]*Experiment{},
		SchemaVersion: RunStateSchemaVersion,
	}
}

// WatchName returns the probe watch name for an intent in this run. Watches
// are prefixed with the run id so concurrent or stale runs never collide.
func (s *RunState) WatchName(intentName string) string {
	return s.RunID + "_" + intentName
}

// ActiveExperiment returns the running experiment for a monitor, or nil.
func (s *RunState) ActiveExperiment(m *MonitorState) *Experiment {
	if m.ActiveExperimentID == "" {
		return nil
	}
	exp := s.Experiments[m.ActiveExperimentID]
	if exp == nil || exp.Status != ExperimentRunning {
		return nil
	}
	return exp
}

// CompletedExperiments returns all non-running experiments for a monitor.
func (s *RunState) CompletedExperiments(monitorName string) []*Experiment {
	var out []*Experiment
	for _, exp := range s.Experiments {
		if exp.MonitorName == monitorName && exp.Status != ExperimentRunning {
			out = append(out, exp)
		}
	}
	return out
}
