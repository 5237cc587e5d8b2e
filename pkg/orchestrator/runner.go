// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package orchestrator wires observe -> evaluate -> experiment -> learn.
// Each cycle applies any scheduled mutations (E2E), checks the watch through
// the probe, classifies the result, folds it into the active experiment, and
// updates the knowledge base when an experiment concludes with a winner.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/internal/log"
	"github.com/teradata-labs/vigil/pkg/config"
	"github.com/teradata-labs/vigil/pkg/efficacy"
	"github.com/teradata-labs/vigil/pkg/evaluator"
	"github.com/teradata-labs/vigil/pkg/evidence"
	"github.com/teradata-labs/vigil/pkg/experiment"
	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/state"
)

// Prober is the probe surface the runner drives.
type Prober interface {
	RunCheck(ctx context.Context, watchName string) state.Observation
	DeleteWatch(ctx context.Context, name string) error
}

// Mutator applies scheduled ground-truth mutations during E2E runs.
type Mutator interface {
	ApplyMutation(ctx context.Context, m intent.Mutation) error
}

// Runner executes cycles for the monitors of one run.
type Runner struct {
	cfg     *config.Config
	state   *state.RunState
	kb      *knowledge.Base
	prober  Prober
	mutator Mutator           // nil outside E2E mode
	archive *evidence.Archive // nil disables archiving

	intents map[string]intent.Definition
	applied map[string][]intent.Mutation

	logger *zap.Logger
}

// NewRunner builds a runner over the given run state. The mutator may be nil
// for live-only runs and the archive may be nil to disable evidence capture.
func NewRunner(cfg *config.Config, s *state.RunState, kb *knowledge.Base, prober Prober, mutator Mutator, archive *evidence.Archive, defs []intent.Definition, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	intents := make(map[string]intent.Definition, len(defs))
	for _, def := range defs {
		intents[def.Name] = def
	}

	return &Runner{
		cfg:     cfg,
		state:   s,
		kb:      kb,
		prober:  prober,
		mutator: mutator,
		archive: archive,
		intents: intents,
		applied: map[string][]intent.Mutation{},
		logger:  logger,
	}
}

// RunCycle executes one full cycle for a monitor and returns its efficacy
// score. Probe failures are data, not errors: only a missing monitor or
// intent definition fails the call.
func (r *Runner) RunCycle(ctx context.Context, monitorName string) (efficacy.Score, error) {
	monitor := r.state.Monitors[monitorName]
	if monitor == nil {
		return efficacy.Score{}, fmt.Errorf("monitor %q not found in run state", monitorName)
	}
	def, ok := r.intents[monitorName]
	if !ok {
		return efficacy.Score{}, fmt.Errorf("no intent definition for monitor %q", monitorName)
	}

	monitor.CycleCount++
	cycle := monitor.CycleCount

	if def.Mode == intent.ModeE2E && r.mutator != nil {
		r.applyDueMutations(ctx, monitorName, def, cycle)
	}

	// Resolve the active experiment before observing so the cycle is
	// attributed to the variant that was in effect. The archive gets the
	// variant value itself, not the block label.
	exp := r.state.ActiveExperiment(monitor)
	variantValue := ""
	if exp != nil {
		if v, ok := exp.VariantFor(cycle); ok {
			variantValue = v
		}
	}

	obs := r.prober.RunCheck(ctx, monitor.WatchName)
	obs.Cycle = cycle
	monitor.AppendObservation(obs)
	monitor.LastCheckedAt = obs.Timestamp

	var eval state.Evaluation
	if def.Mode == intent.ModeE2E {
		eval = evaluator.EvaluateE2E(monitor, obs, r.applied[monitorName])
	} else {
		eval = evaluator.EvaluateLive(monitor, obs)
	}
	monitor.AppendEvaluation(eval)

	// Score before folding this cycle into the counters: the score reflects
	// the monitor as it stood when the observation was made.
	score := efficacy.Compute(monitor, r.state.Mode)
	evaluator.UpdateStats(monitor, eval, score.Total)

	if exp != nil {
		r.recordExperiment(monitor, exp, cycle, score.Total, eval)
	}

	if monitor.ActiveExperimentID == "" && r.planningAllowed(monitor) {
		if next := experiment.PlanNext(monitor, r.state.CompletedExperiments(monitorName), r.logger); next != nil {
			r.state.Experiments[next.ID] = next
			monitor.ActiveExperimentID = next.ID
		}
	}

	if r.archive != nil {
		if err := r.archive.Record(ctx, monitorName, obs, eval, score.Total, variantValue); err != nil {
			r.logger.Warn("failed to archive cycle evidence",
				zap.String("monitor", monitorName),
				zap.Int("cycle", cycle),
				zap.Error(err))
		}
	}

	r.logger.Info("cycle completed",
		zap.String("monitor", monitorName),
		zap.Int("cycle", cycle),
		zap.Bool("changed", obs.Changed),
		zap.String("class", string(eval.Classification)),
		zap.Float64("score", score.Total),
		zap.Float64("f1", score.F1),
		zap.Float64("latency", score.Latency),
		zap.Float64("stability", score.Stability),
		zap.Float64("agent", score.Agent))

	r.state.TotalCycles++
	return score, nil
}

// RunAllMonitors runs one cycle for every monitor that has come due,
// returning the scores of the monitors that were checked. Monitors are
// visited in name order so rounds are deterministic.
func (r *Runner) RunAllMonitors(ctx context.Context) map[string]efficacy.Score {
	names := make([]string, 0, len(r.state.Monitors))
	for name := range r.state.Monitors {
		names = append(names, name)
	}
	sort.Strings(names)

	results := map[string]efficacy.Score{}
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if !r.state.Monitors[name].Due(time.Now().UTC()) {
			r.logger.Debug("monitor not yet due", zap.String("monitor", name))
			continue
		}

		score, err := r.RunCycle(ctx, name)
		if err != nil {
			r.logger.Error("cycle failed", zap.String("monitor", name), zap.Error(err))
			continue
		}
		results[name] = score
	}
	return results
}

// applyDueMutations posts every mutation scheduled for this cycle to the
// mutation server. Successfully applied mutations become ground truth for
// the evaluator; failed ones are logged and skipped.
func (r *Runner) applyDueMutations(ctx context.Context, monitorName string, def intent.Definition, cycle int) {
	for _, m := range def.Mutations {
		if m.Cycle != cycle {
			continue
		}
		if err := r.mutator.ApplyMutation(ctx, m); err != nil {
			r.logger.Error("failed to apply mutation",
				zap.String("monitor", monitorName),
				zap.Int("cycle", cycle),
				zap.String("field", m.Field),
				zap.Error(err))
			continue
		}
		r.applied[monitorName] = append(r.applied[monitorName], m)
		r.logger.Info("applied mutation",
			zap.String("monitor", monitorName),
			zap.Int("cycle", cycle),
			zap.String("field", m.Field),
			zap.String("value", m.Value),
			zap.Bool("expect_detection", m.ExpectDetection))
	}
}

// recordExperiment folds the evaluated cycle into the active experiment and
// tries to conclude it. A winner produces a creation rule, which is added to
// the knowledge base and persisted immediately.
func (r *Runner) recordExperiment(monitor *state.MonitorState, exp *state.Experiment, cycle int, scoreTotal float64, eval state.Evaluation) {
	experiment.Record(exp, cycle, scoreTotal, eval.Classification, r.logger)

	rule := experiment.Conclude(exp, cycle, r.logger)
	if rule != nil {
		r.kb.AddRule(rule)
		if err := r.kb.Save(); err != nil {
			r.logger.Error("failed to save knowledge base", zap.Error(err))
		}
		log.Learning("experiment concluded with winner",
			zap.String("monitor", monitor.Name),
			zap.String("experiment", exp.ID),
			zap.String("winner", exp.Winner),
			zap.String("rule", rule.ID),
			zap.Float64("confidence", rule.Confidence))
		monitor.ActiveExperimentID = ""
		return
	}

	if exp.Terminal() {
		r.logger.Info("experiment ended",
			zap.String("monitor", monitor.Name),
			zap.String("experiment", exp.ID),
			zap.String("status", string(exp.Status)),
			zap.String("evidence", exp.Evidence))
		monitor.ActiveExperimentID = ""
	}
}

// planningAllowed reports whether new experiments may be planned for the
// monitor. Live monitors under --live-validate run validation only.
func (r *Runner) planningAllowed(m *state.MonitorState) bool {
	return !(r.cfg.LiveValidate && m.Mode == intent.ModeLive)
}
