// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/report"
	"github.com/teradata-labs/vigil/pkg/state"
)

// Run drives rounds of checks until the configured duration elapses or the
// context is cancelled. State is saved periodically so an interrupted run
// can resume. The current round always completes before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	end := time.Now().Add(r.cfg.Duration())
	sleepInterval := r.minInterval()
	lastSave := time.Now()

	r.logger.Info("main loop started",
		zap.Float64("duration_hours", r.cfg.DurationHours),
		zap.Duration("sleep_interval", sleepInterval),
		zap.Int("monitors", len(r.state.Monitors)))

	for time.Now().Before(end) && ctx.Err() == nil {
		roundStart := time.Now()

		results := r.RunAllMonitors(ctx)
		if len(results) == 0 {
			r.logger.Debug("no monitors due this round", zap.Int("total_cycles", r.state.TotalCycles))
		}

		if time.Since(lastSave) >= r.cfg.SaveInterval {
			if err := state.Save(r.state, r.cfg.StatePath()); err != nil {
				r.logger.Error("periodic state save failed", zap.Error(err))
			}
			lastSave = time.Now()
		}

		r.sleepUntilNextRound(ctx, roundStart, sleepInterval, end)
	}

	if ctx.Err() != nil {
		r.logger.Info("shutdown requested, finishing run")
	}
	return nil
}

// Finalize persists everything, promotes well-supported rules, writes the
// run report, and (unless resuming) deletes the run's watches. Returns the
// rendered report text.
func (r *Runner) Finalize(ctx context.Context) (string, error) {
	if err := state.Save(r.state, r.cfg.StatePath()); err != nil {
		return "", fmt.Errorf("saving final state: %w", err)
	}
	r.logger.Info("final state saved",
		zap.String("path", r.cfg.StatePath()),
		zap.Int("total_cycles", r.state.TotalCycles))

	r.promoteRules()

	if err := r.kb.Save(); err != nil {
		return "", fmt.Errorf("saving knowledge base: %w", err)
	}
	r.logger.Info("knowledge base saved", zap.Int("rules", r.kb.Len()))

	var archived map[string]int
	if r.archive != nil {
		counts, err := r.archive.CountByMonitor(ctx)
		if err != nil {
			r.logger.Warn("failed to read archive counts", zap.Error(err))
		} else {
			archived = counts
		}
	}

	text, err := report.Generate(r.state, r.kb, archived, r.cfg.ReportDir(), r.logger)
	if err != nil {
		return "", fmt.Errorf("generating report: %w", err)
	}

	if !r.cfg.Resume {
		r.cleanupWatches(ctx)
	} else {
		r.logger.Info("resume mode, watches preserved for inspection")
	}

	return text, nil
}

// promoteRules generalizes domain-scoped rules that hold across enough
// domains to intent scope.
func (r *Runner) promoteRules() {
	// Snapshot first: promotion appends to the backing slice.
	rules := append([]*knowledge.Rule(nil), r.kb.Rules()...)
	for _, rule := range rules {
		if !rule.DomainScoped() {
			continue
		}
		if promoted := r.kb.TryPromote(rule); promoted != nil {
			r.logger.Info("rule promoted to intent scope",
				zap.String("from", rule.ID),
				zap.String("to", promoted.ID))
		}
	}
}

// cleanupWatches deletes every watch this run created in the probe.
func (r *Runner) cleanupWatches(ctx context.Context) {
	for _, monitor := range r.state.Monitors {
		if err := r.prober.DeleteWatch(ctx, monitor.WatchName); err != nil {
			r.logger.Warn("failed to delete watch",
				zap.String("watch", monitor.WatchName),
				zap.Error(err))
		}
	}
}

// sleepUntilNextRound waits out the remainder of the round in one-second
// slices so cancellation and the end of the run are noticed promptly.
func (r *Runner) sleepUntilNextRound(ctx context.Context, roundStart time.Time, interval time.Duration, end time.Time) {
	deadline := roundStart.Add(interval)
	if deadline.After(end) {
		deadline = end
	}
	for time.Now().Before(deadline) && ctx.Err() == nil {
		remaining := time.Until(deadline)
		if remaining > time.Second {
			remaining = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(remaining):
		}
	}
}

// minInterval is the shortest monitor check interval, which paces the main
// loop. Defaults to a minute when no monitor declares an interval.
func (r *Runner) minInterval() time.Duration {
	min := 0
	for _, m := range r.state.Monitors {
		if m.IntervalSecs > 0 && (min == 0 || m.IntervalSecs < min) {
			min = m.IntervalSecs
		}
	}
	if min == 0 {
		min = 60
	}
	return time.Duration(min) * time.Second
}
