// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package experiment runs time-blocked A/B comparisons of single watch
// configuration fields. Variants alternate in pre-assigned blocks of cycles
// so slow drift in the target hits both arms; conclusions require minimum
// positive events and block counts per variant before a winner is declared.
package experiment

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/knowledge"
	"github.com/teradata-labs/vigil/pkg/state"
)

// Experiment protocol constants.
const (
	BlockSize          = 3
	DefaultTotalCycles = 20

	MinPositiveEventsPerVariant = 5
	MinBlocksPerVariant         = 4

	DeltaThreshold       = 0.10
	MaxConfidence        = 0.90
	ConfidenceMultiplier = 2.5
)

// Fields lists the configuration fields experiments may vary, in planning
// priority order.
var Fields = []string{"extraction", "engine", "interval_secs", "instructions"}

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// New creates a running experiment with blocks pre-assigned over
// [startCycle, startCycle+totalCycles). Which variant goes first is chosen
// uniformly at random; blocks then alternate strictly.
func New(monitorName, field, variantA, variantB string, intentType intent.Type, domainClass string, startCycle, totalCycles int) *state.Experiment {
	exp := &state.Experiment{
		ID:                strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		MonitorName:       monitorName,
		IntentType:        intentType,
		DomainClass:       domainClass,
		Field:             field,
		VariantA:          variantA,
		VariantB:          variantB,
		MinPositiveEvents: MinPositiveEventsPerVariant,
		MinBlocks:         MinBlocksPerVariant,
		StartCycle:        startCycle,
		Status:            state.ExperimentRunning,
	}
	AssignBlocks(exp, totalCycles, BlockSize)
	return exp
}

// AssignBlocks pre-materializes the experiment's block schedule. The blocks
// tile [exp.StartCycle, exp.StartCycle+totalCycles) contiguously; the last
// block may be shorter than blockSize.
func AssignBlocks(exp *state.Experiment, totalCycles, blockSize int) {
	variants := [2]string{"A", "B"}
	if rng.Float64() < 0.5 {
		variants[0], variants[1] = variants[1], variants[0]
	}

	exp.Blocks = exp.Blocks[:0]
	last := exp.StartCycle + totalCycles - 1
	for i, cycle := 0, exp.StartCycle; cycle <= last; i++ {
		end := cycle + blockSize - 1
		if end > last {
			end = last
		}
		exp.Blocks = append(exp.Blocks, state.Block{
			Variant:    variants[i%2],
			StartCycle: cycle,
			EndCycle:   end,
		})
		cycle = end + 1
	}
}

// Record folds one evaluated cycle into the block covering it. Cycles
// outside the experiment window are dropped.
func Record(exp *state.Experiment, cycle int, score float64, class state.Class, logger *zap.Logger) {
	b := exp.BlockFor(cycle)
	if b == nil {
		if logger != nil {
			logger.Warn("no experiment block for cycle, observation dropped",
				zap.String("experiment", exp.ID),
				zap.Int("cycle", cycle))
		}
		return
	}

	b.Scores = append(b.Scores, score)
	switch class {
	case state.ClassTP:
		b.PositiveEvents++
	case state.ClassTN:
		b.NegativeEvents++
	}
}

// Conclude attempts to finish the experiment at the given cycle.
//
// With too few positive events or blocks per variant the experiment keeps
// running until its window is exhausted, at which point it is marked
// insufficient_data. Once minimums are met, a score delta below the
// threshold concludes with no winner; otherwise the higher-mean variant
// wins and a creation rule is returned for the knowledge base.
func Conclude(exp *state.Experiment, cycle int, logger *zap.Logger) *knowledge.Rule {
	if logger == nil {
		logger = zap.NewNop()
	}

	a, b := exp.Stats()

	if a.PositiveEvents < exp.MinPositiveEvents || b.PositiveEvents < exp.MinPositiveEvents {
		if cycle >= exp.LastCycle() {
			exp.Status = state.ExperimentInsufficientData
			exp.Evidence = fmt.Sprintf(
				"insufficient positive events: A=%d, B=%d, need %d each",
				a.PositiveEvents, b.PositiveEvents, exp.MinPositiveEvents)
			logger.Info("experiment ended with insufficient positive events",
				zap.String("experiment", exp.ID),
				zap.Int("pos_a", a.PositiveEvents),
				zap.Int("pos_b", b.PositiveEvents))
		}
		return nil
	}

	if a.Blocks < exp.MinBlocks || b.Blocks < exp.MinBlocks {
		if cycle >= exp.LastCycle() {
			exp.Status = state.ExperimentInsufficientData
			exp.Evidence = fmt.Sprintf(
				"insufficient blocks: A=%d, B=%d, need %d each",
				a.Blocks, b.Blocks, exp.MinBlocks)
			logger.Info("experiment ended with insufficient blocks",
				zap.String("experiment", exp.ID),
				zap.Int("blocks_a", a.Blocks),
				zap.Int("blocks_b", b.Blocks))
		}
		return nil
	}

	meanA := mean(a.Scores)
	meanB := mean(b.Scores)
	delta := meanA - meanB
	if delta < 0 {
		delta = -delta
	}

	if delta < DeltaThreshold {
		exp.Status = state.ExperimentConcluded
		exp.Evidence = fmt.Sprintf(
			"no meaningful difference: mean_a=%.3f, mean_b=%.3f, delta=%.3f < threshold=%.2f",
			meanA, meanB, delta, DeltaThreshold)
		logger.Info("experiment concluded with no meaningful difference",
			zap.String("experiment", exp.ID),
			zap.Float64("delta", delta))
		return nil
	}

	winner := exp.VariantA
	if meanB > meanA {
		winner = exp.VariantB
	}
	confidence := delta * ConfidenceMultiplier
	if confidence > MaxConfidence {
		confidence = MaxConfidence
	}

	exp.Status = state.ExperimentConcluded
	exp.Winner = winner
	exp.Confidence = confidence

	intentType, domainClass := exp.IntentType, exp.DomainClass
	if intentType == "" {
		intentType, domainClass = DeriveScope(exp.MonitorName)
	}
	if domainClass == "unknown" {
		// Placeholder domain; the rule applies at intent scope.
		domainClass = ""
	}

	evidence := fmt.Sprintf(
		"A/B experiment on %s: variant_a=%q (mean=%.3f, blocks=%d, pos=%d) vs "+
			"variant_b=%q (mean=%.3f, blocks=%d, pos=%d). Winner=%q with delta=%.3f, confidence=%.2f.",
		exp.Field,
		exp.VariantA, meanA, a.Blocks, a.PositiveEvents,
		exp.VariantB, meanB, b.Blocks, b.PositiveEvents,
		winner, delta, confidence)
	exp.Evidence = evidence

	var rec knowledge.Recommendation
	switch exp.Field {
	case "extraction":
		rec.Extraction = winner
	case "engine":
		rec.Engine = winner
	case "interval_secs":
		if secs, err := strconv.Atoi(winner); err == nil {
			rec.IntervalSecs = secs
		}
	case "instructions":
		rec.InstructionTemplate = winner
	}

	var sourceDomains []string
	if domainClass != "" {
		sourceDomains = []string{domainClass}
	}

	now := time.Now().UTC()
	rule := &knowledge.Rule{
		ID:                     strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		IntentType:             intentType,
		DomainClass:            domainClass,
		Scope:                  knowledge.ScopeFor(domainClass),
		Rule:                   fmt.Sprintf("Use %s=%q for %s monitors", exp.Field, winner, intentType),
		Evidence:               evidence,
		Confidence:             confidence,
		PositiveEventsObserved: a.PositiveEvents + b.PositiveEvents,
		AppliesTo:              "creation",
		Recommendation:         rec,
		SourceDomains:          sourceDomains,
		CreatedAt:              now,
		LastValidated:          now,
		RuleType:               knowledge.RuleHeuristic,
	}

	logger.Info("experiment concluded with winner",
		zap.String("experiment", exp.ID),
		zap.String("winner", winner),
		zap.Float64("confidence", confidence),
		zap.String("rule", rule.ID))
	return rule
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
