// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/state"
)

func TestAssignBlocksTilesWindow(t *testing.T) {
	exp := New("price_shop", "extraction", "auto", "selector", intent.TypePrice, "ecommerce", 5, 20)

	require.NotEmpty(t, exp.Blocks)
	assert.Len(t, exp.ID, 12)
	assert.Equal(t, 5, exp.Blocks[0].StartCycle)
	assert.Equal(t, 24, exp.LastCycle())

	// Contiguous tiling, strict alternation, constant size except maybe last.
	prevEnd := 4
	for i, b := range exp.Blocks {
		assert.Equal(t, prevEnd+1, b.StartCycle, "block %d contiguous", i)
		assert.LessOrEqual(t, b.EndCycle-b.StartCycle+1, BlockSize)
		if i > 0 {
			assert.NotEqual(t, exp.Blocks[i-1].Variant, b.Variant, "blocks alternate")
		}
		if i < len(exp.Blocks)-1 {
			assert.Equal(t, BlockSize, b.EndCycle-b.StartCycle+1)
		}
		prevEnd = b.EndCycle
	}
}

func TestRecord(t *testing.T) {
	exp := New("price_shop", "extraction", "auto", "selector", intent.TypePrice, "ecommerce", 1, 6)

	Record(exp, 2, 0.8, state.ClassTP, nil)
	Record(exp, 2, 0.7, state.ClassTN, nil)
	Record(exp, 99, 0.9, state.ClassTP, nil) // outside window: dropped

	b := exp.BlockFor(2)
	require.NotNil(t, b)
	assert.Equal(t, []float64{0.8, 0.7}, b.Scores)
	assert.Equal(t, 1, b.PositiveEvents)
	assert.Equal(t, 1, b.NegativeEvents)

	total := 0
	for _, blk := range exp.Blocks {
		total += len(blk.Scores)
	}
	assert.Equal(t, 2, total)
}

// fill distributes per-variant scores and positive events evenly across the
// experiment's blocks.
func fill(exp *state.Experiment, scoreA, scoreB float64, posPerBlock int) {
	for i := range exp.Blocks {
		b := &exp.Blocks[i]
		score := scoreA
		if b.Variant == "B" {
			score = scoreB
		}
		for c := b.StartCycle; c <= b.EndCycle; c++ {
			b.Scores = append(b.Scores, score)
		}
		b.PositiveEvents += posPerBlock
	}
}

func TestConcludeKeepsRunningMidWindow(t *testing.T) {
	exp := New("price_shop", "extraction", "auto", "selector", intent.TypePrice, "ecommerce", 1, 20)

	Record(exp, 1, 0.5, state.ClassTN, nil)
	rule := Conclude(exp, 1, nil)

	assert.Nil(t, rule)
	assert.Equal(t, state.ExperimentRunning, exp.Status, "data-poor experiments keep running until the window closes")
}

func TestConcludeInsufficientData(t *testing.T) {
	// 6-cycle window: one block per variant, one TP each.
	exp := New("price_shop", "extraction", "auto", "selector", intent.TypePrice, "ecommerce", 1, 6)
	fill(exp, 0.5, 0.6, 1)

	rule := Conclude(exp, exp.LastCycle(), nil)
	assert.Nil(t, rule)
	assert.Equal(t, state.ExperimentInsufficientData, exp.Status)
	assert.Contains(t, exp.Evidence, "insufficient positive events")
}

func TestConcludeNoMeaningfulDifference(t *testing.T) {
	exp := New("price_shop", "extraction", "auto", "selector", intent.TypePrice, "ecommerce", 1, 24)
	fill(exp, 0.52, 0.50, 2) // 4 blocks/variant, 8 positives/variant, delta 0.02

	rule := Conclude(exp, 10, nil)
	assert.Nil(t, rule)
	assert.Equal(t, state.ExperimentConcluded, exp.Status)
	assert.Empty(t, exp.Winner)
	assert.Contains(t, exp.Evidence, "no meaningful difference")
}

func TestConcludeWinner(t *testing.T) {
	exp := New("price_shop", "extraction", "auto", "selector", intent.TypePrice, "ecommerce", 1, 24)
	fill(exp, 0.50, 0.70, 2)

	rule := Conclude(exp, 12, nil)
	require.NotNil(t, rule)

	assert.Equal(t, state.ExperimentConcluded, exp.Status)
	assert.Equal(t, "selector", exp.Winner)
	assert.InDelta(t, 0.50, exp.Confidence, 1e-9, "confidence = min(0.90, 0.20*2.5)")

	assert.Equal(t, intent.TypePrice, rule.IntentType)
	assert.Equal(t, "ecommerce", rule.DomainClass)
	assert.Equal(t, "intent+domain", rule.Scope)
	assert.Equal(t, "selector", rule.Recommendation.Extraction)
	assert.Empty(t, rule.Recommendation.Engine, "recommendation sets only the field under test")
	assert.Equal(t, 16, rule.PositiveEventsObserved)
	assert.Equal(t, []string{"ecommerce"}, rule.SourceDomains)
	assert.Contains(t, rule.Evidence, "delta=0.200")
}

func TestConcludeTieGoesToVariantA(t *testing.T) {
	exp := New("price_shop", "interval_secs", "300", "150", intent.TypePrice, "ecommerce", 1, 24)
	fill(exp, 0.80, 0.60, 2)

	rule := Conclude(exp, 12, nil)
	require.NotNil(t, rule)
	assert.Equal(t, "300", exp.Winner)
	assert.Equal(t, 300, rule.Recommendation.IntervalSecs)
}

func TestConcludeConfidenceCap(t *testing.T) {
	exp := New("price_shop", "engine", "http", "playwright", intent.TypePrice, "ecommerce", 1, 24)
	fill(exp, 0.10, 0.90, 2) // delta 0.80 would give 2.0 uncapped

	rule := Conclude(exp, 12, nil)
	require.NotNil(t, rule)
	assert.InDelta(t, MaxConfidence, exp.Confidence, 1e-9)
	assert.Equal(t, "playwright", rule.Recommendation.Engine)
}

func TestConcludePlaceholderDomainEmitsIntentScopedRule(t *testing.T) {
	exp := New("generic_watch", "extraction", "auto", "selector", intent.TypeGeneric, "unknown", 1, 24)
	fill(exp, 0.30, 0.70, 2)

	rule := Conclude(exp, 12, nil)
	require.NotNil(t, rule)
	assert.Empty(t, rule.DomainClass)
	assert.Equal(t, "intent", rule.Scope)
	assert.Empty(t, rule.SourceDomains)
}

func TestConcludeDerivesScopeFromNameWhenUnset(t *testing.T) {
	exp := New("stock-vendor-gpu", "extraction", "auto", "selector", "", "", 1, 24)
	fill(exp, 0.30, 0.70, 2)

	rule := Conclude(exp, 12, nil)
	require.NotNil(t, rule)
	assert.Equal(t, intent.TypeStock, rule.IntentType)
	assert.Equal(t, "vendor", rule.DomainClass)
}

func TestPlanNextFieldPriority(t *testing.T) {
	m := &state.MonitorState{
		Name:         "price_shop",
		IntentType:   intent.TypePrice,
		DomainClass:  "ecommerce",
		IntervalSecs: 300,
		CycleCount:   1,
		CurrentConfig: map[string]string{
			"extraction": "auto",
			"engine":     "http",
		},
	}

	exp := PlanNext(m, nil, nil)
	require.NotNil(t, exp)
	assert.Equal(t, "extraction", exp.Field)
	assert.Equal(t, "auto", exp.VariantA)
	assert.Equal(t, "selector", exp.VariantB)
	assert.Equal(t, 2, exp.StartCycle, "experiment window starts at the next cycle")
	assert.Equal(t, intent.TypePrice, exp.IntentType)

	// extraction already tested: move on to engine.
	done := []*state.Experiment{{Field: "extraction", Status: state.ExperimentConcluded}}
	exp = PlanNext(m, done, nil)
	require.NotNil(t, exp)
	assert.Equal(t, "engine", exp.Field)

	// Volatile intent halves the interval.
	done = append(done,
		&state.Experiment{Field: "engine", Status: state.ExperimentInsufficientData})
	exp = PlanNext(m, done, nil)
	require.NotNil(t, exp)
	assert.Equal(t, "interval_secs", exp.Field)
	assert.Equal(t, "300", exp.VariantA)
	assert.Equal(t, "150", exp.VariantB)

	// instructions has no generic alternative: everything exhausted.
	done = append(done,
		&state.Experiment{Field: "interval_secs", Status: state.ExperimentConcluded})
	assert.Nil(t, PlanNext(m, done, nil))
}

func TestGenerateVariantB(t *testing.T) {
	assert.Equal(t, "selector", GenerateVariantB("extraction", "auto", intent.TypePrice))
	assert.Equal(t, "auto", GenerateVariantB("extraction", "selector", intent.TypePrice))
	assert.Equal(t, "auto", GenerateVariantB("extraction", "json_ld", intent.TypePrice))

	assert.Equal(t, "playwright", GenerateVariantB("engine", "http", intent.TypeNews))
	assert.Equal(t, "http", GenerateVariantB("engine", "playwright", intent.TypeNews))
	assert.Equal(t, "http", GenerateVariantB("engine", "rss", intent.TypeNews))

	assert.Equal(t, "60", GenerateVariantB("interval_secs", "100", intent.TypeStock), "halving floors at 60")
	assert.Equal(t, "1800", GenerateVariantB("interval_secs", "900", intent.TypeNews), "calm intents double")
	assert.Empty(t, GenerateVariantB("interval_secs", "soon", intent.TypeNews))

	assert.Empty(t, GenerateVariantB("instructions", "watch for releases", intent.TypeRelease))
}

func TestDeriveScope(t *testing.T) {
	typ, domain := DeriveScope("price-shop-eu")
	assert.Equal(t, intent.TypePrice, typ)
	assert.Equal(t, "shop", domain)

	typ, domain = DeriveScope("release_vendor")
	assert.Equal(t, intent.TypeRelease, typ)
	assert.Equal(t, "vendor", domain)

	typ, domain = DeriveScope("mystery")
	assert.Equal(t, intent.TypeGeneric, typ)
	assert.Equal(t, "mystery", domain)

	typ, domain = DeriveScope("news")
	assert.Equal(t, intent.TypeNews, typ)
	assert.Empty(t, domain)
}
