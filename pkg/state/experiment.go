// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package state

import "github.com/teradata-labs/vigil/pkg/intent"

// ExperimentStatus is the lifecycle state of an A/B experiment.
type ExperimentStatus string

const (
	ExperimentRunning          ExperimentStatus = "running"
	ExperimentConcluded        ExperimentStatus = "concluded"
	ExperimentInsufficientData ExperimentStatus = "insufficient_data"
)

// Block is one contiguous run of cycles assigned to a single variant.
type Block struct {
	Variant        string    `json:"variant"`
	StartCycle     int       `json:"start_cycle"`
	EndCycle       int       `json:"end_cycle"`
	Scores         []float64 `json:"scores"`
	PositiveEvents int       `json:"positive_events"`
	NegativeEvents int       `json:"negative_events"`
}

// Contains reports whether the cycle falls inside the block.
func (b *Block) Contains(cycle int) bool {
	return cycle >= b.StartCycle && cycle <= b.EndCycle
}

// Experiment is a time-blocked A/B comparison of one configuration field on
// one monitor. Variants alternate in fixed-size blocks of cycles so slow
// drift in the target affects both arms.
type Experiment struct {
	ID          string      `json:"id"`
	MonitorName string      `json:"monitor_name"`
	IntentType  intent.Type `json:"intent_type"`
	DomainClass string      `json:"domain_class"`

	Field    string `json:"field"`
	VariantA string `json:"variant_a"`
	VariantB string `json:"variant_b"`

	Blocks []Block `json:"blocks"`

	MinPositiveEvents int `json:"min_positive_events"`
	MinBlocks         int `json:"min_blocks"`

	StartCycle int              `json:"start_cycle"`
	Status     ExperimentStatus `json:"status"`
	Winner     string           `json:"winner,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Evidence   string           `json:"evidence,omitempty"`
}

// BlockFor returns the block covering the cycle, or nil when the cycle falls
// outside the experiment window.
func (e *Experiment) BlockFor(cycle int) *Block {
	for i := range e.Blocks {
		if e.Blocks[i].Contains(cycle) {
			return &e.Blocks[i]
		}
	}
	return nil
}

// VariantFor returns the variant value active at the cycle. The second return
// is false when the cycle is outside the experiment window.
func (e *Experiment) VariantFor(cycle int) (string, bool) {
	b := e.BlockFor(cycle)
	if b == nil {
		return "", false
	}
	if b.Variant == "A" {
		return e.VariantA, true
	}
	return e.VariantB, true
}

// LastCycle returns the final cycle of the experiment window, or 0 when no
// blocks are assigned.
func (e *Experiment) LastCycle() int {
	if len(e.Blocks) == 0 {
		return 0
	}
	return e.Blocks[len(e.Blocks)-1].EndCycle
}

// Terminal reports whether the experiment has reached a final status.
func (e *Experiment) Terminal() bool { return e.Status != ExperimentRunning }

// VariantStats aggregates recorded blocks for one variant.
type VariantStats struct {
	Scores         []float64
	PositiveEvents int
	Blocks         int
}

// Stats returns the per-variant aggregates over all blocks with recorded
// scores.
func (e *Experiment) Stats() (a, b VariantStats) {
	for i := range e.Blocks {
		blk := &e.Blocks[i]
		if len(blk.Scores) == 0 {
			continue
		}
		if blk.Variant == "A" {
			a.Scores = append(a.Scores, blk.Scores...)
			a.PositiveEvents += blk.PositiveEvents
			a.Blocks++
		} else {
			b.Scores = append(b.Scores, blk.Scores...)
			b.PositiveEvents += blk.PositiveEvents
			b.Blocks++
		}
	}
	return a, b
}
