// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package knowledge persists learned watch-creation rules across runs. Rules
// are scoped by intent type and optionally by domain class, decay over time
// when not revalidated, and can be promoted from domain scope to intent
// scope once they hold across enough domains.
package knowledge

import (
	"time"

	"github.com/teradata-labs/vigil/pkg/intent"
)

// SchemaVersion guards knowledge-file compatibility. Files with any other
// version are ignored and the base starts empty.
const SchemaVersion = 1

// PrecedenceOrder ranks rule sources when recommendations conflict. It is
// persisted with the knowledge file so downstream consumers agree on it.
var PrecedenceOrder = []string{
	"user_override",
	"discovery_result",
	"domain_scoped_rule",
	"intent_scoped_rule",
	"global_default",
}

// RuleType drives the decay rate: structural rules (what extraction or
// engine to use) go stale fastest, domain rules slowest.
type RuleType string

const (
	RuleStructural RuleType = "structural"
	RuleHeuristic  RuleType = "heuristic"
	RuleDomain     RuleType = "domain"
)

// decayRates is the per-day confidence loss for unvalidated rules.
var decayRates = map[RuleType]float64{
	RuleStructural: 0.05,
	RuleHeuristic:  0.02,
	RuleDomain:     0.01,
}

// MinConfidence is the floor below which a decayed rule is removed.
const MinConfidence = 0.1

// Promotion thresholds: a domain-scoped rule generalizes to intent scope
// once it holds across enough distinct domains with enough positive events.
const (
	MinDomainsForPromotion        = 2
	MinPositiveEventsForPromotion = 5
	promotionDiscount             = 0.8
)

// Recommendation is the actionable part of a rule: the watch-creation
// parameters it argues for. Zero values mean "no opinion on this field".
type Recommendation struct {
	Engine              string `json:"engine,omitempty"`
	Extraction          string `json:"extraction,omitempty"`
	Selector            string `json:"selector,omitempty"`
	IntervalSecs        int    `json:"interval_secs,omitempty"`
	InstructionTemplate string `json:"instruction_template,omitempty"`
}

// Empty reports whether the recommendation sets no fields.
func (r Recommendation) Empty() bool {
	return r == Recommendation{}
}

// Rule is one learned creation rule with its provenance and evidence.
type Rule struct {
	ID          string      `json:"id"`
	IntentType  intent.Type `json:"intent_type"`
	DomainClass string      `json:"domain_class,omitempty"`
	Scope       string      `json:"scope"`

	Rule     string `json:"rule"`
	Evidence string `json:"evidence,omitempty"`

	Confidence             float64 `json:"confidence"`
	PositiveEventsObserved int     `json:"positive_events_observed"`
	AppliesTo              string  `json:"applies_to,omitempty"`

	Recommendation Recommendation `json:"recommendation"`
	SourceDomains  []string       `json:"source_domains,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	LastValidated time.Time `json:"last_validated"`
	RuleType      RuleType  `json:"rule_type"`
}

// DomainScoped reports whether the rule is bound to a specific domain class.
func (r *Rule) DomainScoped() bool { return r.DomainClass != "" }

// ScopeFor returns the scope label for a rule given its domain class.
func ScopeFor(domainClass string) string {
	if domainClass != "" {
		return "intent+domain"
	}
	return "intent"
}
