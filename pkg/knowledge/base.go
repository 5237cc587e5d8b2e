// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/vigil/pkg/intent"
	"github.com/teradata-labs/vigil/pkg/state"
)

// file is the on-disk shape of a knowledge base.
type file struct {
	SchemaVersion int      `json:"schema_version"`
	Rules         []*Rule  `json:"rules"`
	Precedence    []string `json:"precedence"`
}

// Base is the in-memory knowledge base bound to one file path.
type Base struct {
	path   string
	rules  []*Rule
	logger *zap.Logger
}

// New creates an empty knowledge base bound to path. Call Load to pull in
// any previously saved rules.
func New(path string, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{path: path, logger: logger}
}

// Load reads the knowledge file. A missing file, unreadable file, or
// unknown schema version leaves the base empty and returns false; corrupt
// knowledge must never abort a run.
func (b *Base) Load() bool {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("failed to read knowledge file", zap.String("path", b.path), zap.Error(err))
		}
		return false
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		b.logger.Warn("failed to parse knowledge file", zap.String("path", b.path), zap.Error(err))
		return false
	}
	if f.SchemaVersion != SchemaVersion {
		b.logger.Warn("unknown knowledge schema version, starting empty",
			zap.Int("found", f.SchemaVersion),
			zap.Int("want", SchemaVersion))
		return false
	}

	b.rules = f.Rules
	b.logger.Info("loaded knowledge base", zap.Int("rules", len(b.rules)), zap.String("path", b.path))
	return true
}

// Save writes the knowledge base atomically.
func (b *Base) Save() error {
	data, err := json.MarshalIndent(file{
		SchemaVersion: SchemaVersion,
		Rules:         b.rules,
		Precedence:    PrecedenceOrder,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding knowledge base: %w", err)
	}
	if err := state.WriteFileAtomic(b.path, append(data, '\n')); err != nil {
		return fmt.Errorf("writing knowledge base: %w", err)
	}
	b.logger.Debug("saved knowledge base", zap.Int("rules", len(b.rules)), zap.String("path", b.path))
	return nil
}

// AddRule inserts or updates a rule. Rules are keyed by the triple
// (intent type, domain class, rule text); an existing rule is replaced only
// when the incoming confidence is strictly higher, preserving the original
// id and creation time.
func (b *Base) AddRule(r *Rule) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastValidated.IsZero() {
		r.LastValidated = r.CreatedAt
	}
	if r.Scope == "" {
		r.Scope = ScopeFor(r.DomainClass)
	}

	for i, existing := range b.rules {
		if existing.IntentType == r.IntentType &&
			existing.DomainClass == r.DomainClass &&
			existing.Rule == r.Rule {
			if r.Confidence > existing.Confidence {
				r.ID = existing.ID
				r.CreatedAt = existing.CreatedAt
				b.rules[i] = r
				b.logger.Debug("updated rule",
					zap.String("id", r.ID),
					zap.Float64("old_confidence", existing.Confidence),
					zap.Float64("new_confidence", r.Confidence))
			}
			return
		}
	}

	b.rules = append(b.rules, r)
	b.logger.Debug("added rule",
		zap.String("id", r.ID),
		zap.String("intent", string(r.IntentType)),
		zap.String("domain", r.DomainClass))
}

// GetRules returns matching rules sorted by scope precedence (domain-scoped
// first) then confidence descending. With an empty domainClass only
// intent-scoped rules match; otherwise rules for that domain and
// intent-scoped rules both match.
func (b *Base) GetRules(intentType intent.Type, domainClass string) []*Rule {
	var matched []*Rule
	for _, r := range b.rules {
		if r.IntentType != intentType {
			continue
		}
		if domainClass == "" {
			if r.DomainScoped() {
				continue
			}
		} else if r.DomainScoped() && r.DomainClass != domainClass {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		di, dj := matched[i].DomainScoped(), matched[j].DomainScoped()
		if di != dj {
			return di
		}
		return matched[i].Confidence > matched[j].Confidence
	})
	return matched
}

// GetRecommendation merges matching rules into one recommendation. Within
// the precedence ordering the first rule to set a field wins, unless a later
// rule carries strictly higher confidence for that field. Returns nil when
// nothing matches.
func (b *Base) GetRecommendation(intentType intent.Type, domainClass string) *Recommendation {
	rules := b.GetRules(intentType, domainClass)
	if len(rules) == 0 {
		return nil
	}

	rec := &Recommendation{}
	conf := map[string]float64{}

	set := func(field, value string, dst *string, c float64) {
		if value == "" {
			return
		}
		if prev, ok := conf[field]; !ok || c > prev {
			*dst = value
			conf[field] = c
		}
	}

	for _, r := range rules {
		set("engine", r.Recommendation.Engine, &rec.Engine, r.Confidence)
		set("extraction", r.Recommendation.Extraction, &rec.Extraction, r.Confidence)
		set("selector", r.Recommendation.Selector, &rec.Selector, r.Confidence)
		set("instruction_template", r.Recommendation.InstructionTemplate, &rec.InstructionTemplate, r.Confidence)
		if r.Recommendation.IntervalSecs > 0 {
			if prev, ok := conf["interval_secs"]; !ok || r.Confidence > prev {
				rec.IntervalSecs = r.Recommendation.IntervalSecs
				conf["interval_secs"] = r.Confidence
			}
		}
	}
	return rec
}

// ApplyDecay reduces every rule's confidence by elapsed days times its
// type's decay rate, dropping rules that fall below MinConfidence. Returns
// the number of rules removed.
func (b *Base) ApplyDecay() int {
	return b.ApplyDecayAt(time.Now().UTC())
}

// ApplyDecayAt is ApplyDecay with an explicit reference time.
func (b *Base) ApplyDecayAt(now time.Time) int {
	surviving := b.rules[:0]
	removed := 0

	for _, r := range b.rules {
		days := 0.0
		if !r.LastValidated.IsZero() {
			if d := now.Sub(r.LastValidated); d > 0 {
				days = d.Hours() / 24.0
			}
		}

		rate, ok := decayRates[r.RuleType]
		if !ok {
			rate = decayRates[RuleHeuristic]
		}
		r.Confidence -= days * rate
		if r.Confidence < 0 {
			r.Confidence = 0
		}

		if r.Confidence < MinConfidence {
			removed++
			b.logger.Debug("removing decayed rule",
				zap.String("id", r.ID),
				zap.Float64("confidence", r.Confidence),
				zap.String("rule_type", string(r.RuleType)))
			continue
		}
		surviving = append(surviving, r)
	}

	b.rules = surviving
	if removed > 0 {
		b.logger.Info("decay removed rules", zap.Int("removed", removed), zap.Int("remaining", len(b.rules)))
	}
	return removed
}

// TryPromote generalizes a domain-scoped rule to intent scope when it holds
// across enough distinct source domains with enough positive events. The
// promoted rule takes a confidence discount. Returns the promoted rule, or
// nil when the criteria are not met.
func (b *Base) TryPromote(r *Rule) *Rule {
	domains := map[string]bool{}
	for _, d := range r.SourceDomains {
		domains[d] = true
	}
	if len(domains) < MinDomainsForPromotion {
		return nil
	}
	if r.PositiveEventsObserved < MinPositiveEventsForPromotion {
		return nil
	}

	uniq := make([]string, 0, len(domains))
	for d := range domains {
		uniq = append(uniq, d)
	}
	sort.Strings(uniq)

	now := time.Now().UTC()
	promoted := &Rule{
		ID:          uuid.NewString(),
		IntentType:  r.IntentType,
		DomainClass: "",
		Scope:       "intent",
		Rule:        r.Rule,
		Evidence: fmt.Sprintf("promoted from domain-scoped rule %s with %d domains and %d positive events",
			r.ID, len(uniq), r.PositiveEventsObserved),
		Confidence:             r.Confidence * promotionDiscount,
		PositiveEventsObserved: r.PositiveEventsObserved,
		AppliesTo:              r.AppliesTo,
		Recommendation:         r.Recommendation,
		SourceDomains:          uniq,
		CreatedAt:              now,
		LastValidated:          now,
		RuleType:               r.RuleType,
	}

	b.AddRule(promoted)
	b.logger.Info("promoted rule to intent scope",
		zap.String("from", r.ID),
		zap.String("to", promoted.ID),
		zap.String("intent", string(promoted.IntentType)),
		zap.Float64("confidence", promoted.Confidence))
	return promoted
}

// Summary holds aggregate counts for reporting.
type Summary struct {
	TotalRules int            `json:"total_rules"`
	ByIntent   map[string]int `json:"by_intent"`
	ByType     map[string]int `json:"by_type"`
	ByScope    map[string]int `json:"by_scope"`
}

// Export returns the rules and summary statistics for reporting.
func (b *Base) Export() (rules []*Rule, summary Summary) {
	summary = Summary{
		TotalRules: len(b.rules),
		ByIntent:   map[string]int{},
		ByType:     map[string]int{},
		ByScope:    map[string]int{},
	}
	for _, r := range b.rules {
		summary.ByIntent[string(r.IntentType)]++
		summary.ByType[string(r.RuleType)]++
		if r.DomainScoped() {
			summary.ByScope["domain-scoped"]++
		} else {
			summary.ByScope["intent-scoped"]++
		}
	}
	return b.rules, summary
}

// Len returns the number of rules.
func (b *Base) Len() int { return len(b.rules) }

// Rules returns the backing rule slice. Callers must not reorder it.
func (b *Base) Rules() []*Rule { return b.rules }
