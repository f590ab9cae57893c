// Package ruleengine evaluates a bundle's Rules, stratum by stratum,
// against a Snapshot's facts and previously-produced verdicts. It is a
// hand-rolled typed AST-walking interpreter over the serialized bundle
// shape, deliberately not built on a Datalog engine such as
// google/mangle: Tenor's stratification and quantifier semantics are
// bundle-specific and small enough that a general Datalog engine would
// add an adapter layer without buying expressiveness (see DESIGN.md).
package ruleengine

import "tenor/internal/runtime"

// ProvenanceCollector tracks fact and verdict references accessed while
// evaluating one rule's predicate, deduplicated and insertion-ordered,
// mirroring crates/eval/src/provenance.rs's ProvenanceCollector.
type ProvenanceCollector struct {
	factsUsed    []string
	verdictsUsed []string
	seenFact     map[string]bool
	seenVerdict  map[string]bool
}

// NewProvenanceCollector returns an empty collector.
func NewProvenanceCollector() *ProvenanceCollector {
	return &ProvenanceCollector{
		seenFact:    make(map[string]bool),
		seenVerdict: make(map[string]bool),
	}
}

// RecordFact records a fact reference access, ignoring repeats.
func (c *ProvenanceCollector) RecordFact(factID string) {
	if c.seenFact[factID] {
		return
	}
	c.seenFact[factID] = true
	c.factsUsed = append(c.factsUsed, factID)
}

// RecordVerdict records a verdict-type reference access, ignoring
// repeats.
func (c *ProvenanceCollector) RecordVerdict(verdictType string) {
	if c.seenVerdict[verdictType] {
		return
	}
	c.seenVerdict[verdictType] = true
	c.verdictsUsed = append(c.verdictsUsed, verdictType)
}

// IntoProvenance finalizes the collector into a runtime.VerdictProvenance
// for the given rule and stratum.
func (c *ProvenanceCollector) IntoProvenance(ruleID string, stratum int) runtime.VerdictProvenance {
	return runtime.VerdictProvenance{
		Rule:         ruleID,
		Stratum:      stratum,
		FactsUsed:    c.factsUsed,
		VerdictsUsed: c.verdictsUsed,
	}
}
