// Package pass5 enforces the bundle's structural invariants (I1-I9) once
// every construct's types have been resolved by pass4.
package pass5

import (
	"fmt"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

// Validate walks every construct and checks the invariants that depend
// only on that construct's own fields plus the Pass 2 index, then the
// whole-bundle invariants (entity parent DAG, parallel-branch disjoint
// effects, duplicate verdict types) that need the full construct list.
func Validate(constructs []ast.RawConstruct, idx *pass2.Index) error {
	producedVerdicts := make(map[string]bool, len(idx.RuleVerdicts))
	for _, v := range idx.RuleVerdicts {
		producedVerdicts[v] = true
	}

	if err := checkDuplicateVerdictTypes(constructs); err != nil {
		return err
	}

	for _, c := range constructs {
		var err error
		switch c.Kind {
		case ast.KindEntity:
			err = validateEntity(c, idx)
		case ast.KindOperation:
			err = validateOperation(c, idx)
		case ast.KindRule:
			err = validateRule(c, idx, producedVerdicts)
		case ast.KindSource:
			err = validateSource(c, idx)
		}
		if err != nil {
			return err
		}
	}

	if err := validateEntityDAG(constructs, idx); err != nil {
		return err
	}
	if err := validateParallelConflicts(constructs); err != nil {
		return err
	}
	return nil
}

// ValidateOperationTransitions checks invariant I4: every Operation effect
// (entity, from, to) is a transition the entity actually declares.
func ValidateOperationTransitions(constructs []ast.RawConstruct, idx *pass2.Index) error {
	return validateOperationTransitions(constructs, idx)
}

func checkDuplicateVerdictTypes(constructs []ast.RawConstruct) error {
	seen := make(map[string]ast.RawConstruct)
	for _, c := range constructs {
		if c.Kind != ast.KindRule {
			continue
		}
		if first, ok := seen[c.VerdictType]; ok {
			return elaborate.New(5, c.Prov.File, c.ProduceLine,
				fmt.Sprintf("duplicate verdict type '%s': already produced by rule '%s'", c.VerdictType, first.ID)).
				WithConstruct("Rule", c.ID).WithField("produce")
		}
		seen[c.VerdictType] = c
	}
	return nil
}
