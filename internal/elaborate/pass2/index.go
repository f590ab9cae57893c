// Package pass2 builds a lookup index over a bundle's flat construct list
// and rejects duplicate ids within a single kind.
package pass2

import (
	"fmt"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
)

// RuleVerdict records which rule, at which stratum, produces a verdict type.
type RuleVerdict struct {
	RuleID  string
	Stratum int64
}

// Index is the by-(kind,id) lookup table built in Pass 2, plus the small
// amount of per-construct metadata later passes need without re-scanning
// the construct list.
type Index struct {
	Facts      map[string]ast.Provenance
	Entities   map[string]ast.Provenance
	Rules      map[string]ast.Provenance
	Operations map[string]ast.Provenance
	Flows      map[string]ast.Provenance
	TypeDecls  map[string]ast.Provenance
	Personas   map[string]ast.Provenance
	Systems    map[string]ast.Provenance
	Sources    map[string]ast.Provenance

	// RuleVerdicts maps rule id -> verdict type it produces.
	RuleVerdicts map[string]string
	// VerdictStrata maps verdict type -> the rule and stratum that produce it.
	VerdictStrata map[string]RuleVerdict
	// OperationOutcomes maps operation id -> declared outcomes (empty = implicit ["success"]).
	OperationOutcomes map[string][]string
	// OperationAllowedPersonas maps operation id -> allowed_personas list.
	OperationAllowedPersonas map[string][]string
}

func newIndex() *Index {
	return &Index{
		Facts:                    make(map[string]ast.Provenance),
		Entities:                 make(map[string]ast.Provenance),
		Rules:                    make(map[string]ast.Provenance),
		Operations:               make(map[string]ast.Provenance),
		Flows:                    make(map[string]ast.Provenance),
		TypeDecls:                make(map[string]ast.Provenance),
		Personas:                 make(map[string]ast.Provenance),
		Systems:                  make(map[string]ast.Provenance),
		Sources:                  make(map[string]ast.Provenance),
		RuleVerdicts:             make(map[string]string),
		VerdictStrata:            make(map[string]RuleVerdict),
		OperationOutcomes:        make(map[string][]string),
		OperationAllowedPersonas: make(map[string][]string),
	}
}

// BuildIndex scans the construct list once, populating every bucket in
// Index and rejecting a second declaration of the same (kind, id) pair.
func BuildIndex(constructs []ast.RawConstruct) (*Index, error) {
	idx := newIndex()
	for _, c := range constructs {
		var bucket map[string]ast.Provenance
		switch c.Kind {
		case ast.KindImport:
			continue
		case ast.KindFact:
			bucket = idx.Facts
		case ast.KindEntity:
			bucket = idx.Entities
		case ast.KindRule:
			bucket = idx.Rules
		case ast.KindOperation:
			bucket = idx.Operations
		case ast.KindFlow:
			bucket = idx.Flows
		case ast.KindTypeDecl:
			bucket = idx.TypeDecls
		case ast.KindPersona:
			bucket = idx.Personas
		case ast.KindSystem:
			bucket = idx.Systems
		case ast.KindSource:
			bucket = idx.Sources
		default:
			continue
		}
		if first, ok := bucket[c.ID]; ok {
			return nil, elaborate.New(2, c.Prov.File, c.Prov.Line,
				fmt.Sprintf("duplicate %s id '%s': first declared at line %d", c.Kind, c.ID, first.Line)).
				WithConstruct(c.Kind.String(), c.ID).WithField("id")
		}
		bucket[c.ID] = c.Prov

		switch c.Kind {
		case ast.KindRule:
			idx.RuleVerdicts[c.ID] = c.VerdictType
			idx.VerdictStrata[c.VerdictType] = RuleVerdict{RuleID: c.ID, Stratum: c.Stratum}
		case ast.KindOperation:
			idx.OperationOutcomes[c.ID] = c.Outcomes
			idx.OperationAllowedPersonas[c.ID] = c.AllowedPersonas
		}
	}
	return idx, nil
}
