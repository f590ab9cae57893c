package pass5

import (
	"fmt"
	"strings"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

func validateOperation(c ast.RawConstruct, idx *pass2.Index) error {
	seen := make(map[string]bool, len(c.Outcomes))
	for _, outcome := range c.Outcomes {
		if seen[outcome] {
			return elaborate.New(5, c.Prov.File, c.Prov.Line,
				fmt.Sprintf("duplicate outcome '%s'; outcome labels must be unique within an Operation", outcome)).
				WithConstruct("Operation", c.ID).WithField("outcomes")
		}
		seen[outcome] = true
	}

	if len(c.AllowedPersonas) == 0 {
		return elaborate.New(5, c.Prov.File, c.AllowedPersonasLine,
			"allowed_personas must be non-empty; an Operation with no allowed personas can never be invoked").
			WithConstruct("Operation", c.ID).WithField("allowed_personas")
	}

	if len(idx.Personas) > 0 {
		for _, persona := range c.AllowedPersonas {
			if _, ok := idx.Personas[persona]; !ok {
				return elaborate.New(5, c.Prov.File, c.AllowedPersonasLine,
					fmt.Sprintf("undeclared persona '%s' in allowed_personas", persona)).
					WithConstruct("Operation", c.ID).WithField("allowed_personas")
			}
		}
	}

	for _, eff := range c.Effects {
		if _, ok := idx.Entities[eff.Entity]; !ok {
			return elaborate.New(5, c.Prov.File, eff.Line,
				fmt.Sprintf("effect references undeclared entity '%s'", eff.Entity)).
				WithConstruct("Operation", c.ID).WithField("effects")
		}
	}

	if len(c.Outcomes) >= 2 {
		outcomeSet := make(map[string]bool, len(c.Outcomes))
		for _, o := range c.Outcomes {
			outcomeSet[o] = true
		}
		for _, eff := range c.Effects {
			if eff.OutcomeLabel == nil {
				return elaborate.New(5, c.Prov.File, eff.Line,
					fmt.Sprintf("effect (%s, %s, %s) is missing an outcome label; multi-outcome operations require every effect to specify which outcome it belongs to",
						eff.Entity, eff.From, eff.To)).
					WithConstruct("Operation", c.ID).WithField("effects")
			}
			if !outcomeSet[*eff.OutcomeLabel] {
				return elaborate.New(5, c.Prov.File, eff.Line,
					fmt.Sprintf("effect (%s, %s, %s) references undeclared outcome '%s'; declared outcomes are: [%s]",
						eff.Entity, eff.From, eff.To, *eff.OutcomeLabel, strings.Join(c.Outcomes, ", "))).
					WithConstruct("Operation", c.ID).WithField("effects")
			}
		}
	}

	if len(c.Outcomes) > 0 {
		outcomeSet := make(map[string]bool, len(c.Outcomes))
		for _, o := range c.Outcomes {
			outcomeSet[o] = true
		}
		for _, ec := range c.ErrorContract {
			if outcomeSet[ec] {
				return elaborate.New(5, c.Prov.File, c.Prov.Line,
					fmt.Sprintf("outcome '%s' conflicts with error_contract; outcomes and error_contract must be disjoint", ec)).
					WithConstruct("Operation", c.ID).WithField("outcomes")
			}
		}
	}

	return nil
}

func validateOperationTransitions(constructs []ast.RawConstruct, _ *pass2.Index) error {
	entityTransitions := make(map[string][][2]string)
	for _, c := range constructs {
		if c.Kind != ast.KindEntity {
			continue
		}
		for _, tr := range c.Transitions {
			entityTransitions[c.ID] = append(entityTransitions[c.ID], [2]string{tr.From, tr.To})
		}
	}

	for _, c := range constructs {
		if c.Kind != ast.KindOperation {
			continue
		}
		for _, eff := range c.Effects {
			transitions, ok := entityTransitions[eff.Entity]
			if !ok {
				continue
			}
			found := false
			for _, t := range transitions {
				if t[0] == eff.From && t[1] == eff.To {
					found = true
					break
				}
			}
			if !found {
				declared := make([]string, len(transitions))
				for i, t := range transitions {
					declared[i] = fmt.Sprintf("(%s, %s)", t[0], t[1])
				}
				return elaborate.New(5, c.Prov.File, eff.Line,
					fmt.Sprintf("effect (%s, %s, %s) is not a declared transition in entity %s; declared transitions are: [%s]",
						eff.Entity, eff.From, eff.To, eff.Entity, strings.Join(declared, ", "))).
					WithConstruct("Operation", c.ID).WithField("effects")
			}
		}
	}
	return nil
}
