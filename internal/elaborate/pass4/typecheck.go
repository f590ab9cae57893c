// Package pass4 resolves every remaining TypeRef in the construct list
// against the Pass 3 type environment, then type-checks the boolean
// expressions attached to Rules and Operations.
package pass4

import (
	"tenor/internal/ast"
	"tenor/internal/elaborate/pass3"
)

// ResolveTypes replaces TypeRef occurrences in Fact types and Rule
// payload types with their concrete resolution from env, returning a new
// construct list (the input is not mutated in place).
func ResolveTypes(constructs []ast.RawConstruct, env pass3.TypeEnv) ([]ast.RawConstruct, error) {
	out := make([]ast.RawConstruct, len(constructs))
	for i, c := range constructs {
		switch c.Kind {
		case ast.KindFact:
			resolved, err := pass3.Resolve(c.FactType, env, c.Prov.File, c.Prov.Line)
			if err != nil {
				return nil, err
			}
			c.FactType = resolved
		case ast.KindRule:
			resolved, err := pass3.Resolve(c.PayloadType, env, c.Prov.File, c.ProduceLine)
			if err != nil {
				return nil, err
			}
			c.PayloadType = resolved
		}
		out[i] = c
	}
	return out, nil
}

// TypeCheckRules type-checks every Rule's `when` expression and every
// Operation's `precondition`, and the payload value each Rule produces
// against its declared payload type.
func TypeCheckRules(constructs []ast.RawConstruct) error {
	facts := make(map[string]ast.RawType)
	for _, c := range constructs {
		if c.Kind == ast.KindFact {
			facts[c.ID] = c.FactType
		}
	}

	for _, c := range constructs {
		switch c.Kind {
		case ast.KindRule:
			if c.When != nil {
				if _, err := checkExpr(c.When, facts, c.Prov, "Rule", c.ID); err != nil {
					return err
				}
			}
			if c.PayloadValue != nil {
				if err := checkPayload(c.PayloadValue, c.PayloadType, facts, c.Prov, c.ID); err != nil {
					return err
				}
			}
		case ast.KindOperation:
			if c.Precondition != nil {
				if _, err := checkExpr(c.Precondition, facts, c.Prov, "Operation", c.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
