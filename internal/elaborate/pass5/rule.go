package pass5

import (
	"fmt"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

func validateRule(c ast.RawConstruct, idx *pass2.Index, producedVerdicts map[string]bool) error {
	if c.Stratum < 0 {
		return elaborate.New(5, c.Prov.File, c.StratumLine,
			fmt.Sprintf("stratum must be a non-negative integer; got %d", c.Stratum)).
			WithConstruct("Rule", c.ID).WithField("stratum")
	}
	if c.When == nil {
		return nil
	}
	return validateVerdictRefsInExpr(c.When, c.ID, c.Stratum, c.Prov, idx, producedVerdicts)
}

func validateVerdictRefsInExpr(expr *ast.RawExpr, ruleID string, ruleStratum int64, prov ast.Provenance, idx *pass2.Index, producedVerdicts map[string]bool) error {
	switch expr.Kind {
	case ast.ExprVerdictPresent:
		if !producedVerdicts[expr.VerdictID] {
			return elaborate.New(5, prov.File, expr.Line,
				fmt.Sprintf("unresolved VerdictType reference: '%s' is not produced by any rule in this contract", expr.VerdictID)).
				WithConstruct("Rule", ruleID).WithField("body.when")
		}
		if rv, ok := idx.VerdictStrata[expr.VerdictID]; ok {
			if rv.Stratum >= ruleStratum {
				return elaborate.New(5, prov.File, expr.Line,
					fmt.Sprintf("stratum violation: rule '%s' at stratum %d references verdict '%s' produced by rule '%s' at stratum %d; verdict_refs must reference strata strictly less than the referencing rule's stratum",
						ruleID, ruleStratum, expr.VerdictID, rv.RuleID, rv.Stratum)).
					WithConstruct("Rule", ruleID).WithField("body.when")
			}
		}
	case ast.ExprAnd, ast.ExprOr:
		if err := validateVerdictRefsInExpr(expr.LHS, ruleID, ruleStratum, prov, idx, producedVerdicts); err != nil {
			return err
		}
		if err := validateVerdictRefsInExpr(expr.RHS, ruleID, ruleStratum, prov, idx, producedVerdicts); err != nil {
			return err
		}
	case ast.ExprNot:
		return validateVerdictRefsInExpr(expr.Operand, ruleID, ruleStratum, prov, idx, producedVerdicts)
	case ast.ExprForall, ast.ExprExists:
		return validateVerdictRefsInExpr(expr.Body, ruleID, ruleStratum, prov, idx, producedVerdicts)
	}
	return nil
}
