package pass4

import (
	"fmt"

	"tenor/internal/ast"
	"tenor/internal/decimal"
	"tenor/internal/elaborate"
)

// checkExpr type-checks a boolean expression tree and returns Bool on
// success. It delegates to checkExprBound, whose bound map carries the
// element type of each in-scope quantifier variable.
func checkExpr(e *ast.RawExpr, facts map[string]ast.RawType, prov ast.Provenance, kind, id string) (ast.RawType, error) {
	return checkExprBound(e, facts, map[string]ast.RawType{}, prov, kind, id)
}

func checkExprBound(e *ast.RawExpr, facts, bound map[string]ast.RawType, prov ast.Provenance, kind, id string) (ast.RawType, error) {
	switch e.Kind {
	case ast.ExprCompare:
		lt, err := inferTermType(e.Left, facts, bound, prov, kind, id)
		if err != nil {
			return ast.RawType{}, err
		}
		rt, err := inferTermType(e.Right, facts, bound, prov, kind, id)
		if err != nil {
			return ast.RawType{}, err
		}
		if err := checkComparable(lt, rt, prov, e.Line, kind, id); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeBool}, nil
	case ast.ExprAnd, ast.ExprOr:
		if _, err := checkExprBound(e.LHS, facts, bound, prov, kind, id); err != nil {
			return ast.RawType{}, err
		}
		if _, err := checkExprBound(e.RHS, facts, bound, prov, kind, id); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeBool}, nil
	case ast.ExprNot:
		if _, err := checkExprBound(e.Operand, facts, bound, prov, kind, id); err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeBool}, nil
	case ast.ExprVerdictPresent:
		return ast.RawType{Kind: ast.TypeBool}, nil
	case ast.ExprForall, ast.ExprExists:
		domainType, ok := facts[e.Domain]
		if !ok {
			return ast.RawType{}, elaborate.New(4, prov.File, e.Line,
				fmt.Sprintf("quantifier domain '%s' is not a declared fact", e.Domain)).
				WithConstruct(kind, id).WithField("body.when")
		}
		if domainType.Kind != ast.TypeList || domainType.ElementType == nil {
			return ast.RawType{}, elaborate.New(4, prov.File, e.Line,
				fmt.Sprintf("quantifier domain '%s' must be a List fact", e.Domain)).
				WithConstruct(kind, id).WithField("body.when")
		}
		nested := make(map[string]ast.RawType, len(bound)+1)
		for k, v := range bound {
			nested[k] = v
		}
		nested[e.Var] = *domainType.ElementType
		return checkExprBound(e.Body, facts, nested, prov, kind, id)
	default:
		return ast.RawType{}, elaborate.New(4, prov.File, 0, "unknown expression kind").WithConstruct(kind, id)
	}
}

func inferTermType(t *ast.RawTerm, facts, bound map[string]ast.RawType, prov ast.Provenance, kind, id string) (ast.RawType, error) {
	switch t.Kind {
	case ast.TermLiteral:
		return inferLiteralType(t.Literal), nil
	case ast.TermFactRef:
		if ft, ok := facts[t.FactID]; ok {
			return ft, nil
		}
		if bt, ok := bound[t.FactID]; ok {
			return bt, nil
		}
		return ast.RawType{}, elaborate.New(4, prov.File, 0,
			fmt.Sprintf("unresolved fact reference '%s'", t.FactID)).
			WithConstruct(kind, id).WithField("body.when")
	case ast.TermFieldRef:
		recType, ok := bound[t.FieldVar]
		if !ok {
			return ast.RawType{}, elaborate.New(4, prov.File, 0,
				fmt.Sprintf("undeclared quantifier variable '%s'", t.FieldVar)).
				WithConstruct(kind, id).WithField("body.when")
		}
		if recType.Kind != ast.TypeRecord {
			return ast.RawType{}, elaborate.New(4, prov.File, 0,
				fmt.Sprintf("'%s' is not a record-typed quantifier variable", t.FieldVar)).
				WithConstruct(kind, id).WithField("body.when")
		}
		ft, ok := recType.Fields[t.FieldName]
		if !ok {
			return ast.RawType{}, elaborate.New(4, prov.File, 0,
				fmt.Sprintf("unknown field '%s' on quantifier variable '%s'", t.FieldName, t.FieldVar)).
				WithConstruct(kind, id).WithField("body.when")
		}
		return ft, nil
	case ast.TermMul:
		lt, err := inferTermType(t.MulLeft, facts, bound, prov, kind, id)
		if err != nil {
			return ast.RawType{}, err
		}
		rt, err := inferTermType(t.MulRight, facts, bound, prov, kind, id)
		if err != nil {
			return ast.RawType{}, err
		}
		return checkMul(lt, rt, prov, kind, id)
	default:
		return ast.RawType{}, elaborate.New(4, prov.File, 0, "unknown term kind").WithConstruct(kind, id)
	}
}

func inferLiteralType(l *ast.RawLiteral) ast.RawType {
	switch l.Kind {
	case ast.LitBool:
		return ast.RawType{Kind: ast.TypeBool}
	case ast.LitInt:
		return ast.RawType{Kind: ast.TypeInt, Min: l.Int, Max: l.Int}
	case ast.LitFloat:
		d, _ := decimal.Parse(l.Float)
		digits := uint32(len(d.Unscaled.String()))
		return ast.RawType{Kind: ast.TypeDecimal, Precision: digits, Scale: d.Scale}
	case ast.LitStr:
		return ast.RawType{Kind: ast.TypeText, MaxLength: uint32(len(l.Str))}
	case ast.LitMoney:
		return ast.RawType{Kind: ast.TypeMoney, Currency: l.Currency}
	default:
		return ast.RawType{}
	}
}

func isNumeric(k ast.TypeKind) bool {
	return k == ast.TypeInt || k == ast.TypeDecimal
}

func checkComparable(lt, rt ast.RawType, prov ast.Provenance, line uint32, kind, id string) error {
	if isNumeric(lt.Kind) && isNumeric(rt.Kind) {
		return nil
	}
	if lt.Kind == ast.TypeMoney && rt.Kind == ast.TypeMoney {
		if lt.Currency != rt.Currency {
			return elaborate.New(4, prov.File, line,
				fmt.Sprintf("cannot compare Money values of different currencies: '%s' vs '%s'", lt.Currency, rt.Currency)).
				WithConstruct(kind, id).WithField("body.when")
		}
		return nil
	}
	if lt.Kind == rt.Kind {
		return nil
	}
	return elaborate.New(4, prov.File, line,
		fmt.Sprintf("incompatible comparison operand types: %s vs %s", lt.Kind, rt.Kind)).
		WithConstruct(kind, id).WithField("body.when")
}

func checkMul(lt, rt ast.RawType, prov ast.Provenance, kind, id string) (ast.RawType, error) {
	switch {
	case lt.Kind == ast.TypeInt && rt.Kind == ast.TypeInt:
		return ast.RawType{Kind: ast.TypeInt, Min: lt.Min, Max: lt.Max}, nil
	case lt.Kind == ast.TypeDecimal && rt.Kind == ast.TypeDecimal:
		return ast.RawType{Kind: ast.TypeDecimal, Precision: lt.Precision + rt.Precision, Scale: lt.Scale + rt.Scale}, nil
	case lt.Kind == ast.TypeMoney && rt.Kind == ast.TypeInt:
		return ast.RawType{Kind: ast.TypeMoney, Currency: lt.Currency}, nil
	default:
		return ast.RawType{}, elaborate.New(4, prov.File, 0,
			fmt.Sprintf("invalid multiplication operand types: %s * %s", lt.Kind, rt.Kind)).
			WithConstruct(kind, id).WithField("body.when")
	}
}

func checkPayload(val *ast.RawTerm, declared ast.RawType, facts map[string]ast.RawType, prov ast.Provenance, ruleID string) error {
	actual, err := inferTermType(val, facts, map[string]ast.RawType{}, prov, "Rule", ruleID)
	if err != nil {
		return err
	}
	if isNumeric(declared.Kind) && isNumeric(actual.Kind) {
		if declared.Kind == ast.TypeDecimal && actual.Kind == ast.TypeDecimal {
			if actual.Precision > declared.Precision || actual.Scale > declared.Scale {
				return elaborate.New(4, prov.File, prov.Line,
					fmt.Sprintf("payload value overflows declared type Decimal(%d,%d)", declared.Precision, declared.Scale)).
					WithConstruct("Rule", ruleID).WithField("produce.payload")
			}
		}
		return nil
	}
	if declared.Kind == ast.TypeMoney && actual.Kind == ast.TypeMoney {
		if declared.Currency != actual.Currency {
			return elaborate.New(4, prov.File, prov.Line,
				fmt.Sprintf("payload currency '%s' does not match declared currency '%s'", actual.Currency, declared.Currency)).
				WithConstruct("Rule", ruleID).WithField("produce.payload")
		}
		return nil
	}
	if declared.Kind != actual.Kind {
		return elaborate.New(4, prov.File, prov.Line,
			fmt.Sprintf("payload value type %s does not match declared payload_type %s", actual.Kind, declared.Kind)).
			WithConstruct("Rule", ruleID).WithField("produce.payload")
	}
	return nil
}
