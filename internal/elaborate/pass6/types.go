package pass6

import "tenor/internal/ast"

func convertType(t ast.RawType) map[string]any {
	switch t.Kind {
	case ast.TypeBool:
		return map[string]any{"kind": "Bool"}
	case ast.TypeInt:
		return map[string]any{"kind": "Int", "min": t.Min, "max": t.Max}
	case ast.TypeDecimal:
		return map[string]any{"kind": "Decimal", "precision": t.Precision, "scale": t.Scale}
	case ast.TypeText:
		return map[string]any{"kind": "Text", "max_length": t.MaxLength}
	case ast.TypeDate:
		return map[string]any{"kind": "Date"}
	case ast.TypeDateTime:
		return map[string]any{"kind": "DateTime"}
	case ast.TypeMoney:
		return map[string]any{"kind": "Money", "currency": t.Currency}
	case ast.TypeDuration:
		return map[string]any{"kind": "Duration", "unit": t.Unit, "min": t.Min, "max": t.Max}
	case ast.TypeEnum:
		return map[string]any{"kind": "Enum", "values": toAnySlice(t.Values)}
	case ast.TypeRecord:
		return map[string]any{"kind": "Record", "fields": convertFieldMap(t.Fields)}
	case ast.TypeList:
		m := map[string]any{"kind": "List", "max": t.Max}
		if t.ElementType != nil {
			m["element_type"] = convertType(*t.ElementType)
		} else {
			m["element_type"] = nil
		}
		return m
	case ast.TypeRef:
		return map[string]any{"kind": "TypeRef", "name": t.RefName}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}

func convertLiteral(l *ast.RawLiteral) map[string]any {
	switch l.Kind {
	case ast.LitBool:
		return map[string]any{"kind": "Bool", "value": l.Bool}
	case ast.LitInt:
		return map[string]any{"kind": "Int", "value": l.Int}
	case ast.LitFloat:
		return map[string]any{"kind": "Decimal", "value": l.Float}
	case ast.LitStr:
		return map[string]any{"kind": "Text", "value": l.Str}
	case ast.LitMoney:
		return map[string]any{"kind": "Money", "amount": l.Amount, "currency": l.Currency}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}

func convertTerm(t *ast.RawTerm) map[string]any {
	switch t.Kind {
	case ast.TermFactRef:
		return map[string]any{"kind": "FactRef", "id": t.FactID}
	case ast.TermFieldRef:
		return map[string]any{"kind": "FieldRef", "var": t.FieldVar, "field": t.FieldName}
	case ast.TermLiteral:
		return map[string]any{"kind": "Literal", "value": convertLiteral(t.Literal)}
	case ast.TermMul:
		return map[string]any{"kind": "Mul", "left": convertTerm(t.MulLeft), "right": convertTerm(t.MulRight)}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}

func convertExpr(e *ast.RawExpr) map[string]any {
	switch e.Kind {
	case ast.ExprCompare:
		return map[string]any{"kind": "Compare", "op": e.Op, "left": convertTerm(e.Left), "right": convertTerm(e.Right)}
	case ast.ExprVerdictPresent:
		return map[string]any{"kind": "VerdictPresent", "verdict_type": e.VerdictID}
	case ast.ExprAnd:
		return map[string]any{"kind": "And", "lhs": convertExpr(e.LHS), "rhs": convertExpr(e.RHS)}
	case ast.ExprOr:
		return map[string]any{"kind": "Or", "lhs": convertExpr(e.LHS), "rhs": convertExpr(e.RHS)}
	case ast.ExprNot:
		return map[string]any{"kind": "Not", "operand": convertExpr(e.Operand)}
	case ast.ExprForall:
		return map[string]any{"kind": "Forall", "var": e.Var, "domain": e.Domain, "body": convertExpr(e.Body)}
	case ast.ExprExists:
		return map[string]any{"kind": "Exists", "var": e.Var, "domain": e.Domain, "body": convertExpr(e.Body)}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}
