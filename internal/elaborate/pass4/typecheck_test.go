package pass4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
)

func intType() ast.RawType    { return ast.RawType{Kind: ast.TypeInt, Min: 0, Max: 1000} }
func moneyType(c string) ast.RawType { return ast.RawType{Kind: ast.TypeMoney, Currency: c} }

func factRef(id string) *ast.RawTerm { return &ast.RawTerm{Kind: ast.TermFactRef, FactID: id} }
func intLit(n int64) *ast.RawTerm {
	return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitInt, Int: n}}
}
func moneyLit(amount, currency string) *ast.RawTerm {
	return &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitMoney, Amount: amount, Currency: currency}}
}

func TestResolveTypesReplacesFactTypeRef(t *testing.T) {
	env := map[string]ast.RawType{
		"Address": {Kind: ast.TypeRecord, Fields: map[string]ast.RawType{"city": {Kind: ast.TypeText}}},
	}
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "shipping_address", FactType: ast.RawType{Kind: ast.TypeRef, RefName: "Address"}},
	}
	out, err := ResolveTypes(constructs, env)
	require.NoError(t, err)
	assert.Equal(t, ast.TypeRecord, out[0].FactType.Kind)
	assert.Contains(t, out[0].FactType.Fields, "city")
}

func TestResolveTypesRejectsUnknownTypeRef(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "x", FactType: ast.RawType{Kind: ast.TypeRef, RefName: "Missing"}, Prov: ast.Provenance{File: "t.tenor", Line: 3}},
	}
	_, err := ResolveTypes(constructs, map[string]ast.RawType{})
	require.Error(t, err)
	var elabErr *elaborate.Error
	require.ErrorAs(t, err, &elabErr)
	assert.Contains(t, elabErr.Message, "unknown type reference")
}

func TestTypeCheckRulesAllowsIntComparison(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "order_total", FactType: intType()},
		{
			Kind: ast.KindRule, ID: "large_order",
			When: &ast.RawExpr{Kind: ast.ExprCompare, Op: ">", Left: factRef("order_total"), Right: intLit(100)},
			Prov: ast.Provenance{File: "t.tenor", Line: 1},
		},
	}
	require.NoError(t, TypeCheckRules(constructs))
}

func TestTypeCheckRulesRejectsCrossCurrencyComparison(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "price", FactType: moneyType("USD")},
		{
			Kind: ast.KindRule, ID: "bad",
			When: &ast.RawExpr{Kind: ast.ExprCompare, Op: "=", Left: factRef("price"), Right: moneyLit("10.00", "EUR")},
			Prov: ast.Provenance{File: "t.tenor", Line: 5},
		},
	}
	err := TypeCheckRules(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different currencies")
}

func TestTypeCheckRulesRejectsUndeclaredQuantifierDomain(t *testing.T) {
	constructs := []ast.RawConstruct{
		{
			Kind: ast.KindRule, ID: "missing_domain",
			When: &ast.RawExpr{Kind: ast.ExprForall, Var: "item", Domain: "line_items", Body: &ast.RawExpr{Kind: ast.ExprVerdictPresent, VerdictID: "ok"}},
			Prov: ast.Provenance{File: "t.tenor", Line: 2},
		},
	}
	err := TypeCheckRules(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a declared fact")
}

func TestTypeCheckRulesChecksQuantifierFieldRef(t *testing.T) {
	lineItemType := ast.RawType{Kind: ast.TypeList, ElementType: &ast.RawType{
		Kind:   ast.TypeRecord,
		Fields: map[string]ast.RawType{"qty": intType()},
	}}
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "line_items", FactType: lineItemType},
		{
			Kind: ast.KindRule, ID: "has_positive_qty",
			When: &ast.RawExpr{
				Kind: ast.ExprForall, Var: "item", Domain: "line_items",
				Body: &ast.RawExpr{
					Kind: ast.ExprCompare, Op: ">",
					Left:  &ast.RawTerm{Kind: ast.TermFieldRef, FieldVar: "item", FieldName: "qty"},
					Right: intLit(0),
				},
			},
			Prov: ast.Provenance{File: "t.tenor", Line: 7},
		},
	}
	require.NoError(t, TypeCheckRules(constructs))
}

func TestTypeCheckRulesRejectsPayloadCurrencyMismatch(t *testing.T) {
	constructs := []ast.RawConstruct{
		{
			Kind: ast.KindRule, ID: "refund_amount",
			PayloadType:  moneyType("USD"),
			PayloadValue: moneyLit("5.00", "EUR"),
			Prov:         ast.Provenance{File: "t.tenor", Line: 9},
		},
	}
	err := TypeCheckRules(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match declared currency")
}

func TestTypeCheckRulesRejectsDecimalPayloadOverflow(t *testing.T) {
	constructs := []ast.RawConstruct{
		{
			Kind: ast.KindRule, ID: "rate",
			PayloadType: ast.RawType{Kind: ast.TypeDecimal, Precision: 3, Scale: 2},
			PayloadValue: &ast.RawTerm{Kind: ast.TermLiteral, Literal: &ast.RawLiteral{Kind: ast.LitFloat, Float: "12345.67"}},
			Prov: ast.Provenance{File: "t.tenor", Line: 11},
		},
	}
	err := TypeCheckRules(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows declared type")
}

func TestTypeCheckRulesChecksMulTyping(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "unit_price", FactType: moneyType("USD")},
		{Kind: ast.KindFact, ID: "quantity", FactType: intType()},
		{
			Kind: ast.KindRule, ID: "total_check",
			When: &ast.RawExpr{
				Kind: ast.ExprCompare, Op: "=",
				Left:  &ast.RawTerm{Kind: ast.TermMul, MulLeft: factRef("unit_price"), MulRight: factRef("quantity")},
				Right: moneyLit("100.00", "USD"),
			},
			Prov: ast.Provenance{File: "t.tenor", Line: 13},
		},
	}
	require.NoError(t, TypeCheckRules(constructs))
}

func TestTypeCheckRulesRejectsOperationPreconditionTypeMismatch(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindFact, ID: "is_approved", FactType: ast.RawType{Kind: ast.TypeBool}},
		{
			Kind: ast.KindOperation, ID: "ship",
			Precondition: &ast.RawExpr{Kind: ast.ExprCompare, Op: "=", Left: factRef("is_approved"), Right: intLit(1)},
			Prov:         ast.Provenance{File: "t.tenor", Line: 15},
		},
	}
	err := TypeCheckRules(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible comparison operand types")
}
