package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/decimal"
	"tenor/internal/interchange"
	"tenor/internal/runtime"
)

func ruleConstruct(id string, stratum int, when map[string]any, verdictType string, produce map[string]any) map[string]any {
	return map[string]any{
		"kind": "Rule", "id": id, "stratum": stratum,
		"verdict_type": verdictType, "when": when, "produce": produce,
	}
}

func compareExpr(op string, left, right map[string]any) map[string]any {
	return map[string]any{"kind": "Compare", "op": op, "left": left, "right": right}
}

func factRefTerm(id string) map[string]any { return map[string]any{"kind": "FactRef", "id": id} }
func intLitTerm(n int64) map[string]any {
	return map[string]any{"kind": "Literal", "value": map[string]any{"kind": "Int", "value": n}}
}

func TestEvaluateProducesVerdictWhenWhenHolds(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		ruleConstruct("large_order", 0,
			compareExpr(">", factRefTerm("order_total"), intLitTerm(100)),
			"large_order_flag", intLitTerm(1)),
	}}
	result, err := Evaluate(bundle, runtime.FactSet{"order_total": int64(150)})
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 1)
	assert.Equal(t, "large_order_flag", result.Verdicts[0].Type)
	assert.Equal(t, []string{"order_total"}, result.Verdicts[0].Provenance.FactsUsed)
}

func TestEvaluateSkipsRuleWhenWhenFails(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		ruleConstruct("large_order", 0,
			compareExpr(">", factRefTerm("order_total"), intLitTerm(100)),
			"large_order_flag", intLitTerm(1)),
	}}
	result, err := Evaluate(bundle, runtime.FactSet{"order_total": int64(50)})
	require.NoError(t, err)
	assert.Empty(t, result.Verdicts)
}

func TestEvaluateRespectsStratumOrderingForVerdictPresent(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		ruleConstruct("base", 0, nil, "base_verdict", intLitTerm(1)),
		ruleConstruct("derived", 1,
			map[string]any{"kind": "VerdictPresent", "verdict_type": "base_verdict"},
			"derived_verdict", intLitTerm(2)),
	}}
	result, err := Evaluate(bundle, runtime.FactSet{})
	require.NoError(t, err)
	require.Len(t, result.Verdicts, 2)
	assert.Equal(t, "base_verdict", result.Verdicts[0].Type)
	assert.Equal(t, "derived_verdict", result.Verdicts[1].Type)
	assert.Equal(t, []string{"base_verdict"}, result.Verdicts[1].Provenance.VerdictsUsed)
}

func TestEvaluateForallShortCircuitsOnCounterexample(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		ruleConstruct("all_positive", 0,
			map[string]any{
				"kind": "Forall", "var": "item", "domain": "line_items",
				"body": compareExpr(">",
					map[string]any{"kind": "FieldRef", "var": "item", "field": "qty"},
					intLitTerm(0)),
			},
			"all_positive_flag", intLitTerm(1)),
	}}
	facts := runtime.FactSet{"line_items": []any{
		map[string]any{"qty": int64(3)},
		map[string]any{"qty": int64(-1)},
	}}
	result, err := Evaluate(bundle, facts)
	require.NoError(t, err)
	assert.Empty(t, result.Verdicts)
}

func TestEvaluateRejectsCrossCurrencyMoneyComparison(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		ruleConstruct("mismatch", 0,
			compareExpr("=", factRefTerm("balance"),
				map[string]any{"kind": "Literal", "value": map[string]any{"kind": "Money", "amount": "10.00", "currency": "EUR"}}),
			"mismatch_flag", intLitTerm(1)),
	}}
	usd, err := decimal.Parse("10.00")
	require.NoError(t, err)
	facts := runtime.FactSet{"balance": decimal.Money{Amount: usd, Currency: "USD"}}
	_, err = Evaluate(bundle, facts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currencies")
}
