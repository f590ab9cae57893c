package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/decimal"
	"tenor/internal/interchange"
)

func bundleWithFacts(facts ...map[string]any) *interchange.Bundle {
	constructs := make([]any, len(facts))
	for i, f := range facts {
		constructs[i] = f
	}
	return &interchange.Bundle{Constructs: constructs}
}

func TestAssembleFactsUsesProvidedValueOverDefault(t *testing.T) {
	bundle := bundleWithFacts(map[string]any{
		"kind": "Fact", "id": "is_vip", "type": map[string]any{"kind": "Bool"},
		"default": map[string]any{"kind": "Bool", "value": false},
	})
	facts, err := AssembleFacts(bundle, map[string]any{"is_vip": true})
	require.NoError(t, err)
	assert.Equal(t, true, facts["is_vip"])
}

func TestAssembleFactsFallsBackToDefault(t *testing.T) {
	bundle := bundleWithFacts(map[string]any{
		"kind": "Fact", "id": "retry_count", "type": map[string]any{"kind": "Int", "min": 0, "max": 10},
		"default": map[string]any{"kind": "Int", "value": int64(0)},
	})
	facts, err := AssembleFacts(bundle, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), facts["retry_count"])
}

func TestAssembleFactsReportsMissingRequiredFact(t *testing.T) {
	bundle := bundleWithFacts(map[string]any{
		"kind": "Fact", "id": "order_total", "type": map[string]any{"kind": "Int", "min": 0, "max": 1000},
		"default": nil,
	})
	_, err := AssembleFacts(bundle, map[string]any{})
	require.Error(t, err)
	var rtErr *Error
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, KindFactMissing, rtErr.Kind)
}

func TestAssembleFactsCoercesMoneyAndRejectsCurrencyMismatch(t *testing.T) {
	bundle := bundleWithFacts(map[string]any{
		"kind": "Fact", "id": "balance", "type": map[string]any{"kind": "Money", "currency": "USD"},
	})
	_, err := AssembleFacts(bundle, map[string]any{
		"balance": map[string]any{"amount": "10.00", "currency": "EUR"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match declared currency")

	facts, err := AssembleFacts(bundle, map[string]any{
		"balance": map[string]any{"amount": "10.00", "currency": "USD"},
	})
	require.NoError(t, err)
	m, ok := facts["balance"].(decimal.Money)
	require.True(t, ok)
	assert.Equal(t, "USD", m.Currency)
}

func TestAssembleFactsCoercesRecordAndListFields(t *testing.T) {
	lineItemType := map[string]any{
		"kind": "Record",
		"fields": map[string]any{
			"qty": map[string]any{"kind": "Int", "min": 0, "max": 100},
		},
	}
	bundle := bundleWithFacts(map[string]any{
		"kind": "Fact", "id": "line_items",
		"type": map[string]any{"kind": "List", "element_type": lineItemType},
	})
	facts, err := AssembleFacts(bundle, map[string]any{
		"line_items": []any{
			map[string]any{"qty": int64(3)},
		},
	})
	require.NoError(t, err)
	items, ok := facts["line_items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	rec := items[0].(map[string]any)
	assert.Equal(t, int64(3), rec["qty"])
}
