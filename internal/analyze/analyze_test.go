package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/interchange"
)

func entity(id string, states []string, initial string, transitions ...Transition) map[string]any {
	anyStates := make([]any, len(states))
	for i, s := range states {
		anyStates[i] = s
	}
	anyTransitions := make([]any, len(transitions))
	for i, t := range transitions {
		anyTransitions[i] = map[string]any{"from": t.From, "to": t.To}
	}
	return map[string]any{"kind": "Entity", "id": id, "states": anyStates, "initial": initial, "transitions": anyTransitions}
}

func TestAnalyzeStateSpaceSingleEntityThreeStates(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		entity("Order", []string{"draft", "submitted", "approved"}, "draft",
			Transition{"draft", "submitted"}, Transition{"submitted", "approved"}),
	}}

	result := AnalyzeStateSpace(bundle)
	require.Len(t, result.Entities, 1)
	order := result.Entities["Order"]
	assert.Equal(t, 3, order.StateCount)
	assert.Equal(t, "draft", order.InitialState)
	assert.Len(t, order.Transitions, 2)
}

func TestAnalyzeStateSpaceMultipleEntitiesDeterministicOrder(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		entity("Zebra", []string{"a"}, "a"),
		entity("Alpha", []string{"b"}, "b"),
	}}

	result := AnalyzeStateSpace(bundle)
	assert.Equal(t, []string{"Alpha", "Zebra"}, result.Order)
}

func TestAnalyzeStateSpaceEmptyBundle(t *testing.T) {
	result := AnalyzeStateSpace(&interchange.Bundle{})
	assert.Empty(t, result.Entities)
}

func TestAnalyzeReachabilityAllStatesReachable(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		entity("Order", []string{"draft", "submitted", "approved"}, "draft",
			Transition{"draft", "submitted"}, Transition{"submitted", "approved"}),
	}}

	result := AnalyzeReachability(bundle)
	order := result.Entities["Order"]
	assert.Len(t, order.ReachableStates, 3)
	assert.Empty(t, order.UnreachableStates)
	assert.False(t, result.HasDeadStates)
}

func TestAnalyzeReachabilityDetectsDeadState(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		entity("Order", []string{"draft", "submitted", "archived"}, "draft",
			Transition{"draft", "submitted"}),
	}}

	result := AnalyzeReachability(bundle)
	order := result.Entities["Order"]
	assert.ElementsMatch(t, []string{"draft", "submitted"}, order.ReachableStates)
	assert.Equal(t, []string{"archived"}, order.UnreachableStates)
	assert.True(t, result.HasDeadStates)
}

func TestAnalyzeReachabilityDisconnectedSubgraph(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		entity("Order", []string{"a", "b", "c", "d", "e"}, "a",
			Transition{"a", "b"}, Transition{"d", "e"}),
	}}

	result := AnalyzeReachability(bundle)
	order := result.Entities["Order"]
	assert.Len(t, order.ReachableStates, 2)
	assert.ElementsMatch(t, []string{"c", "d", "e"}, order.UnreachableStates)
	assert.True(t, result.HasDeadStates)
}

func TestAnalyzeReachabilityHandlesCycle(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		entity("Order", []string{"a", "b", "c"}, "a",
			Transition{"a", "b"}, Transition{"b", "c"}, Transition{"c", "a"}),
	}}

	result := AnalyzeReachability(bundle)
	order := result.Entities["Order"]
	assert.Len(t, order.ReachableStates, 3)
	assert.Empty(t, order.UnreachableStates)
	assert.False(t, result.HasDeadStates)
}
