package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/interchange"
)

func entityConstruct(id string, states []any, initial string, transitions []any) map[string]any {
	return map[string]any{"kind": "Entity", "id": id, "states": states, "initial": initial, "transitions": transitions}
}

func transition(from, to string) map[string]any {
	return map[string]any{"from": from, "to": to}
}

func factConstruct(id string, kind string, min, max any) map[string]any {
	return map[string]any{"kind": "Fact", "id": id, "type": map[string]any{"kind": kind, "min": min, "max": max}}
}

func TestDiffBundlesClassifiesAddedRemovedChanged(t *testing.T) {
	v1 := &interchange.Bundle{ID: "b1", Constructs: []any{
		entityConstruct("order", []any{"draft", "submitted"}, "draft", []any{transition("draft", "submitted")}),
		factConstruct("stale", "Int", int64(0), int64(10)),
	}}
	v2 := &interchange.Bundle{ID: "b2", Constructs: []any{
		entityConstruct("order", []any{"draft", "submitted", "cancelled"}, "draft",
			[]any{transition("draft", "submitted"), transition("draft", "cancelled")}),
		factConstruct("fresh", "Int", int64(0), int64(10)),
	}}

	diff := DiffBundles(v1, v2)
	var kinds []ChangeType
	for _, ch := range diff.Changes {
		kinds = append(kinds, ch.Type)
	}
	assert.Contains(t, kinds, Added)
	assert.Contains(t, kinds, Removed)
	assert.Contains(t, kinds, Changed)
}

func TestClassifyDiffFlagsRemovedTransitionAsBreaking(t *testing.T) {
	v1 := &interchange.Bundle{ID: "b1", Constructs: []any{
		entityConstruct("order", []any{"draft", "submitted", "approved"}, "draft",
			[]any{transition("draft", "submitted"), transition("submitted", "approved")}),
	}}
	v2 := &interchange.Bundle{ID: "b2", Constructs: []any{
		entityConstruct("order", []any{"draft", "submitted", "approved"}, "draft",
			[]any{transition("draft", "submitted")}),
	}}

	classified := ClassifyDiff(DiffBundles(v1, v2))
	require.Len(t, classified.Changes, 1)
	assert.Equal(t, Breaking, classified.Changes[0].Severity)
	assert.Equal(t, Breaking, classified.OverallSeverity)
}

func TestClassifyDiffFlagsWidenedRangeAsSafe(t *testing.T) {
	v1 := &interchange.Bundle{ID: "b1", Constructs: []any{factConstruct("amount", "Int", int64(0), int64(100))}}
	v2 := &interchange.Bundle{ID: "b2", Constructs: []any{factConstruct("amount", "Int", int64(0), int64(1000))}}

	classified := ClassifyDiff(DiffBundles(v1, v2))
	require.Len(t, classified.Changes, 1)
	assert.Equal(t, Safe, classified.Changes[0].Severity)
}

func TestClassifyDiffFlagsNarrowedRangeAsBreaking(t *testing.T) {
	v1 := &interchange.Bundle{ID: "b1", Constructs: []any{factConstruct("amount", "Int", int64(0), int64(1000))}}
	v2 := &interchange.Bundle{ID: "b2", Constructs: []any{factConstruct("amount", "Int", int64(0), int64(100))}}

	classified := ClassifyDiff(DiffBundles(v1, v2))
	require.Len(t, classified.Changes, 1)
	assert.Equal(t, Breaking, classified.Changes[0].Severity)
}

func submitFlowBundle(entityStates []any, transitions []any, allowedPersonas []any) *interchange.Bundle {
	return &interchange.Bundle{ID: "b", Constructs: []any{
		entityConstruct("order", entityStates, "draft", transitions),
		map[string]any{
			"kind": "Operation", "id": "submit", "allowed_personas": allowedPersonas,
			"effects": []any{map[string]any{"entity": "order", "from": "draft", "to": "submitted", "outcome_label": "success"}},
		},
		map[string]any{
			"kind": "Flow", "id": "submit_flow", "entry": "step1",
			"steps": map[string]any{
				"step1": map[string]any{
					"kind": "OperationStep", "op": "submit",
					"outcomes": map[string]any{"success": map[string]any{"kind": "Terminal", "outcome": "submitted"}},
				},
			},
		},
	}}
}

func TestCheckFlowCompatibilityStaticPassesWhenUnchanged(t *testing.T) {
	states := []any{"draft", "submitted"}
	transitions := []any{transition("draft", "submitted")}
	personas := []any{"agent"}
	v1 := submitFlowBundle(states, transitions, personas)
	v2 := submitFlowBundle(states, transitions, personas)

	result := CheckFlowCompatibilityStatic(v1, v2, "submit_flow")
	assert.True(t, result.Compatible)
	assert.Empty(t, result.Issues)
}

func TestCheckFlowCompatibilityStaticFlagsRemovedState(t *testing.T) {
	v1 := submitFlowBundle([]any{"draft", "submitted"}, []any{transition("draft", "submitted")}, []any{"agent"})
	v2 := submitFlowBundle([]any{"draft"}, nil, []any{"agent"})

	result := CheckFlowCompatibilityStatic(v1, v2, "submit_flow")
	assert.False(t, result.Compatible)
	assert.False(t, result.StateReachabilityOK)
}

func TestBuildMigrationPlanProposesStateMappingsForRemovedState(t *testing.T) {
	v1 := &interchange.Bundle{ID: "b1", Constructs: []any{
		entityConstruct("order", []any{"draft", "submitted", "archived"}, "draft",
			[]any{transition("draft", "submitted")}),
	}}
	v2 := &interchange.Bundle{ID: "b2", Constructs: []any{
		entityConstruct("order", []any{"draft", "submitted"}, "draft",
			[]any{transition("draft", "submitted")}),
	}}

	analysis, err := AnalyzeMigration(v1, v2)
	require.NoError(t, err)
	plan, err := BuildMigrationPlan(v1, v2, analysis)
	require.NoError(t, err)

	assert.Equal(t, Breaking, plan.Severity)
	assert.Equal(t, Blocked, plan.RecommendedPolicy)

	var foundRemoved bool
	for _, m := range plan.EntityStateMappings {
		if m.FromState == "archived" && m.Removed {
			foundRemoved = true
		}
	}
	assert.True(t, foundRemoved)
}
