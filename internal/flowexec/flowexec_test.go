package flowexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/interchange"
	"tenor/internal/runtime"
	"tenor/internal/storage/memstore"
)

func stepRef(id string) map[string]any    { return map[string]any{"kind": "StepRef", "step_id": id} }
func terminal(outcome string) map[string]any {
	return map[string]any{"kind": "Terminal", "outcome": outcome}
}

func submitFlowBundle() *interchange.Bundle {
	return &interchange.Bundle{Constructs: []any{
		map[string]any{
			"kind": "Operation", "id": "submit", "allowed_personas": []any{"agent"},
			"effects": []any{
				map[string]any{"entity": "order", "from": "draft", "to": "submitted", "outcome_label": "success"},
			},
			"precondition": nil,
		},
		map[string]any{
			"kind": "Flow", "id": "submit_flow", "entry": "step1",
			"steps": map[string]any{
				"step1": map[string]any{
					"kind": "OperationStep", "op": "submit", "persona": "agent",
					"outcomes": map[string]any{"success": terminal("submitted")},
				},
			},
		},
	}}
}

func TestRunSimulateAppliesEffectAndReachesTerminalOutcome(t *testing.T) {
	bundle := submitFlowBundle()
	exec := New(bundle, nil)
	states := runtime.EntityStateMap{"order": "draft"}

	result, err := exec.Run(context.Background(), "submit_flow", runtime.Snapshot{}, states, "agent", Simulate)
	require.NoError(t, err)
	assert.True(t, result.Simulation)
	assert.Equal(t, "submitted", result.Outcome)
	require.Len(t, result.WouldTransition, 1)
	assert.Equal(t, "order", result.WouldTransition[0].EntityID)
	assert.Equal(t, "draft", result.WouldTransition[0].FromState)
	assert.Equal(t, "submitted", result.WouldTransition[0].ToState)
	// caller's map must not be mutated
	assert.Equal(t, "draft", states["order"])
}

func TestRunRejectsUnauthorizedPersona(t *testing.T) {
	bundle := submitFlowBundle()
	exec := New(bundle, nil)
	states := runtime.EntityStateMap{"order": "draft"}

	_, err := exec.Run(context.Background(), "submit_flow", runtime.Snapshot{}, states, "intruder", Simulate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestRunExecutePersistsTransitionThroughStorage(t *testing.T) {
	bundle := submitFlowBundle()
	store := memstore.New()
	ctx := context.Background()

	tx, err := store.BeginSnapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InitializeEntity(ctx, "order", runtime.DefaultInstanceID, "draft"))
	require.NoError(t, tx.Commit(ctx))

	exec := New(bundle, store)
	states := runtime.EntityStateMap{"order": "draft"}
	result, err := exec.Run(ctx, "submit_flow", runtime.Snapshot{}, states, "agent", Execute)
	require.NoError(t, err)
	assert.False(t, result.Simulation)
	assert.Equal(t, "submitted", result.Outcome)

	rec, err := store.GetEntityState(ctx, "order", runtime.DefaultInstanceID)
	require.NoError(t, err)
	assert.Equal(t, "submitted", rec.State)
	assert.Equal(t, int64(1), rec.Version)
}

func TestRunFollowsBranchStepCondition(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		map[string]any{
			"kind": "Flow", "id": "branch_flow", "entry": "step1",
			"steps": map[string]any{
				"step1": map[string]any{
					"kind": "BranchStep",
					"condition": map[string]any{
						"kind": "Compare", "op": ">",
						"left":  map[string]any{"kind": "FactRef", "id": "order_total"},
						"right": map[string]any{"kind": "Literal", "value": map[string]any{"kind": "Int", "value": int64(100)}},
					},
					"if_true":  stepRef("high"),
					"if_false": stepRef("low"),
				},
				"high": map[string]any{"kind": "HandoffStep", "from_persona": "agent", "to_persona": "manager", "next": "done_high"},
				"done_high": map[string]any{"kind": "OperationStep", "op": "noop", "outcomes": map[string]any{"success": terminal("escalated")}},
				"low":       map[string]any{"kind": "OperationStep", "op": "noop", "outcomes": map[string]any{"success": terminal("auto_approved")}},
			},
		},
		map[string]any{"kind": "Operation", "id": "noop", "allowed_personas": []any{"agent", "manager"}, "effects": []any{}},
	}}
	exec := New(bundle, nil)

	snap := runtime.Snapshot{Facts: runtime.FactSet{"order_total": int64(150)}}
	result, err := exec.Run(context.Background(), "branch_flow", snap, runtime.EntityStateMap{}, "agent", Simulate)
	require.NoError(t, err)
	assert.Equal(t, "escalated", result.Outcome)

	snap2 := runtime.Snapshot{Facts: runtime.FactSet{"order_total": int64(50)}}
	result2, err := exec.Run(context.Background(), "branch_flow", snap2, runtime.EntityStateMap{}, "agent", Simulate)
	require.NoError(t, err)
	assert.Equal(t, "auto_approved", result2.Outcome)
}

func parallelFlowBundle() *interchange.Bundle {
	return &interchange.Bundle{Constructs: []any{
		map[string]any{"kind": "Operation", "id": "ship", "allowed_personas": []any{"agent"}, "effects": []any{
			map[string]any{"entity": "shipment", "from": "pending", "to": "shipped", "outcome_label": "success"},
		}},
		map[string]any{"kind": "Operation", "id": "invoice", "allowed_personas": []any{"agent"}, "effects": []any{
			map[string]any{"entity": "invoice", "from": "pending", "to": "issued", "outcome_label": "success"},
		}},
		map[string]any{
			"kind": "Flow", "id": "fulfill_flow", "entry": "step1",
			"steps": map[string]any{
				"step1": map[string]any{
					"kind": "ParallelStep",
					"branches": []any{
						map[string]any{"id": "ship_branch", "entry": "ship_step", "steps": map[string]any{
							"ship_step": map[string]any{"kind": "OperationStep", "op": "ship", "outcomes": map[string]any{"success": terminal("shipped")}},
						}},
						map[string]any{"id": "invoice_branch", "entry": "invoice_step", "steps": map[string]any{
							"invoice_step": map[string]any{"kind": "OperationStep", "op": "invoice", "outcomes": map[string]any{"success": terminal("issued")}},
						}},
					},
					"join": map[string]any{"on_all_success": terminal("fulfilled")},
				},
			},
		},
	}}
}

func TestRunParallelStepMergesDisjointBranchStates(t *testing.T) {
	bundle := parallelFlowBundle()
	exec := New(bundle, nil)
	states := runtime.EntityStateMap{"shipment": "pending", "invoice": "pending"}

	result, err := exec.Run(context.Background(), "fulfill_flow", runtime.Snapshot{}, states, "agent", Simulate)
	require.NoError(t, err)
	assert.Equal(t, "fulfilled", result.Outcome)
	assert.Len(t, result.WouldTransition, 2)
}
