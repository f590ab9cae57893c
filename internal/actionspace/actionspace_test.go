package actionspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/interchange"
	"tenor/internal/runtime"
)

func operationConstruct(id string, personas []any, effects []any, precondition map[string]any) map[string]any {
	return map[string]any{
		"kind": "Operation", "id": id,
		"allowed_personas": personas,
		"effects":          effects,
		"precondition":     precondition,
	}
}

func flowConstruct(id, entryStepID, opID string) map[string]any {
	return map[string]any{
		"kind": "Flow", "id": id, "entry": entryStepID,
		"steps": map[string]any{
			entryStepID: map[string]any{"kind": "OperationStep", "op": opID},
		},
	}
}

func effect(entity, from, to string) map[string]any {
	return map[string]any{"entity": entity, "from": from, "to": to}
}

func TestComputeListsActionWhenPersonaAndStateMatch(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		operationConstruct("submit", []any{"agent"}, []any{effect("order", "draft", "submitted")}, nil),
		flowConstruct("submit_flow", "step1", "submit"),
	}}
	states := runtime.EntityStateMap{"order": "draft"}

	space := Compute(bundle, nil, runtime.VerdictSet{}, states, "agent")

	require.Len(t, space.Actions, 1)
	assert.Equal(t, "submit_flow", space.Actions[0].FlowID)
	assert.Equal(t, "submit", space.Actions[0].EntryOperationID)
	assert.Empty(t, space.BlockedActions)
}

func TestComputeBlocksWhenPersonaNotAuthorized(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		operationConstruct("submit", []any{"manager"}, []any{effect("order", "draft", "submitted")}, nil),
		flowConstruct("submit_flow", "step1", "submit"),
	}}
	states := runtime.EntityStateMap{"order": "draft"}

	space := Compute(bundle, nil, runtime.VerdictSet{}, states, "agent")

	assert.Empty(t, space.Actions)
	require.Len(t, space.BlockedActions, 1)
	assert.Equal(t, "PersonaNotAuthorized", space.BlockedActions[0].Reason.Type)
}

func TestComputeBlocksWhenEntityNotInSourceState(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		operationConstruct("submit", []any{"agent"}, []any{effect("order", "draft", "submitted")}, nil),
		flowConstruct("submit_flow", "step1", "submit"),
	}}
	states := runtime.EntityStateMap{"order": "submitted"}

	space := Compute(bundle, nil, runtime.VerdictSet{}, states, "agent")

	require.Len(t, space.BlockedActions, 1)
	reason := space.BlockedActions[0].Reason
	assert.Equal(t, "EntityNotInSourceState", reason.Type)
	assert.Equal(t, "order", reason.EntityID)
	assert.Equal(t, "draft", reason.RequiredState)
	assert.Equal(t, "submitted", reason.CurrentState)
}

func TestComputeBlocksWhenPreconditionVerdictMissing(t *testing.T) {
	precondition := map[string]any{"kind": "VerdictPresent", "verdict_type": "approved"}
	bundle := &interchange.Bundle{Constructs: []any{
		operationConstruct("submit", []any{"agent"}, []any{effect("order", "draft", "submitted")}, precondition),
		flowConstruct("submit_flow", "step1", "submit"),
	}}
	states := runtime.EntityStateMap{"order": "draft"}

	space := Compute(bundle, nil, runtime.VerdictSet{}, states, "agent")

	require.Len(t, space.BlockedActions, 1)
	reason := space.BlockedActions[0].Reason
	assert.Equal(t, "PreconditionNotMet", reason.Type)
	assert.Equal(t, []string{"approved"}, reason.MissingVerdicts)
}

func TestComputeAllowsWhenPreconditionVerdictPresent(t *testing.T) {
	precondition := map[string]any{"kind": "VerdictPresent", "verdict_type": "approved"}
	bundle := &interchange.Bundle{Constructs: []any{
		operationConstruct("submit", []any{"agent"}, []any{effect("order", "draft", "submitted")}, precondition),
		flowConstruct("submit_flow", "step1", "submit"),
	}}
	states := runtime.EntityStateMap{"order": "draft"}
	verdicts := runtime.VerdictSet{Verdicts: []runtime.Verdict{{Type: "approved"}}}

	space := Compute(bundle, nil, verdicts, states, "agent")

	require.Len(t, space.Actions, 1)
	assert.Empty(t, space.BlockedActions)
}

func TestComputeSkipsFlowsWithNonOperationEntryStep(t *testing.T) {
	bundle := &interchange.Bundle{Constructs: []any{
		map[string]any{
			"kind": "Flow", "id": "branch_flow", "entry": "step1",
			"steps": map[string]any{
				"step1": map[string]any{"kind": "BranchStep"},
			},
		},
	}}

	space := Compute(bundle, nil, runtime.VerdictSet{}, runtime.EntityStateMap{}, "agent")

	assert.Empty(t, space.Actions)
	assert.Empty(t, space.BlockedActions)
}
