// Package flowexec walks a Flow's step graph from its entry step to a
// terminal outcome, either in Simulate mode (report-only) or Execute
// mode (durably recorded through a storage.TenorStorage snapshot).
package flowexec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenor/internal/interchange"
	"tenor/internal/policy"
	"tenor/internal/ruleengine"
	"tenor/internal/runtime"
	"tenor/internal/storage"
)

// Executor runs flows against a bundle, optionally persisting through
// store. Each OperationStep's outcome is derived, not chosen: among the
// operation's declared effects, the ones whose from state matches the
// entity's current state apply, and their shared outcome_label drives
// the step's outcomes map. Policy plays no part in that derivation — it
// is consulted only by higher-level callers deciding which action or
// flow a persona drives next from one ActionSpace; Run itself always
// executes the single named flow to a terminal outcome.
type Executor struct {
	bundle *interchange.Bundle
	store  storage.TenorStorage
	Policy policy.AgentPolicy
}

// New builds an Executor. store may be nil when only Simulate runs are
// needed.
func New(bundle *interchange.Bundle, store storage.TenorStorage) *Executor {
	return &Executor{bundle: bundle, store: store}
}

// run carries the mutable state threaded through one flow walk.
type run struct {
	bundle      *interchange.Bundle
	snapshot    runtime.Snapshot
	states      runtime.EntityStateMap
	persona     string
	mode        ExecutionMode
	path        []runtime.StepResult
	transitions []runtime.EntityStateChange
	storageTx   storage.Snapshot
	flowExecID  string
}

// Run walks flowID's step graph from its entry step to a terminal
// outcome. snapshot and states are not mutated; Run operates on private
// clones.
func (e *Executor) Run(ctx context.Context, flowID string, snap runtime.Snapshot, states runtime.EntityStateMap, persona string, mode ExecutionMode) (*runtime.FlowResult, error) {
	flow, ok := findConstruct(e.bundle, "Flow", flowID)
	if !ok {
		return nil, runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("flow '%s' not found in bundle", flowID)).WithStep(flowID)
	}

	r := &run{
		bundle:     e.bundle,
		snapshot:   snap,
		states:     cloneStates(states),
		persona:    persona,
		mode:       mode,
		flowExecID: uuid.NewString(),
	}

	if mode == Execute {
		if e.store == nil {
			return nil, runtime.NewError(runtime.KindStorageBackend, "execute mode requires a configured storage backend")
		}
		tx, err := e.store.BeginSnapshot(ctx)
		if err != nil {
			return nil, runtime.NewError(runtime.KindStorageBackend, err.Error())
		}
		r.storageTx = tx
	}

	entry, _ := flow["entry"].(string)
	steps, _ := flow["steps"].(map[string]any)

	outcome, walkErr := r.walk(ctx, steps, entry)

	if r.storageTx != nil {
		if walkErr != nil {
			_ = r.storageTx.Abort(ctx)
		} else if err := r.finalizeFlowExecution(ctx, flow, flowID, snap, outcome); err != nil {
			_ = r.storageTx.Abort(ctx)
			return nil, err
		} else if err := r.storageTx.Commit(ctx); err != nil {
			return nil, runtime.NewError(runtime.KindStorageBackend, err.Error())
		}
	}
	if walkErr != nil {
		return nil, walkErr
	}

	return &runtime.FlowResult{
		Simulation:      mode == Simulate,
		FlowID:          flowID,
		Persona:         persona,
		Outcome:         outcome,
		Path:            r.path,
		WouldTransition: r.transitions,
		Verdicts:        snap.Verdicts.Verdicts,
	}, nil
}

func (r *run) finalizeFlowExecution(ctx context.Context, flow map[string]any, flowID string, snap runtime.Snapshot, outcome string) error {
	contractID, _ := flow["id"].(string)
	record := storage.FlowExecutionRecord{
		ID:               r.flowExecID,
		FlowID:           flowID,
		ContractID:       contractID,
		PersonaID:        r.persona,
		StartedAt:        time.Now().UTC(),
		CompletedAt:      time.Now().UTC(),
		Outcome:          outcome,
		SnapshotFacts:    snap.Facts,
		SnapshotVerdicts: snap.Verdicts,
	}
	if err := r.storageTx.InsertFlowExecution(ctx, record); err != nil {
		return runtime.NewError(runtime.KindStorageBackend, err.Error())
	}
	return nil
}

func cloneStates(states runtime.EntityStateMap) runtime.EntityStateMap {
	out := make(runtime.EntityStateMap, len(states))
	for k, v := range states {
		out[k] = v
	}
	return out
}

// mergeStates copies src's entries into dst, panicking in development
// builds would be excessive; since Pass 5's disjointness invariant (I6)
// guarantees parallel branches never write the same entity, a later
// write simply overwrites — callers that need to detect a violation
// should compare key sets before merging.
func mergeStates(dst, src runtime.EntityStateMap) {
	for k, v := range src {
		dst[k] = v
	}
}

func findConstruct(bundle *interchange.Bundle, kind, id string) (map[string]any, bool) {
	for _, raw := range bundle.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != kind {
			continue
		}
		if cid, _ := c["id"].(string); cid == id {
			return c, true
		}
	}
	return nil, false
}

func evalCond(expr map[string]any, snap runtime.Snapshot) (bool, error) {
	return ruleengine.EvalCondition(expr, snap.Facts, snap.Verdicts)
}
