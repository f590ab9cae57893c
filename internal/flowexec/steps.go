package flowexec

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tenor/internal/runtime"
	"tenor/internal/storage"
)

// walk executes steps starting at stepID until a Terminal StepTarget is
// reached, returning the terminal outcome label.
func (r *run) walk(ctx context.Context, steps map[string]any, stepID string) (string, error) {
	step, ok := steps[stepID].(map[string]any)
	if !ok {
		return "", runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("step '%s' not found", stepID)).WithStep(stepID)
	}

	switch step["kind"] {
	case "OperationStep":
		return r.runOperationStep(ctx, steps, stepID, step)
	case "BranchStep":
		return r.runBranchStep(ctx, steps, stepID, step)
	case "HandoffStep":
		return r.runHandoffStep(ctx, steps, stepID, step)
	case "SubFlowStep":
		return r.runSubFlowStep(ctx, steps, stepID, step)
	case "ParallelStep":
		return r.runParallelStep(ctx, steps, stepID, step)
	default:
		return "", runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("unknown step kind %v at '%s'", step["kind"], stepID)).WithStep(stepID)
	}
}

func (r *run) runOperationStep(ctx context.Context, steps map[string]any, stepID string, step map[string]any) (string, error) {
	opID, _ := step["op"].(string)
	op, ok := findConstruct(r.bundle, "Operation", opID)
	if !ok {
		return "", runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("operation '%s' not found", opID)).WithStep(stepID)
	}

	if allowed, _ := op["allowed_personas"].([]any); len(allowed) > 0 && !personaIn(allowed, r.persona) {
		return r.fail(ctx, steps, stepID, step, runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("persona '%s' not authorized for operation '%s'", r.persona, opID)).WithStep(stepID))
	}

	if precondition, _ := op["precondition"].(map[string]any); precondition != nil {
		holds, err := evalCond(precondition, r.snapshot)
		if err != nil {
			return "", runtime.NewError(runtime.KindFlowStep, err.Error()).WithStep(stepID)
		}
		if !holds {
			return r.fail(ctx, steps, stepID, step, runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("precondition not met for operation '%s'", opID)).WithStep(stepID))
		}
	}

	effects, _ := op["effects"].([]any)
	outcomeLabel, applied, err := r.applyEffects(effects)
	if err != nil {
		return r.fail(ctx, steps, stepID, step, runtime.NewError(runtime.KindFlowStep, err.Error()).WithStep(stepID))
	}

	opExecID := uuid.NewString()
	if r.storageTx != nil {
		if err := r.persistOperationStep(ctx, opExecID, stepID, opID, outcomeLabel, applied); err != nil {
			return "", err
		}
	} else {
		for _, eff := range applied {
			r.transitions = append(r.transitions, runtime.EntityStateChange{
				EntityID: eff.entity, InstanceID: eff.instance, FromState: eff.from, ToState: eff.to,
			})
		}
	}

	r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "OperationStep", Result: outcomeLabel})

	outcomes, _ := step["outcomes"].(map[string]any)
	target, ok := outcomes[outcomeLabel].(map[string]any)
	if !ok {
		return "", runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("operation '%s' produced unmapped outcome '%s'", opID, outcomeLabel)).WithStep(stepID)
	}
	return r.follow(ctx, steps, target)
}

type appliedEffect struct {
	entity, instance, from, to string
}

// applyEffects finds, among op's declared effects, those whose `from`
// matches the entity's current state, applies the transition in-memory,
// and returns the outcome_label shared by the applied effects (they
// must agree; an operation's effects partition by outcome).
func (r *run) applyEffects(effects []any) (string, []appliedEffect, error) {
	if len(effects) == 0 {
		return "success", nil, nil
	}
	var outcomeLabel string
	var applied []appliedEffect
	for _, raw := range effects {
		eff, _ := raw.(map[string]any)
		entityID, _ := eff["entity"].(string)
		from, _ := eff["from"].(string)
		to, _ := eff["to"].(string)
		current := r.states[entityID]
		if current != from {
			continue
		}
		label, _ := eff["outcome_label"].(string)
		if label == "" {
			label = "success"
		}
		if outcomeLabel == "" {
			outcomeLabel = label
		} else if outcomeLabel != label {
			return "", nil, fmt.Errorf("operation effects disagree on outcome label: '%s' vs '%s'", outcomeLabel, label)
		}
		r.states[entityID] = to
		applied = append(applied, appliedEffect{entity: entityID, instance: runtime.DefaultInstanceID, from: from, to: to})
	}
	if outcomeLabel == "" {
		return "", nil, fmt.Errorf("no declared effect matches current entity state")
	}
	return outcomeLabel, applied, nil
}

func (r *run) persistOperationStep(ctx context.Context, opExecID, stepID, opID, outcomeLabel string, applied []appliedEffect) error {
	if err := r.storageTx.InsertOperationExecution(ctx, storage.OperationExecutionRecord{
		ID: opExecID, FlowExecutionID: r.flowExecID, OperationID: opID,
		PersonaID: r.persona, Outcome: outcomeLabel, StepID: stepID,
	}); err != nil {
		return runtime.NewError(runtime.KindStorageBackend, err.Error()).WithStep(stepID)
	}

	for _, eff := range applied {
		current, err := r.storageTx.GetEntityStateForUpdate(ctx, eff.entity, eff.instance)
		if err != nil {
			return runtime.NewError(runtime.KindStorageBackend, err.Error()).WithEntity(eff.entity).WithStep(stepID)
		}
		newVersion, err := r.storageTx.UpdateEntityState(ctx, eff.entity, eff.instance, current.Version, eff.to, "", opID)
		if err != nil {
			return runtime.NewError(runtime.KindConcurrentConflict, err.Error()).WithEntity(eff.entity).WithStep(stepID)
		}

		if err := r.storageTx.InsertEntityTransition(ctx, storage.EntityTransitionRecord{
			ID: uuid.NewString(), OperationExecutionID: opExecID, EntityID: eff.entity,
			InstanceID: eff.instance, FromState: eff.from, ToState: eff.to,
			FromVersion: current.Version, ToVersion: newVersion,
		}); err != nil {
			return runtime.NewError(runtime.KindStorageBackend, err.Error()).WithEntity(eff.entity).WithStep(stepID)
		}

		if err := r.storageTx.InsertProvenanceRecord(ctx, storage.ProvenanceRecord{
			ID: uuid.NewString(), OperationExecutionID: opExecID,
			FactsUsed: r.snapshot.Facts, VerdictsUsed: r.snapshot.Verdicts,
			VerdictSetSnapshot: r.snapshot.Verdicts,
		}); err != nil {
			return runtime.NewError(runtime.KindStorageBackend, err.Error()).WithEntity(eff.entity).WithStep(stepID)
		}

		r.transitions = append(r.transitions, runtime.EntityStateChange{
			EntityID: eff.entity, InstanceID: eff.instance, FromState: eff.from, ToState: eff.to,
		})
	}
	return nil
}

func (r *run) runBranchStep(ctx context.Context, steps map[string]any, stepID string, step map[string]any) (string, error) {
	condition, _ := step["condition"].(map[string]any)
	holds, err := evalCond(condition, r.snapshot)
	if err != nil {
		return "", runtime.NewError(runtime.KindFlowStep, err.Error()).WithStep(stepID)
	}
	r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "BranchStep", Result: fmt.Sprintf("%t", holds)})

	var target map[string]any
	if holds {
		target, _ = step["if_true"].(map[string]any)
	} else {
		target, _ = step["if_false"].(map[string]any)
	}
	return r.follow(ctx, steps, target)
}

func (r *run) runHandoffStep(ctx context.Context, steps map[string]any, stepID string, step map[string]any) (string, error) {
	toPersona, _ := step["to_persona"].(string)
	r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "HandoffStep", Result: "handed_off"})
	r.persona = toPersona
	next, _ := step["next"].(string)
	return r.walk(ctx, steps, next)
}

func (r *run) runSubFlowStep(ctx context.Context, steps map[string]any, stepID string, step map[string]any) (string, error) {
	subFlowID, _ := step["flow"].(string)
	subFlow, ok := findConstruct(r.bundle, "Flow", subFlowID)
	if !ok {
		return "", runtime.NewError(runtime.KindFlowStep, fmt.Sprintf("sub-flow '%s' not found", subFlowID)).WithStep(stepID)
	}
	subSteps, _ := subFlow["steps"].(map[string]any)
	subEntry, _ := subFlow["entry"].(string)

	outcome, err := r.walk(ctx, subSteps, subEntry)
	r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "SubFlowStep", Result: outcome})
	if err != nil {
		return r.fail(ctx, steps, stepID, step, err)
	}

	onSuccess, _ := step["on_success"].(map[string]any)
	return r.follow(ctx, steps, onSuccess)
}

// fail dispatches step["on_failure"] when one is declared, otherwise
// propagates cause.
func (r *run) fail(ctx context.Context, steps map[string]any, stepID string, step map[string]any, cause error) (string, error) {
	handler, _ := step["on_failure"].(map[string]any)
	if handler == nil {
		return "", cause
	}
	switch handler["kind"] {
	case "Terminate":
		outcome, _ := handler["outcome"].(string)
		r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "FailureTerminate", Result: outcome})
		return outcome, nil
	case "Escalate":
		toPersona, _ := handler["to_persona"].(string)
		next, _ := handler["next"].(string)
		r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "FailureEscalate", Result: "escalated"})
		r.persona = toPersona
		return r.walk(ctx, steps, next)
	case "Compensate":
		return r.runCompensation(ctx, steps, stepID, handler)
	default:
		return "", cause
	}
}

func (r *run) runCompensation(ctx context.Context, steps map[string]any, stepID string, handler map[string]any) (string, error) {
	compSteps, _ := handler["steps"].([]any)
	for _, raw := range compSteps {
		comp, _ := raw.(map[string]any)
		opID, _ := comp["op"].(string)
		op, ok := findConstruct(r.bundle, "Operation", opID)
		if !ok {
			continue
		}
		effects, _ := op["effects"].([]any)
		outcomeLabel, applied, err := r.applyEffects(effects)
		if err != nil {
			continue
		}
		if r.storageTx != nil {
			if err := r.persistOperationStep(ctx, uuid.NewString(), stepID, opID, outcomeLabel, applied); err != nil {
				return "", err
			}
		} else {
			for _, eff := range applied {
				r.transitions = append(r.transitions, runtime.EntityStateChange{
					EntityID: eff.entity, InstanceID: eff.instance, FromState: eff.from, ToState: eff.to,
				})
			}
		}
		r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "CompensationStep", Result: opID})
	}
	then, _ := handler["then"].(string)
	return r.walk(ctx, steps, then)
}

// follow resolves a StepTarget: StepRef continues the walk, Terminal
// returns its outcome directly.
func (r *run) follow(ctx context.Context, steps map[string]any, target map[string]any) (string, error) {
	if target == nil {
		return "", fmt.Errorf("step target missing")
	}
	switch target["kind"] {
	case "StepRef":
		stepID, _ := target["step_id"].(string)
		return r.walk(ctx, steps, stepID)
	case "Terminal":
		outcome, _ := target["outcome"].(string)
		return outcome, nil
	default:
		return "", fmt.Errorf("unknown step target kind %v", target["kind"])
	}
}

func personaIn(allowed []any, persona string) bool {
	for _, a := range allowed {
		if a == persona {
			return true
		}
	}
	return false
}
