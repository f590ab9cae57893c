package pass6

import "tenor/internal/ast"

func convertStep(s ast.RawStep) map[string]any {
	switch s.Kind {
	case ast.StepOperation:
		m := map[string]any{
			"kind":     "OperationStep",
			"op":       s.Op,
			"persona":  s.Persona,
			"outcomes": convertStepTargetMap(s.Outcomes),
		}
		if s.OnFailure != nil {
			m["on_failure"] = convertFailureHandler(*s.OnFailure)
		} else {
			m["on_failure"] = nil
		}
		return m
	case ast.StepBranch:
		return map[string]any{
			"kind":      "BranchStep",
			"condition": convertExpr(s.Condition),
			"persona":   s.Persona,
			"if_true":   convertStepTarget(*s.IfTrue),
			"if_false":  convertStepTarget(*s.IfFalse),
		}
	case ast.StepHandoff:
		return map[string]any{
			"kind":         "HandoffStep",
			"from_persona": s.FromPersona,
			"to_persona":   s.ToPersona,
			"next":         s.Next,
		}
	case ast.StepSubFlow:
		return map[string]any{
			"kind":       "SubFlowStep",
			"flow":       s.Flow,
			"persona":    s.Persona,
			"on_success": convertStepTarget(*s.OnSuccess),
			"on_failure": convertFailureHandler(*s.OnFailure),
		}
	case ast.StepParallel:
		return map[string]any{
			"kind":     "ParallelStep",
			"branches": convertBranches(s.Branches),
			"join":     convertJoinPolicy(s.Join),
		}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}

func convertStepTarget(t ast.RawStepTarget) map[string]any {
	switch t.Kind {
	case ast.TargetStepRef:
		return map[string]any{"kind": "StepRef", "step_id": t.StepID}
	case ast.TargetTerminal:
		return map[string]any{"kind": "Terminal", "outcome": t.Outcome}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}

func convertStepTargetMap(outcomes map[string]ast.RawStepTarget) map[string]any {
	out := make(map[string]any, len(outcomes))
	for label, target := range outcomes {
		out[label] = convertStepTarget(target)
	}
	return out
}

func convertFailureHandler(h ast.RawFailureHandler) map[string]any {
	switch h.Kind {
	case ast.FailureTerminate:
		return map[string]any{"kind": "Terminate", "outcome": h.Outcome}
	case ast.FailureCompensate:
		return map[string]any{"kind": "Compensate", "steps": convertCompSteps(h.CompSteps), "then": h.Then}
	case ast.FailureEscalate:
		return map[string]any{"kind": "Escalate", "to_persona": h.ToPersona, "next": h.Next}
	default:
		return map[string]any{"kind": "Unknown"}
	}
}

func convertCompSteps(steps []ast.RawCompStep) []any {
	out := make([]any, len(steps))
	for i, s := range steps {
		out[i] = map[string]any{"op": s.Op, "persona": s.Persona, "on_failure": s.OnFailure}
	}
	return out
}

func convertBranches(branches []ast.RawBranch) []any {
	out := make([]any, len(branches))
	for i, b := range branches {
		out[i] = map[string]any{
			"id":    b.ID,
			"entry": b.Entry,
			"steps": convertSteps(b.Steps),
		}
	}
	return out
}

func convertJoinPolicy(j ast.RawJoinPolicy) map[string]any {
	m := map[string]any{}
	if j.OnAllSuccess != nil {
		m["on_all_success"] = convertStepTarget(*j.OnAllSuccess)
	} else {
		m["on_all_success"] = nil
	}
	if j.OnAnyFailure != nil {
		m["on_any_failure"] = convertFailureHandler(*j.OnAnyFailure)
	} else {
		m["on_any_failure"] = nil
	}
	if j.OnAllComplete != nil {
		m["on_all_complete"] = convertStepTarget(*j.OnAllComplete)
	} else {
		m["on_all_complete"] = nil
	}
	return m
}
