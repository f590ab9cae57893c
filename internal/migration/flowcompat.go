package migration

import (
	"fmt"
	"sort"

	"tenor/internal/interchange"
)

// FlowCompatibilityResult reports whether a v1 flow can still run
// unmodified against v2, checked symbolically by walking its step graph
// rather than executing it.
type FlowCompatibilityResult struct {
	FlowID string

	// VerdictIsolationOK is layer 1: every verdict type a branch
	// condition or operation precondition depends on is still produced
	// by a rule in v2.
	VerdictIsolationOK bool
	// StateReachabilityOK is layer 2: every entity state an effect
	// transitions from or to is still declared in v2.
	StateReachabilityOK bool
	// StructuralOK is layer 3: every reachable step still exists in v2
	// with the same step kind, and every referenced operation still
	// exists.
	StructuralOK bool

	Compatible bool
	Issues     []string
}

// CheckFlowCompatibilityStatic walks flowID's step graph in v1 from its
// entry step, checking each reachable step against v2.
func CheckFlowCompatibilityStatic(v1, v2 *interchange.Bundle, flowID string) FlowCompatibilityResult {
	result := FlowCompatibilityResult{
		FlowID: flowID, VerdictIsolationOK: true, StateReachabilityOK: true, StructuralOK: true,
	}

	v1Flow, ok := findConstruct(v1, "Flow", flowID)
	if !ok {
		result.Issues = append(result.Issues, fmt.Sprintf("flow '%s' not found in v1 bundle", flowID))
		return result
	}
	v2Flow, ok := findConstruct(v2, "Flow", flowID)
	if !ok {
		result.StructuralOK = false
		result.Issues = append(result.Issues, fmt.Sprintf("flow '%s' removed in v2", flowID))
		return result
	}

	v1Steps, _ := v1Flow["steps"].(map[string]any)
	v2Steps, _ := v2Flow["steps"].(map[string]any)
	entry, _ := v1Flow["entry"].(string)

	v2Entities := indexConstructs(v2)
	v2VerdictTypes := rulesVerdictSet(v2)

	visited := map[string]bool{}
	var walk func(stepID string)
	walk = func(stepID string) {
		if stepID == "" || visited[stepID] {
			return
		}
		visited[stepID] = true
		step, ok := v1Steps[stepID].(map[string]any)
		if !ok {
			return
		}

		v2Step, stillThere := v2Steps[stepID].(map[string]any)
		switch {
		case !stillThere:
			result.StructuralOK = false
			result.Issues = append(result.Issues, fmt.Sprintf("step '%s' removed in v2", stepID))
		case v2Step["kind"] != step["kind"]:
			result.StructuralOK = false
			result.Issues = append(result.Issues, fmt.Sprintf("step '%s' changed kind from %v to %v", stepID, step["kind"], v2Step["kind"]))
		}

		switch step["kind"] {
		case "OperationStep":
			opID, _ := step["op"].(string)
			op, opOK := v2Entities[constructKey{"Operation", opID}]
			if !opOK {
				result.StructuralOK = false
				result.Issues = append(result.Issues, fmt.Sprintf("operation '%s' referenced by step '%s' removed in v2", opID, stepID))
			} else {
				checkEffectsReachable(op, v2Entities, &result)
				checkPreconditionVerdicts(op["precondition"], v2VerdictTypes, &result)
			}
			outcomes, _ := step["outcomes"].(map[string]any)
			for _, target := range outcomes {
				followTarget(target, walk)
			}
		case "BranchStep":
			checkPreconditionVerdicts(step["condition"], v2VerdictTypes, &result)
			followTarget(step["if_true"], walk)
			followTarget(step["if_false"], walk)
		case "HandoffStep":
			if next, ok := step["next"].(string); ok {
				walk(next)
			}
		case "SubFlowStep":
			followTarget(step["on_success"], walk)
		case "ParallelStep":
			if join, ok := step["join"].(map[string]any); ok {
				for _, target := range join {
					followTarget(target, walk)
				}
			}
		}
	}
	walk(entry)

	result.Compatible = result.StructuralOK && result.StateReachabilityOK && result.VerdictIsolationOK
	sort.Strings(result.Issues)
	return result
}

func followTarget(target any, walk func(string)) {
	t, ok := target.(map[string]any)
	if !ok {
		return
	}
	if t["kind"] == "StepRef" {
		if stepID, ok := t["step_id"].(string); ok {
			walk(stepID)
		}
	}
}

func checkEffectsReachable(op map[string]any, v2Entities map[constructKey]map[string]any, result *FlowCompatibilityResult) {
	effects, _ := op["effects"].([]any)
	for _, raw := range effects {
		eff, _ := raw.(map[string]any)
		entityID, _ := eff["entity"].(string)
		from, _ := eff["from"].(string)
		to, _ := eff["to"].(string)
		entity, ok := v2Entities[constructKey{"Entity", entityID}]
		if !ok {
			result.StateReachabilityOK = false
			result.Issues = append(result.Issues, fmt.Sprintf("entity '%s' removed in v2", entityID))
			continue
		}
		states := stringSet(entity["states"])
		if !states[from] || !states[to] {
			result.StateReachabilityOK = false
			result.Issues = append(result.Issues, fmt.Sprintf("entity '%s' no longer declares state '%s' or '%s'", entityID, from, to))
		}
	}
}

func rulesVerdictSet(b *interchange.Bundle) map[string]bool {
	out := map[string]bool{}
	for _, raw := range b.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != "Rule" {
			continue
		}
		if vt, ok := c["verdict_type"].(string); ok {
			out[vt] = true
		}
	}
	return out
}

// checkPreconditionVerdicts walks the VerdictPresent/And/Or/Not subset
// of a precondition or branch condition expression tree, same subset
// internal/actionspace inspects for its missing_verdicts reason.
func checkPreconditionVerdicts(expr any, v2VerdictTypes map[string]bool, result *FlowCompatibilityResult) {
	e, ok := expr.(map[string]any)
	if !ok {
		return
	}
	switch e["kind"] {
	case "VerdictPresent":
		verdictType, _ := e["verdict_type"].(string)
		if verdictType != "" && !v2VerdictTypes[verdictType] {
			result.VerdictIsolationOK = false
			result.Issues = append(result.Issues, fmt.Sprintf("verdict type '%s' no longer produced by any rule in v2", verdictType))
		}
	case "And", "Or":
		checkPreconditionVerdicts(e["lhs"], v2VerdictTypes, result)
		checkPreconditionVerdicts(e["rhs"], v2VerdictTypes, result)
	case "Not":
		checkPreconditionVerdicts(e["operand"], v2VerdictTypes, result)
	}
}
