// Package actionspace computes, for a persona and a snapshot, the set of
// flows currently enterable plus the blocked candidates and why each is
// blocked. Computation is pure: no storage or I/O dependency, matching
// §4.12's "snapshot-only, no side effects" contract.
package actionspace

import (
	"fmt"

	"tenor/internal/interchange"
	"tenor/internal/runtime"
)

// Compute enumerates every Flow in bundle whose entry step is an
// OperationStep, classifying each as available or blocked for persona
// given the current facts, verdicts, and entity states. Flows are
// visited in ascending flow-id order for determinism, not in bundle
// declaration order.
func Compute(bundle *interchange.Bundle, facts runtime.FactSet, verdicts runtime.VerdictSet, states runtime.EntityStateMap, persona string) runtime.ActionSpace {
	operations := indexByID(bundle, "Operation")
	flows := indexByID(bundle, "Flow")

	space := runtime.ActionSpace{
		PersonaID:       persona,
		CurrentVerdicts: summarizeVerdicts(verdicts),
	}

	for _, flowID := range sortedIDs(flows) {
		flow := flows[flowID]
		entryID, _ := flow["entry"].(string)
		steps, _ := flow["steps"].(map[string]any)
		step, ok := steps[entryID].(map[string]any)
		if !ok || step["kind"] != "OperationStep" {
			continue
		}
		opID, _ := step["op"].(string)
		op, ok := operations[opID]
		if !ok {
			continue
		}

		if reason, blocked := blockReason(op, facts, verdicts, states, persona); blocked {
			space.BlockedActions = append(space.BlockedActions, runtime.BlockedAction{
				FlowID: flowID, Reason: *reason, InstanceBindings: map[string][]string{},
			})
			continue
		}

		space.Actions = append(space.Actions, runtime.Action{
			FlowID:           flowID,
			PersonaID:        persona,
			EntryOperationID: opID,
			EnablingVerdicts: space.CurrentVerdicts,
			AffectedEntities: affectedEntities(op, states),
			Description:      fmt.Sprintf("enter flow '%s' via operation '%s'", flowID, opID),
		})
	}
	return space
}

func blockReason(op map[string]any, facts runtime.FactSet, verdicts runtime.VerdictSet, states runtime.EntityStateMap, persona string) (*runtime.BlockedReason, bool) {
	allowed, _ := op["allowed_personas"].([]any)
	if !personaAllowed(allowed, persona) {
		return &runtime.BlockedReason{Type: "PersonaNotAuthorized"}, true
	}

	effects, _ := op["effects"].([]any)
	for _, raw := range effects {
		eff, _ := raw.(map[string]any)
		entityID, _ := eff["entity"].(string)
		from, _ := eff["from"].(string)
		current, ok := states[entityID]
		if !ok || current != from {
			return &runtime.BlockedReason{
				Type: "EntityNotInSourceState", EntityID: entityID,
				CurrentState: current, RequiredState: from,
			}, true
		}
	}

	if precondition, ok := op["precondition"].(map[string]any); ok && precondition != nil {
		holds, missing := evalPreconditionVerdicts(precondition, facts, verdicts)
		if !holds {
			return &runtime.BlockedReason{Type: "PreconditionNotMet", MissingVerdicts: missing}, true
		}
	}
	return nil, false
}

// evalPreconditionVerdicts checks only the VerdictPresent leaves of a
// precondition tree, reporting any verdict types that are required but
// absent. Fact-valued comparisons within preconditions are checked by
// the flow executor at step-entry time with the full rule-engine
// expression evaluator; this pass exists to give the persona a
// human-readable reason before a flow attempt begins.
func evalPreconditionVerdicts(expr map[string]any, facts runtime.FactSet, verdicts runtime.VerdictSet) (bool, []string) {
	present := make(map[string]bool, len(verdicts.Verdicts))
	for _, v := range verdicts.Verdicts {
		present[v.Type] = true
	}
	var missing []string
	var walk func(e map[string]any) bool
	walk = func(e map[string]any) bool {
		switch e["kind"] {
		case "VerdictPresent":
			vt, _ := e["verdict_type"].(string)
			if present[vt] {
				return true
			}
			missing = append(missing, vt)
			return false
		case "And":
			l := walk(e["lhs"].(map[string]any))
			r := walk(e["rhs"].(map[string]any))
			return l && r
		case "Or":
			l := walk(e["lhs"].(map[string]any))
			r := walk(e["rhs"].(map[string]any))
			return l || r
		case "Not":
			return !walk(e["operand"].(map[string]any))
		default:
			return true
		}
	}
	holds := walk(expr)
	return holds, missing
}

func personaAllowed(allowed []any, persona string) bool {
	for _, a := range allowed {
		if a == persona {
			return true
		}
	}
	return false
}

func affectedEntities(op map[string]any, states runtime.EntityStateMap) []runtime.EntitySummary {
	effects, _ := op["effects"].([]any)
	var out []runtime.EntitySummary
	seen := make(map[string]bool)
	for _, raw := range effects {
		eff, _ := raw.(map[string]any)
		entityID, _ := eff["entity"].(string)
		if seen[entityID] {
			continue
		}
		seen[entityID] = true
		out = append(out, runtime.EntitySummary{
			EntityID:     entityID,
			CurrentState: states[entityID],
		})
	}
	return out
}

func summarizeVerdicts(verdicts runtime.VerdictSet) []runtime.VerdictSummary {
	out := make([]runtime.VerdictSummary, len(verdicts.Verdicts))
	for i, v := range verdicts.Verdicts {
		out[i] = runtime.VerdictSummary{
			VerdictType:   v.Type,
			Payload:       v.Payload,
			ProducingRule: v.Provenance.Rule,
			Stratum:       v.Provenance.Stratum,
		}
	}
	return out
}

func indexByID(bundle *interchange.Bundle, kind string) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, raw := range bundle.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != kind {
			continue
		}
		id, _ := c["id"].(string)
		out[id] = c
	}
	return out
}

func sortedIDs(m map[string]map[string]any) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	// Preserve encounter stability by falling back to bundle order is not
	// possible once indexed into a map; sort for a deterministic, if not
	// declaration-identical, action ordering.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}
