// Package analyze implements the bundle-level static analyses: S1
// complete state space enumeration and S2 reachability/dead-state
// detection, run over an elaborated interchange.Bundle's Entity
// constructs.
package analyze

import (
	"sort"

	"tenor/internal/interchange"
)

// Transition is one declared (from, to) edge in an Entity's transition
// relation.
type Transition struct {
	From, To string
}

// StateSpaceResult is S1's per-entity output: the complete declared
// state space, its initial state, and the transition relation.
type StateSpaceResult struct {
	EntityID       string
	DeclaredStates []string
	InitialState   string
	Transitions    []Transition
	StateCount     int
}

// S1Result aggregates StateSpaceResult across every Entity, keyed by
// entity id in sorted order for deterministic reporting.
type S1Result struct {
	Entities map[string]StateSpaceResult
	Order    []string
}

// AnalyzeStateSpace enumerates the complete state space for every
// Entity construct in bundle. Each entity's declared states array is
// its complete state space; there is nothing to infer.
func AnalyzeStateSpace(bundle *interchange.Bundle) S1Result {
	result := S1Result{Entities: map[string]StateSpaceResult{}}
	for _, entity := range entities(bundle) {
		states := stringList(entity["states"])
		result.Entities[entity.id()] = StateSpaceResult{
			EntityID:       entity.id(),
			DeclaredStates: states,
			InitialState:   entity.initial(),
			Transitions:    transitionList(entity["transitions"]),
			StateCount:     len(states),
		}
	}
	result.Order = sortedKeys(result.Entities)
	return result
}

type entityConstruct map[string]any

func (e entityConstruct) id() string      { s, _ := e["id"].(string); return s }
func (e entityConstruct) initial() string { s, _ := e["initial"].(string); return s }

func entities(bundle *interchange.Bundle) []entityConstruct {
	var out []entityConstruct
	for _, raw := range bundle.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != "Entity" {
			continue
		}
		out = append(out, entityConstruct(c))
	}
	return out
}

func stringList(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func transitionList(v any) []Transition {
	list, _ := v.([]any)
	out := make([]Transition, 0, len(list))
	for _, item := range list {
		t, ok := item.(map[string]any)
		if !ok {
			continue
		}
		from, _ := t["from"].(string)
		to, _ := t["to"].(string)
		out = append(out, Transition{From: from, To: to})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
