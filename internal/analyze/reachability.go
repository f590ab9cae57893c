package analyze

import (
	"sort"

	"tenor/internal/interchange"
)

// ReachabilityResult is S2's per-entity output: which declared states
// are reachable from the initial state via BFS over the transition
// relation, and which declared states are not.
type ReachabilityResult struct {
	EntityID           string
	ReachableStates    []string
	UnreachableStates  []string
	InitialState       string
}

// S2Result aggregates ReachabilityResult across every Entity.
type S2Result struct {
	Entities      map[string]ReachabilityResult
	Order         []string
	HasDeadStates bool
}

// AnalyzeReachability performs BFS from each Entity's initial state
// over its declared transitions, reporting declared states unreachable
// from initial as dead states.
func AnalyzeReachability(bundle *interchange.Bundle) S2Result {
	result := S2Result{Entities: map[string]ReachabilityResult{}}
	for _, entity := range entities(bundle) {
		states := stringList(entity["states"])
		transitions := transitionList(entity["transitions"])
		initial := entity.initial()

		adjacency := map[string][]string{}
		for _, t := range transitions {
			adjacency[t.From] = append(adjacency[t.From], t.To)
		}

		visited := map[string]bool{initial: true}
		queue := []string{initial}
		for len(queue) > 0 {
			state := queue[0]
			queue = queue[1:]
			for _, next := range adjacency[state] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}

		declared := map[string]bool{}
		for _, s := range states {
			declared[s] = true
		}
		var unreachable []string
		for s := range declared {
			if !visited[s] {
				unreachable = append(unreachable, s)
			}
		}
		sort.Strings(unreachable)

		reachable := make([]string, 0, len(visited))
		for s := range visited {
			reachable = append(reachable, s)
		}
		sort.Strings(reachable)

		if len(unreachable) > 0 {
			result.HasDeadStates = true
		}

		result.Entities[entity.id()] = ReachabilityResult{
			EntityID:          entity.id(),
			ReachableStates:   reachable,
			UnreachableStates: unreachable,
			InitialState:      initial,
		}
	}
	result.Order = sortedKeys(result.Entities)
	return result
}
