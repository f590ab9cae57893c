package pass5

import (
	"fmt"
	"sort"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
)

type entityTrace struct {
	hasTrace bool
	trace    string
}

func collectBranchEntityEffects(branch ast.RawBranch, opEntities map[string][]string, flowMap map[string]map[string]ast.RawStep) map[string]entityTrace {
	effects := make(map[string]entityTrace)
	for _, step := range branch.Steps {
		switch step.Kind {
		case ast.StepOperation:
			for _, entity := range opEntities[step.Op] {
				if _, ok := effects[entity]; !ok {
					effects[entity] = entityTrace{}
				}
			}
		case ast.StepSubFlow:
			prefix := fmt.Sprintf("SubFlowStep → %s → ", step.Flow)
			visited := map[string]bool{}
			for entity, trace := range collectSubFlowEntityEffects(step.Flow, opEntities, flowMap, visited, prefix) {
				if _, exists := effects[entity]; !exists {
					effects[entity] = trace
				}
			}
		}
	}
	return effects
}

// collectSubFlowEntityEffects walks flowID's steps, collecting every
// entity reached by an operation step directly or transitively through
// arbitrarily nested SubFlowSteps. visited bounds the walk against
// sub-flow cycles per a flow's own recursion budget.
func collectSubFlowEntityEffects(flowID string, opEntities map[string][]string, flowMap map[string]map[string]ast.RawStep, visited map[string]bool, pathPrefix string) map[string]entityTrace {
	effects := make(map[string]entityTrace)
	if visited[flowID] {
		return effects
	}
	visited[flowID] = true

	flowSteps, ok := flowMap[flowID]
	if !ok {
		return effects
	}

	stepIDs := make([]string, 0, len(flowSteps))
	for id := range flowSteps {
		stepIDs = append(stepIDs, id)
	}
	sort.Strings(stepIDs)

	for _, stepID := range stepIDs {
		subStep := flowSteps[stepID]
		switch subStep.Kind {
		case ast.StepOperation:
			for _, entity := range opEntities[subStep.Op] {
				if _, exists := effects[entity]; !exists {
					effects[entity] = entityTrace{hasTrace: true, trace: pathPrefix + subStep.Op}
				}
			}
		case ast.StepSubFlow:
			nestedPrefix := pathPrefix + "SubFlowStep → " + subStep.Flow + " → "
			for entity, trace := range collectSubFlowEntityEffects(subStep.Flow, opEntities, flowMap, visited, nestedPrefix) {
				if _, exists := effects[entity]; !exists {
					effects[entity] = trace
				}
			}
		}
	}
	return effects
}

func validateParallelConflicts(constructs []ast.RawConstruct) error {
	opEntities := make(map[string][]string)
	for _, c := range constructs {
		if c.Kind != ast.KindOperation {
			continue
		}
		entities := make([]string, len(c.Effects))
		for i, e := range c.Effects {
			entities[i] = e.Entity
		}
		opEntities[c.ID] = entities
	}

	flowMap := make(map[string]map[string]ast.RawStep)
	for _, c := range constructs {
		if c.Kind == ast.KindFlow {
			flowMap[c.ID] = c.Steps
		}
	}

	for _, c := range constructs {
		if c.Kind != ast.KindFlow {
			continue
		}
		stepIDs := make([]string, 0, len(c.Steps))
		for id := range c.Steps {
			stepIDs = append(stepIDs, id)
		}
		sort.Strings(stepIDs)

		for _, stepID := range stepIDs {
			step := c.Steps[stepID]
			if step.Kind != ast.StepParallel {
				continue
			}

			type branchEffects struct {
				id      string
				effects map[string]entityTrace
			}
			all := make([]branchEffects, len(step.Branches))
			for i, b := range step.Branches {
				all[i] = branchEffects{id: b.ID, effects: collectBranchEntityEffects(b, opEntities, flowMap)}
			}

			for i := 0; i < len(all); i++ {
				for j := i + 1; j < len(all); j++ {
					b1, b2 := all[i], all[j]
					b1Entities := make([]string, 0, len(b1.effects))
					for e := range b1.effects {
						b1Entities = append(b1Entities, e)
					}
					sort.Strings(b1Entities)

					for _, entity := range b1Entities {
						b2Trace, ok := b2.effects[entity]
						if !ok {
							continue
						}
						b1Trace := b1.effects[entity]
						var msg string
						if !b1Trace.hasTrace && !b2Trace.hasTrace {
							msg = fmt.Sprintf("parallel branches '%s' and '%s' both declare effects on entity '%s'; parallel branch entity effect sets must be disjoint",
								b1.id, b2.id, entity)
						} else {
							transitiveID, trace := b1.id, "direct"
							if b1Trace.hasTrace {
								trace = b1Trace.trace
							} else if b2Trace.hasTrace {
								transitiveID, trace = b2.id, b2Trace.trace
							}
							msg = fmt.Sprintf("parallel branches '%s' and '%s' both affect entity '%s' (%s transitively through %s); parallel branch entity effect sets must be disjoint",
								b1.id, b2.id, entity, transitiveID, trace)
						}
						return elaborate.New(5, c.Prov.File, step.BranchesLine, msg).
							WithConstruct("Flow", c.ID).WithField(fmt.Sprintf("steps.%s.branches", stepID))
					}
				}
			}
		}
	}
	return nil
}
