package flowexec

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tenor/internal/runtime"
)

// runParallelStep forks one goroutine per branch, each walking its own
// step graph against a branch-local EntityStateMap clone. Pass 5's
// disjointness invariant (I6) guarantees branches never write the same
// entity, so branch results are merged back into r.states without a
// mutex once the group completes. The first branch error cancels
// errgroup's derived context; walks do not poll it, so sibling branches
// see the cancellation only through context-aware storage calls. The
// join's on_any_failure handler then decides the continuation.
func (r *run) runParallelStep(ctx context.Context, steps map[string]any, stepID string, step map[string]any) (string, error) {
	branches, _ := step["branches"].([]any)

	g, gctx := errgroup.WithContext(ctx)
	results := make([]*run, len(branches))
	outcomes := make([]string, len(branches))

	for i, raw := range branches {
		i, raw := i, raw
		g.Go(func() error {
			b, _ := raw.(map[string]any)
			branchSteps, _ := b["steps"].(map[string]any)
			branchEntry, _ := b["entry"].(string)

			branchRun := &run{
				bundle: r.bundle, snapshot: r.snapshot, states: cloneStates(r.states),
				persona: r.persona, mode: r.mode, storageTx: r.storageTx, flowExecID: r.flowExecID,
			}
			outcome, err := branchRun.walk(gctx, branchSteps, branchEntry)
			if err != nil {
				return err
			}
			results[i] = branchRun
			outcomes[i] = outcome
			return nil
		})
	}

	err := g.Wait()
	for _, br := range results {
		if br == nil {
			continue
		}
		mergeStates(r.states, br.states)
		r.path = append(r.path, br.path...)
		r.transitions = append(r.transitions, br.transitions...)
	}

	join, _ := step["join"].(map[string]any)
	if err != nil {
		onAnyFailure, _ := join["on_any_failure"].(map[string]any)
		return r.fail(ctx, steps, stepID, map[string]any{"on_failure": onAnyFailure}, err)
	}

	r.path = append(r.path, runtime.StepResult{StepID: stepID, StepType: "ParallelStep", Result: fmt.Sprintf("%v", outcomes)})

	if onAllSuccess, ok := join["on_all_success"].(map[string]any); ok && onAllSuccess != nil {
		return r.follow(ctx, steps, onAllSuccess)
	}
	if onAllComplete, ok := join["on_all_complete"].(map[string]any); ok && onAllComplete != nil {
		return r.follow(ctx, steps, onAllComplete)
	}
	return "", fmt.Errorf("parallel step '%s' join policy has neither on_all_success nor on_all_complete", stepID)
}
