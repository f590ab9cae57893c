// Package policy supplies pluggable AgentPolicy implementations that
// choose one Action from a computed ActionSpace, standing in for a human
// operator when a flow is driven programmatically (simulation, batch
// processing, or autonomous agents).
package policy

import (
	"fmt"

	"tenor/internal/runtime"
)

// AgentPolicy picks one Action from an ActionSpace, or reports that none
// is eligible.
type AgentPolicy interface {
	Choose(space runtime.ActionSpace) (*runtime.Action, error)
}

// ErrNoEligibleAction is returned when a policy finds no Action it is
// willing to choose.
var ErrNoEligibleAction = fmt.Errorf("policy: no eligible action in action space")

// FirstAvailablePolicy chooses the first Action in the ActionSpace, which
// internal/actionspace.Compute fills in ascending flow-id order.
type FirstAvailablePolicy struct{}

func (FirstAvailablePolicy) Choose(space runtime.ActionSpace) (*runtime.Action, error) {
	if len(space.Actions) == 0 {
		return nil, ErrNoEligibleAction
	}
	return &space.Actions[0], nil
}

// PriorityPolicy chooses the first Action whose FlowID appears in
// Order, falling back to FirstAvailablePolicy when none of the
// prioritized flows are present.
type PriorityPolicy struct {
	Order []string
}

func (p PriorityPolicy) Choose(space runtime.ActionSpace) (*runtime.Action, error) {
	for _, flowID := range p.Order {
		for i := range space.Actions {
			if space.Actions[i].FlowID == flowID {
				return &space.Actions[i], nil
			}
		}
	}
	return FirstAvailablePolicy{}.Choose(space)
}
