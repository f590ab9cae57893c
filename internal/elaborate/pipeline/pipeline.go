// Package pipeline runs the six elaboration passes in order. It is kept
// separate from tenor/internal/elaborate (which holds the shared *Error
// type) because every pass package already imports tenor/internal/elaborate
// for that type; an orchestrator living there too would import pass1..pass6
// right back into the package they import, an import cycle Go disallows.
package pipeline

import (
	"tenor/internal/elaborate/pass1"
	"tenor/internal/elaborate/pass2"
	"tenor/internal/elaborate/pass3"
	"tenor/internal/elaborate/pass4"
	"tenor/internal/elaborate/pass5"
	"tenor/internal/elaborate/pass6"
	"tenor/internal/interchange"
)

// Elaborate runs the full six-pass pipeline against the given root
// .tenor file and returns the canonical interchange bundle, or the
// first *elaborate.Error encountered. Every pass halts at its first
// error rather than accumulating a list, per section 7's propagation
// policy.
func Elaborate(rootPath string) (*interchange.Bundle, error) {
	constructs, bundleID, err := pass1.LoadBundle(rootPath)
	if err != nil {
		return nil, err
	}

	index, err := pass2.BuildIndex(constructs)
	if err != nil {
		return nil, err
	}

	typeEnv, err := pass3.BuildTypeEnv(constructs, index)
	if err != nil {
		return nil, err
	}

	constructs, err = pass4.ResolveTypes(constructs, typeEnv)
	if err != nil {
		return nil, err
	}
	if err := pass4.TypeCheckRules(constructs); err != nil {
		return nil, err
	}

	if err := pass5.Validate(constructs, index); err != nil {
		return nil, err
	}
	if err := pass5.ValidateOperationTransitions(constructs, index); err != nil {
		return nil, err
	}

	return pass6.Serialize(constructs, bundleID), nil
}
