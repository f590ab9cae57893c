package pass5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

func buildIdx(t *testing.T, constructs []ast.RawConstruct) *pass2.Index {
	t.Helper()
	idx, err := pass2.BuildIndex(constructs)
	require.NoError(t, err)
	return idx
}

func TestValidateRejectsUndeclaredInitialState(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindEntity, ID: "Order", States: []string{"draft", "approved"}, Initial: "pending", Prov: ast.Provenance{File: "t.tenor", Line: 1}},
	}
	err := Validate(constructs, buildIdx(t, constructs))
	require.Error(t, err)
	var elabErr *elaborate.Error
	require.ErrorAs(t, err, &elabErr)
	assert.Contains(t, elabErr.Message, "initial state 'pending'")
}

func TestValidateRejectsEmptyAllowedPersonas(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindOperation, ID: "submit", Prov: ast.Provenance{File: "t.tenor", Line: 1}},
	}
	err := Validate(constructs, buildIdx(t, constructs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_personas must be non-empty")
}

func TestValidateRejectsMultiOutcomeEffectMissingLabel(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindEntity, ID: "Order", States: []string{"draft", "approved", "rejected"}, Initial: "draft",
			Transitions: []ast.Transition{{From: "draft", To: "approved"}, {From: "draft", To: "rejected"}},
			Prov: ast.Provenance{File: "t.tenor", Line: 1}},
		{Kind: ast.KindOperation, ID: "decide", AllowedPersonas: []string{"clerk"},
			Outcomes: []string{"approved", "rejected"},
			Effects:  []ast.Effect{{Entity: "Order", From: "draft", To: "approved"}},
			Prov:     ast.Provenance{File: "t.tenor", Line: 5}},
	}
	err := Validate(constructs, buildIdx(t, constructs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing an outcome label")
}

func TestValidateRejectsStratumViolation(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindRule, ID: "r1", VerdictType: "A", Stratum: 0, Prov: ast.Provenance{File: "t.tenor", Line: 1}},
		{Kind: ast.KindRule, ID: "r2", VerdictType: "B", Stratum: 0,
			When: &ast.RawExpr{Kind: ast.ExprVerdictPresent, VerdictID: "A", Line: 10},
			Prov: ast.Provenance{File: "t.tenor", Line: 8}},
	}
	err := Validate(constructs, buildIdx(t, constructs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stratum violation")
}

func TestValidateDetectsEntityParentCycle(t *testing.T) {
	pa, pb := "B", "A"
	constructs := []ast.RawConstruct{
		{Kind: ast.KindEntity, ID: "A", States: []string{"s"}, Initial: "s", Parent: &pa, Prov: ast.Provenance{File: "t.tenor", Line: 1}},
		{Kind: ast.KindEntity, ID: "B", States: []string{"s"}, Initial: "s", Parent: &pb, Prov: ast.Provenance{File: "t.tenor", Line: 2}},
	}
	err := Validate(constructs, buildIdx(t, constructs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity hierarchy cycle detected")
}

func TestValidateRejectsDuplicateVerdictType(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindRule, ID: "r1", VerdictType: "HighRisk", Stratum: 0, Prov: ast.Provenance{File: "t.tenor", Line: 1}},
		{Kind: ast.KindRule, ID: "r2", VerdictType: "HighRisk", Stratum: 1, Prov: ast.Provenance{File: "t.tenor", Line: 5}},
	}
	_, err := pass2.BuildIndex(constructs)
	require.NoError(t, err)
	err = checkDuplicateVerdictTypes(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate verdict type 'HighRisk'")
}

func TestValidateOperationTransitionsRejectsUndeclaredTransition(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindEntity, ID: "Order", States: []string{"draft", "approved"}, Initial: "draft",
			Transitions: []ast.Transition{{From: "draft", To: "approved"}},
			Prov:        ast.Provenance{File: "t.tenor", Line: 1}},
		{Kind: ast.KindOperation, ID: "skip", AllowedPersonas: []string{"clerk"},
			Effects: []ast.Effect{{Entity: "Order", From: "approved", To: "draft", Line: 9}},
			Prov:    ast.Provenance{File: "t.tenor", Line: 5}},
	}
	idx := buildIdx(t, constructs)
	err := ValidateOperationTransitions(constructs, idx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a declared transition")
}

func TestValidateParallelConflictsRejectsOverlappingDirectEffects(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindOperation, ID: "op_a", Effects: []ast.Effect{{Entity: "Order", From: "draft", To: "a"}}},
		{Kind: ast.KindOperation, ID: "op_b", Effects: []ast.Effect{{Entity: "Order", From: "draft", To: "b"}}},
		{
			Kind: ast.KindFlow, ID: "f", Prov: ast.Provenance{File: "t.tenor", Line: 1},
			Steps: map[string]ast.RawStep{
				"par": {
					Kind: ast.StepParallel,
					Branches: []ast.RawBranch{
						{ID: "b1", Steps: map[string]ast.RawStep{"s1": {Kind: ast.StepOperation, Op: "op_a"}}},
						{ID: "b2", Steps: map[string]ast.RawStep{"s2": {Kind: ast.StepOperation, Op: "op_b"}}},
					},
				},
			},
		},
	}
	err := validateParallelConflicts(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be disjoint")
}

func TestValidateParallelConflictsRejectsEffectsNestedTwoSubFlowsDeep(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindOperation, ID: "op_a", Effects: []ast.Effect{{Entity: "Order", From: "draft", To: "a"}}},
		{Kind: ast.KindOperation, ID: "op_b", Effects: []ast.Effect{{Entity: "Order", From: "draft", To: "b"}}},
		{
			Kind: ast.KindFlow, ID: "leaf", Prov: ast.Provenance{File: "t.tenor", Line: 1},
			Steps: map[string]ast.RawStep{
				"s": {Kind: ast.StepOperation, Op: "op_b"},
			},
		},
		{
			Kind: ast.KindFlow, ID: "mid", Prov: ast.Provenance{File: "t.tenor", Line: 1},
			Steps: map[string]ast.RawStep{
				"s": {Kind: ast.StepSubFlow, Flow: "leaf"},
			},
		},
		{
			Kind: ast.KindFlow, ID: "f", Prov: ast.Provenance{File: "t.tenor", Line: 1},
			Steps: map[string]ast.RawStep{
				"par": {
					Kind: ast.StepParallel,
					Branches: []ast.RawBranch{
						{ID: "b1", Steps: map[string]ast.RawStep{"s1": {Kind: ast.StepOperation, Op: "op_a"}}},
						{ID: "b2", Steps: map[string]ast.RawStep{"s2": {Kind: ast.StepSubFlow, Flow: "mid"}}},
					},
				},
			},
		},
	}
	err := validateParallelConflicts(constructs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be disjoint")
	assert.Contains(t, err.Error(), "transitively through")
}

func TestValidateRejectsStratumViolationInsideForall(t *testing.T) {
	constructs := []ast.RawConstruct{
		{Kind: ast.KindRule, ID: "r1", VerdictType: "A", Stratum: 0, Prov: ast.Provenance{File: "t.tenor", Line: 1}},
		{Kind: ast.KindRule, ID: "r2", VerdictType: "B", Stratum: 0,
			When: &ast.RawExpr{Kind: ast.ExprForall, Var: "x", Domain: "items",
				Body: &ast.RawExpr{Kind: ast.ExprVerdictPresent, VerdictID: "A", Line: 10}},
			Prov: ast.Provenance{File: "t.tenor", Line: 8}},
	}
	err := Validate(constructs, buildIdx(t, constructs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stratum violation")
}
