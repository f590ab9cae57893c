package migration

import (
	"fmt"
	"sort"

	"tenor/internal/interchange"
	"tenor/internal/runtime"
)

// MigrationAnalysis is the output of diffing and classifying two bundle
// versions.
type MigrationAnalysis struct {
	Diff            BundleDiff
	Classified      ClassifiedDiff
	OverallSeverity ChangeSeverity
}

// AnalyzeMigration diffs v1 against v2 and classifies every change.
func AnalyzeMigration(v1, v2 *interchange.Bundle) (MigrationAnalysis, error) {
	if v1 == nil || v2 == nil {
		return MigrationAnalysis{}, runtime.NewError(runtime.KindMigration, "both bundles must be non-nil")
	}
	diff := DiffBundles(v1, v2)
	classified := ClassifyDiff(diff)
	return MigrationAnalysis{Diff: diff, Classified: classified, OverallSeverity: classified.OverallSeverity}, nil
}

// RecommendedPolicy is the migration plan's suggested rollout policy,
// derived directly from the overall severity.
type RecommendedPolicy string

const (
	AutoMigrate  RecommendedPolicy = "auto_migrate"
	ManualReview RecommendedPolicy = "manual_review"
	Blocked      RecommendedPolicy = "blocked"
)

func recommendPolicy(severity ChangeSeverity) RecommendedPolicy {
	switch severity {
	case Safe:
		return AutoMigrate
	case Cautious:
		return ManualReview
	default:
		return Blocked
	}
}

// EntityStateMapping proposes how an entity's in-flight instances
// should remap their current state across the migration. A state that
// still exists in v2 maps to itself; a removed state is flagged with
// Removed=true and carries no target, requiring operator input.
type EntityStateMapping struct {
	EntityID string
	FromState string
	ToState   string
	Removed   bool
}

// MigrationPlan is the final artifact handed to an operator or a
// storage-backed migration executor: severity, a recommended policy,
// entity-state remapping proposals for any entity whose state set
// changed, and per-flow static compatibility verdicts.
type MigrationPlan struct {
	V1ID, V2ID          string
	Severity            ChangeSeverity
	RecommendedPolicy   RecommendedPolicy
	EntityStateMappings []EntityStateMapping
	FlowCompatibility   []FlowCompatibilityResult
}

// BuildMigrationPlan assembles a MigrationPlan from a completed
// analysis. Callers are expected to additionally populate
// FlowCompatibility via CheckFlowCompatibilityStatic per flow of
// interest (mirroring the CLI's pipeline, which runs compatibility
// checks separately and folds the results in before display).
func BuildMigrationPlan(v1, v2 *interchange.Bundle, analysis MigrationAnalysis) (MigrationPlan, error) {
	if v1 == nil || v2 == nil {
		return MigrationPlan{}, runtime.NewError(runtime.KindMigration, "both bundles must be non-nil")
	}
	plan := MigrationPlan{
		V1ID: v1.ID, V2ID: v2.ID,
		Severity:          analysis.OverallSeverity,
		RecommendedPolicy: recommendPolicy(analysis.OverallSeverity),
	}

	v2Entities := indexConstructs(v2)
	for _, ch := range analysis.Classified.Changes {
		if ch.Kind != "Entity" || ch.Type != Changed {
			continue
		}
		beforeStates := stringSet(ch.Before["states"])
		after, hasAfter := v2Entities[constructKey{"Entity", ch.ID}]
		afterStates := map[string]bool{}
		if hasAfter {
			afterStates = stringSet(after["states"])
		}
		var states []string
		for s := range beforeStates {
			states = append(states, s)
		}
		sort.Strings(states)
		for _, s := range states {
			if afterStates[s] {
				plan.EntityStateMappings = append(plan.EntityStateMappings, EntityStateMapping{
					EntityID: ch.ID, FromState: s, ToState: s,
				})
			} else {
				plan.EntityStateMappings = append(plan.EntityStateMappings, EntityStateMapping{
					EntityID: ch.ID, FromState: s, Removed: true,
				})
			}
		}
	}

	return plan, nil
}

// CheckAllFlowCompatibility runs CheckFlowCompatibilityStatic for every
// flow declared in v1, sorted by flow id for deterministic output.
func CheckAllFlowCompatibility(v1, v2 *interchange.Bundle) []FlowCompatibilityResult {
	var flowIDs []string
	for _, raw := range v1.Constructs {
		c, ok := raw.(map[string]any)
		if !ok || c["kind"] != "Flow" {
			continue
		}
		id, _ := c["id"].(string)
		flowIDs = append(flowIDs, id)
	}
	sort.Strings(flowIDs)

	results := make([]FlowCompatibilityResult, 0, len(flowIDs))
	for _, id := range flowIDs {
		results = append(results, CheckFlowCompatibilityStatic(v1, v2, id))
	}
	return results
}

func (p RecommendedPolicy) String() string { return string(p) }

func (m EntityStateMapping) String() string {
	if m.Removed {
		return fmt.Sprintf("%s.%s -> (removed, needs manual remap)", m.EntityID, m.FromState)
	}
	return fmt.Sprintf("%s.%s -> %s.%s", m.EntityID, m.FromState, m.EntityID, m.ToState)
}
