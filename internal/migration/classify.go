package migration

import "fmt"

// ChangeSeverity ranks a classified change from safe to breaking.
type ChangeSeverity int

const (
	Safe ChangeSeverity = iota
	Cautious
	Breaking
)

func (s ChangeSeverity) String() string {
	switch s {
	case Safe:
		return "safe"
	case Cautious:
		return "cautious"
	case Breaking:
		return "breaking"
	default:
		return "unknown"
	}
}

// ClassifiedChange pairs a construct-level change with the severity the
// rule table assigned it and a human-readable reason.
type ClassifiedChange struct {
	ConstructChange
	Severity ChangeSeverity
	Reason   string
}

// ClassifiedDiff is a BundleDiff with every change severity-tagged, plus
// the worst severity observed across all changes.
type ClassifiedDiff struct {
	Changes         []ClassifiedChange
	OverallSeverity ChangeSeverity
}

// ClassifyDiff applies the migration rule table to every change in diff:
// adding a construct is cautious, removing one is breaking, and changed
// constructs are classified per-kind (see classifyEntityChange,
// classifyFactChange, classifyOperationChange).
func ClassifyDiff(diff BundleDiff) ClassifiedDiff {
	out := ClassifiedDiff{}
	for _, ch := range diff.Changes {
		classified := classifyChange(ch)
		out.Changes = append(out.Changes, classified)
		if classified.Severity > out.OverallSeverity {
			out.OverallSeverity = classified.Severity
		}
	}
	return out
}

func classifyChange(ch ConstructChange) ClassifiedChange {
	switch ch.Type {
	case Added:
		return ClassifiedChange{ConstructChange: ch, Severity: Cautious, Reason: fmt.Sprintf("%s '%s' added", ch.Kind, ch.ID)}
	case Removed:
		return ClassifiedChange{ConstructChange: ch, Severity: Breaking, Reason: fmt.Sprintf("%s '%s' removed", ch.Kind, ch.ID)}
	}

	switch ch.Kind {
	case "Entity":
		return classifyEntityChange(ch)
	case "Fact":
		return classifyFactChange(ch)
	case "Operation":
		return classifyOperationChange(ch)
	default:
		return ClassifiedChange{ConstructChange: ch, Severity: Cautious, Reason: fmt.Sprintf("%s '%s' changed", ch.Kind, ch.ID)}
	}
}

func classifyEntityChange(ch ConstructChange) ClassifiedChange {
	beforeStates := stringSet(ch.Before["states"])
	afterStates := stringSet(ch.After["states"])
	beforeTransitions := transitionSet(ch.Before["transitions"])
	afterTransitions := transitionSet(ch.After["transitions"])

	for t := range beforeTransitions {
		if !afterTransitions[t] {
			return ClassifiedChange{ConstructChange: ch, Severity: Breaking,
				Reason: fmt.Sprintf("entity '%s' no longer declares transition %s", ch.ID, t)}
		}
	}
	for s := range beforeStates {
		if !afterStates[s] {
			return ClassifiedChange{ConstructChange: ch, Severity: Breaking,
				Reason: fmt.Sprintf("entity '%s' removed state '%s'", ch.ID, s)}
		}
	}
	if len(afterStates) > len(beforeStates) || len(afterTransitions) > len(beforeTransitions) {
		return ClassifiedChange{ConstructChange: ch, Severity: Cautious,
			Reason: fmt.Sprintf("entity '%s' added states or transitions", ch.ID)}
	}
	return ClassifiedChange{ConstructChange: ch, Severity: Safe,
		Reason: fmt.Sprintf("entity '%s' changed without removing states or transitions", ch.ID)}
}

func classifyFactChange(ch ConstructChange) ClassifiedChange {
	beforeType, _ := ch.Before["type"].(map[string]any)
	afterType, _ := ch.After["type"].(map[string]any)
	if beforeType == nil || afterType == nil {
		return ClassifiedChange{ConstructChange: ch, Severity: Cautious, Reason: fmt.Sprintf("fact '%s' type changed", ch.ID)}
	}
	if beforeType["kind"] != afterType["kind"] {
		return ClassifiedChange{ConstructChange: ch, Severity: Breaking,
			Reason: fmt.Sprintf("fact '%s' changed base type from %v to %v", ch.ID, beforeType["kind"], afterType["kind"])}
	}

	bMin, bHasMin := numeric(beforeType["min"])
	aMin, aHasMin := numeric(afterType["min"])
	bMax, bHasMax := numeric(beforeType["max"])
	aMax, aHasMax := numeric(afterType["max"])

	narrowed := (bHasMin && aHasMin && aMin > bMin) || (bHasMax && aHasMax && aMax < bMax) ||
		(!bHasMin && aHasMin) || (!bHasMax && aHasMax)
	widened := (bHasMin && aHasMin && aMin < bMin) || (bHasMax && aHasMax && aMax > bMax) ||
		(bHasMin && !aHasMin) || (bHasMax && !aHasMax)

	switch {
	case narrowed:
		return ClassifiedChange{ConstructChange: ch, Severity: Breaking, Reason: fmt.Sprintf("fact '%s' range narrowed", ch.ID)}
	case widened:
		return ClassifiedChange{ConstructChange: ch, Severity: Safe, Reason: fmt.Sprintf("fact '%s' range widened", ch.ID)}
	default:
		return ClassifiedChange{ConstructChange: ch, Severity: Safe, Reason: fmt.Sprintf("fact '%s' changed without narrowing its range", ch.ID)}
	}
}

func classifyOperationChange(ch ConstructChange) ClassifiedChange {
	beforePersonas := stringSet(ch.Before["allowed_personas"])
	afterPersonas := stringSet(ch.After["allowed_personas"])
	for p := range beforePersonas {
		if !afterPersonas[p] {
			return ClassifiedChange{ConstructChange: ch, Severity: Breaking,
				Reason: fmt.Sprintf("operation '%s' no longer allows persona '%s'", ch.ID, p)}
		}
	}

	beforeOutcomes := effectOutcomeSet(ch.Before["effects"])
	afterOutcomes := effectOutcomeSet(ch.After["effects"])
	for o := range beforeOutcomes {
		if !afterOutcomes[o] {
			return ClassifiedChange{ConstructChange: ch, Severity: Breaking,
				Reason: fmt.Sprintf("operation '%s' dropped outcome '%s'", ch.ID, o)}
		}
	}
	return ClassifiedChange{ConstructChange: ch, Severity: Cautious, Reason: fmt.Sprintf("operation '%s' changed", ch.ID)}
}

func stringSet(v any) map[string]bool {
	out := map[string]bool{}
	list, _ := v.([]any)
	for _, item := range list {
		if s, ok := item.(string); ok {
			out[s] = true
		}
	}
	return out
}

func transitionSet(v any) map[string]bool {
	out := map[string]bool{}
	list, _ := v.([]any)
	for _, item := range list {
		t, _ := item.(map[string]any)
		from, _ := t["from"].(string)
		to, _ := t["to"].(string)
		out[from+"->"+to] = true
	}
	return out
}

func effectOutcomeSet(v any) map[string]bool {
	out := map[string]bool{}
	list, _ := v.([]any)
	for _, item := range list {
		eff, _ := item.(map[string]any)
		label, _ := eff["outcome_label"].(string)
		if label == "" {
			label = "success"
		}
		out[label] = true
	}
	return out
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
