// Package migration implements the Migration Core: bundle diffing,
// change classification, static flow compatibility, and migration plan
// assembly between two elaborated bundle versions.
package migration

import (
	"sort"

	"github.com/google/go-cmp/cmp"

	"tenor/internal/interchange"
)

type constructKey struct{ Kind, ID string }

func indexConstructs(b *interchange.Bundle) map[constructKey]map[string]any {
	out := make(map[constructKey]map[string]any, len(b.Constructs))
	for _, raw := range b.Constructs {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := c["kind"].(string)
		id, _ := c["id"].(string)
		out[constructKey{kind, id}] = c
	}
	return out
}

func findConstruct(b *interchange.Bundle, kind, id string) (map[string]any, bool) {
	for _, raw := range b.Constructs {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if c["kind"] == kind && c["id"] == id {
			return c, true
		}
	}
	return nil, false
}

// ChangeType classifies how a construct moved between two bundle
// versions.
type ChangeType string

const (
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
	Changed ChangeType = "changed"
)

// ConstructChange is one construct-level delta between two bundles.
type ConstructChange struct {
	Kind   string
	ID     string
	Type   ChangeType
	Before map[string]any
	After  map[string]any
	Diff   string
}

// BundleDiff buckets every construct-level delta between v1 and v2.
type BundleDiff struct {
	V1ID, V2ID string
	Changes    []ConstructChange
}

// DiffBundles indexes both bundles by (kind, id) and reports additions,
// removals, and field-level changes, sorted by (kind, id) for
// deterministic output. Constructs present in both bundles with
// identical content are omitted; equality is checked with cmp.Equal
// directly on the untyped construct maps, since pass6 never
// reconstitutes typed structs for constructs.
func DiffBundles(v1, v2 *interchange.Bundle) BundleDiff {
	before := indexConstructs(v1)
	after := indexConstructs(v2)

	keys := make(map[constructKey]bool, len(before)+len(after))
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}
	sorted := make([]constructKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].ID < sorted[j].ID
	})

	diff := BundleDiff{V1ID: v1.ID, V2ID: v2.ID}
	for _, k := range sorted {
		b, hasBefore := before[k]
		a, hasAfter := after[k]
		switch {
		case hasBefore && !hasAfter:
			diff.Changes = append(diff.Changes, ConstructChange{Kind: k.Kind, ID: k.ID, Type: Removed, Before: b})
		case !hasBefore && hasAfter:
			diff.Changes = append(diff.Changes, ConstructChange{Kind: k.Kind, ID: k.ID, Type: Added, After: a})
		default:
			if !cmp.Equal(b, a) {
				diff.Changes = append(diff.Changes, ConstructChange{
					Kind: k.Kind, ID: k.ID, Type: Changed, Before: b, After: a,
					Diff: cmp.Diff(b, a),
				})
			}
		}
	}
	return diff
}
