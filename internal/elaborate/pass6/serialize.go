// Package pass6 serializes a fully validated construct list into the
// canonical interchange.Bundle shape (spec section 6). No Rust source
// exists for this pass in the retrieval pack; the bundle shape is drawn
// from crates/core/src/lib.rs's TENOR_VERSION/TENOR_BUNDLE_VERSION
// constants and the JSON field layout documented in SPEC_FULL.md §6.
package pass6

import (
	"tenor/internal/ast"
	"tenor/internal/interchange"
)

// Serialize converts constructs (already resolved and validated by
// passes 1-5) into a canonical interchange.Bundle, preserving each
// construct's declared ordering.
func Serialize(constructs []ast.RawConstruct, bundleID string) *interchange.Bundle {
	out := make([]any, 0, len(constructs))
	for _, c := range constructs {
		if built := buildConstruct(c); built != nil {
			out = append(out, built)
		}
	}
	return &interchange.Bundle{
		ID:           bundleID,
		Kind:         "Bundle",
		Tenor:        interchange.TenorVersion,
		TenorVersion: interchange.TenorBundleVersion,
		Constructs:   out,
	}
}

func buildConstruct(c ast.RawConstruct) map[string]any {
	switch c.Kind {
	case ast.KindTypeDecl:
		return map[string]any{"kind": "TypeDecl", "id": c.ID, "fields": convertFieldMap(c.Fields)}
	case ast.KindFact:
		m := map[string]any{
			"kind":       "Fact",
			"id":         c.ID,
			"type":       convertType(c.FactType),
			"source_ref": c.SourceRef,
		}
		if c.Default != nil {
			m["default"] = convertLiteral(c.Default)
		} else {
			m["default"] = nil
		}
		return m
	case ast.KindEntity:
		m := map[string]any{
			"kind":        "Entity",
			"id":          c.ID,
			"states":      toAnySlice(c.States),
			"initial":     c.Initial,
			"transitions": convertTransitions(c.Transitions),
		}
		if c.Parent != nil {
			m["parent"] = *c.Parent
		} else {
			m["parent"] = nil
		}
		return m
	case ast.KindRule:
		m := map[string]any{
			"kind":         "Rule",
			"id":           c.ID,
			"stratum":      c.Stratum,
			"verdict_type": c.VerdictType,
			"payload_type": convertType(c.PayloadType),
		}
		if c.When != nil {
			m["when"] = convertExpr(c.When)
		} else {
			m["when"] = nil
		}
		if c.PayloadValue != nil {
			m["produce"] = convertTerm(c.PayloadValue)
		} else {
			m["produce"] = nil
		}
		return m
	case ast.KindOperation:
		m := map[string]any{
			"kind":             "Operation",
			"id":               c.ID,
			"allowed_personas": toAnySlice(c.AllowedPersonas),
			"effects":          convertEffects(c.Effects),
			"outcomes":         toAnySlice(c.Outcomes),
			"error_contract":   toAnySlice(c.ErrorContract),
		}
		if c.Precondition != nil {
			m["precondition"] = convertExpr(c.Precondition)
		} else {
			m["precondition"] = nil
		}
		return m
	case ast.KindPersona:
		return map[string]any{"kind": "Persona", "id": c.ID}
	case ast.KindFlow:
		return map[string]any{
			"kind":     "Flow",
			"id":       c.ID,
			"snapshot": c.Snapshot,
			"entry":    c.Entry,
			"steps":    convertSteps(c.Steps),
		}
	case ast.KindSystem:
		return map[string]any{
			"kind":            "System",
			"id":              c.ID,
			"members":         convertMembers(c.Members),
			"shared_personas": convertSharedPersonas(c.SharedPersonas),
			"shared_entities": convertSharedEntities(c.SharedEntities),
			"triggers":        convertTriggers(c.Triggers),
		}
	case ast.KindSource:
		return map[string]any{
			"kind":     "Source",
			"id":       c.ID,
			"protocol": c.Protocol,
			"fields":   convertStringMap(c.SourceFields),
		}
	default:
		return nil
	}
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func convertStringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func convertFieldMap(fields map[string]ast.RawType) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = convertType(v)
	}
	return out
}

func convertTransitions(ts []ast.Transition) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = map[string]any{"from": t.From, "to": t.To}
	}
	return out
}

func convertEffects(effs []ast.Effect) []any {
	out := make([]any, len(effs))
	for i, e := range effs {
		m := map[string]any{"entity": e.Entity, "from": e.From, "to": e.To}
		if e.OutcomeLabel != nil {
			m["outcome_label"] = *e.OutcomeLabel
		} else {
			m["outcome_label"] = nil
		}
		out[i] = m
	}
	return out
}

func convertMembers(members []ast.SystemMember) []any {
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = map[string]any{"id": m.ID, "path": m.Path}
	}
	return out
}

func convertSharedPersonas(sp []ast.SharedPersona) []any {
	out := make([]any, len(sp))
	for i, s := range sp {
		out[i] = map[string]any{"persona_id": s.PersonaID, "members": toAnySlice(s.Members)}
	}
	return out
}

func convertSharedEntities(se []ast.SharedEntity) []any {
	out := make([]any, len(se))
	for i, s := range se {
		out[i] = map[string]any{"entity_id": s.EntityID, "members": toAnySlice(s.Members)}
	}
	return out
}

func convertTriggers(triggers []ast.RawTrigger) []any {
	out := make([]any, len(triggers))
	for i, t := range triggers {
		out[i] = map[string]any{
			"source_contract": t.SourceContract,
			"source_flow":     t.SourceFlow,
			"on":              t.On,
			"target_contract": t.TargetContract,
			"target_flow":     t.TargetFlow,
			"persona":         t.Persona,
		}
	}
	return out
}

// convertSteps returns the one field in the interchange bundle that is
// deliberately serialized as a Go map, not a slice: steps is a true
// id-keyed mapping, and encoding/json already sorts map[string]any keys
// alphabetically on marshal.
func convertSteps(steps map[string]ast.RawStep) map[string]any {
	out := make(map[string]any, len(steps))
	for id, s := range steps {
		out[id] = convertStep(s)
	}
	return out
}
