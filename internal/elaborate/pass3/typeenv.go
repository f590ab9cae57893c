// Package pass3 resolves TypeDecl references into concrete RawType values,
// rejecting cyclic type declarations before any fact or operation is
// type-checked against them.
package pass3

import (
	"fmt"
	"sort"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

// TypeEnv maps a TypeDecl name to its fully resolved Record type.
type TypeEnv map[string]ast.RawType

type declEntry struct {
	fields map[string]ast.RawType
	prov   ast.Provenance
}

// BuildTypeEnv resolves every TypeDecl in constructs into a concrete
// Record type, erroring on unknown references or reference cycles.
func BuildTypeEnv(constructs []ast.RawConstruct, _ *pass2.Index) (TypeEnv, error) {
	decls := make(map[string]declEntry)
	var names []string
	for _, c := range constructs {
		if c.Kind != ast.KindTypeDecl {
			continue
		}
		decls[c.ID] = declEntry{fields: c.Fields, prov: c.Prov}
		names = append(names, c.ID)
	}
	sort.Strings(names)

	visited := make(map[string]bool)
	var inStack []string
	for _, name := range names {
		if err := detectCycle(name, decls, visited, &inStack); err != nil {
			return nil, err
		}
	}

	env := make(TypeEnv)
	for _, name := range names {
		t, err := resolveTypeDecl(name, decls, env)
		if err != nil {
			return nil, err
		}
		env[name] = t
	}
	return env, nil
}

func detectCycle(name string, decls map[string]declEntry, visited map[string]bool, inStack *[]string) error {
	if visited[name] {
		return nil
	}
	if idx := indexOf(*inStack, name); idx >= 0 {
		cycle := append(append([]string{}, (*inStack)[idx:]...), name)
		cycleStr := joinArrows(cycle)
		backEdgeName := (*inStack)[len(*inStack)-1]
		entry, ok := decls[backEdgeName]
		if !ok {
			return elaborate.New(3, "", 0,
				fmt.Sprintf("internal error: type '%s' referenced in cycle but not found in declarations", backEdgeName)).
				WithConstruct("TypeDecl", backEdgeName)
		}
		fieldName := "type"
		for _, fname := range sortedKeys(entry.fields) {
			if referencesType(entry.fields[fname], name) {
				fieldName = fname
				break
			}
		}
		return elaborate.New(3, entry.prov.File, entry.prov.Line, fmt.Sprintf("TypeDecl cycle detected: %s", cycleStr)).
			WithConstruct("TypeDecl", backEdgeName).WithField("type.fields." + fieldName)
	}

	entry, ok := decls[name]
	if !ok {
		return nil
	}

	*inStack = append(*inStack, name)
	for _, fname := range sortedKeys(entry.fields) {
		for _, refName := range typeRefs(entry.fields[fname]) {
			if err := detectCycle(refName, decls, visited, inStack); err != nil {
				return err
			}
		}
	}
	*inStack = (*inStack)[:len(*inStack)-1]
	visited[name] = true
	return nil
}

func referencesType(t ast.RawType, target string) bool {
	switch t.Kind {
	case ast.TypeRef:
		return t.RefName == target
	case ast.TypeRecord:
		for _, f := range t.Fields {
			if referencesType(f, target) {
				return true
			}
		}
		return false
	case ast.TypeList:
		if t.ElementType == nil {
			return false
		}
		return referencesType(*t.ElementType, target)
	default:
		return false
	}
}

func typeRefs(t ast.RawType) []string {
	switch t.Kind {
	case ast.TypeRef:
		return []string{t.RefName}
	case ast.TypeRecord:
		var out []string
		for _, fname := range sortedKeys(t.Fields) {
			out = append(out, typeRefs(t.Fields[fname])...)
		}
		return out
	case ast.TypeList:
		if t.ElementType == nil {
			return nil
		}
		return typeRefs(*t.ElementType)
	default:
		return nil
	}
}

func resolveTypeDecl(name string, decls map[string]declEntry, env TypeEnv) (ast.RawType, error) {
	entry, ok := decls[name]
	if !ok {
		return ast.RawType{}, elaborate.New(3, "", 0,
			fmt.Sprintf("internal error: type '%s' not found in declarations during resolution", name)).
			WithConstruct("TypeDecl", name)
	}
	resolved := make(map[string]ast.RawType, len(entry.fields))
	for fname, ft := range entry.fields {
		rt, err := resolveTypeInEnv(ft, decls, env, entry.prov.File, entry.prov.Line)
		if err != nil {
			return ast.RawType{}, err
		}
		resolved[fname] = rt
	}
	return ast.RawType{Kind: ast.TypeRecord, Fields: resolved}, nil
}

func resolveTypeInEnv(t ast.RawType, decls map[string]declEntry, env TypeEnv, file string, line uint32) (ast.RawType, error) {
	switch t.Kind {
	case ast.TypeRef:
		if resolved, ok := env[t.RefName]; ok {
			return resolved, nil
		}
		if _, ok := decls[t.RefName]; ok {
			return resolveTypeDecl(t.RefName, decls, env)
		}
		return ast.RawType{}, elaborate.New(4, file, line, fmt.Sprintf("unknown type reference '%s'", t.RefName)).WithField("type")
	case ast.TypeRecord:
		resolved := make(map[string]ast.RawType, len(t.Fields))
		for k, v := range t.Fields {
			rt, err := resolveTypeInEnv(v, decls, env, file, line)
			if err != nil {
				return ast.RawType{}, err
			}
			resolved[k] = rt
		}
		return ast.RawType{Kind: ast.TypeRecord, Fields: resolved}, nil
	case ast.TypeList:
		if t.ElementType == nil {
			return t, nil
		}
		et, err := resolveTypeInEnv(*t.ElementType, decls, env, file, line)
		if err != nil {
			return ast.RawType{}, err
		}
		return ast.RawType{Kind: ast.TypeList, ElementType: &et, Max: t.Max}, nil
	default:
		return t, nil
	}
}

// Resolve replaces every TypeRef reachable from t with its concrete type
// from env. Used by pass4 to resolve the top-level type of a Fact or a
// Rule's payload type, after BuildTypeEnv has already resolved every
// TypeDecl.
func Resolve(t ast.RawType, env TypeEnv, file string, line uint32) (ast.RawType, error) {
	return resolveTypeInEnv(t, nil, env, file, line)
}

func indexOf(stack []string, name string) int {
	for i, s := range stack {
		if s == name {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]ast.RawType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinArrows(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " → "
		}
		out += p
	}
	return out
}
