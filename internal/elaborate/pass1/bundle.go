// Package pass1 resolves a root .tenor file and its transitive imports
// into one flat, declaration-ordered construct list, detecting import
// cycles and cross-file id collisions before any later pass runs.
package pass1

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/parser"
)

// LoadBundle parses root and every file it transitively imports, in
// depth-first import order, and returns the flattened construct list
// together with the bundle id derived from the root file's stem.
func LoadBundle(root string) ([]ast.RawConstruct, string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, "", elaborate.New(1, root, 0, fmt.Sprintf("cannot open file: %s", err))
	}
	rootDir := filepath.Dir(absRoot)
	bundleID := strings.TrimSuffix(filepath.Base(absRoot), filepath.Ext(absRoot))
	if bundleID == "" {
		bundleID = uuid.NewString()
	}

	visited := make(map[string]bool)
	var stack []string
	var out []ast.RawConstruct

	if err := loadFile(absRoot, rootDir, visited, &stack, &out); err != nil {
		return nil, "", err
	}
	if err := checkCrossFileDups(out); err != nil {
		return nil, "", err
	}
	return out, bundleID, nil
}

func checkCrossFileDups(constructs []ast.RawConstruct) error {
	type key struct{ kind, id string }
	seen := make(map[key]ast.Provenance)
	for i := len(constructs) - 1; i >= 0; i-- {
		c := constructs[i]
		if c.Kind == ast.KindImport {
			continue
		}
		k := key{c.Kind.String(), c.ID}
		if first, ok := seen[k]; ok {
			if first.File != c.Prov.File {
				return elaborate.New(1, c.Prov.File, c.Prov.Line,
					fmt.Sprintf("duplicate %s id '%s': first declared in %s", k.kind, k.id, first.File)).
					WithConstruct(k.kind, k.id).WithField("id")
			}
		} else {
			seen[k] = c.Prov
		}
	}
	return nil
}

func cycleMessage(stack []string, target string) string {
	names := make([]string, len(stack))
	for i, p := range stack {
		names[i] = filepath.Base(p)
	}
	return fmt.Sprintf("import cycle detected: %s → %s", strings.Join(names, " → "), filepath.Base(target))
}

func loadFile(path, baseDir string, visited map[string]bool, stack *[]string, out *[]ast.RawConstruct) error {
	canon, err := filepath.Abs(path)
	if err != nil {
		return elaborate.New(1, path, 0, fmt.Sprintf("cannot resolve import '%s': %s", path, err))
	}

	if contains(*stack, canon) {
		return elaborate.New(1, path, 0, cycleMessage(*stack, path))
	}
	if visited[canon] {
		return nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return elaborate.New(1, path, 0, fmt.Sprintf("cannot read file '%s': %s", path, err))
	}

	filename := filepath.Base(path)
	constructs, err := parser.ParseFile(filename, string(src))
	if err != nil {
		return err
	}

	*stack = append(*stack, canon)

	var local []ast.RawConstruct
	for _, c := range constructs {
		if c.Kind != ast.KindImport {
			local = append(local, c)
			continue
		}
		resolved := filepath.Join(baseDir, c.ImportPath)
		importBase := filepath.Dir(resolved)
		if _, err := os.Stat(resolved); err != nil {
			return elaborate.New(1, c.Prov.File, c.Prov.Line,
				fmt.Sprintf("import resolution failed: file not found: %s", c.ImportPath)).
				WithField("import")
		}
		if canonImport, err := filepath.Abs(resolved); err == nil && contains(*stack, canonImport) {
			return elaborate.New(1, c.Prov.File, c.Prov.Line, cycleMessage(*stack, resolved)).WithField("import")
		}
		if err := loadFile(resolved, importBase, visited, stack, out); err != nil {
			return err
		}
	}
	*out = append(*out, local...)

	*stack = (*stack)[:len(*stack)-1]
	visited[canon] = true
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
