package pass1

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBundleFlattensImportsInDFSOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared.tenor", `persona clerk {}`)
	writeFile(t, dir, "root.tenor", `import "shared.tenor"
entity Order { states: ["draft", "approved"], initial: "draft", transitions: [("draft", "approved")] }`)

	constructs, bundleID, err := LoadBundle(filepath.Join(dir, "root.tenor"))
	require.NoError(t, err)
	assert.Equal(t, "root", bundleID)
	require.Len(t, constructs, 2)
	assert.Equal(t, ast.KindPersona, constructs[0].Kind)
	assert.Equal(t, ast.KindEntity, constructs[1].Kind)
}

func TestLoadBundleDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.tenor", `import "b.tenor"`)
	writeFile(t, dir, "b.tenor", `import "a.tenor"`)

	_, _, err := LoadBundle(filepath.Join(dir, "a.tenor"))
	require.Error(t, err)
	var elabErr *elaborate.Error
	require.ErrorAs(t, err, &elabErr)
	assert.Contains(t, elabErr.Message, "import cycle detected")
}

func TestLoadBundleDetectsCrossFileDuplicateIds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "other.tenor", `persona clerk {}`)
	writeFile(t, dir, "root.tenor", `import "other.tenor"
persona clerk {}`)

	_, _, err := LoadBundle(filepath.Join(dir, "root.tenor"))
	require.Error(t, err)
	var elabErr *elaborate.Error
	require.ErrorAs(t, err, &elabErr)
	assert.Contains(t, elabErr.Message, "duplicate Persona id 'clerk'")
}

func TestLoadBundleMissingImportFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "root.tenor", `import "missing.tenor"`)

	_, _, err := LoadBundle(filepath.Join(dir, "root.tenor"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import resolution failed")
}

func TestLoadBundleSkipsAlreadyVisitedFileWithoutError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.tenor", `persona clerk {}`)
	writeFile(t, dir, "a.tenor", `import "common.tenor"`)
	writeFile(t, dir, "root.tenor", `import "common.tenor"
import "a.tenor"`)

	constructs, _, err := LoadBundle(filepath.Join(dir, "root.tenor"))
	require.NoError(t, err)
	require.Len(t, constructs, 1)
}
