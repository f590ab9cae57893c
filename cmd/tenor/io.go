package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tenor/internal/elaborate/pipeline"
	"tenor/internal/interchange"
	"tenor/internal/runtime"
)

// loadBundle reads a serialized interchange bundle (as produced by
// `tenor elaborate --out`) from path.
func loadBundle(path string) (*interchange.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle %s: %w", path, err)
	}
	bundle := &interchange.Bundle{}
	if err := json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("parsing bundle %s: %w", path, err)
	}
	return bundle, nil
}

// loadBundleArg dispatches on path's extension the way migrate.rs's
// load_interchange_bundle does: ".tenor" elaborates the source from
// scratch, anything else (".json" in practice) parses an already
// serialized bundle.
func loadBundleArg(path string) (*interchange.Bundle, error) {
	if filepath.Ext(path) == ".tenor" {
		return pipeline.Elaborate(path)
	}
	return loadBundle(path)
}

// loadProvidedFacts reads a JSON object of raw fact values from path. An
// empty path yields an empty fact set.
func loadProvidedFacts(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts %s: %w", path, err)
	}
	provided := map[string]any{}
	if err := json.Unmarshal(data, &provided); err != nil {
		return nil, fmt.Errorf("parsing facts %s: %w", path, err)
	}
	return provided, nil
}

// loadEntityStates reads a JSON object mapping entity_id -> current
// state from path. An empty path yields an empty state map.
func loadEntityStates(path string) (runtime.EntityStateMap, error) {
	if path == "" {
		return runtime.EntityStateMap{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading states %s: %w", path, err)
	}
	states := runtime.EntityStateMap{}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("parsing states %s: %w", path, err)
	}
	return states, nil
}

// loadSigningKey reads a hex-encoded ed25519 private key from path.
func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trust key %s: %w", path, err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding trust key %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("trust key %s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// printJSON marshals v as indented JSON to stdout, or to outPath if set.
func printJSON(v any, outPath string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')
	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
