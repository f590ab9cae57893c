package interchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEtagIsStableAcrossReserialization(t *testing.T) {
	bundle := map[string]any{"b": 2, "a": 1}
	etag1, err := ComputeEtag(bundle)
	require.NoError(t, err)
	etag2, err := ComputeEtag(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, etag1, etag2)
	assert.Len(t, etag1, 64)
}

func TestBuildManifestWrapsBundleWithEtagAndVersion(t *testing.T) {
	bundle := map[string]any{"id": "b-1"}
	manifest, err := BuildManifest(bundle)
	require.NoError(t, err)
	assert.Equal(t, TenorVersion, manifest.Tenor)
	assert.NotEmpty(t, manifest.Etag)
	assert.Equal(t, bundle, manifest.Bundle)
}
