package interchange

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ComputeEtag hashes the compact JSON serialization of bundle with
// SHA-256, returning lowercase hex. Because encoding/json sorts map keys
// on marshal, the etag is stable across re-serializations of the same
// content regardless of construction order.
func ComputeEtag(bundle any) (string, error) {
	canonical, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("interchange: serializing bundle for etag: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// BuildManifest wraps bundle in a TenorManifest envelope, computing its
// etag.
func BuildManifest(bundle any) (Manifest, error) {
	etag, err := ComputeEtag(bundle)
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{Bundle: bundle, Etag: etag, Tenor: TenorVersion}, nil
}
