// Package trust implements the optional bundle-attestation layer from
// spec section 6: Ed25519 signatures over a bundle's etag, verification
// against a configured public key, and the fixed payload shape a WASM
// evaluator attests to.
package trust

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Sign produces a hex-encoded Ed25519 signature over etag.
func Sign(etag string, key ed25519.PrivateKey) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("trust: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	sig := ed25519.Sign(key, []byte(etag))
	return hex.EncodeToString(sig), nil
}

// Verify checks that attestation is a valid hex-encoded Ed25519
// signature over etag under pub.
func Verify(etag, attestation string, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("trust: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	sig, err := hex.DecodeString(attestation)
	if err != nil {
		return fmt.Errorf("trust: decoding attestation: %w", err)
	}
	if !ed25519.Verify(pub, []byte(etag), sig) {
		return fmt.Errorf("trust: signature verification failed")
	}
	return nil
}

// WASMAttestation builds the fixed payload shape a WASM evaluator
// attests to: the sha256 hex digest of the evaluator binary joined with
// the bundle's etag. Sign the result to produce the WASM evaluator's
// bundle attestation.
func WASMAttestation(wasmSHA256Hex, bundleEtag string) string {
	return wasmSHA256Hex + ":" + bundleEtag
}
