package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenor/internal/elaborate/pipeline"
	"tenor/internal/interchange"
	"tenor/internal/trust"
)

var (
	elaborateOut      string
	elaborateTrustKey string
)

// signedManifest wraps an interchange.Manifest with the optional
// attestation produced when --trust-key is set.
type signedManifest struct {
	interchange.Manifest
	Attestation string `json:"attestation,omitempty"`
}

// elaborateCmd runs the six-pass elaboration pipeline and writes the
// resulting interchange bundle manifest.
var elaborateCmd = &cobra.Command{
	Use:   "elaborate <root.tenor>",
	Short: "Elaborate .tenor sources into a canonical interchange bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootPath := args[0]
		logger.Info("elaborating", zap.String("root", rootPath))

		bundle, err := pipeline.Elaborate(rootPath)
		if err != nil {
			return fmt.Errorf("elaborate: %w", err)
		}

		manifest, err := interchange.BuildManifest(bundle)
		if err != nil {
			return fmt.Errorf("elaborate: building manifest: %w", err)
		}

		trustKey := elaborateTrustKey
		if trustKey == "" && cfg != nil && cfg.Trust.Enabled {
			trustKey = cfg.Trust.PrivateKeyPath
		}

		out := signedManifest{Manifest: manifest}
		if trustKey != "" {
			key, err := loadSigningKey(trustKey)
			if err != nil {
				return fmt.Errorf("elaborate: loading trust key: %w", err)
			}
			attestation, err := trust.Sign(manifest.Etag, key)
			if err != nil {
				return fmt.Errorf("elaborate: signing manifest: %w", err)
			}
			out.Attestation = attestation
			logger.Info("signed bundle", zap.String("etag", manifest.Etag))
		}

		return printJSON(out, elaborateOut)
	},
}

// validateCmd runs the same pipeline but reports success/failure only,
// without emitting the bundle — the CI-friendly form of elaborate.
var validateCmd = &cobra.Command{
	Use:   "validate <root.tenor>",
	Short: "Validate .tenor sources without emitting a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootPath := args[0]
		bundle, err := pipeline.Elaborate(rootPath)
		if err != nil {
			fmt.Printf("invalid: %s\n", err)
			return err
		}

		etag, err := interchange.ComputeEtag(bundle)
		if err != nil {
			return fmt.Errorf("validate: computing etag: %w", err)
		}
		fmt.Printf("valid: %s (etag %s)\n", bundle.ID, etag)
		return nil
	},
}

func init() {
	elaborateCmd.Flags().StringVar(&elaborateOut, "out", "", "Write the manifest to this file instead of stdout")
	elaborateCmd.Flags().StringVar(&elaborateTrustKey, "trust-key", "", "Path to a hex-encoded ed25519 private key; when set, signs the bundle etag")
}
