// Package main implements the tenor CLI — the command-line surface over
// the elaboration pipeline, rule engine, flow executor, action space
// computer, migration analyzer, and static analyses.
//
// The actual command implementations are split across multiple cmd_*.go
// files for maintainability.
//
// # File Index
//
//   - main.go           - Entry point, rootCmd, global flags, init()
//   - io.go             - bundle/fact/state loading and JSON output helpers
//   - cmd_elaborate.go  - elaborateCmd, validateCmd
//   - cmd_evaluate.go   - evaluateCmd
//   - cmd_actions.go    - actionsCmd
//   - cmd_flow.go       - simulateCmd, executeCmd
//   - cmd_migrate.go    - migrateCmd
//   - cmd_analyze.go    - analyzeCmd
//   - cmd_explain.go    - explainCmd
//   - cmd_lint.go       - lintCmd, runLintWatch()
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenor/internal/config"
	"tenor/internal/logging"
)

var (
	// Global flags
	verbose    bool
	outputJSON bool
	configPath string

	// Logger, built in PersistentPreRunE
	logger *zap.Logger
	// cfg is the loaded tenor configuration, used for storage backend
	// and trust defaults where commands don't override them with flags.
	cfg *config.Config
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "tenor",
	Short: "tenor - contract elaboration and evaluation CLI",
	Long: `tenor elaborates .tenor contract sources into a canonical
interchange bundle, evaluates stratified rules against facts, computes
the available action space for a persona, and executes flows against a
transactional storage backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		if verbose {
			logger, err = logging.NewVerbose()
		} else {
			logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		}
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", true, "Emit machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tenor.yaml", "Path to the tenor configuration file")

	rootCmd.AddCommand(
		elaborateCmd,
		validateCmd,
		evaluateCmd,
		actionsCmd,
		simulateCmd,
		executeCmd,
		migrateCmd,
		analyzeCmd,
		explainCmd,
		lintCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
