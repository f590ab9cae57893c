package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenor/internal/ruleengine"
	"tenor/internal/runtime"
)

var (
	evaluateFactsPath string
	evaluateOut       string
)

// evaluateCmd assembles and coerces facts, then runs the stratified rule
// engine against them, printing the resulting verdict set.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <bundle.json>",
	Short: "Evaluate stratified rules against a fact set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}
		provided, err := loadProvidedFacts(evaluateFactsPath)
		if err != nil {
			return err
		}

		facts, err := runtime.AssembleFacts(bundle, provided)
		if err != nil {
			return fmt.Errorf("evaluate: assembling facts: %w", err)
		}

		verdicts, err := ruleengine.Evaluate(bundle, facts)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		logger.Info("evaluated", zap.Int("verdicts", len(verdicts.Verdicts)))

		return printJSON(verdicts, evaluateOut)
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateFactsPath, "facts", "", "Path to a JSON object of provided fact values")
	evaluateCmd.Flags().StringVar(&evaluateOut, "out", "", "Write verdicts to this file instead of stdout")
}
