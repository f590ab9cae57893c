package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tenor/internal/actionspace"
	"tenor/internal/ruleengine"
	"tenor/internal/runtime"
)

var (
	actionsFactsPath  string
	actionsStatesPath string
	actionsPersona    string
	actionsOut        string
)

// actionsCmd computes the action space available to a persona: the
// flows it may enter given the current facts, verdicts, and entity
// states, plus the blocked flows and why they are blocked.
var actionsCmd = &cobra.Command{
	Use:   "actions <bundle.json>",
	Short: "Compute the action space available to a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if actionsPersona == "" {
			return fmt.Errorf("actions: --persona is required")
		}

		bundle, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}
		provided, err := loadProvidedFacts(actionsFactsPath)
		if err != nil {
			return err
		}
		states, err := loadEntityStates(actionsStatesPath)
		if err != nil {
			return err
		}

		facts, err := runtime.AssembleFacts(bundle, provided)
		if err != nil {
			return fmt.Errorf("actions: assembling facts: %w", err)
		}
		verdicts, err := ruleengine.Evaluate(bundle, facts)
		if err != nil {
			return fmt.Errorf("actions: evaluating rules: %w", err)
		}

		space := actionspace.Compute(bundle, facts, verdicts, states, actionsPersona)
		return printJSON(space, actionsOut)
	},
}

func init() {
	actionsCmd.Flags().StringVar(&actionsFactsPath, "facts", "", "Path to a JSON object of provided fact values")
	actionsCmd.Flags().StringVar(&actionsStatesPath, "states", "", "Path to a JSON object mapping entity_id to current state")
	actionsCmd.Flags().StringVar(&actionsPersona, "persona", "", "Persona to compute the action space for (required)")
	actionsCmd.Flags().StringVar(&actionsOut, "out", "", "Write the action space to this file instead of stdout")
}
