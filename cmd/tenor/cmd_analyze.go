package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tenor/internal/analyze"
)

var (
	analyzeCheck string
	analyzeOut   string
)

// analyzeResult bundles whichever static analyses were requested into a
// single JSON-visible envelope.
type analyzeResult struct {
	StateSpace   *analyze.S1Result `json:"state_space,omitempty"`
	Reachability *analyze.S2Result `json:"reachability,omitempty"`
}

// analyzeCmd runs static entity analyses (declared state space,
// reachability from the initial state) over an elaborated bundle.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <bundle.json>",
	Short: "Run static entity analyses (state-space, reachability) on a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}

		var result analyzeResult
		switch analyzeCheck {
		case "s1":
			s1 := analyze.AnalyzeStateSpace(bundle)
			result.StateSpace = &s1
		case "s2":
			s2 := analyze.AnalyzeReachability(bundle)
			result.Reachability = &s2
		case "all", "":
			s1 := analyze.AnalyzeStateSpace(bundle)
			s2 := analyze.AnalyzeReachability(bundle)
			result.StateSpace = &s1
			result.Reachability = &s2
		default:
			return fmt.Errorf("analyze: unknown --check %q (want s1, s2, or all)", analyzeCheck)
		}

		return printJSON(result, analyzeOut)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCheck, "check", "all", "Which analysis to run: s1 (state space), s2 (reachability), or all")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Write the result to this file instead of stdout")
}
