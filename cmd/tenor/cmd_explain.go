package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tenor/internal/interchange"
	"tenor/internal/ruleengine"
	"tenor/internal/runtime"
)

var (
	explainFactsPath   string
	explainVerdictType string
	explainOut         string
)

// explainRule summarizes one rule declaring the requested verdict type,
// used to report why a verdict was or wasn't produced.
type explainRule struct {
	RuleID      string `json:"rule_id"`
	Stratum     int    `json:"stratum"`
	VerdictType string `json:"verdict_type"`
}

// explainResult is the "glass box" answer to "why (not) this verdict".
type explainResult struct {
	VerdictType    string            `json:"verdict_type"`
	Produced       bool              `json:"produced"`
	Verdicts       []runtime.Verdict `json:"verdicts,omitempty"`
	CandidateRules []explainRule     `json:"candidate_rules"`
}

// explainCmd runs evaluation and reports, for one verdict type, whether
// it was produced and by which rule, or which rules could have produced
// it and were not satisfied.
var explainCmd = &cobra.Command{
	Use:   "explain <bundle.json>",
	Short: "Explain why a verdict type was or was not produced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if explainVerdictType == "" {
			return fmt.Errorf("explain: --verdict-type is required")
		}
		bundle, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}
		provided, err := loadProvidedFacts(explainFactsPath)
		if err != nil {
			return err
		}

		facts, err := runtime.AssembleFacts(bundle, provided)
		if err != nil {
			return fmt.Errorf("explain: assembling facts: %w", err)
		}
		verdicts, err := ruleengine.Evaluate(bundle, facts)
		if err != nil {
			return fmt.Errorf("explain: %w", err)
		}

		result := explainResult{
			VerdictType:    explainVerdictType,
			CandidateRules: rulesDeclaringVerdict(bundle, explainVerdictType),
		}
		for _, v := range verdicts.Verdicts {
			if v.Type == explainVerdictType {
				result.Produced = true
				result.Verdicts = append(result.Verdicts, v)
			}
		}

		return printJSON(result, explainOut)
	},
}

func rulesDeclaringVerdict(bundle *interchange.Bundle, verdictType string) []explainRule {
	var rules []explainRule
	for _, c := range bundle.Constructs {
		m, ok := c.(map[string]any)
		if !ok || m["kind"] != "Rule" {
			continue
		}
		if m["verdict_type"] != verdictType {
			continue
		}
		stratum, _ := m["stratum"].(float64)
		id, _ := m["id"].(string)
		rules = append(rules, explainRule{
			RuleID:      id,
			Stratum:     int(stratum),
			VerdictType: verdictType,
		})
	}
	return rules
}

func init() {
	explainCmd.Flags().StringVar(&explainFactsPath, "facts", "", "Path to a JSON object of provided fact values")
	explainCmd.Flags().StringVar(&explainVerdictType, "verdict-type", "", "Verdict type to explain (required)")
	explainCmd.Flags().StringVar(&explainOut, "out", "", "Write the explanation to this file instead of stdout")
}
