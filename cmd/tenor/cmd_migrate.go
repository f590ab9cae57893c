package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenor/internal/migration"
)

var migrateOut string

// migrateCmd diffs two bundle versions, classifies the change severity,
// checks every flow's static compatibility, and proposes a migration
// plan.
var migrateCmd = &cobra.Command{
	Use:   "migrate <v1-bundle.json> <v2-bundle.json>",
	Short: "Analyze a contract migration between two bundle versions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v1, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}
		v2, err := loadBundleArg(args[1])
		if err != nil {
			return err
		}

		analysis, err := migration.AnalyzeMigration(v1, v2)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		plan, err := migration.BuildMigrationPlan(v1, v2, analysis)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		plan.FlowCompatibility = migration.CheckAllFlowCompatibility(v1, v2)

		logger.Info("migration analyzed",
			zap.String("severity", plan.Severity.String()),
			zap.String("policy", string(plan.RecommendedPolicy)),
		)
		return printJSON(plan, migrateOut)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateOut, "out", "", "Write the migration plan to this file instead of stdout")
}
