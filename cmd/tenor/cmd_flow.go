package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenor/internal/flowexec"
	"tenor/internal/interchange"
	"tenor/internal/ruleengine"
	"tenor/internal/runtime"
	"tenor/internal/storage"
	"tenor/internal/storage/memstore"
	"tenor/internal/storage/sqlitestore"
)

var (
	flowFactsPath  string
	flowStatesPath string
	flowPersona    string
	flowID         string
	flowOut        string
	flowDBPath     string
)

func registerFlowFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flowFactsPath, "facts", "", "Path to a JSON object of provided fact values")
	cmd.Flags().StringVar(&flowStatesPath, "states", "", "Path to a JSON object mapping entity_id to current state")
	cmd.Flags().StringVar(&flowPersona, "persona", "", "Persona driving the flow (required)")
	cmd.Flags().StringVar(&flowID, "flow", "", "Flow ID to run (required)")
	cmd.Flags().StringVar(&flowOut, "out", "", "Write the flow result to this file instead of stdout")
}

func buildSnapshot(bundle *interchange.Bundle) (runtime.Snapshot, runtime.EntityStateMap, error) {
	provided, err := loadProvidedFacts(flowFactsPath)
	if err != nil {
		return runtime.Snapshot{}, nil, err
	}
	states, err := loadEntityStates(flowStatesPath)
	if err != nil {
		return runtime.Snapshot{}, nil, err
	}

	facts, err := runtime.AssembleFacts(bundle, provided)
	if err != nil {
		return runtime.Snapshot{}, nil, fmt.Errorf("assembling facts: %w", err)
	}
	verdicts, err := ruleengine.Evaluate(bundle, facts)
	if err != nil {
		return runtime.Snapshot{}, nil, fmt.Errorf("evaluating rules: %w", err)
	}
	return runtime.Snapshot{Facts: facts, Verdicts: verdicts}, states, nil
}

// simulateCmd runs a flow in simulate mode: it reports the path taken
// and would-be entity transitions without touching storage.
var simulateCmd = &cobra.Command{
	Use:   "simulate <bundle.json>",
	Short: "Simulate a flow run without persisting any effects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flowID == "" || flowPersona == "" {
			return fmt.Errorf("simulate: --flow and --persona are required")
		}
		bundle, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}
		snap, states, err := buildSnapshot(bundle)
		if err != nil {
			return fmt.Errorf("simulate: %w", err)
		}

		executor := flowexec.New(bundle, nil)
		result, err := executor.Run(cmd.Context(), flowID, snap, states, flowPersona, flowexec.Simulate)
		if err != nil {
			return fmt.Errorf("simulate: %w", err)
		}
		logger.Info("simulated", zap.String("flow", flowID), zap.String("outcome", result.Outcome))
		return printJSON(result, flowOut)
	},
}

// executeCmd runs a flow against a transactional storage backend,
// durably recording every entity transition it causes.
var executeCmd = &cobra.Command{
	Use:   "execute <bundle.json>",
	Short: "Execute a flow, persisting its effects through a storage backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flowID == "" || flowPersona == "" {
			return fmt.Errorf("execute: --flow and --persona are required")
		}
		bundle, err := loadBundleArg(args[0])
		if err != nil {
			return err
		}
		snap, states, err := buildSnapshot(bundle)
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}

		dbPath := flowDBPath
		if dbPath == "" && cfg != nil && cfg.Storage.Backend == "sqlite" {
			dbPath = cfg.Storage.Path
		}
		store, closeStore, err := openStore(dbPath)
		if err != nil {
			return fmt.Errorf("execute: opening storage: %w", err)
		}
		if closeStore != nil {
			defer closeStore()
		}

		executor := flowexec.New(bundle, store)
		result, err := executor.Run(cmd.Context(), flowID, snap, states, flowPersona, flowexec.Execute)
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		logger.Info("executed", zap.String("flow", flowID), zap.String("outcome", result.Outcome))
		return printJSON(result, flowOut)
	},
}

// openStore opens the sqlite-backed store at path, or an in-process
// memstore when path is empty.
func openStore(path string) (storage.TenorStorage, func(), error) {
	if path == "" {
		return memstore.New(), nil, nil
	}
	store, err := sqlitestore.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func init() {
	registerFlowFlags(simulateCmd)
	registerFlowFlags(executeCmd)
	executeCmd.Flags().StringVar(&flowDBPath, "db", "", "Path to the sqlite database (empty uses the configured storage path when the storage backend is sqlite, otherwise an in-memory store)")
}
