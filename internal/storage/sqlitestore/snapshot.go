package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tenor/internal/runtime"
	"tenor/internal/storage"
)

// snapshot is one BEGIN IMMEDIATE .. COMMIT|ROLLBACK transaction. It
// holds no connection of its own (modernc.org/sqlite plus
// SetMaxOpenConns(1) gives every statement on db the same serialized
// connection); Commit/Abort simply end the transaction the Store's
// single connection is already inside.
type snapshot struct {
	db   *sql.DB
	done bool
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (sn *snapshot) InitializeEntity(ctx context.Context, entityID, instanceID, initialState string) error {
	_, err := sn.db.ExecContext(ctx,
		`INSERT INTO entity_states (entity_id, instance_id, state, version, updated_at) VALUES (?, ?, ?, 0, ?)`,
		entityID, instanceID, initialState, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return &storage.AlreadyInitializedError{EntityID: entityID, InstanceID: instanceID}
	}
	return nil
}

func (sn *snapshot) GetEntityStateForUpdate(ctx context.Context, entityID, instanceID string) (runtime.EntityStateRecord, error) {
	row := sn.db.QueryRowContext(ctx,
		`SELECT entity_id, instance_id, state, version, updated_at, last_flow_id, last_operation_id FROM entity_states WHERE entity_id = ? AND instance_id = ?`,
		entityID, instanceID)
	return scanEntityState(row, entityID, instanceID)
}

func (sn *snapshot) UpdateEntityState(ctx context.Context, entityID, instanceID string, expectedVersion int64, newState, flowID, operationID string) (int64, error) {
	newVersion := expectedVersion + 1
	result, err := sn.db.ExecContext(ctx,
		`UPDATE entity_states SET state = ?, version = ?, updated_at = ?, last_flow_id = ?, last_operation_id = ? WHERE entity_id = ? AND instance_id = ? AND version = ?`,
		newState, newVersion, time.Now().UTC().Format(time.RFC3339), flowID, operationID, entityID, instanceID, expectedVersion)
	if err != nil {
		return 0, &storage.BackendError{Cause: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, &storage.BackendError{Cause: err}
	}
	if affected == 0 {
		return 0, &storage.ConcurrentConflictError{EntityID: entityID, InstanceID: instanceID, ExpectedVersion: expectedVersion}
	}
	return newVersion, nil
}

func (sn *snapshot) InsertFlowExecution(ctx context.Context, record storage.FlowExecutionRecord) error {
	facts, err := marshalJSON(record.SnapshotFacts)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	verdicts, err := marshalJSON(record.SnapshotVerdicts)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	var completedAt any
	if !record.CompletedAt.IsZero() {
		completedAt = record.CompletedAt.Format(time.RFC3339)
	}
	_, err = sn.db.ExecContext(ctx,
		`INSERT INTO flow_executions (id, flow_id, contract_id, persona_id, started_at, completed_at, outcome, snapshot_facts, snapshot_verdicts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.FlowID, record.ContractID, record.PersonaID,
		record.StartedAt.Format(time.RFC3339), completedAt, record.Outcome, facts, verdicts)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	return nil
}

func (sn *snapshot) InsertOperationExecution(ctx context.Context, record storage.OperationExecutionRecord) error {
	_, err := sn.db.ExecContext(ctx,
		`INSERT INTO operation_executions (id, flow_execution_id, operation_id, persona_id, outcome, executed_at, step_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.FlowExecutionID, record.OperationID, record.PersonaID, record.Outcome, time.Now().UTC().Format(time.RFC3339), record.StepID)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	return nil
}

func (sn *snapshot) InsertEntityTransition(ctx context.Context, record storage.EntityTransitionRecord) error {
	_, err := sn.db.ExecContext(ctx,
		`INSERT INTO entity_transitions (id, operation_execution_id, entity_id, instance_id, from_state, to_state, from_version, to_version) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.OperationExecutionID, record.EntityID, record.InstanceID, record.FromState, record.ToState, record.FromVersion, record.ToVersion)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	return nil
}

func (sn *snapshot) InsertProvenanceRecord(ctx context.Context, record storage.ProvenanceRecord) error {
	factsUsed, err := marshalJSON(record.FactsUsed)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	verdictsUsed, err := marshalJSON(record.VerdictsUsed)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	verdictSnapshot, err := marshalJSON(record.VerdictSetSnapshot)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	_, err = sn.db.ExecContext(ctx,
		`INSERT INTO provenance_records (id, operation_execution_id, facts_used, verdicts_used, verdict_set_snapshot) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.OperationExecutionID, factsUsed, verdictsUsed, verdictSnapshot)
	if err != nil {
		return &storage.BackendError{Cause: err}
	}
	return nil
}

func (sn *snapshot) Commit(ctx context.Context) error {
	if sn.done {
		return nil
	}
	sn.done = true
	if _, err := sn.db.ExecContext(ctx, "COMMIT"); err != nil {
		return &storage.BackendError{Cause: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (sn *snapshot) Abort(ctx context.Context) error {
	if sn.done {
		return nil
	}
	sn.done = true
	if _, err := sn.db.ExecContext(ctx, "ROLLBACK"); err != nil {
		return &storage.BackendError{Cause: fmt.Errorf("rollback: %w", err)}
	}
	return nil
}
