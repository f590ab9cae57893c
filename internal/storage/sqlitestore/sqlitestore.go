// Package sqlitestore implements storage.TenorStorage over
// modernc.org/sqlite. SQLite has no row-level locks, so serialization
// of concurrent writers is achieved the way the teacher's embedded
// stores do it: a single open connection (SetMaxOpenConns(1)) plus
// BEGIN IMMEDIATE on every snapshot, which takes SQLite's reserved lock
// up front instead of deferring it to the first write.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tenor/internal/runtime"
	"tenor/internal/storage"
)

// Store is a sqlite-backed TenorStorage.
type Store struct {
	db *sql.DB
}

// Open opens (and, if needed, creates) the database at path and applies
// the schema and pragma sequence every snapshot depends on.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS entity_states (
	entity_id TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	state TEXT NOT NULL,
	version INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	last_flow_id TEXT,
	last_operation_id TEXT,
	PRIMARY KEY (entity_id, instance_id)
);
CREATE TABLE IF NOT EXISTS flow_executions (
	id TEXT PRIMARY KEY,
	flow_id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	persona_id TEXT NOT NULL,
	started_at TEXT NOT NULL,
	completed_at TEXT,
	outcome TEXT NOT NULL,
	snapshot_facts TEXT NOT NULL,
	snapshot_verdicts TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS operation_executions (
	id TEXT PRIMARY KEY,
	flow_execution_id TEXT NOT NULL REFERENCES flow_executions(id),
	operation_id TEXT NOT NULL,
	persona_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	executed_at TEXT NOT NULL,
	step_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entity_transitions (
	id TEXT PRIMARY KEY,
	operation_execution_id TEXT NOT NULL REFERENCES operation_executions(id),
	entity_id TEXT NOT NULL,
	instance_id TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	from_version INTEGER NOT NULL,
	to_version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS provenance_records (
	id TEXT PRIMARY KEY,
	operation_execution_id TEXT NOT NULL REFERENCES operation_executions(id),
	facts_used TEXT NOT NULL,
	verdicts_used TEXT NOT NULL,
	verdict_set_snapshot TEXT NOT NULL
);`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return nil
}

// BeginSnapshot issues BEGIN IMMEDIATE directly rather than going
// through database/sql's Tx type: SQLite has no statement to request
// an immediate-mode transaction via sql.TxOptions, and with
// SetMaxOpenConns(1) every statement on s.db already runs against the
// same underlying connection, so the snapshot's BEGIN/COMMIT/ROLLBACK
// sequence is naturally serialized against any other snapshot.
func (s *Store) BeginSnapshot(ctx context.Context) (storage.Snapshot, error) {
	if _, err := s.db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, &storage.BackendError{Cause: err}
	}
	return &snapshot{db: s.db}, nil
}

func (s *Store) GetEntityState(ctx context.Context, entityID, instanceID string) (runtime.EntityStateRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT entity_id, instance_id, state, version, updated_at, last_flow_id, last_operation_id FROM entity_states WHERE entity_id = ? AND instance_id = ?`, entityID, instanceID)
	return scanEntityState(row, entityID, instanceID)
}

func (s *Store) ListEntityStates(ctx context.Context, entityID, stateFilter string) ([]runtime.EntityStateRecord, error) {
	query := `SELECT entity_id, instance_id, state, version, updated_at, last_flow_id, last_operation_id FROM entity_states WHERE entity_id = ?`
	args := []any{entityID}
	if stateFilter != "" {
		query += " AND state = ?"
		args = append(args, stateFilter)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.BackendError{Cause: err}
	}
	defer rows.Close()

	var out []runtime.EntityStateRecord
	for rows.Next() {
		rec, err := scanEntityStateRow(rows)
		if err != nil {
			return nil, &storage.BackendError{Cause: err}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetFlowExecution(ctx context.Context, executionID string) (storage.FlowExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, flow_id, contract_id, persona_id, started_at, completed_at, outcome, snapshot_facts, snapshot_verdicts FROM flow_executions WHERE id = ?`, executionID)
	rec, err := scanFlowExecution(row)
	if err == sql.ErrNoRows {
		return storage.FlowExecutionRecord{}, &storage.ExecutionNotFoundError{ExecutionID: executionID}
	}
	if err != nil {
		return storage.FlowExecutionRecord{}, &storage.BackendError{Cause: err}
	}
	return rec, nil
}

func (s *Store) ListFlowExecutions(ctx context.Context, flowID, outcome string, limit int) ([]storage.FlowExecutionRecord, error) {
	query := `SELECT id, flow_id, contract_id, persona_id, started_at, completed_at, outcome, snapshot_facts, snapshot_verdicts FROM flow_executions WHERE 1=1`
	var args []any
	if flowID != "" {
		query += " AND flow_id = ?"
		args = append(args, flowID)
	}
	if outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.BackendError{Cause: err}
	}
	defer rows.Close()

	var out []storage.FlowExecutionRecord
	for rows.Next() {
		rec, err := scanFlowExecution(rows)
		if err != nil {
			return nil, &storage.BackendError{Cause: err}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntityState(row scanner, entityID, instanceID string) (runtime.EntityStateRecord, error) {
	rec, err := scanEntityStateRow(row)
	if err == sql.ErrNoRows {
		return runtime.EntityStateRecord{}, &storage.EntityNotFoundError{EntityID: entityID, InstanceID: instanceID}
	}
	if err != nil {
		return runtime.EntityStateRecord{}, &storage.BackendError{Cause: err}
	}
	return rec, nil
}

func scanEntityStateRow(row scanner) (runtime.EntityStateRecord, error) {
	var rec runtime.EntityStateRecord
	var updatedAt string
	var lastFlowID, lastOperationID sql.NullString
	if err := row.Scan(&rec.EntityID, &rec.InstanceID, &rec.State, &rec.Version, &updatedAt, &lastFlowID, &lastOperationID); err != nil {
		return runtime.EntityStateRecord{}, err
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	rec.LastFlowID = lastFlowID.String
	rec.LastOperationID = lastOperationID.String
	return rec, nil
}

func scanFlowExecution(row scanner) (storage.FlowExecutionRecord, error) {
	var rec storage.FlowExecutionRecord
	var startedAt string
	var completedAt sql.NullString
	var factsJSON, verdictsJSON string
	if err := row.Scan(&rec.ID, &rec.FlowID, &rec.ContractID, &rec.PersonaID, &startedAt, &completedAt, &rec.Outcome, &factsJSON, &verdictsJSON); err != nil {
		return storage.FlowExecutionRecord{}, err
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if completedAt.Valid {
		rec.CompletedAt, _ = time.Parse(time.RFC3339, completedAt.String)
	}
	_ = json.Unmarshal([]byte(factsJSON), &rec.SnapshotFacts)
	_ = json.Unmarshal([]byte(verdictsJSON), &rec.SnapshotVerdicts)
	return rec, nil
}
