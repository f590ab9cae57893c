// Package storage defines the transactional contract every Tenor
// execution backend must satisfy: a TenorStorage that opens Snapshots,
// and a Snapshot whose lifecycle is begin -> mutations -> commit | abort.
// A Snapshot that is neither committed nor aborted is not rolled back on
// its own: sqlitestore's transaction stays open and memstore keeps holding
// its store lock. internal/storage/sqlitestore and internal/storage/memstore
// are the two implementations shipped here.
package storage

import (
	"context"

	"tenor/internal/runtime"
)

// TenorStorage opens Snapshots and serves read queries that run outside
// any particular transaction.
type TenorStorage interface {
	BeginSnapshot(ctx context.Context) (Snapshot, error)

	GetEntityState(ctx context.Context, entityID, instanceID string) (runtime.EntityStateRecord, error)
	ListEntityStates(ctx context.Context, entityID, stateFilter string) ([]runtime.EntityStateRecord, error)
	GetFlowExecution(ctx context.Context, executionID string) (FlowExecutionRecord, error)
	ListFlowExecutions(ctx context.Context, flowID, outcome string, limit int) ([]FlowExecutionRecord, error)
}

// Snapshot is a single in-progress transaction. Every mutating method
// must be called through the same Snapshot returned by BeginSnapshot;
// exactly one of Commit or Abort ends its lifecycle.
type Snapshot interface {
	InitializeEntity(ctx context.Context, entityID, instanceID, initialState string) error
	GetEntityStateForUpdate(ctx context.Context, entityID, instanceID string) (runtime.EntityStateRecord, error)
	UpdateEntityState(ctx context.Context, entityID, instanceID string, expectedVersion int64, newState, flowID, operationID string) (int64, error)

	InsertFlowExecution(ctx context.Context, record FlowExecutionRecord) error
	InsertOperationExecution(ctx context.Context, record OperationExecutionRecord) error
	InsertEntityTransition(ctx context.Context, record EntityTransitionRecord) error
	InsertProvenanceRecord(ctx context.Context, record ProvenanceRecord) error

	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}
