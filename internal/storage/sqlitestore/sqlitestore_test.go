package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenor/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenor.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitializeAndReadEntityState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.BeginSnapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InitializeEntity(ctx, "order", "__default__", "draft"))
	require.NoError(t, tx.Commit(ctx))

	rec, err := s.GetEntityState(ctx, "order", "__default__")
	require.NoError(t, err)
	assert.Equal(t, "draft", rec.State)
	assert.Equal(t, int64(0), rec.Version)
}

func TestUpdateEntityStateOCCRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx, _ := s.BeginSnapshot(ctx)
	require.NoError(t, tx.InitializeEntity(ctx, "order", "__default__", "draft"))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.BeginSnapshot(ctx)
	_, err := tx2.UpdateEntityState(ctx, "order", "__default__", 5, "submitted", "flow1", "submit")
	require.Error(t, err)
	var conflict *storage.ConcurrentConflictError
	assert.ErrorAs(t, err, &conflict)
	require.NoError(t, tx2.Abort(ctx))
}

func TestAbortRollsBackInitialization(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx, _ := s.BeginSnapshot(ctx)
	require.NoError(t, tx.InitializeEntity(ctx, "order", "__default__", "draft"))
	require.NoError(t, tx.Abort(ctx))

	_, err := s.GetEntityState(ctx, "order", "__default__")
	var notFound *storage.EntityNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestFlowExecutionAndProvenanceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx, _ := s.BeginSnapshot(ctx)
	require.NoError(t, tx.InitializeEntity(ctx, "order", "__default__", "draft"))
	newVersion, err := tx.UpdateEntityState(ctx, "order", "__default__", 0, "submitted", "flow1", "submit")
	require.NoError(t, err)
	assert.Equal(t, int64(1), newVersion)

	require.NoError(t, tx.InsertFlowExecution(ctx, storage.FlowExecutionRecord{
		ID: "fe1", FlowID: "flow1", Outcome: "success",
		SnapshotFacts: map[string]any{"order_total": 100}, SnapshotVerdicts: map[string]any{},
	}))
	require.NoError(t, tx.InsertOperationExecution(ctx, storage.OperationExecutionRecord{ID: "oe1", FlowExecutionID: "fe1", OperationID: "submit"}))
	require.NoError(t, tx.InsertEntityTransition(ctx, storage.EntityTransitionRecord{ID: "t1", OperationExecutionID: "oe1", EntityID: "order", FromState: "draft", ToState: "submitted"}))
	require.NoError(t, tx.InsertProvenanceRecord(ctx, storage.ProvenanceRecord{ID: "p1", OperationExecutionID: "oe1"}))
	require.NoError(t, tx.Commit(ctx))

	fe, err := s.GetFlowExecution(ctx, "fe1")
	require.NoError(t, err)
	assert.Equal(t, "success", fe.Outcome)

	list, err := s.ListFlowExecutions(ctx, "flow1", "success", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	var provenanceRows int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provenance_records WHERE operation_execution_id = ?`, "oe1").Scan(&provenanceRows))
	assert.Equal(t, 1, provenanceRows)
}
