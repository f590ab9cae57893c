// Package memstore implements storage.TenorStorage as a mutex-guarded
// in-memory map, for tests and for `tenor flow execute` runs that resolve
// no database path.
package memstore

import (
	"context"
	"sync"
	"time"

	"tenor/internal/runtime"
	"tenor/internal/storage"
)

type entityKey struct {
	entityID, instanceID string
}

// Store is the in-memory TenorStorage implementation. The zero value is
// ready to use.
type Store struct {
	mu             sync.Mutex
	entities       map[entityKey]runtime.EntityStateRecord
	flowExecutions map[string]storage.FlowExecutionRecord
	opExecutions   map[string]storage.OperationExecutionRecord
	transitions    []storage.EntityTransitionRecord
	provenance     []storage.ProvenanceRecord
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		entities:       make(map[entityKey]runtime.EntityStateRecord),
		flowExecutions: make(map[string]storage.FlowExecutionRecord),
		opExecutions:   make(map[string]storage.OperationExecutionRecord),
	}
}

func (s *Store) BeginSnapshot(ctx context.Context) (storage.Snapshot, error) {
	s.mu.Lock()
	return &snapshot{store: s}, nil
}

func (s *Store) GetEntityState(ctx context.Context, entityID, instanceID string) (runtime.EntityStateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[entityKey{entityID, instanceID}]
	if !ok {
		return runtime.EntityStateRecord{}, &storage.EntityNotFoundError{EntityID: entityID, InstanceID: instanceID}
	}
	return rec, nil
}

func (s *Store) ListEntityStates(ctx context.Context, entityID, stateFilter string) ([]runtime.EntityStateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []runtime.EntityStateRecord
	for k, rec := range s.entities {
		if k.entityID != entityID {
			continue
		}
		if stateFilter != "" && rec.State != stateFilter {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) GetFlowExecution(ctx context.Context, executionID string) (storage.FlowExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.flowExecutions[executionID]
	if !ok {
		return storage.FlowExecutionRecord{}, &storage.ExecutionNotFoundError{ExecutionID: executionID}
	}
	return rec, nil
}

func (s *Store) ListFlowExecutions(ctx context.Context, flowID, outcome string, limit int) ([]storage.FlowExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.FlowExecutionRecord
	for _, rec := range s.flowExecutions {
		if flowID != "" && rec.FlowID != flowID {
			continue
		}
		if outcome != "" && rec.Outcome != outcome {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// snapshot holds the store's lock for its entire lifetime: memstore has
// no concept of isolated transactions, so BeginSnapshot simply excludes
// every other snapshot until Commit or Abort releases the lock. Every
// mutation is buffered here and only applied to the store on Commit, so
// Abort is a true rollback.
type snapshot struct {
	store        *Store
	done         bool
	entities     map[entityKey]runtime.EntityStateRecord
	dirty        map[entityKey]bool
	flowExecs    []storage.FlowExecutionRecord
	opExecs      []storage.OperationExecutionRecord
	transitions  []storage.EntityTransitionRecord
	provenance   []storage.ProvenanceRecord
}

func (sn *snapshot) lazyInit() {
	if sn.entities == nil {
		sn.entities = make(map[entityKey]runtime.EntityStateRecord)
		sn.dirty = make(map[entityKey]bool)
	}
}

// entityView returns the snapshot's pending copy of an entity if it's
// been touched this transaction, otherwise the store's committed copy.
func (sn *snapshot) entityView(key entityKey) (runtime.EntityStateRecord, bool) {
	if rec, ok := sn.entities[key]; ok {
		return rec, true
	}
	rec, ok := sn.store.entities[key]
	return rec, ok
}

func (sn *snapshot) InitializeEntity(ctx context.Context, entityID, instanceID, initialState string) error {
	sn.lazyInit()
	key := entityKey{entityID, instanceID}
	if _, ok := sn.entityView(key); ok {
		return &storage.AlreadyInitializedError{EntityID: entityID, InstanceID: instanceID}
	}
	sn.entities[key] = runtime.EntityStateRecord{
		EntityID: entityID, InstanceID: instanceID, State: initialState,
		Version: 0, UpdatedAt: time.Now().UTC(),
	}
	sn.dirty[key] = true
	return nil
}

func (sn *snapshot) GetEntityStateForUpdate(ctx context.Context, entityID, instanceID string) (runtime.EntityStateRecord, error) {
	sn.lazyInit()
	rec, ok := sn.entityView(entityKey{entityID, instanceID})
	if !ok {
		return runtime.EntityStateRecord{}, &storage.EntityNotFoundError{EntityID: entityID, InstanceID: instanceID}
	}
	return rec, nil
}

func (sn *snapshot) UpdateEntityState(ctx context.Context, entityID, instanceID string, expectedVersion int64, newState, flowID, operationID string) (int64, error) {
	sn.lazyInit()
	key := entityKey{entityID, instanceID}
	rec, ok := sn.entityView(key)
	if !ok {
		return 0, &storage.EntityNotFoundError{EntityID: entityID, InstanceID: instanceID}
	}
	if rec.Version != expectedVersion {
		return 0, &storage.ConcurrentConflictError{EntityID: entityID, InstanceID: instanceID, ExpectedVersion: expectedVersion}
	}
	rec.State = newState
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	rec.LastFlowID = flowID
	rec.LastOperationID = operationID
	sn.entities[key] = rec
	sn.dirty[key] = true
	return rec.Version, nil
}

func (sn *snapshot) InsertFlowExecution(ctx context.Context, record storage.FlowExecutionRecord) error {
	sn.flowExecs = append(sn.flowExecs, record)
	return nil
}

func (sn *snapshot) InsertOperationExecution(ctx context.Context, record storage.OperationExecutionRecord) error {
	sn.opExecs = append(sn.opExecs, record)
	return nil
}

func (sn *snapshot) InsertEntityTransition(ctx context.Context, record storage.EntityTransitionRecord) error {
	sn.transitions = append(sn.transitions, record)
	return nil
}

func (sn *snapshot) InsertProvenanceRecord(ctx context.Context, record storage.ProvenanceRecord) error {
	sn.provenance = append(sn.provenance, record)
	return nil
}

func (sn *snapshot) Commit(ctx context.Context) error {
	if sn.done {
		return nil
	}
	sn.done = true
	defer sn.store.mu.Unlock()

	for key := range sn.dirty {
		sn.store.entities[key] = sn.entities[key]
	}
	for _, rec := range sn.flowExecs {
		sn.store.flowExecutions[rec.ID] = rec
	}
	for _, rec := range sn.opExecs {
		sn.store.opExecutions[rec.ID] = rec
	}
	sn.store.transitions = append(sn.store.transitions, sn.transitions...)
	sn.store.provenance = append(sn.store.provenance, sn.provenance...)
	return nil
}

func (sn *snapshot) Abort(ctx context.Context) error {
	if sn.done {
		return nil
	}
	sn.done = true
	sn.store.mu.Unlock()
	return nil
}
