package storage

import "time"

// FlowExecutionRecord records one flow run from entry to terminal
// outcome. CompletedAt is the zero time until the flow reaches a
// terminal outcome.
type FlowExecutionRecord struct {
	ID                string    `json:"id"`
	FlowID            string    `json:"flow_id"`
	ContractID        string    `json:"contract_id"`
	PersonaID         string    `json:"persona_id"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at,omitempty"`
	Outcome           string    `json:"outcome"`
	SnapshotFacts     any       `json:"snapshot_facts"`
	SnapshotVerdicts  any       `json:"snapshot_verdicts"`
}

// OperationExecutionRecord records one operation step firing within a
// flow execution.
type OperationExecutionRecord struct {
	ID              string    `json:"id"`
	FlowExecutionID string    `json:"flow_execution_id"`
	OperationID     string    `json:"operation_id"`
	PersonaID       string    `json:"persona_id"`
	Outcome         string    `json:"outcome"`
	ExecutedAt      time.Time `json:"executed_at"`
	StepID          string    `json:"step_id"`
}

// EntityTransitionRecord records one entity's state change caused by an
// operation execution, including the pre- and post-OCC version numbers.
type EntityTransitionRecord struct {
	ID                    string `json:"id"`
	OperationExecutionID  string `json:"operation_execution_id"`
	EntityID              string `json:"entity_id"`
	InstanceID            string `json:"instance_id"`
	FromState             string `json:"from_state"`
	ToState               string `json:"to_state"`
	FromVersion           int64  `json:"from_version"`
	ToVersion             int64  `json:"to_version"`
}

// ProvenanceRecord couples an operation execution to the facts and
// verdicts that justified it. Per the coupling invariant C7, no state
// transition may be persisted without an atomically-inserted provenance
// record in the same snapshot.
type ProvenanceRecord struct {
	ID                   string `json:"id"`
	OperationExecutionID string `json:"operation_execution_id"`
	FactsUsed            any    `json:"facts_used"`
	VerdictsUsed         any    `json:"verdicts_used"`
	VerdictSetSnapshot   any    `json:"verdict_set_snapshot"`
}
