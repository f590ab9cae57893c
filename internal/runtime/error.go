package runtime

import "fmt"

// Kind enumerates the runtime error taxonomy from section 7: kinds, not
// Go types, so every runtime failure carries a stable machine-readable
// tag alongside its message.
type Kind string

const (
	KindFactMissing       Kind = "fact-missing"
	KindFactCoercion      Kind = "fact-coercion"
	KindRuleEval          Kind = "rule-eval"
	KindFlowStep          Kind = "flow-step"
	KindConcurrentConflict Kind = "concurrent-conflict"
	KindStorageBackend    Kind = "storage-backend"
	KindMigration         Kind = "migration"
)

// Error is the error shape returned by fact assembly, ruleengine,
// flowexec and migration. Storage backends return the typed errors of
// internal/storage, which flowexec wraps as KindConcurrentConflict or
// KindStorageBackend; actionspace.Compute returns no error.
type Error struct {
	Kind     Kind
	Message  string
	FactID   string
	EntityID string
	StepID   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewError builds a bare runtime error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithFact attaches the offending fact id.
func (e *Error) WithFact(factID string) *Error {
	e.FactID = factID
	return e
}

// WithEntity attaches the offending entity id.
func (e *Error) WithEntity(entityID string) *Error {
	e.EntityID = entityID
	return e
}

// WithStep attaches the offending step id.
func (e *Error) WithStep(stepID string) *Error {
	e.StepID = stepID
	return e
}
