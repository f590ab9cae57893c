// Package elaborate holds the error type shared by every stage of the
// six-pass pipeline (lexer, parser, pass1..pass6). The orchestrator that
// runs the passes in order lives in the sibling package
// tenor/internal/elaborate/pipeline, not here: every pass package already
// imports this package for Error, so an orchestrator defined in this
// package could not import the passes back without an import cycle.
package elaborate

import "fmt"

// Error is the single error shape the elaborator ever produces. Every
// pass halts on the first Error it encounters (section 7's propagation
// policy) rather than accumulating a list.
//
// JSON field names and null-for-absent-optional behavior match the
// interchange spec's Error JSON exactly: omitting `omitempty` on the
// pointer fields means a nil ConstructKind/ConstructID/Field marshals to
// a literal `null`, not an absent key.
type Error struct {
	Pass          uint8   `json:"pass"`
	ConstructKind *string `json:"construct_kind"`
	ConstructID   *string `json:"construct_id"`
	Field         *string `json:"field"`
	File          string  `json:"file"`
	Line          uint32  `json:"line"`
	Message       string  `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: [pass %d] %s", e.File, e.Line, e.Pass, e.Message)
}

// New builds a bare error for the given pass. Use the With* methods to
// attach construct/field context before returning it.
func New(pass uint8, file string, line uint32, message string) *Error {
	return &Error{Pass: pass, File: file, Line: line, Message: message}
}

// Lex builds a pass-0 (lex) error.
func Lex(file string, line uint32, message string) *Error {
	return New(0, file, line, message)
}

// Parse builds a pass-0 (parse) error.
func Parse(file string, line uint32, message string) *Error {
	return New(0, file, line, message)
}

// WithConstruct attaches the offending construct's kind and id.
func (e *Error) WithConstruct(kind, id string) *Error {
	e.ConstructKind = &kind
	e.ConstructID = &id
	return e
}

// WithField attaches the offending field path, e.g. "type.fields.amount".
func (e *Error) WithField(field string) *Error {
	e.Field = &field
	return e
}
