package model

import "fmt"

// Typed is implemented by every error in the gate's taxonomy. The short
// type name surfaces in {error:{message,type}} payloads at the tool
// boundary.
type Typed interface {
	error
	ErrorType() string
}

// InputError reports malformed or missing caller-supplied data: bad enum
// values, absent required fields, unusable arguments. Input errors never
// cause partial mutation of shared state.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// ErrorType implements Typed.
func (e *InputError) ErrorType() string { return "input_error" }

// NewInputError formats an InputError.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown handle or uid.
type NotFoundError struct {
	Kind string // what was looked up, e.g. "baseline" or "requirement"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// ErrorType implements Typed.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// SchemaIssue is one violation found during schema validation.
type SchemaIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// SchemaViolationError reports that an artifact failed schema validation.
// Raised only where an invalid artifact must not travel downstream
// (decision output, verification events); report-style validators return
// findings as data instead.
type SchemaViolationError struct {
	Subject string
	Issues  []SchemaIssue
}

func (e *SchemaViolationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("%s failed schema validation", e.Subject)
	}
	return fmt.Sprintf("%s failed schema validation at %s: %s",
		e.Subject, e.Issues[0].Path, e.Issues[0].Message)
}

// ErrorType implements Typed.
func (e *SchemaViolationError) ErrorType() string { return "schema_violation" }

// Persistence failure kinds. I/O and serialization problems are
// distinguished so callers can tell a full disk from a bad payload.
const (
	PersistIO        = "io"
	PersistSerialize = "serialize"
)

// PersistenceError reports a failed log or file write.
type PersistenceError struct {
	Kind string // PersistIO or PersistSerialize
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence (%s) at %s: %v", e.Kind, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorType implements Typed.
func (e *PersistenceError) ErrorType() string { return "persistence_error" }
