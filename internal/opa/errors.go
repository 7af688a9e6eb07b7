package opa

import "fmt"

// ErrorKind distinguishes external-process failure modes so callers can
// decide retry vs. abort. Timeout and a missing binary are environment
// problems, not input problems.
type ErrorKind string

const (
	KindBinaryNotFound  ErrorKind = "binary_not_found"
	KindTimeout         ErrorKind = "timeout"
	KindExit            ErrorKind = "exit"
	KindMalformedOutput ErrorKind = "malformed_output"
	KindEnvelope        ErrorKind = "envelope"
)

// EvalError is a policy-engine subprocess failure.
type EvalError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("opa %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("opa %s: %s", e.Kind, e.Msg)
}

func (e *EvalError) Unwrap() error { return e.Err }

// ErrorType implements model.Typed.
func (e *EvalError) ErrorType() string { return "external_process_error" }

func evalErr(kind ErrorKind, err error, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}
