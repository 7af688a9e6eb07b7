// Package schema bundles the gate's data-contract schemas and the helpers
// to compile and apply them. The embedded documents are the compatibility
// contract with external tooling; do not edit them casually.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reqgate/reqgate/internal/model"
)

// The defaults are embedded so the binary is self-contained; a caller may
// still compile an override from disk with CompileFile.
var (
	//go:embed requirement-record.schema.json
	requirementRecordSchema []byte
	//go:embed opa-output.schema.json
	opaOutputSchema []byte
	//go:embed verification-event.schema.json
	verificationEventSchema []byte
	//go:embed sarif-2.1.0.schema.json
	sarifSchema []byte
)

// Result reports schema conformance. Violations are data, not errors.
type Result struct {
	Valid  bool                `json:"valid"`
	Errors []model.SchemaIssue `json:"errors"`
}

// CompileBytes compiles an in-memory schema document.
func CompileBytes(name string, data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return compiled, nil
}

// CompileFile compiles a schema from disk, for overriding a bundled default.
func CompileFile(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return CompileBytes(path, data)
}

var (
	recordOnce   sync.Once
	recordSchema *jsonschema.Schema
	recordErr    error

	opaOnce   sync.Once
	opaSchema *jsonschema.Schema
	opaErr    error

	eventOnce   sync.Once
	eventSchema *jsonschema.Schema
	eventErr    error

	sarifOnce     sync.Once
	sarifCompiled *jsonschema.Schema
	sarifErr      error
)

// RequirementRecord returns the compiled canonical-record schema.
func RequirementRecord() (*jsonschema.Schema, error) {
	recordOnce.Do(func() {
		recordSchema, recordErr = CompileBytes("requirement-record.schema.json", requirementRecordSchema)
	})
	return recordSchema, recordErr
}

// OPAOutput returns the compiled decision-output schema.
func OPAOutput() (*jsonschema.Schema, error) {
	opaOnce.Do(func() {
		opaSchema, opaErr = CompileBytes("opa-output.schema.json", opaOutputSchema)
	})
	return opaSchema, opaErr
}

// VerificationEvent returns the compiled verification-event schema.
func VerificationEvent() (*jsonschema.Schema, error) {
	eventOnce.Do(func() {
		eventSchema, eventErr = CompileBytes("verification-event.schema.json", verificationEventSchema)
	})
	return eventSchema, eventErr
}

// SARIF returns the compiled SARIF v2.1.0 schema.
func SARIF() (*jsonschema.Schema, error) {
	sarifOnce.Do(func() {
		sarifCompiled, sarifErr = CompileBytes("sarif-2.1.0.schema.json", sarifSchema)
	})
	return sarifCompiled, sarifErr
}

// ValidateValue applies a compiled schema to a decoded JSON value and
// flattens every violation into one issue with a JSON-pointer-like path,
// a message, and the offending value.
func ValidateValue(compiled *jsonschema.Schema, v any) *Result {
	err := compiled.Validate(v)
	if err == nil {
		return &Result{Valid: true, Errors: []model.SchemaIssue{}}
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &Result{Valid: false, Errors: []model.SchemaIssue{{Path: "$", Message: err.Error()}}}
	}
	issues := flatten(ve, v)
	return &Result{Valid: false, Errors: issues}
}

// ValidateRecord checks one decoded requirement record against the
// canonical-record schema. This is the type-checking pass that the
// integrity validator deliberately leaves out.
func ValidateRecord(record any) (*Result, error) {
	compiled, err := RequirementRecord()
	if err != nil {
		return nil, err
	}
	return ValidateValue(compiled, record), nil
}

// flatten walks the cause tree and keeps the leaves, one issue per
// concrete violation.
func flatten(ve *jsonschema.ValidationError, doc any) []model.SchemaIssue {
	if len(ve.Causes) == 0 {
		return []model.SchemaIssue{{
			Path:    pointerToPath(ve.InstanceLocation),
			Message: ve.Message,
			Value:   resolvePointer(doc, ve.InstanceLocation),
		}}
	}
	var issues []model.SchemaIssue
	for _, cause := range ve.Causes {
		issues = append(issues, flatten(cause, doc)...)
	}
	return issues
}

// pointerToPath renders a JSON pointer as $.a.b.0 style.
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return "$"
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return "$." + strings.Join(parts, ".")
}

// resolvePointer walks a decoded JSON document by pointer; nil if the
// path does not resolve.
func resolvePointer(doc any, ptr string) any {
	if ptr == "" {
		return nil
	}
	cur := doc
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tok = strings.ReplaceAll(tok, "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			var ok bool
			cur, ok = node[tok]
			if !ok {
				return nil
			}
		case []any:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// Decode round-trips any Go value through JSON into decoded-JSON form so
// it can be schema-validated.
func Decode(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode for validation: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode for validation: %w", err)
	}
	return out, nil
}
