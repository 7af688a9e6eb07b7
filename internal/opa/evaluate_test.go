package opa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reqgate/reqgate/internal/model"
)

func testRequirement() model.Requirement {
	return model.Requirement{
		UID:      "REQ-001",
		Key:      "SEC-1",
		Subtypes: []string{"CYBER"},
		Status:   model.StatusActive,
		PolicyBaseline: model.PolicyBaseline{
			ID: "default", Version: "1.0.0", Hash: "abcdef0123456789",
		},
		Rubrics: []model.Rubric{
			{Engine: "opa", Bundle: "org/compliance", Package: "compliance.cyber", Rule: "decision"},
		},
		Text: "The system shall encrypt data at rest.",
	}
}

func testFacts() model.Facts {
	return model.Facts{
		Target: model.Target{Repo: "github.com/org/repo", Commit: "abc123"},
		Facts:  map[string]any{"encryption": false},
		Agent:  model.Agent{Name: "scanner", Version: "2.1.0"},
	}
}

// stubEngine writes an executable shell script standing in for the engine
// binary and returns its path.
func stubEngine(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opa")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write stub engine: %v", err)
	}
	return path
}

func bundleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte("package compliance.cyber\n"), 0644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return dir
}

func TestEvaluateSuccess(t *testing.T) {
	binary := stubEngine(t, `cat >/dev/null
cat <<'EOF'
{"result":[{"expressions":[{"value":{
  "status":"conditional_pass","score":0.7,"confidence":0.8,
  "criteria":[{"id":"c1","status":"pass"}],
  "reasons":["partial coverage"],
  "policy":{"bundle":"org/compliance","revision":"r1","hash":"sha256:aa"}
}}]}]}
EOF`)

	decision, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     binary,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Status != model.DecisionConditionalPass {
		t.Errorf("status = %q", decision.Status)
	}
	if decision.Policy.Bundle != "org/compliance" {
		t.Errorf("policy = %+v", decision.Policy)
	}
}

func TestEvaluateInvalidDecisionStatus(t *testing.T) {
	binary := stubEngine(t, `cat >/dev/null
echo '{"result":[{"expressions":[{"value":{"status":"sideways","criteria":[],"reasons":[],"policy":{"bundle":"b","revision":"r","hash":"h"}}}]}]}'`)

	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     binary,
	})
	var violation *model.SchemaViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("error = %v, want SchemaViolationError", err)
	}
}

func TestEvaluateNonZeroExit(t *testing.T) {
	binary := stubEngine(t, `echo "rego compile error" >&2
exit 2`)

	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     binary,
	})
	var evalErr *EvalError
	if !errors.As(err, &evalErr) || evalErr.Kind != KindExit {
		t.Fatalf("error = %v, want exit EvalError", err)
	}
}

func TestEvaluateMalformedStdout(t *testing.T) {
	binary := stubEngine(t, `cat >/dev/null
echo 'this is not json'`)

	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     binary,
	})
	var evalErr *EvalError
	if !errors.As(err, &evalErr) || evalErr.Kind != KindMalformedOutput {
		t.Fatalf("error = %v, want malformed_output EvalError", err)
	}
}

func TestEvaluateEmptyEnvelope(t *testing.T) {
	binary := stubEngine(t, `cat >/dev/null
echo '{"result":[]}'`)

	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     binary,
	})
	var evalErr *EvalError
	if !errors.As(err, &evalErr) || evalErr.Kind != KindEnvelope {
		t.Fatalf("error = %v, want envelope EvalError", err)
	}
}

func TestEvaluateBinaryNotFound(t *testing.T) {
	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     "definitely-not-a-real-engine-binary",
	})
	var evalErr *EvalError
	if !errors.As(err, &evalErr) || evalErr.Kind != KindBinaryNotFound {
		t.Fatalf("error = %v, want binary_not_found EvalError", err)
	}
}

func TestEvaluateTimeout(t *testing.T) {
	// The background child inherits the stdout pipe; the whole process
	// group must be reaped at the deadline or Run blocks on the pipe until
	// the child's natural exit.
	binary := stubEngine(t, "sleep 5 &\nsleep 5")

	start := time.Now()
	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: bundleDir(t),
		Binary:     binary,
		Timeout:    200 * time.Millisecond,
	})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout did not kill the process tree, took %s", elapsed)
	}
	var evalErr *EvalError
	if !errors.As(err, &evalErr) || evalErr.Kind != KindTimeout {
		t.Fatalf("error = %v, want timeout EvalError", err)
	}
}

func TestEvaluateMissingBundle(t *testing.T) {
	_, err := Evaluate(context.Background(), testRequirement(), testFacts(), Options{
		BundlePath: filepath.Join(t.TempDir(), "nope"),
		Binary:     "opa",
	})
	var typed model.Typed
	if !errors.As(err, &typed) || typed.ErrorType() != "input_error" {
		t.Fatalf("error = %v, want input_error", err)
	}
}

func TestEvaluateNoRubricPackage(t *testing.T) {
	req := testRequirement()
	req.Rubrics = nil
	_, err := Evaluate(context.Background(), req, testFacts(), Options{
		BundlePath: bundleDir(t),
	})
	if err == nil {
		t.Fatal("want error when no rubric package is available")
	}
}

func TestComposeInputNilContext(t *testing.T) {
	in := ComposeInput(testRequirement(), testFacts(), nil)
	if in.Context == nil {
		t.Fatal("nil context must become an empty object")
	}
}
