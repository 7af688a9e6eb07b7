package schema

import (
	"testing"

	"github.com/reqgate/reqgate/internal/model"
)

func validRecord() map[string]any {
	return map[string]any{
		"uid":      "REQ-001",
		"key":      "SEC-1",
		"subtypes": []any{"CYBER"},
		"status":   "active",
		"policy_baseline": map[string]any{
			"id": "default", "version": "1.0.0", "hash": "abcd",
		},
		"rubrics": []any{
			map[string]any{
				"engine": "opa", "bundle": "org/compliance",
				"package": "compliance.cyber", "rule": "decision",
			},
		},
		"text": "The system shall encrypt data at rest.",
	}
}

func TestBundledSchemasCompile(t *testing.T) {
	for name, compile := range map[string]func() (any, error){
		"requirement record": func() (any, error) { return RequirementRecord() },
		"opa output":         func() (any, error) { return OPAOutput() },
		"verification event": func() (any, error) { return VerificationEvent() },
		"sarif":              func() (any, error) { return SARIF() },
	} {
		if _, err := compile(); err != nil {
			t.Errorf("%s schema failed to compile: %v", name, err)
		}
	}
}

func TestValidateRecordValid(t *testing.T) {
	res, err := ValidateRecord(validRecord())
	if err != nil {
		t.Fatalf("ValidateRecord: %v", err)
	}
	if !res.Valid || len(res.Errors) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestValidateRecordIssuePaths(t *testing.T) {
	rec := validRecord()
	rec["status"] = "bogus"
	rec["subtypes"] = []any{}

	res, err := ValidateRecord(rec)
	if err != nil {
		t.Fatalf("ValidateRecord: %v", err)
	}
	if res.Valid {
		t.Fatal("invalid record reported valid")
	}

	paths := map[string]bool{}
	for _, issue := range res.Errors {
		paths[issue.Path] = true
		if issue.Message == "" {
			t.Errorf("issue at %s has no message", issue.Path)
		}
	}
	if !paths["$.status"] {
		t.Errorf("no issue at $.status, got %v", paths)
	}
	if !paths["$.subtypes"] {
		t.Errorf("no issue at $.subtypes, got %v", paths)
	}
}

func TestValidateRecordOffendingValue(t *testing.T) {
	rec := validRecord()
	rec["status"] = "bogus"
	res, err := ValidateRecord(rec)
	if err != nil {
		t.Fatalf("ValidateRecord: %v", err)
	}
	for _, issue := range res.Errors {
		if issue.Path == "$.status" && issue.Value != "bogus" {
			t.Errorf("offending value = %v, want the bad status", issue.Value)
		}
	}
}

func TestDecodeTypedValue(t *testing.T) {
	decoded, err := Decode(model.Requirement{UID: "REQ-001"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded to %T, want map", decoded)
	}
	if m["uid"] != "REQ-001" {
		t.Errorf("uid = %v", m["uid"])
	}
}

func TestCompileBytesInvalidSchema(t *testing.T) {
	if _, err := CompileBytes("bad.json", []byte("not json")); err == nil {
		t.Fatal("invalid schema document compiled")
	}
}
