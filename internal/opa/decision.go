package opa

import (
	"encoding/json"

	"github.com/reqgate/reqgate/internal/model"
	"github.com/reqgate/reqgate/internal/schema"
)

// ValidateDecision checks a raw engine decision against the fixed decision
// schema and the closed status enum, returning a typed Decision. Validation
// failures are errors; an invalid decision is never forwarded downstream.
func ValidateDecision(raw []byte) (*model.Decision, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, evalErr(KindMalformedOutput, err, "decision is not valid JSON")
	}

	compiled, err := schema.OPAOutput()
	if err != nil {
		return nil, err
	}
	if res := schema.ValidateValue(compiled, decoded); !res.Valid {
		return nil, &model.SchemaViolationError{Subject: "policy decision", Issues: res.Errors}
	}

	var decision model.Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, evalErr(KindMalformedOutput, err, "decision does not decode")
	}

	// The schema enforces these too; keep the critical checks explicit so
	// a loosened schema file cannot let a bad decision through.
	if !model.IsValidDecisionStatus(decision.Status) {
		return nil, &model.SchemaViolationError{
			Subject: "policy decision",
			Issues: []model.SchemaIssue{{
				Path:    "$.status",
				Message: "status is not a recognized verdict",
				Value:   string(decision.Status),
			}},
		}
	}
	if decision.Policy.Bundle == "" || decision.Policy.Revision == "" || decision.Policy.Hash == "" {
		return nil, &model.SchemaViolationError{
			Subject: "policy decision",
			Issues: []model.SchemaIssue{{
				Path:    "$.policy",
				Message: "policy provenance requires bundle, revision, and hash",
			}},
		}
	}

	return &decision, nil
}
