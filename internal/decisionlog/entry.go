package decisionlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/reqgate/reqgate/internal/model"
)

// Entry is one line in the hash-chained JSONL decision log. It captures the
// full evaluation: what was evaluated, with which facts, and what the policy
// engine decided.
type Entry struct {
	EvaluationID string                 `json:"evaluation_id"`
	Timestamp    string                 `json:"timestamp"`
	Requirement  model.Requirement      `json:"requirement"`
	Facts        model.Facts            `json:"facts"`
	Context      map[string]any         `json:"context"`
	Decision     model.Decision         `json:"decision"`
	Policy       model.PolicyProvenance `json:"policy"`
	PrevHash     string                 `json:"prev_hash"`
}

// NewEvaluationID returns a time-ordered unique identifier. UUIDv7 sorts
// lexicographically by creation time in its canonical form, so the log and
// any index over it stay in chronological order.
func NewEvaluationID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewEntry assembles a log entry for a completed evaluation. PrevHash is
// left empty; the log sets it when the entry is recorded.
func NewEntry(req model.Requirement, facts model.Facts, evalCtx map[string]any, decision model.Decision) Entry {
	if evalCtx == nil {
		evalCtx = map[string]any{}
	}
	return Entry{
		EvaluationID: NewEvaluationID(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Requirement:  req,
		Facts:        facts,
		Context:      evalCtx,
		Decision:     decision,
		Policy:       decision.Policy,
	}
}
