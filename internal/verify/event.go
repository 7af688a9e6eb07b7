// Package verify records verification events: one JSON line per evaluated
// requirement tying the decision to the SARIF artifact it produced.
package verify

import (
	"time"

	"github.com/google/uuid"

	"github.com/reqgate/reqgate/internal/model"
	"github.com/reqgate/reqgate/internal/schema"
)

// Event is an open map so callers can attach extra fields; the schema pins
// the required core.
type Event map[string]any

// NewEvent builds a verification event from an evaluation outcome.
func NewEvent(req model.Requirement, decision model.Decision, facts model.Facts, sarifRef string) Event {
	ev := Event{
		"requirement_uid": req.UID,
		"target": map[string]any{
			"repo":   facts.Target.Repo,
			"commit": facts.Target.Commit,
			"build":  facts.Target.Build,
		},
		"decision": map[string]any{
			"status":     string(decision.Status),
			"score":      decision.Score,
			"confidence": decision.Confidence,
		},
	}
	if sarifRef != "" {
		ev["sarif_ref"] = sarifRef
	}
	return ev
}

// Fill adds event_id and timestamp when the caller did not supply them,
// and returns the event id.
func Fill(ev Event) string {
	id, _ := ev["event_id"].(string)
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
		ev["event_id"] = id
	}
	if ts, _ := ev["timestamp"].(string); ts == "" {
		ev["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	return id
}

// Validate checks an event against the verification-event schema. Invalid
// events are rejected with a schema violation; they must never reach the log.
func Validate(ev Event) error {
	compiled, err := schema.VerificationEvent()
	if err != nil {
		return err
	}
	decoded, err := schema.Decode(ev)
	if err != nil {
		return err
	}
	if res := schema.ValidateValue(compiled, decoded); !res.Valid {
		return &model.SchemaViolationError{Subject: "verification event", Issues: res.Errors}
	}
	return nil
}
