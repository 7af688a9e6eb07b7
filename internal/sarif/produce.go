package sarif

import (
	"fmt"
	"strings"
	"time"

	"github.com/reqgate/reqgate/internal/model"
)

// BuildRule maps a requirement record to a SARIF rule. The rule id is the
// requirement uid and must stay stable across runs; downstream tooling keys
// suppressions and history on it.
func BuildRule(req model.Requirement) Rule {
	name := req.Key
	if name == "" {
		name = req.UID
	}
	subtypes := req.Subtypes
	if subtypes == nil {
		subtypes = []string{}
	}
	return Rule{
		ID:              req.UID,
		Name:            name,
		FullDescription: &Text{Text: req.Text},
		Properties: map[string]any{
			"subtypes":                subtypes,
			"policy_baseline_version": req.PolicyBaseline.Version,
		},
	}
}

// StatusToLevel maps a decision status to a SARIF result level. The second
// return is false when the status produces no result at all (pass,
// not_applicable, or anything unrecognized). The table is fixed: downstream
// consumers hard-code these semantics, so it is deliberately not data-driven.
func StatusToLevel(status model.DecisionStatus) (string, bool) {
	switch status {
	case model.DecisionFail:
		return "error", true
	case model.DecisionConditionalPass, model.DecisionInconclusive, model.DecisionBlocked:
		return "warning", true
	case model.DecisionWaived:
		return "note", true
	default:
		return "", false
	}
}

// ExtractEvidenceLocations maps code_span evidence entries to SARIF
// locations. A nil indices slice means all evidence; explicit indices are
// applied first, with out-of-range entries silently skipped. URIs of the
// form repo://host/org/repo/root/path... are stripped to the path after the
// repository root; URIs with too few segments lose only the scheme.
func ExtractEvidenceLocations(facts model.Facts, indices []int) []Location {
	items := facts.Evidence
	if indices != nil {
		items = nil
		for _, i := range indices {
			if i >= 0 && i < len(facts.Evidence) {
				items = append(items, facts.Evidence[i])
			}
		}
	}

	var locations []Location
	for _, ev := range items {
		if ev.Type != "code_span" {
			continue
		}
		uri := ev.URI
		if strings.HasPrefix(uri, "repo://") {
			parts := strings.SplitN(uri, "/", 7)
			if len(parts) == 7 {
				uri = parts[6]
			} else {
				uri = strings.TrimPrefix(uri, "repo://")
			}
		}

		loc := Location{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{
					URI:       uri,
					URIBaseID: "SRCROOT",
				},
			},
		}
		if ev.StartLine != nil {
			loc.PhysicalLocation.Region = &Region{
				StartLine: *ev.StartLine,
				EndLine:   ev.EndLine,
			}
		}
		locations = append(locations, loc)
	}
	return locations
}

// BuildMessage renders a decision as one human-readable line. Reasons win;
// criteria messages are the fallback; score and confidence are always
// appended.
func BuildMessage(decision model.Decision) string {
	base := strings.Join(decision.Reasons, "; ")
	if base == "" {
		var msgs []string
		for _, c := range decision.Criteria {
			if c.Message != "" {
				msgs = append(msgs, c.Message)
			}
		}
		base = strings.Join(msgs, "; ")
	}
	if base == "" {
		base = "Evaluation completed"
	}
	return fmt.Sprintf("%s (Score: %.2f, Confidence: %.2f)", base, decision.Score, decision.Confidence)
}

// BuildResult maps one decision to a SARIF result, or nil when the status
// produces no finding (pass and not_applicable are omitted).
func BuildResult(req model.Requirement, decision model.Decision, facts model.Facts, evaluationID string) *Result {
	level, ok := StatusToLevel(decision.Status)
	if !ok {
		return nil
	}

	subtypes := req.Subtypes
	if subtypes == nil {
		subtypes = []string{}
	}
	properties := map[string]any{
		"requirement_uid":         req.UID,
		"requirement_key":         req.Key,
		"subtypes":                subtypes,
		"policy_baseline_version": req.PolicyBaseline.Version,
		"opa_policy_hash":         decision.Policy.Hash,
		"agent_version":           facts.Agent.Version,
		"evaluation_id":           evaluationID,
		"timestamp":               time.Now().UTC().Format(time.RFC3339),
		"opa_score":               decision.Score,
		"opa_confidence":          decision.Confidence,
	}
	if decision.Status == model.DecisionInconclusive || decision.Status == model.DecisionBlocked {
		properties["triage"] = "needed"
	}
	if facts.Target.Repo != "" {
		properties["target_repo"] = facts.Target.Repo
	}
	if facts.Target.Commit != "" {
		properties["target_commit"] = facts.Target.Commit
	}

	return &Result{
		RuleID:     req.UID,
		Level:      level,
		Message:    Text{Text: BuildMessage(decision)},
		Properties: properties,
		Locations:  ExtractEvidenceLocations(facts, nil),
	}
}

// GenerateReport wraps one rule and zero-or-one result into a complete
// single-run report. The driver is named after the policy bundle so a
// report is self-describing about which policy produced it.
func GenerateReport(req model.Requirement, decision model.Decision, facts model.Facts, evaluationID string) *Report {
	rule := BuildRule(req)
	results := []Result{}
	if res := BuildResult(req, decision, facts, evaluationID); res != nil {
		results = append(results, *res)
	}

	run := Run{
		Tool: Tool{
			Driver: Driver{
				Name:           decision.Policy.Bundle,
				Version:        decision.Policy.Revision,
				InformationURI: driverInformationURI,
				Rules:          []Rule{rule},
			},
		},
		Results: results,
		Properties: map[string]any{
			"policy_bundle":   decision.Policy.Bundle,
			"policy_revision": decision.Policy.Revision,
			"policy_hash":     decision.Policy.Hash,
			"evaluation_time": time.Now().UTC().Format(time.RFC3339),
		},
	}

	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs:    []Run{run},
	}
}
