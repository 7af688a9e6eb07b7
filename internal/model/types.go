// Package model defines the canonical data shapes flowing through the
// compliance gate: requirement records, agent facts, and policy decisions.
// Records are created once during normalization and never mutated.
package model

// Status is the lifecycle state of a requirement record.
type Status string

const (
	StatusActive   Status = "active"
	StatusObsolete Status = "obsolete"
	StatusDraft    Status = "draft"
)

// validStatuses is the closed set of recognized lifecycle states.
var validStatuses = map[Status]bool{
	StatusActive:   true,
	StatusObsolete: true,
	StatusDraft:    true,
}

// IsValidStatus returns true if s is a recognized lifecycle state.
func IsValidStatus(s Status) bool {
	return validStatuses[s]
}

// PolicyBaseline identifies the policy corpus governing a record.
// All three fields are required non-empty strings.
type PolicyBaseline struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Hash    string `json:"hash"`
}

// Rubric points at one unit of policy logic that evaluates a requirement.
type Rubric struct {
	Engine  string `json:"engine"`
	Bundle  string `json:"bundle"`
	Package string `json:"package"`
	Rule    string `json:"rule"`
}

// Requirement is the canonical unit of compliance evaluation.
// uid is the stable cross-run join key for every downstream artifact.
type Requirement struct {
	UID            string            `json:"uid"`
	Key            string            `json:"key"`
	Subtypes       []string          `json:"subtypes"`
	Status         Status            `json:"status"`
	PolicyBaseline PolicyBaseline    `json:"policy_baseline"`
	Rubrics        []Rubric          `json:"rubrics"`
	Text           string            `json:"text"`
	Attrs          map[string]string `json:"attrs,omitempty"`
}

// Target identifies the system the agent gathered facts about.
type Target struct {
	Repo   string `json:"repo,omitempty"`
	Commit string `json:"commit,omitempty"`
	Build  string `json:"build,omitempty"`
}

// Agent identifies the fact-producing agent.
type Agent struct {
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	RubricHint string `json:"rubric_hint,omitempty"`
}

// Evidence is one agent-supplied pointer substantiating a fact.
// The type field is polymorphic (code_span, artifact, log, metric, ...);
// only code_span entries participate in SARIF location mapping.
type Evidence struct {
	Type      string         `json:"type"`
	URI       string         `json:"uri,omitempty"`
	StartLine *int           `json:"startLine,omitempty"`
	EndLine   *int           `json:"endLine,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Facts is the externally produced agent payload. Opaque to normalization.
type Facts struct {
	Target   Target         `json:"target"`
	Facts    map[string]any `json:"facts,omitempty"`
	Evidence []Evidence     `json:"evidence,omitempty"`
	Agent    Agent          `json:"agent"`
}

// DecisionStatus is the closed verdict enum produced by policy evaluation.
type DecisionStatus string

const (
	DecisionPass            DecisionStatus = "pass"
	DecisionFail            DecisionStatus = "fail"
	DecisionConditionalPass DecisionStatus = "conditional_pass"
	DecisionInconclusive    DecisionStatus = "inconclusive"
	DecisionNotApplicable   DecisionStatus = "not_applicable"
	DecisionBlocked         DecisionStatus = "blocked"
	DecisionWaived          DecisionStatus = "waived"
)

// validDecisionStatuses is the closed set; any other value is a
// validation failure, never a default.
var validDecisionStatuses = map[DecisionStatus]bool{
	DecisionPass:            true,
	DecisionFail:            true,
	DecisionConditionalPass: true,
	DecisionInconclusive:    true,
	DecisionNotApplicable:   true,
	DecisionBlocked:         true,
	DecisionWaived:          true,
}

// IsValidDecisionStatus returns true if s is a recognized verdict.
func IsValidDecisionStatus(s DecisionStatus) bool {
	return validDecisionStatuses[s]
}

// Criterion is one weighted check inside a decision. Evidence holds
// indices into the facts evidence array.
type Criterion struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Weight   float64 `json:"weight,omitempty"`
	Message  string  `json:"message,omitempty"`
	Evidence []int   `json:"evidence,omitempty"`
}

// PolicyProvenance records which policy content produced a decision.
type PolicyProvenance struct {
	Bundle   string `json:"bundle"`
	Revision string `json:"revision"`
	Hash     string `json:"hash"`
}

// Decision is the structured verdict of one policy evaluation.
type Decision struct {
	Status     DecisionStatus   `json:"status"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
	Criteria   []Criterion      `json:"criteria"`
	Reasons    []string         `json:"reasons"`
	Policy     PolicyProvenance `json:"policy"`
}
