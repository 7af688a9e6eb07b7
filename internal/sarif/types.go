// Package sarif maps policy decisions into SARIF v2.1.0 reports, the
// interchange format CI and code-review tooling already consume.
package sarif

// SchemaURI is the fixed $schema reference every report carries.
const SchemaURI = "https://json.schemastore.org/sarif-2.1.0.json"

// Version is the SARIF spec version produced by this package.
const Version = "2.1.0"

// driverInformationURI points consumers at the policy bundle source.
const driverInformationURI = "https://github.com/org/opa-bundles"

// Report is the SARIF envelope: one run per report in this system.
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run carries the tool metadata, rules, and results for one evaluation.
type Run struct {
	Tool       Tool           `json:"tool"`
	Results    []Result       `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Tool wraps the driver per the SARIF object model.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver identifies the policy bundle that produced the findings.
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules"`
}

// Rule is the SARIF reporting descriptor for one requirement. Its id is
// the requirement uid, the stable cross-run join key.
type Rule struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	FullDescription *Text          `json:"fullDescription,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`
}

// Text is a SARIF message/description string wrapper.
type Text struct {
	Text string `json:"text"`
}

// Result is one finding against a rule.
type Result struct {
	RuleID     string         `json:"ruleId"`
	Level      string         `json:"level"`
	Message    Text           `json:"message"`
	Properties map[string]any `json:"properties,omitempty"`
	Locations  []Location     `json:"locations,omitempty"`
}

// Location wraps a physical location per the SARIF object model.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation points at a region of an artifact.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation is the normalized source path.
type ArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

// Region is the line span inside an artifact.
type Region struct {
	StartLine int  `json:"startLine"`
	EndLine   *int `json:"endLine,omitempty"`
}
