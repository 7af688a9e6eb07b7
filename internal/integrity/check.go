// Package integrity checks a set of canonical requirement records for
// structural and referential integrity. Violations are findings in the
// report, not errors: the caller decides whether they are fatal.
package integrity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/reqgate/reqgate/internal/model"
)

// Mode selects how deep the check goes.
type Mode string

const (
	// ModeBasic checks structure only.
	ModeBasic Mode = "basic"
	// ModeStrict adds cross-record referential checks.
	ModeStrict Mode = "strict"
)

// Finding is one integrity error or warning.
type Finding struct {
	Severity  string `json:"severity"`
	Field     string `json:"field"`
	Message   string `json:"message"`
	RecordUID string `json:"record_uid,omitempty"`
}

// Report is the outcome of an integrity check.
type Report struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// requiredBaselineFields and requiredRubricFields must be non-empty strings.
var (
	requiredBaselineFields = []string{"id", "version", "hash"}
	requiredRubricFields   = []string{"engine", "bundle", "package", "rule"}
)

// FromRequirements converts typed records to the decoded-JSON form Check
// operates on. Check takes maps because it polices wire data that may be
// structurally wrong in ways a typed struct cannot represent.
func FromRequirements(records []model.Requirement) ([]map[string]any, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}

// Check validates a record set. It errors only on unusable arguments
// (unknown mode); discovered violations land in the report.
//
// The empty-value check applies only to string-typed values. A non-string
// value in a string-typed field (integer 0, boolean false) is not flagged
// here; type conformance is the schema validator's pass.
func Check(records []map[string]any, mode Mode) (*Report, error) {
	if mode != ModeBasic && mode != ModeStrict {
		return nil, model.NewInputError("invalid integrity mode %q (want basic or strict)", mode)
	}

	report := &Report{Errors: []Finding{}, Warnings: []Finding{}}

	checkUIDs(records, report)
	for _, rec := range records {
		uid := recordUID(rec)
		checkBaseline(rec, uid, report)
		checkRubrics(rec, uid, report)
	}

	if mode == ModeStrict {
		checkSingleBaseline(records, report)
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

func checkUIDs(records []map[string]any, report *Report) {
	seen := map[string]int{}
	for idx, rec := range records {
		raw, ok := rec["uid"]
		if !ok || raw == nil {
			report.Errors = append(report.Errors, Finding{
				Severity: "error",
				Field:    "uid",
				Message:  fmt.Sprintf("Missing uid in requirement at index %d", idx),
			})
			continue
		}
		uid := fmt.Sprintf("%v", raw)
		if first, dup := seen[uid]; dup {
			report.Errors = append(report.Errors, Finding{
				Severity:  "error",
				Field:     "uid",
				Message:   fmt.Sprintf("Duplicate uid %q found at indices %d and %d", uid, first, idx),
				RecordUID: uid,
			})
			continue
		}
		seen[uid] = idx
	}
}

func checkBaseline(rec map[string]any, uid string, report *Report) {
	raw, ok := rec["policy_baseline"]
	if !ok || raw == nil {
		report.Errors = append(report.Errors, Finding{
			Severity:  "error",
			Field:     "policy_baseline",
			Message:   "Missing policy_baseline",
			RecordUID: uid,
		})
		return
	}
	baseline, ok := raw.(map[string]any)
	if !ok {
		report.Errors = append(report.Errors, Finding{
			Severity:  "error",
			Field:     "policy_baseline",
			Message:   "policy_baseline must be an object",
			RecordUID: uid,
		})
		return
	}
	for _, field := range requiredBaselineFields {
		checkRequiredString(baseline, field, "policy_baseline."+field, uid, report)
	}
}

func checkRubrics(rec map[string]any, uid string, report *Report) {
	raw, ok := rec["rubrics"]
	if !ok || raw == nil {
		report.Errors = append(report.Errors, Finding{
			Severity:  "error",
			Field:     "rubrics",
			Message:   "Missing rubrics array",
			RecordUID: uid,
		})
		return
	}
	rubrics, ok := raw.([]any)
	if !ok {
		report.Errors = append(report.Errors, Finding{
			Severity:  "error",
			Field:     "rubrics",
			Message:   "rubrics must be an array",
			RecordUID: uid,
		})
		return
	}
	for idx, entry := range rubrics {
		rubric, ok := entry.(map[string]any)
		if !ok {
			report.Errors = append(report.Errors, Finding{
				Severity:  "error",
				Field:     fmt.Sprintf("rubrics[%d]", idx),
				Message:   fmt.Sprintf("Rubric at index %d must be an object", idx),
				RecordUID: uid,
			})
			continue
		}
		for _, field := range requiredRubricFields {
			checkRequiredString(rubric, field, fmt.Sprintf("rubrics[%d].%s", idx, field), uid, report)
		}
	}
}

// checkRequiredString flags a missing field and an empty or
// whitespace-only string value. A non-string value (integer 0, boolean
// false) is deliberately not flagged: type conformance against the record
// schema is a separate validation pass.
func checkRequiredString(obj map[string]any, field, path, uid string, report *Report) {
	raw, ok := obj[field]
	if !ok {
		report.Errors = append(report.Errors, Finding{
			Severity:  "error",
			Field:     path,
			Message:   fmt.Sprintf("Missing required field %q", field),
			RecordUID: uid,
		})
		return
	}
	s, isString := raw.(string)
	if !isString {
		return
	}
	if strings.TrimSpace(s) == "" {
		report.Errors = append(report.Errors, Finding{
			Severity:  "error",
			Field:     path,
			Message:   fmt.Sprintf("Empty value for required field %q", field),
			RecordUID: uid,
		})
	}
}

// checkSingleBaseline warns when a record set mixes policy baselines.
func checkSingleBaseline(records []map[string]any, report *Report) {
	ids := map[string]bool{}
	for _, rec := range records {
		baseline, ok := rec["policy_baseline"].(map[string]any)
		if !ok {
			continue
		}
		if id, ok := baseline["id"].(string); ok {
			ids[id] = true
		}
	}
	if len(ids) <= 1 {
		return
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	report.Warnings = append(report.Warnings, Finding{
		Severity: "warning",
		Field:    "policy_baseline.id",
		Message:  fmt.Sprintf("Multiple policy baselines found in requirement set: [%s]", strings.Join(sorted, " ")),
	})
}

func recordUID(rec map[string]any) string {
	if uid, ok := rec["uid"].(string); ok {
		return uid
	}
	return "unknown"
}
