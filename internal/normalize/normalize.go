// Package normalize maps parsed ReqIF documents into canonical requirement
// records. Everything here is deterministic: the same document and baseline
// always yield the same records, field for field, across runs and processes.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/reqgate/reqgate/internal/model"
	"github.com/reqgate/reqgate/internal/reqif"
)

// uidNamespace is the fixed namespace for name-based uid derivation.
// Changing it breaks every previously derived uid.
var uidNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// attrWhitelist is the closed set of source attributes carried into
// the record's open attrs map.
var attrWhitelist = []string{"severity", "owner", "verify_method"}

// DeriveUID returns a stable unique identifier for a source identifier.
// Identifiers made purely of ASCII alphanumerics, hyphen, and underscore
// pass through unchanged; everything else (including empty, whitespace-only,
// and non-ASCII identifiers) maps to a deterministic name-based UUID (v5).
// Pure and total: no randomness, no clock, no I/O.
func DeriveUID(source string) string {
	if source != "" && isPlainIdentifier(source) {
		return source
	}
	return uuid.NewSHA1(uidNamespace, []byte(source)).String()
}

func isPlainIdentifier(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// BaselineHash computes the policy baseline provenance hash: a fixed-length
// hex digest over id and version. Stable and reproducible, not
// cryptographically meaningful.
func BaselineHash(baselineID, baselineVersion string) string {
	sum := sha256.Sum256([]byte(baselineID + ":" + baselineVersion))
	return hex.EncodeToString(sum[:])[:16]
}

// PackageForSubtype derives the policy package path for one subtype tag,
// e.g. ACCESS_CONTROL -> compliance.access.control.
func PackageForSubtype(subtype string) string {
	return "compliance." + strings.ReplaceAll(strings.ToLower(subtype), "_", ".")
}

// DefaultRubrics builds one rubric per subtype.
func DefaultRubrics(subtypes []string) []model.Rubric {
	rubrics := make([]model.Rubric, 0, len(subtypes))
	for _, st := range subtypes {
		rubrics = append(rubrics, model.Rubric{
			Engine:  "opa",
			Bundle:  "org/compliance",
			Package: PackageForSubtype(st),
			Rule:    "decision",
		})
	}
	return rubrics
}

// Normalize maps a parsed document into canonical requirement records.
// It fails atomically: the first per-record error aborts the whole batch,
// never returning a partially normalized set.
func Normalize(doc *reqif.Document, baselineID, baselineVersion string) ([]model.Requirement, error) {
	if doc == nil {
		return nil, model.NewInputError("nil ReqIF document")
	}
	if baselineID == "" || baselineVersion == "" {
		return nil, model.NewInputError("baseline id and version are required")
	}

	specTypes := make(map[string]reqif.SpecType, len(doc.SpecTypes))
	for _, st := range doc.SpecTypes {
		specTypes[st.Identifier] = st
	}
	attrDefs := make(map[string]reqif.AttributeDefinition, len(doc.AttributeDefinitions))
	for _, ad := range doc.AttributeDefinitions {
		attrDefs[ad.Identifier] = ad
	}

	baseline := model.PolicyBaseline{
		ID:      baselineID,
		Version: baselineVersion,
		Hash:    BaselineHash(baselineID, baselineVersion),
	}

	records := make([]model.Requirement, 0, len(doc.SpecObjects))
	for _, obj := range doc.SpecObjects {
		rec, err := normalizeSpecObject(obj, specTypes, attrDefs, baseline)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func normalizeSpecObject(
	obj reqif.SpecObject,
	specTypes map[string]reqif.SpecType,
	attrDefs map[string]reqif.AttributeDefinition,
	baseline model.PolicyBaseline,
) (model.Requirement, error) {
	attrsMap := map[string]string{}
	for _, av := range obj.Attributes {
		def, ok := attrDefs[av.DefinitionRef]
		if !ok {
			continue
		}
		attrsMap[attrKey(def.LongName)] = av.Value
	}

	// Fallbacks apply only when the attribute is absent; a present-but-empty
	// value is kept as-is.
	key, ok := attrsMap["key"]
	if !ok {
		key = obj.Identifier
	}

	text, ok := attrsMap["text"]
	if !ok {
		text = attrsMap["description"]
	}

	status := model.Status(attrsMap["status"])
	if !model.IsValidStatus(status) {
		status = model.StatusActive
	}

	subtypes := extractSubtypes(obj, specTypes, attrsMap)

	rec := model.Requirement{
		UID:            DeriveUID(obj.Identifier),
		Key:            key,
		Subtypes:       subtypes,
		Status:         status,
		PolicyBaseline: baseline,
		Rubrics:        DefaultRubrics(subtypes),
		Text:           text,
	}

	attrs := map[string]string{}
	for _, name := range attrWhitelist {
		if v, ok := attrsMap[name]; ok {
			attrs[name] = v
		}
	}
	if len(attrs) > 0 {
		rec.Attrs = attrs
	}

	return rec, nil
}

// extractSubtypes resolves category tags with fixed precedence: explicit
// subtypes attribute, then type attribute, then the referenced spec type's
// long name, then GENERAL.
func extractSubtypes(
	obj reqif.SpecObject,
	specTypes map[string]reqif.SpecType,
	attrsMap map[string]string,
) []string {
	if raw, ok := attrsMap["subtypes"]; ok {
		var subtypes []string
		for _, tok := range strings.Split(raw, ",") {
			if norm := subtypeToken(strings.TrimSpace(tok)); norm != "" {
				subtypes = append(subtypes, norm)
			}
		}
		if len(subtypes) > 0 {
			return subtypes
		}
	}

	if raw, ok := attrsMap["type"]; ok {
		if norm := subtypeToken(raw); norm != "" {
			return []string{norm}
		}
	}

	if st, ok := specTypes[obj.SpecTypeRef]; ok {
		if norm := subtypeToken(st.LongName); norm != "" {
			return []string{norm}
		}
	}

	return []string{"GENERAL"}
}

// attrKey normalizes an attribute long name for lookup.
func attrKey(longName string) string {
	k := strings.ToLower(longName)
	k = strings.ReplaceAll(k, " ", "_")
	return strings.ReplaceAll(k, "-", "_")
}

// subtypeToken normalizes a category tag: uppercase, underscores.
func subtypeToken(s string) string {
	t := strings.ToUpper(s)
	t = strings.ReplaceAll(t, " ", "_")
	return strings.ReplaceAll(t, "-", "_")
}
