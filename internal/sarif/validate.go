package sarif

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reqgate/reqgate/internal/schema"
)

// Validate checks a report against the SARIF v2.1.0 schema. Schema
// violations come back as findings in the result, not as an error; only a
// schema that cannot be loaded, or a report that cannot be serialized,
// fails the call.
func Validate(report *Report, compiled *jsonschema.Schema) (*schema.Result, error) {
	if compiled == nil {
		var err error
		compiled, err = schema.SARIF()
		if err != nil {
			return nil, err
		}
	}

	decoded, err := schema.Decode(report)
	if err != nil {
		return nil, err
	}
	return schema.ValidateValue(compiled, decoded), nil
}
