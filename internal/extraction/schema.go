package extraction

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// canonicalSchema is the strict form of the extraction document. Model
// output that validates against it needed no lenient coercion; everything
// else still decodes, member by member, through decodeCanonical. The schema
// exists for diagnostics and for prompting, not as a gate.
const canonicalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "documentType": {"type": "string"},
    "keyValuePairs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "key": {"type": "string"},
          "value": {"type": "string"}
        },
        "required": ["key", "value"]
      }
    },
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "heading": {"type": "string"},
          "content": {"type": "string"}
        },
        "required": ["heading", "content"]
      }
    },
    "tables": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "caption": {"type": "string"},
          "data": {"type": "string"},
          "headers": {"type": "array", "items": {"type": "string"}},
          "rows": {
            "type": "array",
            "items": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("extraction.schema.json", canonicalSchema)

// validateCanonical reports whether data is strictly valid against the
// canonical document schema.
func validateCanonical(data []byte) bool {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return false
	}
	return compiledSchema.Validate(v) == nil
}
