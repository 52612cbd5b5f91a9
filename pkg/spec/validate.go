package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedModel marks descriptor errors: models this bridge cannot
// run, as opposed to descriptors it cannot read.
var ErrUnsupportedModel = errors.New("unsupported model")

// descriptorSchema captures the structural requirements this package relies
// on before decoding into typed structs. It is intentionally narrower than
// the full model zoo schema; unknown fields pass through untouched.
const descriptorSchema = `{
	"type": "object",
	"required": ["format_version", "name", "inputs", "outputs"],
	"properties": {
		"format_version": {"type": "string"},
		"name": {"type": "string", "minLength": 1},
		"inputs": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["axes"],
				"properties": {"axes": {"type": "string"}}
			}
		},
		"outputs": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["axes"],
				"properties": {
					"axes": {"type": "string"},
					"halo": {"type": "array", "items": {"type": "integer"}}
				}
			}
		},
		"test_inputs": {"type": "array", "items": {"type": "string"}},
		"test_outputs": {"type": "array", "items": {"type": "string"}}
	}
}`

var compiledSchema = jsonschema.MustCompileString("rdf.schema.json", descriptorSchema)

// validateStructure checks the raw descriptor against the schema. The YAML
// document is round-tripped through JSON so the validator sees the value
// types it expects.
func validateStructure(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed descriptor: %w", err)
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("malformed descriptor: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.UseNumber()
	var jsonDoc any
	if err := dec.Decode(&jsonDoc); err != nil {
		return fmt.Errorf("malformed descriptor: %w", err)
	}
	if err := compiledSchema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("descriptor failed validation: %w", err)
	}
	return nil
}
