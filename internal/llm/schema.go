package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/financials-mapper/constants"
)

// ResponseSchema is the JSON schema of a sanitized model answer.
func ResponseSchema() map[string]any {
	mapped := make(map[string]any, len(constants.CanonicalKeys()))
	for _, k := range constants.CanonicalKeys() {
		mapped[string(k)] = map[string]any{"type": "number"}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"mapped", "unmapped"},
		"properties": map[string]any{
			"mapped": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           mapped,
			},
			"unmapped": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"rawLabel", "rawValue"},
					"properties": map[string]any{
						"rawLabel": map[string]any{"type": "string", "minLength": 1},
						"rawValue": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
