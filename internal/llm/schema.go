package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildAgreementJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. The model is free to answer with strings, numbers, lists, or
// nested objects per field; the schema pins the top-level shape to an object
// so garbage responses fail before normalization.
func BuildAgreementJSONSchema() map[string]any {
	props := map[string]any{}
	for _, name := range AgreementFieldNames {
		props[name] = map[string]any{
			"type": []string{"string", "number", "boolean", "array", "object", "null"},
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
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
