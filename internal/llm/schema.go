package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildAnalysisJSONSchema returns the JSON-Schema (draft 2020-12 subset) the
// extracted analysis payload must satisfy. It is deliberately permissive
// about money values (numbers or decimal strings) because models alternate
// between the two.
func BuildAnalysisJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"plStatement"},
		"properties": map[string]any{
			"plStatement": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"totalRevenue":  moneyProp(),
					"totalExpenses": moneyProp(),
					"netIncome":     moneyProp(),
					"categories":    map[string]any{"type": "object"},
				},
			},
			"transactions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"amount", "type"},
					"properties": map[string]any{
						"date":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"amount":      moneyProp(),
						"type":        map[string]any{"type": "string", "enum": []string{"credit", "debit"}},
						"category":    map[string]any{"type": "string"},
					},
				},
			},
			"insights":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}

func moneyProp() map[string]any {
	return map[string]any{
		"anyOf": []map[string]any{
			{"type": "number"},
			{"type": "string", "pattern": `^-?\d+(\.\d+)?$`},
		},
	}
}

// ValidateAnalysisJSON validates raw JSON bytes against the analysis schema.
func ValidateAnalysisJSON(raw []byte) error {
	schemaBytes, err := json.Marshal(BuildAnalysisJSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	sch, err := jsonschema.CompileString("analysis.json", string(schemaBytes))
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return sch.Validate(doc)
}
