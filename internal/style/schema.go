package style

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes the JSON form read by Decode.
func JSONSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
	}
	s := r.Reflect(&documentWire{})
	s.Title = "Style document"
	s.Description = "Layers, styles, feature-type-styles, rules and symbolizers with their expressions"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
