package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"sldpreview/internal/domain"
	"sldpreview/internal/style"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// decodeDocument reads a style document passed inline as JSON.
func decodeDocument(data string) (*style.Document, error) {
	doc, err := style.Decode(strings.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// stringMap converts a JSON object argument to connection properties.
// Non-string values are formatted with %v.
func stringMap(v any) (domain.ConnectionProperties, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(m) == "" {
			return nil, nil
		}
		var out domain.ConnectionProperties
		if err := parseJSON(m, &out); err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}
		return out, nil
	case map[string]any:
		out := make(domain.ConnectionProperties, len(m))
		for k, val := range m {
			switch t := val.(type) {
			case string:
				out[k] = t
			case float64:
				out[k] = fmt.Sprintf("%g", t)
			default:
				out[k] = fmt.Sprintf("%v", t)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("properties must be an object")
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
