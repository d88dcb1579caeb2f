package toolexecutor

import "sort"

// ToolParameter is a flattened view of one top-level schema property
type ToolParameter struct {
	Name        string      `json:"name" yaml:"name"`
	Type        string      `json:"type" yaml:"type"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool        `json:"required" yaml:"required"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// ParametersFromSchema lists the top-level properties of an object schema,
// sorted by name.
func ParametersFromSchema(schema map[string]interface{}) []ToolParameter {
	properties, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	required := make(map[string]bool)
	switch reqList := schema["required"].(type) {
	case []interface{}:
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	case []string:
		for _, name := range reqList {
			required[name] = true
		}
	}

	params := make([]ToolParameter, 0, len(properties))
	for name, propData := range properties {
		prop, ok := propData.(map[string]interface{})
		if !ok {
			continue
		}
		param := ToolParameter{
			Name:     name,
			Required: required[name],
		}
		if typeVal, ok := prop["type"].(string); ok {
			param.Type = typeVal
		}
		if desc, ok := prop["description"].(string); ok {
			param.Description = desc
		}
		if defVal, ok := prop["default"]; ok {
			param.Default = defVal
		}
		params = append(params, param)
	}

	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })

	return params
}
