package tools

// FieldSpec describes one input field of a tool
type FieldSpec struct {
	Type        string
	Description string
	Enum        []string
	Required    bool
}

// ToolDefinition is one catalog entry: identity, description, the remote
// endpoint the invocation is forwarded to, and the declared input shape.
// Definitions are immutable after process start; the router references
// them, never copies them.
type ToolDefinition struct {
	Name        string
	Description string
	Endpoint    string
	Fields      map[string]FieldSpec
}

// InputSchema renders the field specs as a JSON schema object for
// tools/list
func (td *ToolDefinition) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(td.Fields))
	required := make([]string, 0)

	for name, field := range td.Fields {
		prop := map[string]interface{}{
			"type":        field.Type,
			"description": field.Description,
		}
		if len(field.Enum) > 0 {
			enum := make([]interface{}, 0, len(field.Enum))
			for _, value := range field.Enum {
				enum = append(enum, value)
			}
			prop["enum"] = enum
		}
		properties[name] = prop

		if field.Required {
			required = append(required, name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RequiredFields returns the names of all required input fields
func (td *ToolDefinition) RequiredFields() []string {
	var required []string
	for name, field := range td.Fields {
		if field.Required {
			required = append(required, name)
		}
	}
	return required
}

// HasField reports whether the schema declares the named field
func (td *ToolDefinition) HasField(name string) bool {
	_, ok := td.Fields[name]
	return ok
}
