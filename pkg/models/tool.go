package models

// SchemaKind discriminates the recursive parameter-schema union (spec §3:
// "Parameter schema is a recursive type with variants {string, integer,
// number, boolean, object(named fields, required-set), array(element
// schema)}").
type SchemaKind string

const (
	SchemaString  SchemaKind = "string"
	SchemaInteger SchemaKind = "integer"
	SchemaNumber  SchemaKind = "number"
	SchemaBoolean SchemaKind = "boolean"
	SchemaObject  SchemaKind = "object"
	SchemaArray   SchemaKind = "array"
)

// Schema is a node in the recursive parameter-schema tree. Only the
// fields relevant to Kind are meaningful.
type Schema struct {
	Kind        SchemaKind
	Description string

	// object
	Properties map[string]*Schema
	Required   []string

	// array
	Items *Schema

	// string enum constraint, optional
	Enum []string
}

// ToJSONSchema renders the Schema tree as a plain JSON Schema document
// (map[string]any), suitable both for compiling with
// santhosh-tekuri/jsonschema and for handing to the LLM endpoint's tool
// catalog.
func (s *Schema) ToJSONSchema() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	switch s.Kind {
	case SchemaString:
		out["type"] = "string"
		if len(s.Enum) > 0 {
			enum := make([]any, len(s.Enum))
			for i, v := range s.Enum {
				enum[i] = v
			}
			out["enum"] = enum
		}
	case SchemaInteger:
		out["type"] = "integer"
	case SchemaNumber:
		out["type"] = "number"
	case SchemaBoolean:
		out["type"] = "boolean"
	case SchemaObject:
		out["type"] = "object"
		props := map[string]any{}
		for name, child := range s.Properties {
			props[name] = child.ToJSONSchema()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
		out["additionalProperties"] = false
	case SchemaArray:
		out["type"] = "array"
		out["items"] = s.Items.ToJSONSchema()
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	return out
}

// Tool is a tool descriptor: {id, human name, description, parameter
// schema} per spec §3.
type Tool struct {
	ID          string
	Name        string
	Description string
	Parameters  *Schema
}

// ObjectSchema is a convenience constructor for the common case of a
// tool whose top-level parameters are a named-field object.
func ObjectSchema(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{Kind: SchemaObject, Properties: properties, Required: required}
}

// StringParam builds a string-typed leaf schema node.
func StringParam(description string) *Schema {
	return &Schema{Kind: SchemaString, Description: description}
}

// IntegerParam builds an integer-typed leaf schema node.
func IntegerParam(description string) *Schema {
	return &Schema{Kind: SchemaInteger, Description: description}
}

// BooleanParam builds a boolean-typed leaf schema node.
func BooleanParam(description string) *Schema {
	return &Schema{Kind: SchemaBoolean, Description: description}
}
