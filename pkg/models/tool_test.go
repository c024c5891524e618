package models

import "testing"

func TestSchemaToJSONSchemaRoundTripShape(t *testing.T) {
	s := ObjectSchema(map[string]*Schema{
		"directory": StringParam("directory to list"),
		"recursive": BooleanParam("recurse into subdirectories"),
	}, "directory")

	js := s.ToJSONSchema()
	if js["type"] != "object" {
		t.Fatalf("expected object type, got %v", js["type"])
	}
	props, ok := js["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", js["properties"])
	}
	dir, ok := props["directory"].(map[string]any)
	if !ok || dir["type"] != "string" {
		t.Fatalf("expected directory to be string schema, got %v", props["directory"])
	}
	required, ok := js["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "directory" {
		t.Fatalf("expected required=[directory], got %v", js["required"])
	}
}

func TestArraySchema(t *testing.T) {
	s := &Schema{Kind: SchemaArray, Items: StringParam("")}
	js := s.ToJSONSchema()
	if js["type"] != "array" {
		t.Fatalf("expected array type, got %v", js["type"])
	}
	items, ok := js["items"].(map[string]any)
	if !ok || items["type"] != "string" {
		t.Fatalf("expected string items, got %v", js["items"])
	}
}
