package llms

import (
	"context"
	"slices"
	"testing"
)

type weatherParameters struct {
	City  string `json:"city" jsonschema_description:"Name of the city"`
	Units string `json:"units,omitempty"`
}

func TestNewToolReflectsParameterSchema(t *testing.T) {
	tool := NewTool("get_weather", "Get the weather", func(_ context.Context, p weatherParameters) (string, error) {
		return p.City, nil
	})

	if tool.Type != "function" {
		t.Fatalf("expected function tool type, got %q", tool.Type)
	}
	schema := tool.Function.Parameters
	if schema == nil {
		t.Fatalf("expected parameters schema")
	}
	if schema.Version != "" {
		t.Fatalf("expected schema version to be cleared, got %q", schema.Version)
	}
	if schema.Type != "object" {
		t.Fatalf("expected object schema, got %q", schema.Type)
	}

	city, ok := schema.Properties.Get("city")
	if !ok {
		t.Fatalf("expected city property")
	}
	if city.Description != "Name of the city" {
		t.Fatalf("unexpected city description %q", city.Description)
	}
	if !slices.Contains(schema.Required, "city") {
		t.Fatalf("expected city to be required, got %v", schema.Required)
	}
	if slices.Contains(schema.Required, "units") {
		t.Fatalf("expected units to be optional, got %v", schema.Required)
	}
}

func TestNewToolExecuteDecodesArguments(t *testing.T) {
	tool := NewTool("get_weather", "Get the weather", func(_ context.Context, p weatherParameters) (string, error) {
		return p.City + "/" + p.Units, nil
	})

	got, err := tool.Execute(context.Background(), `{"city":"Zagreb","units":"metric"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Zagreb/metric" {
		t.Fatalf("expected decoded arguments, got %q", got)
	}

	if _, err := tool.Execute(context.Background(), `{"city":`); err == nil {
		t.Fatalf("expected malformed arguments to fail")
	}

	got, err = tool.Execute(context.Background(), "")
	if err != nil {
		t.Fatalf("expected empty arguments to decode as zero value, got %v", err)
	}
	if got != "/" {
		t.Fatalf("expected zero value parameters, got %q", got)
	}
}
