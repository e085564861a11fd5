package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCurrentDate_ReturnsISODate(t *testing.T) {
	tool := NewCurrentDateTool(nopLogger())
	tool.now = func() time.Time {
		return time.Date(2024, time.March, 15, 22, 45, 0, 0, time.UTC)
	}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if result.Content != "2024-03-15" {
		t.Errorf("Content = %q, want %q", result.Content, "2024-03-15")
	}
	if result.Queries != nil {
		t.Errorf("Queries = %v, want nil", result.Queries)
	}
}

func TestCurrentDate_Metadata(t *testing.T) {
	tool := NewCurrentDateTool(nopLogger())
	if tool.Name() != "currentDate" {
		t.Errorf("Name = %q, want %q", tool.Name(), "currentDate")
	}
	if tool.Schema().Name != "currentDate" {
		t.Errorf("Schema().Name = %q, want %q", tool.Schema().Name, "currentDate")
	}
}

func TestCurrentDate_RejectsExtraArguments(t *testing.T) {
	wrapped, err := WithSchemaValidation(NewCurrentDateTool(nopLogger()))
	if err != nil {
		t.Fatalf("schema should compile: %v", err)
	}

	result, err := wrapped.Execute(context.Background(), json.RawMessage(`{"tz":"UTC"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected schema validation error for unknown argument")
	}
}
