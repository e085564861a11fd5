package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"penny/internal/domain"
)

// schemaValidatedTool gates Execute behind the tool's declared JSON Schema.
// The model occasionally invents argument shapes ({"q": ...} instead of
// {"query": ...}); violations come back as error results it can read and
// correct on the next reasoning pass instead of reaching a handler.
type schemaValidatedTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps t so raw arguments are validated against its
// declared parameter schema before dispatch. Tools without a schema pass
// through unwrapped; a schema that fails to compile is an error the caller
// decides about (the registry logs and registers unwrapped).
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil
	}

	compiled, err := compileSchema(t.Name(), raw)
	if err != nil {
		return nil, err
	}
	return &schemaValidatedTool{inner: t, schema: compiled}, nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", name, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}
	return compiled, nil
}

func (s *schemaValidatedTool) Name() string              { return s.inner.Name() }
func (s *schemaValidatedTool) Description() string       { return s.inner.Description() }
func (s *schemaValidatedTool) Schema() domain.ToolSchema { return s.inner.Schema() }

func (s *schemaValidatedTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	var v interface{}
	if err := json.Unmarshal(params, &v); err != nil {
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("invalid JSON: %v", err),
		}, nil
	}

	if err := s.schema.Validate(v); err != nil {
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("schema validation failed: %v", err),
		}, nil
	}

	return s.inner.Execute(ctx, params)
}
