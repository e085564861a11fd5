package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a callable capability exposed to the reasoning step.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"` // JSON Schema
}

// ToolCall represents the reasoning step's request to invoke a tool. The ID
// is unique per request and correlates the request with its result message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool.
//
// Queries lists the SQL statements this call actually ran to completion.
// Only executeSelect populates it, and only on successful execution; the
// control loop folds it into the conversation's query history atomically
// with the result message.
type ToolResult struct {
	ToolCallID string   `json:"tool_call_id"`
	Content    string   `json:"content"`
	IsError    bool     `json:"is_error"`
	Queries    []string `json:"queries,omitempty"`
}

// Tool is the interface every tool must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}
