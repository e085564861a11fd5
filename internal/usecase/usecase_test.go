package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"penny/internal/domain"
)

// --- Mocks shared across the usecase tests ---

// mockLLM replays a scripted sequence of responses. Past the end of the
// script it returns a plain final answer, and when failWith is set every
// call fails with it.
type mockLLM struct {
	mu        sync.Mutex
	responses []domain.ChatResponse
	requests  []domain.ChatRequest
	callIdx   int
	failWith  error
}

func (m *mockLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.failWith != nil {
		return nil, m.failWith
	}
	if m.callIdx >= len(m.responses) {
		return &domain.ChatResponse{
			Message: domain.Message{Role: domain.RoleAssistant, Content: "fallback"},
		}, nil
	}
	resp := m.responses[m.callIdx]
	m.callIdx++
	return &resp, nil
}

func (m *mockLLM) Name() string { return "mock" }

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callIdx
}

type mockToolExecutor struct {
	tools map[string]domain.Tool
}

func (m *mockToolExecutor) Get(name string) (domain.Tool, error) {
	t, ok := m.tools[name]
	if !ok {
		return nil, domain.NewDomainError("mockToolExecutor.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

func (m *mockToolExecutor) Schemas() []domain.ToolSchema {
	schemas := make([]domain.ToolSchema, 0, len(m.tools))
	for _, t := range m.tools {
		schemas = append(schemas, t.Schema())
	}
	return schemas
}

// staticTool returns a fixed result, optionally after a delay (for
// ordering tests) and optionally carrying executed queries.
type staticTool struct {
	name    string
	result  string
	queries []string
	delay   time.Duration

	mu       sync.Mutex
	executed int
}

func (t *staticTool) Name() string        { return t.name }
func (t *staticTool) Description() string { return "static test tool" }
func (t *staticTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: t.name, Description: t.Description()}
}
func (t *staticTool) Execute(_ context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.mu.Lock()
	t.executed++
	t.mu.Unlock()
	return &domain.ToolResult{Content: t.result, Queries: t.queries}, nil
}

func (t *staticTool) executions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executed
}

type errorTool struct {
	name string
}

func (t *errorTool) Name() string              { return t.name }
func (t *errorTool) Description() string       { return "error test tool" }
func (t *errorTool) Schema() domain.ToolSchema { return domain.ToolSchema{Name: t.name} }
func (t *errorTool) Execute(_ context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	return nil, fmt.Errorf("tool execution failed")
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// assistantTurn builds a scripted assistant response requesting the given
// tool calls.
func assistantTurn(id, content string, calls ...domain.ToolCall) domain.ChatResponse {
	return domain.ChatResponse{
		ID: id,
		Message: domain.Message{
			ID:        id,
			Role:      domain.RoleAssistant,
			Content:   content,
			ToolCalls: calls,
		},
	}
}
