package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"penny/internal/domain"
	"penny/internal/infra/tracer"
)

const maxQueryLen = 16 * 1024

// ExecuteSelectTool runs read-only SQL against the budget database. Every
// query passes the admission gate first; anything that does not provably
// read is refused before it gets near a connection.
type ExecuteSelectTool struct {
	db     domain.BudgetReader
	logger *slog.Logger
}

// NewExecuteSelectTool creates the query tool over db.
func NewExecuteSelectTool(db domain.BudgetReader, logger *slog.Logger) *ExecuteSelectTool {
	return &ExecuteSelectTool{db: db, logger: logger}
}

func (t *ExecuteSelectTool) Name() string { return "executeSelect" }
func (t *ExecuteSelectTool) Description() string {
	return "Executes a read-only SQL SELECT statement against the budget database and returns the matching rows as JSON. Mutation statements (INSERT, UPDATE, DELETE, DDL) are rejected."
}

func (t *ExecuteSelectTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "A single SQL SELECT statement"
				}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
	}
}

type executeSelectParams struct {
	Query string `json:"query"`
}

func (t *ExecuteSelectTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.executeSelect", t.logger, params,
		func(ctx context.Context, span trace.Span, p executeSelectParams) (any, error) {
			if err := RequireField("query", p.Query); err != nil {
				return nil, err
			}
			if err := ValidateMaxLength("query", p.Query, maxQueryLen); err != nil {
				return nil, err
			}

			if err := domain.AdmitSelect(p.Query); err != nil {
				span.SetAttributes(tracer.StringAttr("verdict", "rejected"))
				t.logger.Warn("query rejected", "error", err)
				return ErrResult("Error: Only SELECT queries are allowed.")
			}

			rows, err := t.db.RunSelect(ctx, p.Query)
			if err != nil {
				span.SetAttributes(tracer.StringAttr("verdict", "failed"))
				t.logger.Warn("query failed", "error", err)
				return ErrResult("Error executing query: %s", errorDetail(err))
			}

			span.SetAttributes(
				tracer.StringAttr("verdict", "executed"),
				tracer.IntAttr("rows", len(rows)),
			)
			t.logger.Debug("query executed", "rows", len(rows))

			data, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return nil, err
			}
			// The executed query rides the result so the loop can extend the
			// conversation's query history in the same state update as the
			// result message.
			return &domain.ToolResult{
				Content: string(data),
				Queries: []string{p.Query},
			}, nil
		},
	)
}

// errorDetail prefers the storage detail over the wrapped chain so the model
// reads the driver's message, not the operation prefix.
func errorDetail(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}
