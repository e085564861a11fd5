package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"penny/internal/domain"
	"penny/internal/infra/tracer"
)

// InspectSchemaTool reports the layout of the budget database: each table's
// CREATE statement plus a few sample rows, keyed by table name.
type InspectSchemaTool struct {
	db     domain.BudgetReader
	logger *slog.Logger
}

// NewInspectSchemaTool creates the schema report tool over db.
func NewInspectSchemaTool(db domain.BudgetReader, logger *slog.Logger) *InspectSchemaTool {
	return &InspectSchemaTool{db: db, logger: logger}
}

func (t *InspectSchemaTool) Name() string { return "inspectSchema" }
func (t *InspectSchemaTool) Description() string {
	return "Returns every table in the budget database with its CREATE TABLE statement and a few sample rows. Call this before writing queries so column names and formats are never guessed."
}

func (t *InspectSchemaTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
	}
}

type inspectSchemaParams struct{}

func (t *InspectSchemaTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.inspectSchema", t.logger, params,
		func(ctx context.Context, span trace.Span, _ inspectSchemaParams) (any, error) {
			report, err := t.db.Inspect(ctx)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(tracer.IntAttr("tables", len(report)))
			t.logger.Debug("schema report produced", "tables", len(report))
			return report, nil
		},
	)
}
