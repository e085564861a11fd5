package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"penny/internal/domain"
	"penny/internal/infra/tracer"
)

// CurrentDateTool tells the model what day it is, so relative phrases like
// "this month" resolve against the clock instead of the model's guess.
type CurrentDateTool struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewCurrentDateTool creates the date tool using the system clock.
func NewCurrentDateTool(logger *slog.Logger) *CurrentDateTool {
	return &CurrentDateTool{logger: logger, now: time.Now}
}

func (t *CurrentDateTool) Name() string { return "currentDate" }
func (t *CurrentDateTool) Description() string {
	return "Returns today's date in YYYY-MM-DD format. Call this to anchor relative time references such as 'this month' or 'last week' before querying."
}

func (t *CurrentDateTool) Schema() domain.ToolSchema {
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

type currentDateParams struct{}

func (t *CurrentDateTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.currentDate", t.logger, params,
		func(_ context.Context, span trace.Span, _ currentDateParams) (any, error) {
			date := t.now().Format("2006-01-02")
			span.SetAttributes(tracer.StringAttr("date", date))
			return TextResult(date), nil
		},
	)
}
