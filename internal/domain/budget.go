package domain

import "context"

// TableInfo describes one table of the budget database: the CREATE
// statement as stored by SQLite and a handful of sample rows, enough for a
// model to write queries against the table without guessing column names.
type TableInfo struct {
	Schema     string           `json:"schema"`
	SampleRows []map[string]any `json:"sample_rows"`
}

// BudgetReader is the read-only surface of the budget database. RunSelect
// executes a statement that already passed AdmitSelect; callers must not
// hand it unvetted input.
type BudgetReader interface {
	Inspect(ctx context.Context) (map[string]TableInfo, error)
	RunSelect(ctx context.Context, query string) ([]map[string]any, error)
}
