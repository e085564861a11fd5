package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"penny/internal/domain"
	"penny/internal/infra/config"
)

// Store is the read-only view over the budget database. Every pooled
// connection carries query_only, so even a statement that slipped past the
// admission gate cannot write.
type Store struct {
	db         *sql.DB
	path       string
	sampleRows int
	log        *slog.Logger
}

var _ domain.BudgetReader = (*Store)(nil)

// Open connects to an existing budget database. A missing file is reported
// as ErrStorageUnavailable rather than silently created, since SQLite would
// otherwise hand back an empty database and every query would "work".
func Open(cfg config.StorageConfig, log *slog.Logger) (*Store, error) {
	const op = "storage.Open"

	if _, err := os.Stat(cfg.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewDomainError(op, domain.ErrStorageUnavailable,
				fmt.Sprintf("database %s does not exist (run `penny init-db`)", cfg.Path))
		}
		return nil, domain.NewDomainError(op, domain.ErrStorageUnavailable, err.Error())
	}

	db, err := sql.Open("sqlite", readDSN(cfg))
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrStorageUnavailable, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, domain.NewDomainError(op, domain.ErrStorageUnavailable, err.Error())
	}

	sampleRows := cfg.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}

	log.Info("budget database opened", "path", cfg.Path)
	return &Store{db: db, path: cfg.Path, sampleRows: sampleRows, log: log}, nil
}

// readDSN builds a DSN with per-connection pragmas. Pragmas ride the DSN
// because db.Exec would only reach one connection of the pool.
func readDSN(cfg config.StorageConfig) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=query_only(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
}

func writeDSN(cfg config.StorageConfig) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Inspect reports every user table: its CREATE statement as recorded in
// sqlite_master plus up to sampleRows example rows.
func (s *Store) Inspect(ctx context.Context) (map[string]domain.TableInfo, error) {
	const op = "storage.Inspect"

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}
	defer rows.Close()

	type tableDDL struct{ name, ddl string }
	var tables []tableDDL
	for rows.Next() {
		var t tableDDL
		if err := rows.Scan(&t.name, &t.ddl); err != nil {
			return nil, domain.NewDomainError(op, domain.ErrStorage, err.Error())
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}

	report := make(map[string]domain.TableInfo, len(tables))
	for _, t := range tables {
		// Table names come from sqlite_master, not from user input.
		samples, err := s.sampleTable(ctx, t.name)
		if err != nil {
			return nil, domain.NewDomainError(op, domain.ErrStorage, err.Error())
		}
		report[t.name] = domain.TableInfo{Schema: t.ddl, SampleRows: samples}
	}

	s.log.Debug("schema inspected", "tables", len(report))
	return report, nil
}

func (s *Store) sampleTable(ctx context.Context, table string) ([]map[string]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), s.sampleRows)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// RunSelect executes an admitted read-only statement and returns its rows.
// Database errors surface as ErrQueryExecution with the driver's message in
// the detail, which is what ends up in the tool result.
func (s *Store) RunSelect(ctx context.Context, query string) ([]map[string]any, error) {
	const op = "storage.RunSelect"

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrQueryExecution, err.Error())
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrQueryExecution, err.Error())
	}

	s.log.Debug("query executed",
		"rows", len(result),
		"duration", time.Since(start),
	)
	return result, nil
}

// scanRows reads all rows into column-keyed maps. Column types come back
// from the driver as whatever SQLite inferred; []byte values are converted
// to string so they serialize as text rather than base64.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0, 8)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// quoteIdent wraps an identifier in double quotes, escaping embedded ones.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// seedExpense is one templated budget_tracker row, repeated for each
// seeded month.
type seedExpense struct {
	day         int
	description string
	category    string
	amount      float64
}

var monthlyExpenses = []seedExpense{
	{1, "Monthly rent", "Rent", 15000},
	{2, "Supermarket run", "Groceries", 1240.50},
	{3, "Metro card top-up", "Transport", 500},
	{5, "Electricity bill", "Utilities", 1850},
	{6, "Dinner with friends", "Dining", 980},
	{8, "Vegetables and fruit", "Groceries", 640.25},
	{9, "Movie tickets", "Entertainment", 750},
	{11, "Auto rickshaw", "Transport", 180},
	{12, "Broadband bill", "Utilities", 999},
	{14, "Weekly groceries", "Groceries", 1580.75},
	{15, "Pharmacy", "Health", 435},
	{17, "Cab fare", "Transport", 620},
	{19, "Lunch out", "Dining", 540},
	{21, "Streaming subscription", "Entertainment", 499},
	{22, "Weekly groceries", "Groceries", 1310},
	{25, "Petrol", "Transport", 1200},
	{27, "Coffee and snacks", "Dining", 310},
	{28, "Weekly groceries", "Groceries", 890.50},
}

var monthlyBudgets = []struct {
	category string
	amount   float64
}{
	{"Rent", 15000},
	{"Groceries", 6000},
	{"Transport", 3000},
	{"Utilities", 3500},
	{"Dining", 2500},
	{"Entertainment", 1500},
	{"Health", 1000},
}

// Seed creates the budget schema and, when the tracker is empty, fills it
// with three months of example spending ending at the current month. It is
// idempotent so `penny init-db` can run repeatedly.
func Seed(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) error {
	const op = "storage.Seed"

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.NewDomainError(op, domain.ErrStorage, err.Error())
		}
	}

	db, err := sql.Open("sqlite", writeDSN(cfg))
	if err != nil {
		return domain.NewDomainError(op, domain.ErrStorageUnavailable, err.Error())
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS budget_tracker (
			id          INTEGER PRIMARY KEY,
			Date        TEXT,
			Description TEXT,
			Category    TEXT,
			Expenditure REAL,
			Year        INT,
			Month       INT,
			Day         INT
		)
	`); err != nil {
		return domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS budget_set (
			id        INTEGER PRIMARY KEY,
			MonthYear TEXT,
			Category  TEXT,
			Budget    REAL
		)
	`); err != nil {
		return domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM budget_tracker").Scan(&count); err != nil {
		return domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}
	if count > 0 {
		log.Info("budget database already seeded", "path", cfg.Path, "expenses", count)
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}
	defer tx.Rollback()

	// Three months ending now, so date-anchored questions hit real rows.
	first := time.Now().AddDate(0, -2, 0)
	for m := 0; m < 3; m++ {
		month := first.AddDate(0, m, 0)
		for _, e := range monthlyExpenses {
			date := time.Date(month.Year(), month.Month(), e.day, 0, 0, 0, 0, time.UTC)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO budget_tracker (Date, Description, Category, Expenditure, Year, Month, Day)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				date.Format("2006-01-02"), e.description, e.category, e.amount,
				date.Year(), int(date.Month()), date.Day(),
			); err != nil {
				return domain.NewDomainError(op, domain.ErrStorage, err.Error())
			}
		}
		for _, b := range monthlyBudgets {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO budget_set (MonthYear, Category, Budget) VALUES (?, ?, ?)",
				month.Format("Jan 2006"), b.category, b.amount,
			); err != nil {
				return domain.NewDomainError(op, domain.ErrStorage, err.Error())
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewDomainError(op, domain.ErrStorage, err.Error())
	}

	log.Info("budget database seeded",
		"path", cfg.Path,
		"expenses", 3*len(monthlyExpenses),
		"budgets", 3*len(monthlyBudgets),
	)
	return nil
}
