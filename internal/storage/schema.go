package storage

import (
	"fmt"
	"strings"
)

// dialect holds the SQL that differs between backends.
type dialect struct {
	name        string
	migrations  []string
	placeholder func(n int) string
}

var postgresDialect = dialect{
	name: "postgres",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS loans (
			loan_id TEXT PRIMARY KEY,
			borrower_name TEXT,
			loan_amount NUMERIC(14,2),
			loan_status TEXT,
			open_date DATE,
			client_id TEXT,
			ingestion_id TEXT,
			ingestion_timestamp TIMESTAMPTZ,
			extra JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS rejected_loans (
			id UUID PRIMARY KEY,
			loan_id TEXT,
			borrower_name TEXT,
			loan_amount TEXT,
			loan_status TEXT,
			open_date TEXT,
			client_id TEXT,
			ingestion_id TEXT,
			ingestion_timestamp TEXT,
			rejection_reason TEXT NOT NULL,
			errors JSONB NOT NULL,
			record JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			ingestion_id TEXT PRIMARY KEY,
			client TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			total_records INTEGER NOT NULL DEFAULT 0,
			clean_records INTEGER NOT NULL DEFAULT 0,
			rejected_records INTEGER NOT NULL DEFAULT 0,
			duplicate_records INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_ingestion ON loans(ingestion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rejected_ingestion ON rejected_loans(ingestion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON ingestion_runs(started_at DESC)`,
	},
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS loans (
			loan_id TEXT PRIMARY KEY,
			borrower_name TEXT,
			loan_amount REAL,
			loan_status TEXT,
			open_date TEXT,
			client_id TEXT,
			ingestion_id TEXT,
			ingestion_timestamp TEXT,
			extra TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS rejected_loans (
			id TEXT PRIMARY KEY,
			loan_id TEXT,
			borrower_name TEXT,
			loan_amount TEXT,
			loan_status TEXT,
			open_date TEXT,
			client_id TEXT,
			ingestion_id TEXT,
			ingestion_timestamp TEXT,
			rejection_reason TEXT NOT NULL,
			errors TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			ingestion_id TEXT PRIMARY KEY,
			client TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			total_records INTEGER NOT NULL DEFAULT 0,
			clean_records INTEGER NOT NULL DEFAULT 0,
			rejected_records INTEGER NOT NULL DEFAULT 0,
			duplicate_records INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_ingestion ON loans(ingestion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rejected_ingestion ON rejected_loans(ingestion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON ingestion_runs(started_at)`,
	},
	placeholder: func(int) string { return "?" },
}

var rejectedColumns = append(append([]string{"id"}, loanColumns...), "rejection_reason", "errors", "record")

var runColumns = []string{
	"ingestion_id", "client", "source", "status",
	"total_records", "clean_records", "rejected_records", "duplicate_records",
	"error", "started_at", "finished_at",
}

func (d dialect) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

func (d dialect) insertLoan() string {
	cols := append(append([]string{}, loanColumns...), "extra")
	return fmt.Sprintf("INSERT INTO loans (%s) VALUES (%s) ON CONFLICT (loan_id) DO NOTHING",
		strings.Join(cols, ", "), d.placeholders(len(cols)))
}

func (d dialect) insertRejected() string {
	return fmt.Sprintf("INSERT INTO rejected_loans (%s) VALUES (%s)",
		strings.Join(rejectedColumns, ", "), d.placeholders(len(rejectedColumns)))
}

// upsertRun replaces a run row so a retried ingestion id keeps its last outcome.
func (d dialect) upsertRun() string {
	sets := make([]string, 0, len(runColumns)-1)
	for _, c := range runColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO ingestion_runs (%s) VALUES (%s) ON CONFLICT (ingestion_id) DO UPDATE SET %s",
		strings.Join(runColumns, ", "), d.placeholders(len(runColumns)), strings.Join(sets, ", "))
}

func (d dialect) selectRuns() string {
	return fmt.Sprintf("SELECT %s FROM ingestion_runs ORDER BY started_at DESC LIMIT %s",
		strings.Join(runColumns, ", "), d.placeholder(1))
}

func (d dialect) selectRun() string {
	return fmt.Sprintf("SELECT %s FROM ingestion_runs WHERE ingestion_id = %s",
		strings.Join(runColumns, ", "), d.placeholder(1))
}

// chunks splits n items into [start, end) ranges of at most size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		out = append(out, [2]int{start, end})
	}
	return out
}
