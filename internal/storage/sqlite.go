package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

const memoryPath = ":memory:"

// SQLiteStore persists ingestion results in a local SQLite file.
type SQLiteStore struct {
	conn *sql.DB
	path string
	sql  dialect
}

// NewSQLite opens (or creates) the SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	dsn := path
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; this also keeps an in-memory database on a single connection.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return &SQLiteStore{conn: conn, path: path, sql: sqliteDialect}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.sql.migrations {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveClean inserts clean loans in one transaction. Loans whose loan_id is
// already stored are skipped and counted.
func (s *SQLiteStore) SaveClean(ctx context.Context, recs []core.Record) (SaveResult, error) {
	var res SaveResult
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.sql.insertLoan())
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		row, err := NewLoanRow(rec)
		if err != nil {
			return SaveResult{}, err
		}

		out, err := stmt.ExecContext(ctx,
			row.LoanID,
			textValue(row.BorrowerName),
			numericValue(row.LoanAmount),
			textValue(row.LoanStatus),
			dateValue(row.OpenDate),
			textValue(row.ClientID),
			textValue(row.IngestionID),
			timestampValue(row.IngestionTimestamp),
			bytesValue(row.Extra),
		)
		if err != nil {
			return SaveResult{}, fmt.Errorf("insert loan %s: %w", row.LoanID, err)
		}

		n, err := out.RowsAffected()
		if err != nil {
			return SaveResult{}, fmt.Errorf("insert loan %s: %w", row.LoanID, err)
		}
		if n == 0 {
			res.Skipped++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// SaveRejected inserts rejected loans with their diagnostics in one transaction.
func (s *SQLiteStore) SaveRejected(ctx context.Context, recs []core.RejectedRecord) (SaveResult, error) {
	var res SaveResult
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.sql.insertRejected())
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rr := range recs {
		row, err := NewRejectedRow(rr)
		if err != nil {
			return SaveResult{}, err
		}

		args := make([]any, 0, len(rejectedColumns))
		args = append(args, PgUUIDToString(row.ID))
		for _, f := range row.Fields {
			args = append(args, textValue(f))
		}
		args = append(args, row.RejectionReason, string(row.Errors), string(row.Record))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return SaveResult{}, fmt.Errorf("insert rejected loan: %w", err)
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.conn.ExecContext(ctx, s.sql.upsertRun(),
		run.IngestionID, run.Client, run.Source, run.Status,
		run.Total, run.Clean, run.Rejected, run.Duplicates,
		run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.IngestionID, err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.conn.QueryContext(ctx, s.sql.selectRuns(), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetRun(ctx context.Context, ingestionID string) (Run, error) {
	run, err := scanSQLiteRun(s.conn.QueryRowContext(ctx, s.sql.selectRun(), ingestionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", ingestionID, err)
	}
	return run, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// CountLoans returns the number of stored clean and rejected loans.
func (s *SQLiteStore) CountLoans(ctx context.Context) (clean, rejected int, err error) {
	if err = s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM loans").Scan(&clean); err != nil {
		return 0, 0, fmt.Errorf("count loans: %w", err)
	}
	if err = s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM rejected_loans").Scan(&rejected); err != nil {
		return 0, 0, fmt.Errorf("count rejected loans: %w", err)
	}
	return clean, rejected, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	err := row.Scan(
		&r.IngestionID, &r.Client, &r.Source, &r.Status,
		&r.Total, &r.Clean, &r.Rejected, &r.Duplicates,
		&r.Error, &started, &finished,
	)
	if err != nil {
		return Run{}, err
	}

	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return r, nil
}
