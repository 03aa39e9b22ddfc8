package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// PostgresStore persists ingestion results in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	sql  dialect
}

// NewPostgres connects a pool to url and verifies it with a ping.
func NewPostgres(ctx context.Context, url string, cfg PoolConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool, sql: postgresDialect}, nil
}

// Pool exposes the underlying pool for health checks.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.sql.migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveClean inserts clean loans in one transaction. Loans whose loan_id is
// already stored are skipped and counted.
func (s *PostgresStore) SaveClean(ctx context.Context, recs []core.Record) (SaveResult, error) {
	var res SaveResult
	if len(recs) == 0 {
		return res, nil
	}

	rows := make([]LoanRow, len(recs))
	for i, rec := range recs {
		row, err := NewLoanRow(rec)
		if err != nil {
			return res, err
		}
		rows[i] = row
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := s.sql.insertLoan()
	for _, c := range chunks(len(rows), batchSize) {
		batch := &pgx.Batch{}
		for _, row := range rows[c[0]:c[1]] {
			batch.Queue(insert, row.args()...)
		}

		br := tx.SendBatch(ctx, batch)
		for range rows[c[0]:c[1]] {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return SaveResult{}, fmt.Errorf("insert loan: %w", err)
			}
			if tag.RowsAffected() == 0 {
				res.Skipped++
			} else {
				res.Inserted++
			}
		}
		if err := br.Close(); err != nil {
			return SaveResult{}, fmt.Errorf("insert loans: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// SaveRejected inserts rejected loans with their diagnostics in one transaction.
func (s *PostgresStore) SaveRejected(ctx context.Context, recs []core.RejectedRecord) (SaveResult, error) {
	var res SaveResult
	if len(recs) == 0 {
		return res, nil
	}

	rows := make([]RejectedRow, len(recs))
	for i, rr := range recs {
		row, err := NewRejectedRow(rr)
		if err != nil {
			return res, err
		}
		rows[i] = row
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := s.sql.insertRejected()
	for _, c := range chunks(len(rows), batchSize) {
		batch := &pgx.Batch{}
		for _, row := range rows[c[0]:c[1]] {
			batch.Queue(insert, row.args()...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return SaveResult{}, fmt.Errorf("insert rejected loans: %w", err)
		}
		res.Inserted += c[1] - c[0]
	}

	if err := tx.Commit(ctx); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, s.sql.upsertRun(),
		run.IngestionID, run.Client, run.Source, run.Status,
		run.Total, run.Clean, run.Rejected, run.Duplicates,
		run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.IngestionID, err)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx, s.sql.selectRuns(), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) GetRun(ctx context.Context, ingestionID string) (Run, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, s.sql.selectRun(), ingestionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", ingestionID, err)
	}
	return run, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgRun(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(
		&r.IngestionID, &r.Client, &r.Source, &r.Status,
		&r.Total, &r.Clean, &r.Rejected, &r.Duplicates,
		&r.Error, &r.StartedAt, &r.FinishedAt,
	)
	return r, err
}
