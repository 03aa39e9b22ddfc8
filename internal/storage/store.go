// Package storage persists classified loan batches.
//
// Two backends implement Store: PostgreSQL through a pgx pool, and SQLite
// through modernc.org/sqlite for local runs. Both use the same three tables:
//
//	loans            typed clean loans, primary key loan_id
//	rejected_loans   text copies of rejected rows plus their diagnostics
//	ingestion_runs   one row per ingestion with its counts and outcome
//
// Clean loans are inserted with ON CONFLICT DO NOTHING, so re-ingesting a file
// never fails on loans that are already stored; the skipped rows are counted
// as duplicates instead. Each partition is written in one transaction.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/LoanIngest/internal/core"
)

// ErrRunNotFound is returned when an ingestion run does not exist.
var ErrRunNotFound = errors.New("run not found")

// batchSize is the number of rows sent per round trip.
const batchSize = 500

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Store is a persistence backend for ingestion results.
type Store interface {
	// Migrate creates the tables if they do not exist.
	Migrate(ctx context.Context) error
	SaveClean(ctx context.Context, recs []core.Record) (SaveResult, error)
	SaveRejected(ctx context.Context, recs []core.RejectedRecord) (SaveResult, error)
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, ingestionID string) (Run, error)
	Close() error
}

// SaveResult counts what a save did.
type SaveResult struct {
	Inserted int
	Skipped  int // rows that hit an existing primary key
}

// Run is one ingestion as recorded in ingestion_runs.
type Run struct {
	IngestionID string    `json:"ingestion_id"`
	Client      string    `json:"client"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Total       int       `json:"total_records"`
	Clean       int       `json:"clean_records"`
	Rejected    int       `json:"rejected_records"`
	Duplicates  int       `json:"duplicate_records"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// RejectionRate returns the rejected share of the run in percent.
func (r Run) RejectionRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Rejected) / float64(r.Total) * 100
}

// PoolConfig tunes the PostgreSQL connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects to the store named by url.
//
// postgres:// and postgresql:// URLs use PostgreSQL. sqlite:// URLs and bare
// file paths use SQLite; sqlite://:memory: opens an in-memory database.
func Open(ctx context.Context, url string, pool PoolConfig) (Store, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgres(ctx, url, pool)
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("unsupported database url scheme: %s", url)
	default:
		return NewSQLite(ctx, url)
	}
}

// Backend names the kind of store behind url, for logging.
func Backend(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}
