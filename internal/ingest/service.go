// Package ingest runs client files through the loan pipeline end to end.
//
// A run loads the client's bundle from the catalog, reads the file with the
// client's reader settings, transforms and validates every record, persists
// the clean and rejected partitions, and records the run. Results stay in
// memory so the web layer can render a report for recent runs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/LoanIngest/internal/catalog"
	"github.com/JonMunkholm/LoanIngest/internal/core"
	"github.com/JonMunkholm/LoanIngest/internal/logging"
	"github.com/JonMunkholm/LoanIngest/internal/report"
	"github.com/JonMunkholm/LoanIngest/internal/source"
	"github.com/JonMunkholm/LoanIngest/internal/storage"
)

// ErrRunNotFound is returned for an ingestion id that is not kept in memory.
var ErrRunNotFound = storage.ErrRunNotFound

// DefaultKeepRuns is how many finished runs stay in memory.
const DefaultKeepRuns = 100

// idLayout is the timestamp part of an ingestion id.
const idLayout = "20060102150405"

// NewIngestionID returns INGEST_<YYYYMMDDHHMMSS>_<8 hex chars>. The suffix
// keeps ids unique when runs start within the same second.
func NewIngestionID(now time.Time) string {
	return "INGEST_" + now.UTC().Format(idLayout) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Options tune the service.
type Options struct {
	Workers       int           // pipeline workers per run
	MaxFileSize   int64         // bytes, 0 for unlimited
	MaxConcurrent int           // concurrent runs
	MaxWait       time.Duration // wait for a run slot
	Timeout       time.Duration // per run, 0 for none
	KeepRuns      int
}

// Request describes one file to ingest.
type Request struct {
	Client string
	Source string // file name, for the run record
	Body   io.Reader
	DryRun bool // classify and report without writing to the store
}

// Result is a finished run with its partitions and metrics.
type Result struct {
	Run      storage.Run
	Quality  core.QualityMetrics
	Business core.BusinessMetrics
	Clean    []core.Record
	Rejected []core.RejectedRecord
	DryRun   bool
}

// Summary converts the result for the HTML report.
func (r *Result) Summary() report.Summary {
	return report.Summary{
		IngestionID: r.Run.IngestionID,
		Client:      r.Run.Client,
		Source:      r.Run.Source,
		Status:      r.Run.Status,
		Error:       r.Run.Error,
		StartedAt:   r.Run.StartedAt,
		Duration:    r.Run.FinishedAt.Sub(r.Run.StartedAt),
		Duplicates:  r.Run.Duplicates,
		Quality:     r.Quality,
		Business:    r.Business,
		Rejected:    r.Rejected,
	}
}

// Service coordinates ingestion runs.
type Service struct {
	catalog *catalog.Catalog
	store   storage.Store // nil runs without persistence
	limiter *Limiter
	opts    Options
	now     func() time.Time

	mu    sync.RWMutex
	runs  map[string]*Result
	order []string // oldest first
}

// NewService creates a service. store may be nil, in which case every run
// behaves like a dry run.
func NewService(cat *catalog.Catalog, store storage.Store, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.KeepRuns <= 0 {
		opts.KeepRuns = DefaultKeepRuns
	}
	return &Service{
		catalog: cat,
		store:   store,
		limiter: NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
		now:     time.Now,
		runs:    make(map[string]*Result),
	}
}

// Catalog returns the client catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Limiter returns the run limiter.
func (s *Service) Limiter() *Limiter { return s.limiter }

// Ingest runs one file. On failure it returns the error together with a
// result whose run is marked failed; that run is recorded like any other.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	started := s.now().UTC()
	res := &Result{
		Run: storage.Run{
			IngestionID: NewIngestionID(started),
			Client:      req.Client,
			Source:      req.Source,
			StartedAt:   started,
		},
		DryRun: req.DryRun || s.store == nil,
	}
	logger := logging.ForIngestion(ctx, res.Run.IngestionID, req.Client)
	logger.Info("ingestion started", "source", req.Source, "dry_run", res.DryRun)

	err := s.run(ctx, req, res)

	res.Run.FinishedAt = s.now().UTC()
	res.Run.Total = res.Quality.TotalRecords
	res.Run.Clean = res.Quality.CleanRecords
	res.Run.Rejected = res.Quality.RejectedRecords
	if err != nil {
		res.Run.Status = storage.RunFailed
		res.Run.Error = err.Error()
	} else {
		res.Run.Status = storage.RunSucceeded
	}

	if s.store != nil && !req.DryRun {
		// A cancelled run is still recorded.
		if rerr := s.store.RecordRun(context.WithoutCancel(ctx), res.Run); rerr != nil {
			logger.Error("failed to record run", "error", rerr)
			err = errors.Join(err, rerr)
		}
	}
	s.remember(res)

	if err != nil {
		logger.Error("ingestion failed", "error", err, "duration", res.Run.FinishedAt.Sub(started))
		return res, err
	}
	logger.Info("ingestion complete",
		"total", res.Run.Total,
		"clean", res.Run.Clean,
		"rejected", res.Run.Rejected,
		"duplicates", res.Run.Duplicates,
		"rejection_rate", res.Quality.RejectionRate,
		"duration", res.Run.FinishedAt.Sub(started))
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, res *Result) error {
	if req.Body == nil {
		return errors.New("no file provided")
	}

	bundle, err := s.catalog.Load(req.Client)
	if err != nil {
		return err
	}

	raws, err := source.Read(req.Body, bundle.Client, source.Options{MaxBytes: s.opts.MaxFileSize})
	if err != nil {
		return err
	}

	p := core.NewPipeline(bundle.Mapping, bundle.Client, bundle.Schema, res.Run.IngestionID)
	p.Workers = s.opts.Workers
	p.Logger = logging.ForIngestion(ctx, res.Run.IngestionID, req.Client)

	out, err := p.Run(ctx, raws)
	if err != nil {
		return err
	}

	res.Clean = out.Clean
	res.Rejected = out.Rejected
	res.Quality = core.ComputeQualityMetrics(out.Clean, out.Rejected)
	res.Business = core.ComputeBusinessMetrics(out.Clean)

	if res.DryRun {
		return nil
	}

	saved, err := s.store.SaveClean(ctx, out.Clean)
	if err != nil {
		return fmt.Errorf("save clean loans: %w", err)
	}
	res.Run.Duplicates = saved.Skipped

	if _, err := s.store.SaveRejected(ctx, out.Rejected); err != nil {
		return fmt.Errorf("save rejected loans: %w", err)
	}
	return nil
}

// IngestFile opens path and ingests it under its base name.
func (s *Service) IngestFile(ctx context.Context, client, path string, dryRun bool) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	return s.Ingest(ctx, Request{
		Client: client,
		Source: filepath.Base(path),
		Body:   f,
		DryRun: dryRun,
	})
}

func (s *Service) remember(res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[res.Run.IngestionID] = res
	s.order = append(s.order, res.Run.IngestionID)
	for len(s.order) > s.opts.KeepRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

// Result returns a run kept in memory since process start.
func (s *Service) Result(ingestionID string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.runs[ingestionID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return res, nil
}

// ListRuns returns recent runs, newest first. Runs come from the store when
// there is one, otherwise from memory.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.store != nil {
		return s.store.ListRuns(ctx, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]storage.Run, 0, min(limit, len(s.order)))
	for _, id := range slices.Backward(s.order) {
		if len(runs) == limit {
			break
		}
		runs = append(runs, s.runs[id].Run)
	}
	return runs, nil
}

// Drain waits for in-flight runs to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}
