package core

// pipeline.go runs the Transformer and Validator over a whole batch.
//
// With Workers <= 1 records are processed sequentially. With more workers each
// record is handed to a bounded errgroup and its result is written back into
// its input slot, so the clean and rejected partitions keep input order no
// matter which goroutine finishes first.

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pipeline wires a Transformer to a Validator.
type Pipeline struct {
	Transformer *Transformer
	Validator   *Validator
	Workers     int
	Logger      *slog.Logger
}

// PipelineResult is the outcome of one batch.
type PipelineResult struct {
	IngestionID string
	Total       int
	Clean       []Record
	Rejected    []RejectedRecord
	Duration    time.Duration
}

// NewPipeline builds a sequential pipeline for one client batch.
func NewPipeline(mapping Mapping, client ClientConfig, schema Schema, ingestionID string) *Pipeline {
	return &Pipeline{
		Transformer: NewTransformer(mapping, client, ingestionID),
		Validator:   NewValidator(schema, client),
		Workers:     1,
	}
}

type outcome struct {
	rec    Record
	errors []string
}

// Run transforms and validates raws. The only errors returned are
// configuration errors and context cancellation; invalid records end up in
// PipelineResult.Rejected.
func (p *Pipeline) Run(ctx context.Context, raws []Record) (*PipelineResult, error) {
	start := time.Now()
	logger := p.Logger
	if logger == nil {
		logger = slog.Default().With("ingestion_id", p.Transformer.IngestionID())
	}

	outcomes := make([]outcome, len(raws))
	process := func(i int) error {
		rec, err := p.Transformer.Transform(raws[i])
		if err != nil {
			return err
		}
		res := p.Validator.ValidateRecord(rec)
		outcomes[i] = outcome{rec: rec}
		if !res.Valid {
			outcomes[i].errors = res.Messages()
		}
		return nil
	}

	if p.Workers <= 1 {
		for i := range raws {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := process(i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.Workers)
		for i := range raws {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return process(i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	result := &PipelineResult{
		IngestionID: p.Transformer.IngestionID(),
		Total:       len(raws),
		Clean:       make([]Record, 0, len(raws)),
		Rejected:    make([]RejectedRecord, 0),
	}
	for i, o := range outcomes {
		if o.errors == nil {
			result.Clean = append(result.Clean, o.rec)
			continue
		}
		logger.Debug("record rejected",
			"index", i,
			"loan_id", o.rec.Text(FieldLoanID),
			"errors", o.errors)
		result.Rejected = append(result.Rejected, RejectedRecord{Record: o.rec, Errors: o.errors})
	}
	result.Duration = time.Since(start)

	logger.Info("pipeline complete",
		"total", result.Total,
		"clean", len(result.Clean),
		"rejected", len(result.Rejected),
		"workers", max(p.Workers, 1),
		"duration", result.Duration)

	return result, nil
}
