package root

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/LoanIngest/internal/catalog"
	"github.com/JonMunkholm/LoanIngest/internal/config"
	"github.com/JonMunkholm/LoanIngest/internal/core"
	"github.com/JonMunkholm/LoanIngest/internal/ingest"
	"github.com/JonMunkholm/LoanIngest/internal/report"
	"github.com/JonMunkholm/LoanIngest/internal/storage"
)

type runFlags struct {
	client  string
	file    string
	workers int
	dryRun  bool
	json    bool
}

// runSummary is the --json output of `ingest run`.
type runSummary struct {
	IngestionID string               `json:"ingestion_id"`
	Client      string               `json:"client"`
	Source      string               `json:"source"`
	DryRun      bool                 `json:"dry_run"`
	Duplicates  int                  `json:"duplicate_records"`
	Quality     core.QualityMetrics  `json:"quality"`
	Business    core.BusinessMetrics `json:"business"`
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest one client file and print the quality and business reports",
		Example: "  ingest run --client lender_a --file data/raw/lender_a_loans.csv\n" +
			"  ingest run --client lender_b --file data/raw/lender_b_loans.json --dry-run",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.client == "" {
				return errors.New("missing required flag: --client")
			}
			if f.file == "" {
				return errors.New("missing required flag: --file")
			}

			cfg, err := g.setup()
			if err != nil {
				return err
			}
			if f.workers > 0 {
				cfg.Ingest.Workers = f.workers
			}

			ctx := cmd.Context()

			var store storage.Store
			if !f.dryRun {
				store, err = openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			svc := ingest.NewService(catalog.New(cfg.Ingest.ConfigDir), store, serviceOptions(cfg))
			res, err := svc.IngestFile(ctx, f.client, f.file, f.dryRun)
			if err != nil {
				if res != nil {
					return fmt.Errorf("ingestion %s failed: %w", res.Run.IngestionID, err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if f.json {
				return writeSummary(out, res)
			}
			if err := report.WriteQuality(out, res.Quality); err != nil {
				return err
			}
			return report.WriteBusiness(out, res.Business)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.client, "client", "", "Client name, as in config/clients/<name>.json")
	fl.StringVarP(&f.file, "file", "f", "", "Input file (CSV or JSON per client config)")
	fl.IntVar(&f.workers, "workers", 0, "Records processed in parallel (default $INGEST_WORKERS)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Classify and report without writing to the store")
	fl.BoolVar(&f.json, "json", false, "Print a JSON summary instead of the text reports")

	return cmd
}

func serviceOptions(cfg *config.Config) ingest.Options {
	return ingest.Options{
		Workers:       cfg.Ingest.Workers,
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		MaxConcurrent: cfg.Ingest.MaxConcurrent,
		MaxWait:       cfg.Ingest.MaxWaitTime,
		Timeout:       cfg.Ingest.Timeout,
	}
}

func writeSummary(w io.Writer, res *ingest.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runSummary{
		IngestionID: res.Run.IngestionID,
		Client:      res.Run.Client,
		Source:      res.Run.Source,
		DryRun:      res.DryRun,
		Duplicates:  res.Run.Duplicates,
		Quality:     res.Quality,
		Business:    res.Business,
	})
}
