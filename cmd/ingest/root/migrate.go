package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/LoanIngest/internal/config"
	"github.com/JonMunkholm/LoanIngest/internal/storage"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Create the loans, rejected_loans and ingestion_runs tables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.setup()
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store at %s\n",
				storage.Backend(cfg.Database.URL), config.MaskURL(cfg.Database.URL))
			return nil
		},
	}
}
