package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/LoanIngest/internal/catalog"
)

func newClientsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "clients",
		Short:         "List configured clients",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.setup()
			if err != nil {
				return err
			}

			cat := catalog.New(cfg.Ingest.ConfigDir)
			names, err := cat.Clients()
			if err != nil {
				return err
			}
			for _, name := range names {
				// Surface broken bundles here rather than at ingestion time.
				if _, err := cat.Load(name); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tinvalid: %v\n", name, err)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
