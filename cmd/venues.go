package cmd

import (
	"github.com/spf13/cobra"

	"github.com/example/courtsniper/internal/config"
	"github.com/example/courtsniper/internal/report"
	"github.com/example/courtsniper/internal/venue"
)

func newVenuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "venues",
		Short: "List the built-in venues and those in CR_VENUES_FILE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ps, err := venue.All(cfg.VenuesFile)
			if err != nil {
				return err
			}
			report.New(cmd.OutOrStdout()).Venues(ps)
			return nil
		},
	}
}
