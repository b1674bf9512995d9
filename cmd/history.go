package cmd

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/courtsniper/internal/config"
	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/logging"
	"github.com/example/courtsniper/internal/report"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [cycle-id]",
		Short: "Show recent poll cycles, or the booking attempts of one cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.HistoryDSN == "" {
				return errors.New("HISTORY_DSN is not set")
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := history.Open(ctx, cfg.HistoryDSN, log)
			if err != nil {
				return err
			}
			defer store.Close()
			p := report.New(cmd.OutOrStdout())

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return err
				}
				atts, err := store.Attempts(ctx, id)
				if err != nil {
					return err
				}
				p.Attempts(atts)
				return nil
			}
			cycles, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			p.History(cycles)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of cycles to show")
	return cmd
}
