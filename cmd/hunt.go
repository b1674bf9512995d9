package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/courtsniper/internal/report"
	"github.com/example/courtsniper/internal/scheduler"
)

func newHuntCmd() *cobra.Command {
	var f targetFlags

	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Probe once and print which account would get which court, without booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a := newApp(cmd, &f)
			defer a.close()
			if err := a.prepare(ctx, true); err != nil {
				return err
			}
			target, creds := a.target, a.creds
			accts := a.accounts(creds)
			defer func() {
				_ = accts[0].Close(context.WithoutCancel(ctx))
			}()

			s := &scheduler.Scheduler{
				Venue:       a.venue,
				Date:        target.Date,
				Slots:       target.Slots,
				Durations:   target.Durations,
				PinnedCourt: target.PinnedCourt,
				Accounts:    schedulerAccounts(accts),
				Log:         a.log,
			}
			opps, as, err := s.Hunt(ctx)
			if err != nil {
				return err
			}
			emails := make([]string, len(creds))
			for i, c := range creds {
				emails[i] = c.Email
			}
			report.New(cmd.OutOrStdout()).Plan(opps, as, emails)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}
