package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/courtsniper/internal/booking"
	"github.com/example/courtsniper/internal/history"
	"github.com/example/courtsniper/internal/probe"
	"github.com/example/courtsniper/internal/report"
	"github.com/example/courtsniper/internal/scheduler"
	"github.com/example/courtsniper/internal/session"
	"github.com/example/courtsniper/internal/web"
)

func newRunCmd() *cobra.Command {
	var f targetFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the venue and book courts for every account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a := newApp(cmd, &f)
			defer a.close()
			if err := a.prepare(ctx, true); err != nil {
				return a.fatal(err)
			}
			cfg, log, target := a.cfg, a.log, a.target

			n := a.notifier()
			hist, err := history.Open(ctx, cfg.HistoryDSN, log)
			if err != nil {
				return a.fatal(err)
			}
			defer hist.Close()

			log.Info("logging in", zap.Int("accounts", len(a.creds)), zap.String("venue", a.venue.Name))
			accts, _ := a.loginAll(ctx, a.accounts(a.creds))
			if len(accts) == 0 {
				return a.fatal(errors.New("every account failed to log in"))
			}
			defer func() {
				for _, acct := range accts {
					if err := acct.Close(context.WithoutCancel(ctx)); err != nil {
						log.Warn("save session", zap.String("actor", acct.Email()), zap.Error(err))
					}
				}
			}()

			s := &scheduler.Scheduler{
				Venue:       a.venue,
				Date:        target.Date,
				Slots:       target.Slots,
				Durations:   target.Durations,
				PinnedCourt: target.PinnedCourt,
				SingleShot:  cfg.SingleShot,
				Accounts:    schedulerAccounts(accts),
				Prober:      probe.New(a.venue, log),
				Executor:    booking.NewExecutor(target.Date, log),
				Notifier:    n,
				History:     hist,
				Log:         log,
				OnCycle:     report.New(cmd.OutOrStdout()).Cycle,
			}

			if cfg.StatusAddr != "" {
				ws := &web.Server{Status: s, History: hist, Log: log}
				go func() {
					if err := web.Start(ctx, cfg.StatusAddr, ws.Routes(), log); err != nil {
						log.Error("status server", zap.Error(err))
					}
				}()
			}

			rep, err := s.Run(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				log.Info("interrupted")
				return nil
			case err != nil:
				return err
			case rep.Booked > 0:
				fmt.Fprintf(cmd.OutOrStdout(), "booked %d court(s)\n", rep.Booked)
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func schedulerAccounts(accts []*session.Account) []scheduler.Account {
	out := make([]scheduler.Account, len(accts))
	for i, a := range accts {
		out[i] = a
	}
	return out
}
