package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var venueName string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log every configured account in and save its session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			f := &targetFlags{venue: venueName}
			a := newApp(cmd, f)
			defer a.close()
			if len(a.cfg.Accounts) == 0 && a.cfgErr == nil {
				return fmt.Errorf("no accounts configured: set CR_EMAIL_1 and CR_PASSWORD_1")
			}
			if err := a.prepare(ctx, false); err != nil {
				return err
			}
			accts := a.accounts(a.cfg.Accounts)
			_, errs := a.loginAll(ctx, accts)

			failed := 0
			for i, acct := range accts {
				if errs[i] != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", acct.Email(), errs[i])
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", acct.Email())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d account(s) failed to log in", failed, len(accts))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&venueName, "venue", "", "venue profile name (CR_VENUE)")
	return cmd
}
