package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate a COOKIE_SECRET value (base64) for sealing saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export COOKIE_SECRET=%s\n", base64.StdEncoding.EncodeToString(secret))
			return nil
		},
	}
}
