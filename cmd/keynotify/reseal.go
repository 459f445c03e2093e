package main

import (
	"github.com/spf13/cobra"
)

func resealCmd(a *app, connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reseal",
		Short: "Re-encrypt the stored token with the current passphrase settings",
		Long: `Rewrite a sealed token file written with weaker key derivation settings,
or a plaintext token file when KEYNOTIFY_PASSPHRASE is now set. Reading the
token never rewrites it, so this is the only way to upgrade it in place short
of signing in again.`,
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			done, err := a.client.Slot().Reseal(cmd.Context())
			if err != nil {
				return err
			}
			if done {
				success(cmd.OutOrStdout(), "stored token sealed with current settings")
			} else {
				info(cmd.OutOrStdout(), "nothing to reseal")
			}
			return nil
		}),
	}
}
