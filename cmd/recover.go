package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Set a new password using the recovery token",
	Long: `Unlocks the vault with the recovery token and sets a new password.

The recovery token stays valid afterwards.

With --password-stdin, the token is read from the first line of stdin and the
new password from the second.

Examples:
  locker recover
  printf '%s\n%s\n' "$TOKEN" "$NEW_PASSWORD" | locker recover --password-stdin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting recover command")

		token, err := readToken()
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read recovery token: %v", err)
		}
		password, err := readNewPassword("New password: ")
		if err != nil {
			fmt.Println(formatError(err))
			if isUnexpectedError(err) {
				return err
			}
			return nil
		}

		s, cleanup := startSpinner("Recovering vault...")
		defer cleanup()

		err = workflows.Recover(context.Background(), workflows.RecoverOptions{
			Env:         env(),
			Token:       token,
			NewPassword: password,
		})
		if err != nil {
			return failWith(s, err)
		}

		s.FinalMSG = ui.Success.Sprint("✓") + " Password reset\n" +
			ui.Info.Sprint("→") + " Your recovery token still works; keep it safe"
		return nil
	},
}
