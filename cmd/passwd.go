package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the vault password",
	Long: `Changes the vault password. Files are not re-encrypted and the recovery
token is not affected.

With --password-stdin, the current password is read from the first line of
stdin and the new one from the second.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting passwd command")

		oldPassword, err := readPassword("Current password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}
		newPassword, err := readNewPassword("New password: ")
		if err != nil {
			fmt.Println(formatError(err))
			if isUnexpectedError(err) {
				return err
			}
			return nil
		}

		s, cleanup := startSpinner("Changing password...")
		defer cleanup()

		err = workflows.Passwd(context.Background(), workflows.PasswdOptions{
			Env:         env(),
			OldPassword: oldPassword,
			NewPassword: newPassword,
		})
		if err != nil {
			return failWith(s, err)
		}

		s.FinalMSG = ui.Success.Sprint("✓") + " Password changed"
		return nil
	},
}
