package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	rotateForce    bool
	rotateNewToken bool
)

func init() {
	rotateCmd.Flags().BoolVar(&rotateForce, "force", false, "skip confirmation prompt")
	rotateCmd.Flags().BoolVar(&rotateNewToken, "new-token", false, "issue a new recovery token instead of keeping the current one")
}

// resetRotateCommandState resets the rotate command's global state for testing.
func resetRotateCommandState() {
	rotateForce = false
	rotateNewToken = false
}

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the master key and re-encrypt every file",
	Long: `Generates a new master key and re-encrypts every file in the vault under it.

Use this when you suspect the master key or a copy of the vault has been
exposed. The rotation is all-or-nothing: if any file cannot be re-encrypted,
the vault is left exactly as it was. An interrupted rotation is finished or
undone the next time locker opens the vault.

Both your password and your recovery token are required, unless --new-token
is given, in which case a new token is issued and shown once.

Examples:
  # Rotate, keeping the current recovery token
  locker rotate

  # Rotate and issue a new recovery token
  locker rotate --new-token`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting rotate command")
		Logger.Debugf("Flags: new-token=%t, force=%t", rotateNewToken, rotateForce)

		password, err := readPassword("Password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		var token string
		if !rotateNewToken {
			if token, err = readToken(); err != nil {
				return Logger.ErrorfAndReturn("Failed to read recovery token: %v", err)
			}
		}

		if !rotateForce {
			fmt.Printf("\n%s This re-encrypts every file in the vault under a new key.\n", ui.Warning.Sprint("Warning:"))
			if rotateNewToken {
				fmt.Println("  Your current recovery token will stop working.")
			}
			fmt.Println()
			if !confirm("Do you want to continue?") {
				fmt.Println(ui.Warning.Sprint("⚠") + " Key rotation cancelled.")
				return nil
			}
		}

		s, cleanup := startSpinner("Rotating master key...")
		result, err := workflows.Rotate(context.Background(), workflows.RotateOptions{
			Env:      env(),
			Password: password,
			Token:    token,
			NewToken: rotateNewToken,
		})
		if err != nil {
			err = failWith(s, err)
			cleanup()
			return err
		}

		s.FinalMSG = ui.Success.Sprint("✓") + fmt.Sprintf(" Master key rotated, %d file(s) re-encrypted", result.Files) + "\n" +
			ui.Info.Sprint("→") + " Key generation is now " + ui.Highlight.Sprint(result.Generation)
		cleanup()

		if result.Token != "" {
			showToken(result.Token)
		}
		return nil
	},
}
