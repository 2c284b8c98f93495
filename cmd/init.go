package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/utils"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var initNoClear bool

func init() {
	initCmd.Flags().BoolVar(&initNoClear, "no-clear", false, "leave the recovery token on screen")
}

// resetInitCommandState resets the init command's global state for testing.
func resetInitCommandState() {
	initNoClear = false
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long: `Creates a new vault protected by a password and a recovery token.

The recovery token is shown exactly once. Write it down and keep it
somewhere safe: it is the only way back in if you forget your password.

Examples:
  # Create a vault, prompting for the password
  locker init

  # Create a vault from a script
  echo "$PASSWORD" | locker init --password-stdin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting init command")

		password, err := readNewPassword("Choose a password: ")
		if err != nil {
			fmt.Println(formatError(err))
			if isUnexpectedError(err) {
				return err
			}
			return nil
		}

		s, cleanup := startSpinner("Creating vault...")
		result, err := workflows.Init(context.Background(), workflows.InitOptions{
			Env:      env(),
			Password: password,
		})
		if err != nil {
			err = failWith(s, err)
			cleanup()
			return err
		}
		s.FinalMSG = ui.Success.Sprint("✓") + " Vault created in " + ui.Path.Sprint(result.DataDir)
		cleanup()

		showToken(result.Token)
		return nil
	},
}

// showToken prints the recovery token and, on an interactive terminal, clears
// it from the screen once the user confirms they have written it down.
func showToken(token string) {
	fmt.Println()
	fmt.Print(ui.TokenBox(
		"RECOVERY TOKEN",
		"",
		ui.Token.Sprint(token),
		"",
		"Shown once. It unlocks the vault",
		"if you forget your password.",
	))
	fmt.Println()

	if initNoClear || passwordStdin || !utils.IsTTYAvailable() {
		return
	}

	fmt.Println(ui.Info.Sprint("→") + " Press Enter once you have written it down")
	if err := utils.WaitForEnterFromTTY(); err != nil {
		Logger.Warnf("Failed to wait for Enter: %v", err)
		return
	}
	if err := utils.ClearScreen(); err != nil {
		Logger.Warnf("Failed to clear screen: %v", err)
	}
}
