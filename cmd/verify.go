package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/workflows"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every file in the vault for damage or tampering",
	Long: `Decrypts every file in the vault without writing any plaintext, and
reports files whose ciphertext fails authentication.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting verify command")

		password, err := readPassword("Password: ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to read password: %v", err)
		}

		s, cleanup := startSpinner("Verifying files...")
		defer cleanup()

		result, err := workflows.Verify(context.Background(), workflows.VerifyOptions{
			Env:      env(),
			Password: password,
		})
		if err != nil {
			return failWith(s, err)
		}

		var msg strings.Builder
		if len(result.Failed) == 0 {
			msg.WriteString(ui.Success.Sprint("✓") + fmt.Sprintf(" All %d file(s) verified\n", result.Checked))
		} else {
			msg.WriteString(ui.Error.Sprint("✗") + fmt.Sprintf(" %d of %d file(s) failed verification:\n", len(result.Failed), result.Checked))
			for _, f := range result.Failed {
				msg.WriteString("    - " + ui.Highlight.Sprint(f.File.Name) + " " + ui.Muted.Sprint(f.File.ID) + ": " + f.Err.Error() + "\n")
			}
		}
		if result.Broken != nil {
			msg.WriteString(ui.Warning.Sprint("⚠") + " The vault is read-only\n" +
				ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("locker reconcile") + " to check the mismatched files")
		}
		s.FinalMSG = msg.String()

		if len(result.Failed) > 0 {
			return fmt.Errorf("%d file(s) failed verification", len(result.Failed))
		}
		return nil
	},
}
